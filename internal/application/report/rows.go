package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// ColumnCount is the fixed width of an export row.
const ColumnCount = 24

var headings = [ColumnCount]string{
	"Application ID",
	"Title",
	"Process",
	"Status",
	"Start Time",
	"End Time",
	"Submitter ID",
	"Submitter",
	"Department",
	"Department ID",
	"Department Owner",
	"Historical Approver",
	"Historical Agent",
	"Approval Record",
	"Current Handler",
	"Approved Nodes",
	"Approved Participants",
	"Approval Duration",
	"Leave Type",
	"Period Start",
	"Period End",
	"Duration (hours)",
	"Reason",
	"Duration Unit",
}

// Headings returns the column titles in row order.
func Headings() []string {
	return append([]string(nil), headings[:]...)
}

// Row is one exported process instance.
type Row struct {
	ApplicationID        int64
	Title                string
	ProcDefName          string
	Status               string
	StartTime            string
	EndTime              string
	SubmitterID          string
	Submitter            string
	Department           string
	DepartmentID         int64
	DepartmentOwner      string
	HistoricalApprover   string
	HistoricalAgent      string
	ApprovalRecord       string
	CurrentHandler       string
	ApprovedNodes        int
	ApprovedParticipants int
	ApprovalDuration     string
	LeaveType            string
	PeriodStart          string
	PeriodEnd            string
	DurationHours        string
	Reason               string
	DurationUnit         string
}

// Values returns the row cells in heading order.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.ApplicationID,
		r.Title,
		r.ProcDefName,
		r.Status,
		r.StartTime,
		r.EndTime,
		r.SubmitterID,
		r.Submitter,
		r.Department,
		r.DepartmentID,
		r.DepartmentOwner,
		r.HistoricalApprover,
		r.HistoricalAgent,
		r.ApprovalRecord,
		r.CurrentHandler,
		r.ApprovedNodes,
		r.ApprovedParticipants,
		r.ApprovalDuration,
		r.LeaveType,
		r.PeriodStart,
		r.PeriodEnd,
		r.DurationHours,
		r.Reason,
		r.DurationUnit,
	}
}

// BuildRows maps each process and its audit summary to a Row.
// users holds display metadata keyed by user id; missing entries fall back to the id.
func BuildRows(
	processes []*entity.ProcessInstance,
	summaries map[int64]entity.AuditSummary,
	users map[string]*entity.User,
	now time.Time,
) []Row {
	rows := make([]Row, 0, len(processes))
	for _, p := range processes {
		if p == nil {
			continue
		}
		rows = append(rows, buildRow(p, summaries[p.ID], users, now))
	}
	return rows
}

func buildRow(p *entity.ProcessInstance, s entity.AuditSummary, users map[string]*entity.User, now time.Time) Row {
	submitter := displayName(users, p.StartUserID)

	title := p.Title
	if title == "" {
		title = fmt.Sprintf("%s's %s", submitter, p.ProcDefName)
	}

	owner := "no"
	if u := users[p.StartUserID]; u != nil && u.DepartmentOwner {
		owner = "yes"
	}

	var handler string
	if !p.IsFinished {
		ids := p.CandidateIDs()
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, displayName(users, id))
		}
		handler = strings.Join(names, ",")
	}

	var hours, unit string
	if h := p.Var.Hours(); h > 0 {
		hours = strconv.FormatFloat(h, 'f', 1, 64)
		unit = "hours"
	}

	return Row{
		ApplicationID:        p.ID,
		Title:                title,
		ProcDefName:          p.ProcDefName,
		Status:               StatusLabel(p.State),
		StartTime:            p.StartTime,
		EndTime:              p.EndTime,
		SubmitterID:          p.StartUserID,
		Submitter:            submitter,
		Department:           p.Department,
		DepartmentID:         p.DepartmentID,
		DepartmentOwner:      owner,
		HistoricalApprover:   s.HistoricalApprovers,
		HistoricalAgent:      s.HistoricalApprovers,
		ApprovalRecord:       s.ApprovalRecordText,
		CurrentHandler:       handler,
		ApprovedNodes:        s.ApprovedNodeCount,
		ApprovedParticipants: s.ApprovedNumCount,
		ApprovalDuration:     elapsed(p, now),
		LeaveType:            p.Var.Type,
		PeriodStart:          p.Var.StartTime,
		PeriodEnd:            p.Var.EndTime,
		DurationHours:        hours,
		Reason:               p.Var.Description,
		DurationUnit:         unit,
	}
}

func displayName(users map[string]*entity.User, id string) string {
	if u := users[id]; u != nil {
		return u.DisplayName()
	}
	return id
}

// elapsed measures from start to end, or to now while the process runs.
func elapsed(p *entity.ProcessInstance, now time.Time) string {
	start, ok := p.StartedAt()
	if !ok {
		return ""
	}
	end, ok := p.EndedAt()
	if !ok {
		end = now
	}
	if end.Before(start) {
		return ""
	}
	return FormatDuration(end.Sub(start))
}

// FormatDuration renders d as days, hours and minutes, omitting leading zero units.
func FormatDuration(d time.Duration) string {
	minutes := int64(d / time.Minute)
	days := minutes / (24 * 60)
	hours := (minutes / 60) % 24
	mins := minutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
