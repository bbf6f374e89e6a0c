package report

import (
	"time"

	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

// MaxWindowDays is the longest date range, in calendar days, a single export
// may cover.
const MaxWindowDays = 35

const dateLayout = "2006-01-02"

// ExportRequest is the caller's export filter.
type ExportRequest struct {
	ProcName   string   `json:"proc_name"`
	Date       []string `json:"date"`
	IsFinished *bool    `json:"is_finished,omitempty"`
	State      int      `json:"state,omitempty"`
}

// Window is a validated, inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate checks the request before any upstream call is made. Dates are
// read in the local zone.
func Validate(req ExportRequest) (Window, error) {
	return validateIn(req, time.Local)
}

func validateIn(req ExportRequest, loc *time.Location) (Window, error) {
	if req.ProcName == "" {
		return Window{}, workflow.NewValidationError("proc_name", "process name is required")
	}
	if len(req.Date) != 2 {
		return Window{}, workflow.NewValidationError("date", "date range must have a start and an end")
	}

	start, err := time.ParseInLocation(dateLayout, req.Date[0], loc)
	if err != nil {
		return Window{}, workflow.NewValidationError("date", "invalid start date "+req.Date[0])
	}
	end, err := time.ParseInLocation(dateLayout, req.Date[1], loc)
	if err != nil {
		return Window{}, workflow.NewValidationError("date", "invalid end date "+req.Date[1])
	}
	if end.Before(start) {
		return Window{}, workflow.NewValidationError("date", "end date is before start date")
	}
	// Calendar days, so a DST change inside the range does not count as an hour.
	if start.AddDate(0, 0, MaxWindowDays).Before(end) {
		return Window{}, workflow.NewValidationError("date", "date range exceeds 35 days")
	}

	return Window{Start: start, End: end}, nil
}
