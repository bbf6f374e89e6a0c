// Package audit rebuilds the approval trail of a process from its
// participant log.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// Aggregate walks entries in step order and summarises who approved what.
// Step 0 records the submission; later steps count once per new approver
// set that left a comment.
func Aggregate(entries []entity.ParticipantLogEntry, p *entity.ProcessInstance) entity.AuditSummary {
	var summary entity.AuditSummary
	if len(entries) == 0 {
		return summary
	}

	ordered := make([]entity.ParticipantLogEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Step < ordered[j].Step
	})

	startTime := ""
	if p != nil {
		startTime = p.StartTime
	}

	var (
		record    strings.Builder
		approvers []string
		seen      = make(map[string]struct{})
	)

	for _, e := range ordered {
		if e.Type != entity.ParticipantTypeParticipant {
			continue
		}

		if e.Step == 0 {
			fmt.Fprintf(&record, "started by %s at %s|", e.Username, startTime)
			continue
		}

		names := e.Usernames()
		if e.Comment == "" || allSeen(names, seen) {
			continue
		}

		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			approvers = append(approvers, n)
		}
		summary.ApprovedNodeCount++
		summary.ApprovedNumCount++
		fmt.Fprintf(&record, "%s|agreed|%s|", e.Username, e.Comment)
	}

	summary.HistoricalApprovers = strings.Join(approvers, ";")
	summary.ApprovalRecordText = record.String()
	return summary
}

func allSeen(names []string, seen map[string]struct{}) bool {
	for _, n := range names {
		if _, ok := seen[n]; !ok {
			return false
		}
	}
	return true
}
