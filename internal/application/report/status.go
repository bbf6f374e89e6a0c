// Package report shapes process instances into export rows.
package report

import "github.com/garyjia/approval-bridge/internal/domain/entity"

var statusLabels = map[entity.ProcessState]string{
	entity.ProcessStateAll:       "all",
	entity.ProcessStatePending:   "in review",
	entity.ProcessStateApproved:  "approved",
	entity.ProcessStateRejected:  "rejected",
	entity.ProcessStateWithdrawn: "withdrawn",
}

// StatusLabel returns the display label of a state code, or "" for unknown codes.
func StatusLabel(state entity.ProcessState) string {
	return statusLabels[state]
}
