package entity

// Participant log entry types.
const (
	ParticipantTypeParticipant = "participant"
)

// ParticipantScope selects which participant log the engine returns.
type ParticipantScope string

const (
	// ScopePending reads the log of a running process.
	ScopePending ParticipantScope = "pending"
	// ScopeAll reads the history log, which includes finished processes.
	ScopeAll ParticipantScope = "all"
)

// ParticipantLogEntry is one (step, actor) row of the engine's participant log.
type ParticipantLogEntry struct {
	ID         int64  `json:"id,omitempty"`
	ProcInstID int64  `json:"proc_inst_id,omitempty"`
	TaskID     int64  `json:"task_id,omitempty"`
	Type       string `json:"type"`
	Step       int    `json:"step"`
	UserID     string `json:"userid,omitempty"`
	Username   string `json:"username"`
	Comment    string `json:"comment"`
}

// Usernames splits the entry's comma-joined username list.
func (e ParticipantLogEntry) Usernames() []string {
	return SplitIDs(e.Username)
}

// AuditSummary is the approval trail reconstructed from a participant log.
type AuditSummary struct {
	HistoricalApprovers string `json:"historical_approvers"`
	ApprovalRecordText  string `json:"approval_record_text"`
	ApprovedNodeCount   int    `json:"approved_node_count"`
	ApprovedNumCount    int    `json:"approved_num_count"`
}
