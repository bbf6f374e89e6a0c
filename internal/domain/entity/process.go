package entity

import (
	"strings"
	"time"
)

// EngineTimeLayout is the timestamp format used by the process engine.
const EngineTimeLayout = "2006-01-02 15:04:05"

// ProcessState is the engine's lifecycle code for a process instance.
type ProcessState int

const (
	ProcessStateAll       ProcessState = 0
	ProcessStatePending   ProcessState = 1
	ProcessStateApproved  ProcessState = 2
	ProcessStateRejected  ProcessState = 3
	ProcessStateWithdrawn ProcessState = 4
)

// Node types found in a process graph.
const (
	NodeTypeParticipant = "participant"
	NodeTypeNotifier    = "notifier"
)

// ProcessInstance is a read-through snapshot of one engine process instance.
type ProcessInstance struct {
	ID           int64        `json:"id"`
	ProcDefID    int64        `json:"proc_def_id,omitempty"`
	ProcDefName  string       `json:"proc_def_name"`
	Title        string       `json:"title,omitempty"`
	Department   string       `json:"department"`
	DepartmentID int64        `json:"department_id"`
	StartUserID  string       `json:"start_user_id"`
	StartTime    string       `json:"start_time"`
	EndTime      string       `json:"end_time,omitempty"`
	IsFinished   bool         `json:"is_finished"`
	State        ProcessState `json:"state"`
	Candidate    string       `json:"candidate"`
	NodeID       string       `json:"node_id"`
	TaskID       int64        `json:"task_id,omitempty"`
	NodeInfos    []GraphNode  `json:"node_infos"`
	Var          ProcessVar   `json:"var"`

	// Decoration filled in from the user directory, never sent upstream.
	StartUser  *User   `json:"start_user,omitempty"`
	Candidates []*User `json:"candidates,omitempty"`
}

// CandidateIDs returns the comma-separated candidate list as trimmed ids.
// Repeated ids are dropped, first occurrence wins.
func (p *ProcessInstance) CandidateIDs() []string {
	return UniqueIDs(SplitIDs(p.Candidate))
}

// StartedAt parses StartTime, reporting false when it is empty or malformed.
func (p *ProcessInstance) StartedAt() (time.Time, bool) {
	return ParseEngineTime(p.StartTime)
}

// EndedAt parses EndTime, reporting false when it is empty or malformed.
func (p *ProcessInstance) EndedAt() (time.Time, bool) {
	return ParseEngineTime(p.EndTime)
}

// GraphNode is one node of the process execution graph.
type GraphNode struct {
	NodeID       string     `json:"node_id"`
	Type         string     `json:"type"`
	Step         int        `json:"step"`
	AproverID    string     `json:"aprover_id,omitempty"`
	NodeUserList []NodeUser `json:"node_user_list,omitempty"`
}

// IsNotifier reports whether the node only informs its users.
func (n GraphNode) IsNotifier() bool {
	return n.Type == NodeTypeNotifier
}

// NodeUser is one recipient attached to a graph node.
// It stays comparable so recipient sets can be deduplicated by value. Name
// takes part in that comparison, so notifier lists must be computed from the
// engine payload before any display decoration fills Name in.
type NodeUser struct {
	TargetID string `json:"target_id"`
	Name     string `json:"name,omitempty"`
	MsgID    string `json:"msg_id,omitempty"`
}

// ProcessVar is the business payload submitted with a process.
type ProcessVar struct {
	Type        string `json:"type,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Description string `json:"description,omitempty"`
}

// Hours returns the period length in hours, or 0 when either bound is unusable.
func (v ProcessVar) Hours() float64 {
	start, ok := ParseEngineTime(v.StartTime)
	if !ok {
		return 0
	}
	end, ok := ParseEngineTime(v.EndTime)
	if !ok || end.Before(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// ParseEngineTime accepts the engine layout and the shorter minute and date forms.
func ParseEngineTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{EngineTimeLayout, "2006-01-02 15:04", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UniqueIDs returns ids without repeats, in first-seen order.
func UniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SplitIDs splits a comma-joined identity list, dropping blanks.
// Repeats are kept; use UniqueIDs when they must collapse.
func SplitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
