package entity

// Task is the engine's record of one approval step acted on by a user.
type Task struct {
	ID         int64  `json:"id"`
	ProcInstID int64  `json:"proc_inst_id"`
	NodeID     string `json:"node_id"`
	Step       int    `json:"step"`
	Assignee   string `json:"assignee,omitempty"`
	IsFinished bool   `json:"is_finished"`
}

// Definition is a process definition stored by the engine.
type Definition struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Resource  string `json:"resource,omitempty"`
	UserID    string `json:"userid,omitempty"`
	Company   string `json:"company,omitempty"`
	CreatedAt string `json:"create_time,omitempty"`
}
