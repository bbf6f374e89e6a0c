package entity

import "time"

// ProcMsgLink maps a process instance and recipient to the chat message
// sent to that recipient when the process started.
type ProcMsgLink struct {
	ID         int64     `json:"id"`
	ProcInstID int64     `json:"proc_inst_id"`
	UserID     string    `json:"userid"`
	MsgID      string    `json:"msg_id"`
	CreatedAt  time.Time `json:"created_at"`
}
