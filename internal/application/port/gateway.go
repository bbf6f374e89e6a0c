package port

import (
	"context"

	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

// ListKind selects one of the engine's per-user process listings.
type ListKind string

const (
	// ListTasks lists processes waiting for the user's approval.
	ListTasks ListKind = "findTask"
	// ListStarted lists processes the user started.
	ListStarted ListKind = "startByMyself"
	// ListNotified lists processes the user was copied on.
	ListNotified ListKind = "findProcNotify"
)

// StartRequest starts a process on behalf of a user.
type StartRequest struct {
	UserID       string            `json:"userid"`
	DepartmentID int64             `json:"department_id"`
	ProcName     string            `json:"proc_name"`
	Var          entity.ProcessVar `json:"var"`
}

// CompleteRequest approves or rejects a task.
type CompleteRequest struct {
	UserID  string `json:"userid"`
	TaskID  int64  `json:"task_id"`
	Pass    bool   `json:"pass"`
	Comment string `json:"comment"`
}

// WithdrawRequest withdraws a running process through one of its tasks.
type WithdrawRequest struct {
	UserID     string `json:"userid"`
	TaskID     int64  `json:"task_id"`
	ProcInstID int64  `json:"proc_inst_id"`
}

// ListQuery pages through a user's processes.
type ListQuery struct {
	UserID    string `json:"userid"`
	ProcName  string `json:"proc_name,omitempty"`
	PageIndex int    `json:"page_index"`
	PageSize  int    `json:"page_size"`
}

// ProcessPage is one page of a process listing.
type ProcessPage struct {
	Data      []*entity.ProcessInstance `json:"data"`
	Count     int                       `json:"count"`
	PageIndex int                       `json:"page_index"`
	PageSize  int                       `json:"page_size"`
}

// RangeFilter selects processes by definition name and start date window.
type RangeFilter struct {
	ProcName   string `json:"proc_name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsFinished *bool  `json:"is_finished,omitempty"`
	State      int    `json:"state,omitempty"`
}

// WorkflowGateway is the normalized view of the external process engine.
type WorkflowGateway interface {
	FetchProcess(ctx context.Context, id int64) (*entity.ProcessInstance, error)
	FetchParticipants(ctx context.Context, procInstID int64, scope entity.ParticipantScope) ([]entity.ParticipantLogEntry, error)

	StartProcess(ctx context.Context, req StartRequest) (*entity.ProcessInstance, error)
	CompleteTask(ctx context.Context, req CompleteRequest) (*entity.Task, error)
	WithdrawTask(ctx context.Context, req WithdrawRequest) (*entity.Task, error)

	ListProcesses(ctx context.Context, kind ListKind, history bool, q ListQuery) (*ProcessPage, error)
	FindProcessesInRange(ctx context.Context, f RangeFilter) ([]*entity.ProcessInstance, error)

	ListDefinitions(ctx context.Context, name string) ([]*entity.Definition, error)
	DeleteDefinition(ctx context.Context, id int64) error
}
