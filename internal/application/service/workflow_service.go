package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// WorkflowService fronts the process engine for API callers and triggers
// notification dispatch after every successful transition.
type WorkflowService interface {
	Start(ctx context.Context, caller entity.Identity, req port.StartRequest) (*entity.ProcessInstance, error)
	Complete(ctx context.Context, caller entity.Identity, req port.CompleteRequest) (*entity.Task, error)
	Withdraw(ctx context.Context, caller entity.Identity, req port.WithdrawRequest) (*entity.Task, error)

	Detail(ctx context.Context, procInstID int64) (*entity.ProcessInstance, error)
	List(ctx context.Context, caller entity.Identity, kind port.ListKind, history bool, page, pageSize int) (*port.ProcessPage, error)
	Participants(ctx context.Context, procInstID int64, history bool) ([]entity.ParticipantLogEntry, error)

	Definitions(ctx context.Context, name string) ([]*entity.Definition, error)
	DeleteDefinition(ctx context.Context, id int64) error
}

type workflowServiceImpl struct {
	gateway   port.WorkflowGateway
	notifier  NotificationService
	directory port.UserDirectory
	logger    Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	gateway port.WorkflowGateway,
	notifier NotificationService,
	directory port.UserDirectory,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		gateway:   gateway,
		notifier:  notifier,
		directory: directory,
		logger:    logger,
	}
}

func (s *workflowServiceImpl) Start(ctx context.Context, caller entity.Identity, req port.StartRequest) (*entity.ProcessInstance, error) {
	req.UserID = caller.UserID
	if req.ProcName == "" {
		return nil, workflow.NewValidationError("proc_name", "process name is required")
	}

	started, err := s.gateway.StartProcess(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	// The start response may predate candidate assignment; read the latest snapshot.
	p, err := s.gateway.FetchProcess(ctx, started.ID)
	if err != nil {
		s.logger.Error("Failed to reload started process, skipping dispatch", "error", err, "proc_inst_id", started.ID)
		return started, nil
	}

	s.dispatch(ctx, DispatchRequest{
		Transition: workflow.TransitionStart,
		Process:    p,
		ActorID:    caller.UserID,
	})
	return p, nil
}

func (s *workflowServiceImpl) Complete(ctx context.Context, caller entity.Identity, req port.CompleteRequest) (*entity.Task, error) {
	req.UserID = caller.UserID
	if req.TaskID <= 0 {
		return nil, workflow.NewValidationError("task_id", "task id is required")
	}

	task, err := s.gateway.CompleteTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	p, err := s.gateway.FetchProcess(ctx, task.ProcInstID)
	if err != nil {
		s.logger.Error("Failed to reload process, skipping dispatch", "error", err, "proc_inst_id", task.ProcInstID)
		return task, nil
	}

	transition := workflow.TransitionRefuse
	if req.Pass {
		transition = workflow.TransitionPass
	}
	s.dispatch(ctx, DispatchRequest{
		Transition: transition,
		Process:    p,
		ActorID:    caller.UserID,
		Step:       task.Step,
		Comment:    req.Comment,
	})
	return task, nil
}

func (s *workflowServiceImpl) Withdraw(ctx context.Context, caller entity.Identity, req port.WithdrawRequest) (*entity.Task, error) {
	req.UserID = caller.UserID
	if req.TaskID <= 0 || req.ProcInstID <= 0 {
		return nil, workflow.NewValidationError("task_id", "task id and process id are required")
	}

	task, err := s.gateway.WithdrawTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("withdraw task: %w", err)
	}

	p, err := s.gateway.FetchProcess(ctx, req.ProcInstID)
	if err != nil {
		s.logger.Error("Failed to reload process, skipping dispatch", "error", err, "proc_inst_id", req.ProcInstID)
		return task, nil
	}

	s.dispatch(ctx, DispatchRequest{
		Transition: workflow.TransitionWithdraw,
		Process:    p,
		ActorID:    caller.UserID,
		Step:       task.Step,
	})
	return task, nil
}

func (s *workflowServiceImpl) Detail(ctx context.Context, procInstID int64) (*entity.ProcessInstance, error) {
	p, err := s.gateway.FetchProcess(ctx, procInstID)
	if err != nil {
		return nil, fmt.Errorf("fetch process: %w", err)
	}
	s.decorate(ctx, p)
	return p, nil
}

func (s *workflowServiceImpl) List(ctx context.Context, caller entity.Identity, kind port.ListKind, history bool, page, pageSize int) (*port.ProcessPage, error) {
	switch kind {
	case port.ListTasks, port.ListStarted, port.ListNotified:
	default:
		return nil, workflow.NewValidationError("kind", fmt.Sprintf("unknown listing %q", kind))
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	result, err := s.gateway.ListProcesses(ctx, kind, history, port.ListQuery{
		UserID:    caller.UserID,
		PageIndex: page,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range result.Data {
		s.decorate(ctx, p)
	}
	return result, nil
}

func (s *workflowServiceImpl) Participants(ctx context.Context, procInstID int64, history bool) ([]entity.ParticipantLogEntry, error) {
	scope := entity.ScopePending
	if history {
		scope = entity.ScopeAll
	}
	entries, err := s.gateway.FetchParticipants(ctx, procInstID, scope)
	if err != nil {
		return nil, fmt.Errorf("fetch participants: %w", err)
	}
	return entries, nil
}

func (s *workflowServiceImpl) Definitions(ctx context.Context, name string) ([]*entity.Definition, error) {
	defs, err := s.gateway.ListDefinitions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return defs, nil
}

func (s *workflowServiceImpl) DeleteDefinition(ctx context.Context, id int64) error {
	if id <= 0 {
		return workflow.NewValidationError("id", "definition id is required")
	}
	if err := s.gateway.DeleteDefinition(ctx, id); err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	return nil
}

func (s *workflowServiceImpl) dispatch(ctx context.Context, req DispatchRequest) {
	if _, err := s.notifier.Dispatch(ctx, req); err != nil {
		s.logger.Error("Dispatch rejected", "error", err, "proc_inst_id", req.Process.ID, "transition", req.Transition)
	}
}

// decorate attaches display metadata for the submitter, candidates and node users.
// It fills NodeUser.Name in place, which changes notifier dedupe results;
// never pass a decorated process to the notification service.
func (s *workflowServiceImpl) decorate(ctx context.Context, p *entity.ProcessInstance) {
	if p == nil {
		return
	}
	cache := make(map[string]*entity.User)
	lookup := func(id string) *entity.User {
		if u, ok := cache[id]; ok {
			return u
		}
		u, err := s.directory.LookupUser(ctx, id)
		if err != nil {
			s.logger.Error("Failed to look up user", "error", err, "userid", id)
		}
		cache[id] = u
		return u
	}

	p.StartUser = lookup(p.StartUserID)
	p.Candidates = p.Candidates[:0]
	for _, id := range p.CandidateIDs() {
		if u := lookup(id); u != nil {
			p.Candidates = append(p.Candidates, u)
		}
	}
	for i := range p.NodeInfos {
		users := p.NodeInfos[i].NodeUserList
		for j := range users {
			if users[j].Name != "" {
				continue
			}
			if u := lookup(users[j].TargetID); u != nil {
				users[j].Name = u.DisplayName()
			}
		}
	}
}
