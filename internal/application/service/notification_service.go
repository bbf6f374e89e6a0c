package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/garyjia/approval-bridge/internal/application/dispatcher"
	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/render"
	"github.com/garyjia/approval-bridge/internal/application/report"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/event"
	"github.com/garyjia/approval-bridge/internal/domain/graph"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

// DefaultBotUserID is the identity approval messages are sent from.
const DefaultBotUserID = "approval-alert"

// DispatchRequest describes one transition to notify about.
type DispatchRequest struct {
	Transition workflow.Transition
	Process    *entity.ProcessInstance
	// ActorID is the user whose action caused the transition.
	ActorID string
	// Step is the step index of the completed task; used for pass/refuse.
	Step    int
	Comment string
}

// DispatchResult counts what happened to each attempted recipient.
type DispatchResult struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

// NotificationService decides, per recipient, whether a transition creates,
// updates or suppresses a chat message, and sends it.
type NotificationService interface {
	// Dispatch only fails for malformed requests; delivery errors are logged.
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}

// NotificationConfig tunes the dispatcher.
type NotificationConfig struct {
	BotUserID string
	// BotUserIDs are identities that never receive approval messages.
	BotUserIDs []string
	Workers    int
}

type notificationServiceImpl struct {
	chat      port.ChatClient
	directory port.UserDirectory
	links     port.ProcMsgRepository
	tx        port.TransactionManager
	catalog   *render.Catalog
	events    dispatcher.Dispatcher
	policy    *workflow.Policy
	botUserID string
	bots      map[string]struct{}
	workers   int
	logger    Logger
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithPolicy replaces the default dispatch table
func WithPolicy(p *workflow.Policy) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.policy = p
	}
}

// WithTransactions commits the links recorded by one dispatch together.
func WithTransactions(tm port.TransactionManager) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.tx = tm
	}
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	chat port.ChatClient,
	directory port.UserDirectory,
	links port.ProcMsgRepository,
	catalog *render.Catalog,
	events dispatcher.Dispatcher,
	cfg NotificationConfig,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	s := &notificationServiceImpl{
		chat:      chat,
		directory: directory,
		links:     links,
		tx:        noTransactions{},
		catalog:   catalog,
		events:    events,
		policy:    workflow.DefaultPolicy(),
		botUserID: cfg.BotUserID,
		bots:      make(map[string]struct{}, len(cfg.BotUserIDs)),
		workers:   cfg.Workers,
		logger:    logger,
	}
	if s.botUserID == "" {
		s.botUserID = DefaultBotUserID
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	s.bots[s.botUserID] = struct{}{}
	for _, id := range cfg.BotUserIDs {
		s.bots[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tally is shared by concurrent deliveries of one dispatch.
type tally struct {
	created, updated, skipped, failed atomic.Int32
}

func (t *tally) result() *DispatchResult {
	return &DispatchResult{
		Created: int(t.created.Load()),
		Updated: int(t.updated.Load()),
		Skipped: int(t.skipped.Load()),
		Failed:  int(t.failed.Load()),
	}
}

// dispatchContext carries per-call values resolved once.
type dispatchContext struct {
	req       DispatchRequest
	submitter string
	actor     string
	tally     *tally
}

func (s *notificationServiceImpl) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if !req.Transition.IsValid() {
		return nil, fmt.Errorf("%w: %q", workflow.ErrUnknownTransition, req.Transition)
	}
	if req.Process == nil {
		return nil, errors.New("dispatch: process is required")
	}

	p := req.Process
	dc := &dispatchContext{
		req:       req,
		submitter: s.nickname(ctx, p.StartUserID),
		actor:     s.nickname(ctx, req.ActorID),
		tally:     &tally{},
	}

	s.logger.Info("Dispatching transition",
		"proc_inst_id", p.ID,
		"transition", req.Transition,
		"is_finished", p.IsFinished,
	)

	for _, role := range workflow.Roles() {
		action, err := s.policy.Decide(req.Transition, role, p.IsFinished)
		if err != nil {
			return nil, err
		}

		switch action {
		case workflow.ActionCreate:
			s.create(ctx, dc, role)
		case workflow.ActionUpdate:
			s.updateLinked(ctx, dc)
		case workflow.ActionPromote:
			s.promoteCandidates(ctx, dc)
		}
	}

	result := dc.tally.result()
	s.logger.Info("Transition dispatched",
		"proc_inst_id", p.ID,
		"transition", req.Transition,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	if s.events != nil {
		s.events.DispatchAsync(ctx, event.NewEvent(event.TypeDispatchCompleted, p.ID, req.ActorID, map[string]interface{}{
			"transition": req.Transition.String(),
			"created":    result.Created,
			"updated":    result.Updated,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
		}))
	}

	return result, nil
}

func (s *notificationServiceImpl) create(ctx context.Context, dc *dispatchContext, role workflow.Role) {
	p := dc.req.Process

	switch role {
	case workflow.RoleReviewer:
		s.startReviewers(ctx, dc, p.CandidateIDs())

	case workflow.RoleSubmitter:
		s.fanOut([]string{p.StartUserID}, func(userID string) {
			s.deliverNew(ctx, dc, workflow.RoleSubmitter, dc.req.Transition, userID)
		})

	case workflow.RoleNotifier:
		var users []entity.NodeUser
		if dc.req.Transition == workflow.TransitionStart {
			users = graph.ReachedNotifiers(p)
		} else {
			users = graph.NextNodeNotifiers(p, dc.req.Step)
		}
		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.TargetID)
		}
		s.fanOut(ids, func(userID string) {
			s.deliverNew(ctx, dc, workflow.RoleNotifier, dc.req.Transition, userID)
		})
	}
}

// startReviewers sends the "start" reviewer message and records a link per
// delivery. Links are saved after the fan-out in a single transaction.
func (s *notificationServiceImpl) startReviewers(ctx context.Context, dc *dispatchContext, userIDs []string) {
	var (
		mu      sync.Mutex
		pending []*entity.ProcMsgLink
	)
	s.fanOut(userIDs, func(userID string) {
		msgID, ok := s.deliverNew(ctx, dc, workflow.RoleReviewer, workflow.TransitionStart, userID)
		if !ok {
			return
		}
		mu.Lock()
		pending = append(pending, &entity.ProcMsgLink{ProcInstID: dc.req.Process.ID, UserID: userID, MsgID: msgID})
		mu.Unlock()
	})
	s.saveLinks(ctx, pending)
}

func (s *notificationServiceImpl) saveLinks(ctx context.Context, links []*entity.ProcMsgLink) {
	if len(links) == 0 {
		return
	}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, link := range links {
			if err := s.links.Create(ctx, link); err != nil {
				return fmt.Errorf("save link for %s: %w", link.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save message links", "error", err, "proc_inst_id", links[0].ProcInstID, "count", len(links))
	}
}

// promoteCandidates treats the next candidates of a running process as new reviewers.
func (s *notificationServiceImpl) promoteCandidates(ctx context.Context, dc *dispatchContext) {
	p := dc.req.Process
	linked, err := s.linkedUsers(ctx, p.ID)
	if err != nil {
		s.logger.Error("Failed to load message links", "error", err, "proc_inst_id", p.ID)
		return
	}

	var fresh []string
	for _, id := range p.CandidateIDs() {
		if _, ok := linked[id]; ok {
			continue
		}
		fresh = append(fresh, id)
	}
	s.startReviewers(ctx, dc, fresh)
}

// updateLinked edits the start message of every reviewer with a stored link.
func (s *notificationServiceImpl) updateLinked(ctx context.Context, dc *dispatchContext) {
	p := dc.req.Process
	links, err := s.links.ListByProcess(ctx, p.ID)
	if err != nil {
		s.logger.Error("Failed to load message links", "error", err, "proc_inst_id", p.ID)
		return
	}

	// One update per recipient even if storage returns duplicates.
	byUser := make(map[string]*entity.ProcMsgLink, len(links))
	order := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := byUser[l.UserID]; ok {
			continue
		}
		byUser[l.UserID] = l
		order = append(order, l.UserID)
	}

	s.fanOut(order, func(userID string) {
		s.deliverUpdate(ctx, dc, byUser[userID])
	})
}

func (s *notificationServiceImpl) deliverNew(
	ctx context.Context,
	dc *dispatchContext,
	role workflow.Role,
	transition workflow.Transition,
	userID string,
) (string, bool) {
	p := dc.req.Process
	log := []interface{}{"proc_inst_id", p.ID, "userid", userID, "role", role, "transition", transition}

	if s.isBot(ctx, userID) {
		dc.tally.skipped.Add(1)
		return "", false
	}

	dialog, ok := s.dialog(ctx, userID, log)
	if !ok {
		dc.tally.skipped.Add(1)
		return "", false
	}

	text, err := s.catalog.Render(role, transition, s.messageData(dc, role))
	if err != nil {
		s.logger.Error("Failed to render message", append(log, "error", err)...)
		dc.tally.failed.Add(1)
		return "", false
	}

	sent, err := s.chat.SendMessage(ctx, &entity.ChatMessage{
		Dialog:     dialog,
		Kind:       entity.MessageKindText,
		Text:       text,
		FromUserID: s.botUserID,
		Silent:     role != workflow.RoleReviewer,
	})
	if err != nil {
		s.logger.Error("Failed to deliver message", append(log, "error", err)...)
		dc.tally.failed.Add(1)
		return "", false
	}
	dc.tally.created.Add(1)

	if role == workflow.RoleReviewer {
		s.signalBacklog(ctx, p.ID, userID)
	}
	return sent.ID, true
}

func (s *notificationServiceImpl) deliverUpdate(ctx context.Context, dc *dispatchContext, link *entity.ProcMsgLink) {
	p := dc.req.Process
	log := []interface{}{"proc_inst_id", p.ID, "userid", link.UserID, "msg_id", link.MsgID, "transition", dc.req.Transition}

	if link.MsgID == "" {
		dc.tally.skipped.Add(1)
		return
	}

	dialog, ok := s.dialog(ctx, link.UserID, log)
	if !ok {
		dc.tally.skipped.Add(1)
		return
	}

	text, err := s.catalog.Render(workflow.RoleReviewer, dc.req.Transition, s.messageData(dc, workflow.RoleReviewer))
	if err != nil {
		s.logger.Error("Failed to render message", append(log, "error", err)...)
		dc.tally.failed.Add(1)
		return
	}

	_, err = s.chat.SendMessage(ctx, &entity.ChatMessage{
		UpdateMarker: entity.UpdateMarker(link.MsgID),
		Dialog:       dialog,
		Kind:         entity.MessageKindText,
		Text:         text,
		FromUserID:   s.botUserID,
		Silent:       true,
	})
	if err != nil {
		s.logger.Error("Failed to update message", append(log, "error", err)...)
		dc.tally.failed.Add(1)
		return
	}
	dc.tally.updated.Add(1)

	s.signalBacklog(ctx, p.ID, link.UserID)
}

// fanOut runs fn for every id on a bounded pool and waits for all of them.
func (s *notificationServiceImpl) fanOut(ids []string, fn func(userID string)) {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range ids {
		if id == "" {
			continue
		}
		id := id
		g.Go(func() error {
			fn(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *notificationServiceImpl) dialog(ctx context.Context, userID string, log []interface{}) (*entity.Dialog, bool) {
	dialog, err := s.chat.FindDirectDialog(ctx, s.botUserID, userID)
	if err != nil {
		s.logger.Error("Failed to resolve dialog", append(log, "error", err)...)
		return nil, false
	}
	return dialog, dialog != nil
}

func (s *notificationServiceImpl) isBot(ctx context.Context, userID string) bool {
	if _, ok := s.bots[userID]; ok {
		return true
	}
	u, err := s.directory.LookupUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to look up user", "error", err, "userid", userID)
		return false
	}
	return u != nil && u.Bot
}

func (s *notificationServiceImpl) nickname(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	u, err := s.directory.LookupUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to look up user", "error", err, "userid", userID)
		return userID
	}
	if u == nil {
		return userID
	}
	return u.DisplayName()
}

func (s *notificationServiceImpl) messageData(dc *dispatchContext, role workflow.Role) render.MessageData {
	p := dc.req.Process
	nickname := dc.submitter
	if role == workflow.RoleSubmitter {
		nickname = dc.actor
	}
	return render.MessageData{
		Nickname:    nickname,
		ProcDefName: p.ProcDefName,
		Department:  p.Department,
		Type:        p.Var.Type,
		StartTime:   p.Var.StartTime,
		EndTime:     p.Var.EndTime,
		Description: p.Var.Description,
		StatusLabel: report.StatusLabel(p.State),
		Comment:     dc.req.Comment,
	}
}

func (s *notificationServiceImpl) signalBacklog(ctx context.Context, procInstID int64, userID string) {
	if s.events == nil || userID == "" {
		return
	}
	s.events.DispatchAsync(ctx, event.NewEvent(event.TypeBacklogChanged, procInstID, userID, nil))
}

func (s *notificationServiceImpl) linkedUsers(ctx context.Context, procInstID int64) (map[string]struct{}, error) {
	links, err := s.links.ListByProcess(ctx, procInstID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(links))
	for _, l := range links {
		out[l.UserID] = struct{}{}
	}
	return out, nil
}

// noTransactions runs fn directly when no transaction manager is configured.
type noTransactions struct{}

func (noTransactions) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
