package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprint(append([]interface{}{msg}, keysAndValues...)...))
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type mockGateway struct {
	mu    sync.Mutex
	calls int

	fetchProcessFunc      func(ctx context.Context, id int64) (*entity.ProcessInstance, error)
	fetchParticipantsFunc func(ctx context.Context, id int64, scope entity.ParticipantScope) ([]entity.ParticipantLogEntry, error)
	startFunc             func(ctx context.Context, req port.StartRequest) (*entity.ProcessInstance, error)
	completeFunc          func(ctx context.Context, req port.CompleteRequest) (*entity.Task, error)
	withdrawFunc          func(ctx context.Context, req port.WithdrawRequest) (*entity.Task, error)
	listFunc              func(ctx context.Context, kind port.ListKind, history bool, q port.ListQuery) (*port.ProcessPage, error)
	rangeFunc             func(ctx context.Context, f port.RangeFilter) ([]*entity.ProcessInstance, error)
}

func (m *mockGateway) touch() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockGateway) FetchProcess(ctx context.Context, id int64) (*entity.ProcessInstance, error) {
	m.touch()
	if m.fetchProcessFunc != nil {
		return m.fetchProcessFunc(ctx, id)
	}
	return &entity.ProcessInstance{ID: id}, nil
}

func (m *mockGateway) FetchParticipants(ctx context.Context, id int64, scope entity.ParticipantScope) ([]entity.ParticipantLogEntry, error) {
	m.touch()
	if m.fetchParticipantsFunc != nil {
		return m.fetchParticipantsFunc(ctx, id, scope)
	}
	return nil, nil
}

func (m *mockGateway) StartProcess(ctx context.Context, req port.StartRequest) (*entity.ProcessInstance, error) {
	m.touch()
	if m.startFunc != nil {
		return m.startFunc(ctx, req)
	}
	return &entity.ProcessInstance{ID: 1}, nil
}

func (m *mockGateway) CompleteTask(ctx context.Context, req port.CompleteRequest) (*entity.Task, error) {
	m.touch()
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return &entity.Task{ID: req.TaskID, ProcInstID: 1}, nil
}

func (m *mockGateway) WithdrawTask(ctx context.Context, req port.WithdrawRequest) (*entity.Task, error) {
	m.touch()
	if m.withdrawFunc != nil {
		return m.withdrawFunc(ctx, req)
	}
	return &entity.Task{ID: req.TaskID, ProcInstID: req.ProcInstID}, nil
}

func (m *mockGateway) ListProcesses(ctx context.Context, kind port.ListKind, history bool, q port.ListQuery) (*port.ProcessPage, error) {
	m.touch()
	if m.listFunc != nil {
		return m.listFunc(ctx, kind, history, q)
	}
	return &port.ProcessPage{}, nil
}

func (m *mockGateway) FindProcessesInRange(ctx context.Context, f port.RangeFilter) ([]*entity.ProcessInstance, error) {
	m.touch()
	if m.rangeFunc != nil {
		return m.rangeFunc(ctx, f)
	}
	return nil, nil
}

func (m *mockGateway) ListDefinitions(ctx context.Context, name string) ([]*entity.Definition, error) {
	m.touch()
	return []*entity.Definition{{ID: 1, Name: name}}, nil
}

func (m *mockGateway) DeleteDefinition(ctx context.Context, id int64) error {
	m.touch()
	return nil
}

// mockChat records every send; dialogs exist for users in the dialogs set.
type mockChat struct {
	mu      sync.Mutex
	dialogs map[string]bool
	failFor map[string]bool
	sent    []*entity.ChatMessage
}

func newMockChat(users ...string) *mockChat {
	c := &mockChat{dialogs: make(map[string]bool), failFor: make(map[string]bool)}
	for _, u := range users {
		c.dialogs[u] = true
	}
	return c
}

func (m *mockChat) FindDirectDialog(ctx context.Context, botUserID, userID string) (*entity.Dialog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dialogs[userID] {
		return nil, nil
	}
	return &entity.Dialog{ID: "dlg-" + userID, UserID: userID, ReceiveIDType: "user_id"}, nil
}

func (m *mockChat) SendMessage(ctx context.Context, msg *entity.ChatMessage) (*entity.SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.Dialog.UserID] {
		return nil, fmt.Errorf("delivery to %s failed", msg.Dialog.UserID)
	}
	m.sent = append(m.sent, msg)
	if id, ok := entity.ParseUpdateMarker(msg.UpdateMarker); ok {
		return &entity.SentMessage{ID: id, Updated: true}, nil
	}
	return &entity.SentMessage{ID: fmt.Sprintf("m-%s", msg.Dialog.UserID)}, nil
}

func (m *mockChat) creates() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, msg := range m.sent {
		if msg.UpdateMarker == "" {
			out[msg.Dialog.UserID]++
		}
	}
	return out
}

func (m *mockChat) updates() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string)
	for _, msg := range m.sent {
		if msg.UpdateMarker != "" {
			out[msg.Dialog.UserID] = append(out[msg.Dialog.UserID], msg.UpdateMarker)
		}
	}
	return out
}

type mockDirectory struct {
	users map[string]*entity.User
}

func (m *mockDirectory) LookupUser(ctx context.Context, userID string) (*entity.User, error) {
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, nil
}

// mockLinkRepo is an in-memory ProcMsgRepository keyed like the real table.
type mockLinkRepo struct {
	mu    sync.Mutex
	links []*entity.ProcMsgLink
	err   error
}

func (m *mockLinkRepo) Create(ctx context.Context, link *entity.ProcMsgLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.ProcInstID == link.ProcInstID && l.UserID == link.UserID {
			return nil
		}
	}
	copied := *link
	m.links = append(m.links, &copied)
	return nil
}

func (m *mockLinkRepo) ListByProcess(ctx context.Context, procInstID int64) ([]*entity.ProcMsgLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.ProcMsgLink
	for _, l := range m.links {
		if l.ProcInstID == procInstID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) GetByProcessAndUser(ctx context.Context, procInstID int64, userID string) (*entity.ProcMsgLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.ProcInstID == procInstID && l.UserID == userID {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockLinkRepo) usersFor(procInstID int64) []string {
	links, _ := m.ListByProcess(context.Background(), procInstID)
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.UserID)
	}
	return out
}

type mockPublisher struct {
	mu      sync.Mutex
	signals []port.BacklogSignal
	err     error
}

func (m *mockPublisher) PublishBacklog(ctx context.Context, signal port.BacklogSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.signals = append(m.signals, signal)
	return nil
}

type mockWriter struct {
	sheets []port.Sheet
	err    error
}

func (m *mockWriter) WriteSpreadsheet(ctx context.Context, dir string, sheet port.Sheet) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sheets = append(m.sheets, sheet)
	path := dir + "/" + sheet.Title + ".xlsx"
	return path, writeFile(path, "sheet")
}

type mockPackager struct {
	err error
}

func (m *mockPackager) Package(ctx context.Context, dst string, files ...string) error {
	if m.err != nil {
		return m.err
	}
	return writeFile(dst, "zip:"+strings.Join(files, ","))
}

type mockStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *mockStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]string)
	}
	m.objects[name] = string(data)
	return "mem://" + name, nil
}

func (m *mockStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[strings.TrimPrefix(location, "mem://")]
	if !ok {
		return nil, fmt.Errorf("no object %s", location)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *mockStore) Remove(ctx context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, strings.TrimPrefix(location, "mem://"))
	return nil
}

// mockTokens encodes claims in the token string itself.
type mockTokens struct {
	issued map[string]port.DownloadClaims
}

func (m *mockTokens) Issue(claims port.DownloadClaims) (string, error) {
	if m.issued == nil {
		m.issued = make(map[string]port.DownloadClaims)
	}
	key := fmt.Sprintf("key-%d", len(m.issued)+1)
	m.issued[key] = claims
	return key, nil
}

func (m *mockTokens) Verify(token string) (*port.DownloadClaims, error) {
	c, ok := m.issued[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &c, nil
}
