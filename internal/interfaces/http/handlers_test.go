package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/report"
	"github.com/garyjia/approval-bridge/internal/application/service"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
)

type mockWorkflowService struct {
	StartFunc            func(ctx context.Context, caller entity.Identity, req port.StartRequest) (*entity.ProcessInstance, error)
	CompleteFunc         func(ctx context.Context, caller entity.Identity, req port.CompleteRequest) (*entity.Task, error)
	WithdrawFunc         func(ctx context.Context, caller entity.Identity, req port.WithdrawRequest) (*entity.Task, error)
	DetailFunc           func(ctx context.Context, id int64) (*entity.ProcessInstance, error)
	ListFunc             func(ctx context.Context, caller entity.Identity, kind port.ListKind, history bool, page, pageSize int) (*port.ProcessPage, error)
	ParticipantsFunc     func(ctx context.Context, id int64, history bool) ([]entity.ParticipantLogEntry, error)
	DefinitionsFunc      func(ctx context.Context, name string) ([]*entity.Definition, error)
	DeleteDefinitionFunc func(ctx context.Context, id int64) error
}

func (m *mockWorkflowService) Start(ctx context.Context, caller entity.Identity, req port.StartRequest) (*entity.ProcessInstance, error) {
	return m.StartFunc(ctx, caller, req)
}

func (m *mockWorkflowService) Complete(ctx context.Context, caller entity.Identity, req port.CompleteRequest) (*entity.Task, error) {
	return m.CompleteFunc(ctx, caller, req)
}

func (m *mockWorkflowService) Withdraw(ctx context.Context, caller entity.Identity, req port.WithdrawRequest) (*entity.Task, error) {
	return m.WithdrawFunc(ctx, caller, req)
}

func (m *mockWorkflowService) Detail(ctx context.Context, id int64) (*entity.ProcessInstance, error) {
	return m.DetailFunc(ctx, id)
}

func (m *mockWorkflowService) List(ctx context.Context, caller entity.Identity, kind port.ListKind, history bool, page, pageSize int) (*port.ProcessPage, error) {
	return m.ListFunc(ctx, caller, kind, history, page, pageSize)
}

func (m *mockWorkflowService) Participants(ctx context.Context, id int64, history bool) ([]entity.ParticipantLogEntry, error) {
	return m.ParticipantsFunc(ctx, id, history)
}

func (m *mockWorkflowService) Definitions(ctx context.Context, name string) ([]*entity.Definition, error) {
	return m.DefinitionsFunc(ctx, name)
}

func (m *mockWorkflowService) DeleteDefinition(ctx context.Context, id int64) error {
	return m.DeleteDefinitionFunc(ctx, id)
}

type mockExportService struct {
	ExportFunc func(ctx context.Context, caller entity.Identity, req report.ExportRequest) (*service.ExportResult, error)
	OpenFunc   func(ctx context.Context, caller entity.Identity, key string) (*service.Download, error)
}

func (m *mockExportService) Export(ctx context.Context, caller entity.Identity, req report.ExportRequest) (*service.ExportResult, error) {
	return m.ExportFunc(ctx, caller, req)
}

func (m *mockExportService) Open(ctx context.Context, caller entity.Identity, key string) (*service.Download, error) {
	return m.OpenFunc(ctx, caller, key)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type testEnv struct {
	workflow *mockWorkflowService
	export   *mockExportService
	metrics  *metrics.Metrics
	server   *Server
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	env := &testEnv{
		workflow: &mockWorkflowService{},
		export:   &mockExportService{},
		metrics:  metrics.New(reg),
	}
	env.server = NewServer(DefaultServerConfig(), env.workflow, env.export, env.metrics, reg, nopLogger{})
	return env
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerUserID, "alice")
	req.Header.Set(headerSessionID, "s1")
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/health", "", map[string]string{headerUserID: ""})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	env.metrics.ObserveExport("ok")
	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approval_bridge_export_requests_total")
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/api/workflow/process/1", "", map[string]string{headerUserID: ""})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, decode(t, w).Code)
}

func TestStartProcess(t *testing.T) {
	env := newTestEnv()
	env.workflow.StartFunc = func(ctx context.Context, caller entity.Identity, req port.StartRequest) (*entity.ProcessInstance, error) {
		assert.Equal(t, entity.Identity{UserID: "alice", SessionID: "s1"}, caller)
		assert.Equal(t, "Leave", req.ProcName)
		assert.Equal(t, "annual", req.Var.Type)
		return &entity.ProcessInstance{ID: 42, ProcDefName: "Leave"}, nil
	}

	w := env.do(http.MethodPost, "/api/workflow/process/start",
		`{"proc_name":"Leave","department_id":7,"var":{"type":"annual"}}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, float64(42), resp.Data.(map[string]interface{})["id"])
}

func TestStartProcess_BadBody(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/api/workflow/process/start", `{"proc_name":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, decode(t, w).Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found wrapped in upstream", &workflow.UpstreamError{Op: "complete", Message: "no task", Err: workflow.ErrNotFound}, http.StatusNotFound, CodeNotFound},
		{"upstream", &workflow.UpstreamError{Op: "complete", Message: "approval failed"}, http.StatusBadGateway, CodeUpstream},
		{"validation", workflow.NewValidationError("task_id", "task id is required"), http.StatusBadRequest, CodeValidation},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.workflow.CompleteFunc = func(ctx context.Context, caller entity.Identity, req port.CompleteRequest) (*entity.Task, error) {
				return nil, tt.err
			}

			w := env.do(http.MethodPost, "/api/workflow/task/complete", `{"task_id":3,"pass":true}`, nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestUpstreamMessageSurfaced(t *testing.T) {
	env := newTestEnv()
	env.workflow.WithdrawFunc = func(ctx context.Context, caller entity.Identity, req port.WithdrawRequest) (*entity.Task, error) {
		assert.Equal(t, int64(9), req.ProcInstID)
		return nil, &workflow.UpstreamError{Op: "withdraw", Message: "already approved"}
	}

	w := env.do(http.MethodPost, "/api/workflow/task/withdraw", `{"task_id":3,"proc_inst_id":9}`, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "already approved", decode(t, w).Error)
}

func TestListRoutes(t *testing.T) {
	tests := []struct {
		path string
		kind port.ListKind
	}{
		{"/api/workflow/process/tasks?page=2&page_size=5", port.ListTasks},
		{"/api/workflow/process/started?history=true&page=2&page_size=5", port.ListStarted},
		{"/api/workflow/process/notified?page=2&page_size=5", port.ListNotified},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv()
			env.workflow.ListFunc = func(ctx context.Context, caller entity.Identity, kind port.ListKind, history bool, page, pageSize int) (*port.ProcessPage, error) {
				assert.Equal(t, tt.kind, kind)
				assert.Equal(t, tt.kind == port.ListStarted, history)
				assert.Equal(t, 2, page)
				assert.Equal(t, 5, pageSize)
				return &port.ProcessPage{Count: 1, PageIndex: page, PageSize: pageSize}, nil
			}

			w := env.do(http.MethodGet, tt.path, "", nil)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestGetProcessAndParticipants(t *testing.T) {
	env := newTestEnv()
	env.workflow.DetailFunc = func(ctx context.Context, id int64) (*entity.ProcessInstance, error) {
		if id == 404 {
			return nil, workflow.ErrNotFound
		}
		return &entity.ProcessInstance{ID: id}, nil
	}
	env.workflow.ParticipantsFunc = func(ctx context.Context, id int64, history bool) ([]entity.ParticipantLogEntry, error) {
		assert.True(t, history)
		return []entity.ParticipantLogEntry{{Type: "participant", Step: 0, Username: "alice"}}, nil
	}

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/workflow/process/5", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/workflow/process/404", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/workflow/process/abc", "", nil).Code)

	w := env.do(http.MethodGet, "/api/workflow/process/5/participants?history=true", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data, 1)
}

func TestDefinitions(t *testing.T) {
	env := newTestEnv()
	env.workflow.DefinitionsFunc = func(ctx context.Context, name string) ([]*entity.Definition, error) {
		return []*entity.Definition{{ID: 1, Name: name}}, nil
	}
	var deleted int64
	env.workflow.DeleteDefinitionFunc = func(ctx context.Context, id int64) error {
		deleted = id
		return nil
	}

	w := env.do(http.MethodPost, "/api/workflow/procdef/all", `{"name":"Leave"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/workflow/procdef/all", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/workflow/procdef/12", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), deleted)
}

func TestExport(t *testing.T) {
	env := newTestEnv()
	env.export.ExportFunc = func(ctx context.Context, caller entity.Identity, req report.ExportRequest) (*service.ExportResult, error) {
		switch req.ProcName {
		case "":
			return nil, workflow.NewValidationError("proc_name", "process name is required")
		case "Empty":
			return nil, workflow.ErrExportEmpty
		}
		return &service.ExportResult{Key: "k", FileName: "Leave_20240101_20240131.zip", Rows: 2}, nil
	}

	w := env.do(http.MethodPost, "/api/workflow/export", `{"proc_name":"Leave","date":["2024-01-01","2024-01-31"]}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/workflow/export", `{"proc_name":"Empty","date":["2024-01-01","2024-01-31"]}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeExportEmpty, decode(t, w).Code)

	w = env.do(http.MethodPost, "/api/workflow/export", `{"date":["2024-01-01"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	scrape := env.do(http.MethodGet, "/metrics", "", nil).Body.String()
	for _, outcome := range []string{"ok", "empty", "invalid"} {
		assert.Contains(t, scrape, `approval_bridge_export_requests_total{outcome="`+outcome+`"} 1`)
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv()
	env.export.OpenFunc = func(ctx context.Context, caller entity.Identity, key string) (*service.Download, error) {
		if key != "good" {
			return nil, workflow.ErrDownloadKey
		}
		return &service.Download{FileName: "Leave.zip", Body: io.NopCloser(strings.NewReader("zip-bytes"))}, nil
	}

	w := env.do(http.MethodGet, "/api/workflow/export/download?key=good", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zip-bytes", w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Leave.zip"`)

	w = env.do(http.MethodGet, "/api/workflow/export/download?key=forged", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/workflow/export/download", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
