package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/", Timeout: time.Second}, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func TestFetchProcess_NormalizesCasing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/workflow/process/findById", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("id"))

		writeEnvelope(w, 200, "", map[string]interface{}{
			"id":          7,
			"procDefName": "Leave",
			"startUserId": "alice",
			"isFinished":  false,
			"candidate":   "bob,carol",
			"nodeId":      "approve",
			"nodeInfos": []interface{}{
				map[string]interface{}{"nodeId": "start", "type": "starter", "step": 0},
				map[string]interface{}{
					"nodeId": "cc", "type": "notifier", "step": 1,
					"nodeUserList": []interface{}{map[string]interface{}{"targetId": "dave", "name": "Dave"}},
				},
			},
			"var": map[string]interface{}{"type": "annual", "startTime": "2024-01-02 09:00"},
		})
	})

	p, err := client.FetchProcess(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Leave", p.ProcDefName)
	assert.Equal(t, "alice", p.StartUserID)
	assert.Equal(t, []string{"bob", "carol"}, p.CandidateIDs())
	require.Len(t, p.NodeInfos, 2)
	assert.Equal(t, []entity.NodeUser{{TargetID: "dave", Name: "Dave"}}, p.NodeInfos[1].NodeUserList)
	assert.Equal(t, "2024-01-02 09:00", p.Var.StartTime)
}

func TestFetchProcess_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"empty data", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 200, "", nil)
		}},
		{"inner 404", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 404, "process not found", nil)
		}},
		{"transport 404", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.handler).FetchProcess(context.Background(), 1)
			assert.ErrorIs(t, err, workflow.ErrNotFound)
		})
	}
}

func TestCall_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantMessage string
	}{
		{
			name: "inner status carries upstream message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 500, "task already finished", nil)
			},
			wantMessage: "task already finished",
		},
		{
			name: "inner status without message uses fallback",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 400, "", nil)
			},
			wantMessage: "approval failed",
		},
		{
			name: "transport failure with a non json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "<html>bad gateway</html>")
			},
			wantMessage: "approval failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.handler).CompleteTask(context.Background(), port.CompleteRequest{TaskID: 3})

			var ue *workflow.UpstreamError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.wantMessage, ue.Message)
			assert.Equal(t, "complete_task", ue.Op)
			assert.False(t, errors.Is(err, workflow.ErrNotFound))
		})
	}
}

func TestStartProcess_SendsCamelCase(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workflow/process/start", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeEnvelope(w, 200, "", map[string]interface{}{"id": 42, "procDefName": "Leave"})
	})

	p, err := client.StartProcess(context.Background(), port.StartRequest{
		UserID:       "alice",
		DepartmentID: 3,
		ProcName:     "Leave",
		Var:          entity.ProcessVar{Type: "annual", StartTime: "2024-01-02 09:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)

	assert.Equal(t, "alice", body["userid"])
	assert.Equal(t, "Leave", body["procName"])
	assert.Equal(t, float64(3), body["departmentId"])
	assert.Equal(t, map[string]interface{}{"type": "annual", "startTime": "2024-01-02 09:00"}, body["var"])
}

func TestWithdrawTask_FillsIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workflow/task/withdraw", r.URL.Path)
		writeEnvelope(w, 200, "", nil)
	})

	task, err := client.WithdrawTask(context.Background(), port.WithdrawRequest{UserID: "alice", TaskID: 5, ProcInstID: 9})
	require.NoError(t, err)
	assert.Equal(t, &entity.Task{ID: 5, ProcInstID: 9}, task)
}

func TestListProcesses(t *testing.T) {
	tests := []struct {
		history  bool
		wantPath string
	}{
		{false, "/api/v1/workflow/process/findTask"},
		{true, "/api/v1/workflow/procHistory/findTask"},
	}

	for _, tt := range tests {
		t.Run(tt.wantPath, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				var body map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, float64(2), body["pageIndex"])
				assert.Equal(t, float64(10), body["pageSize"])

				writeEnvelope(w, 200, "", map[string]interface{}{
					"data":      []interface{}{map[string]interface{}{"id": 1, "procDefName": "Leave"}},
					"count":     11,
					"pageIndex": 2,
					"pageSize":  10,
				})
			})

			page, err := client.ListProcesses(context.Background(), port.ListTasks, tt.history, port.ListQuery{UserID: "bob", PageIndex: 2, PageSize: 10})
			require.NoError(t, err)
			assert.Equal(t, 11, page.Count)
			require.Len(t, page.Data, 1)
			assert.Equal(t, "Leave", page.Data[0].ProcDefName)
		})
	}
}

func TestFetchParticipants_Scope(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("procInstId"))
		writeEnvelope(w, 200, "", []interface{}{
			map[string]interface{}{"type": "participant", "step": 1, "username": "bob", "comment": "ok", "procInstId": 4},
		})
	})

	entries, err := client.FetchParticipants(context.Background(), 4, entity.ScopePending)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4), entries[0].ProcInstID)
	assert.Equal(t, "bob", entries[0].Username)

	_, err = client.FetchParticipants(context.Background(), 4, entity.ScopeAll)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/workflow/identitylink/findParticipant",
		"/api/v1/workflow/identitylinkHistory/findParticipant",
	}, paths)
}

func TestDefinitions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/workflow/procdef/findAll":
			writeEnvelope(w, 200, "", []interface{}{map[string]interface{}{"id": 1, "name": "Leave", "createTime": "2024-01-01 00:00:00"}})
		case "/api/v1/workflow/procdef/delById":
			assert.Equal(t, "1", r.URL.Query().Get("id"))
			writeEnvelope(w, 200, "", nil)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	defs, err := client.ListDefinitions(context.Background(), "Leave")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "2024-01-01 00:00:00", defs[0].CreatedAt)

	assert.NoError(t, client.DeleteDefinition(context.Background(), 1))
}

func TestCall_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, zap.NewNop())
	_, err := client.Call(context.Background(), http.MethodGet, "process/findById", nil, nil)

	var ue *workflow.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "request failed", ue.Message)
	assert.NotNil(t, ue.Err)
}
