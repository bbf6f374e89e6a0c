// Package engine is the HTTP client for the external process engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/domain/entity"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
	"github.com/garyjia/approval-bridge/pkg/casing"
)

const (
	apiPrefix = "/api/v1/workflow/"
	statusOK  = http.StatusOK
)

// Config holds engine connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements port.WorkflowGateway over the engine's JSON API.
// Request keys go out in camelCase; response data comes back in snake_case.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewClient creates a new engine client
func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
		logger:     logger,
	}
}

// envelope wraps every engine response.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call describes one engine request.
type call struct {
	op       string
	method   string
	endpoint string
	query    url.Values
	payload  interface{}
	fallback string
}

// Call performs a normalized engine request and returns the snake_case data section.
func (c *Client) Call(ctx context.Context, method, endpoint string, query url.Values, payload interface{}) (json.RawMessage, error) {
	return c.do(ctx, call{
		op:       endpoint,
		method:   method,
		endpoint: endpoint,
		query:    query,
		payload:  payload,
		fallback: "request failed",
	})
}

func (c *Client) do(ctx context.Context, cl call) (data json.RawMessage, err error) {
	started := time.Now()
	defer func() {
		c.metrics.ObserveEngineCall(cl.op, err, time.Since(started))
	}()

	var body io.Reader
	if cl.payload != nil {
		encoded, err := encodePayload(cl.payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.op, err)
		}
		body = bytes.NewReader(encoded)
	}

	target := c.baseURL + apiPrefix + cl.endpoint
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", cl.op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Engine request failed",
			zap.String("op", cl.op),
			zap.String("url", target),
			zap.Error(err))
		return nil, &workflow.UpstreamError{Op: cl.op, Message: cl.fallback, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &workflow.UpstreamError{Op: cl.op, Message: cl.fallback, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || env.Status != statusOK {
		message := cl.fallback
		if decodeErr == nil && env.Message != "" {
			message = env.Message
		}
		c.logger.Warn("Engine returned failure",
			zap.String("op", cl.op),
			zap.Int("http_status", resp.StatusCode),
			zap.Int("status", env.Status),
			zap.String("message", message))

		upstream := &workflow.UpstreamError{Op: cl.op, Message: message}
		if resp.StatusCode == http.StatusNotFound || env.Status == http.StatusNotFound {
			upstream.Err = workflow.ErrNotFound
		}
		return nil, upstream
	}

	normalized, err := decodeData(env.Data)
	if err != nil {
		return nil, &workflow.UpstreamError{Op: cl.op, Message: "malformed response data", Err: err}
	}
	return normalized, nil
}

// encodePayload marshals v and rewrites every object key to camelCase.
func encodePayload(v interface{}) ([]byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tree, err := decodeTree(encoded)
	if err != nil {
		return nil, err
	}
	return json.Marshal(casing.ToCamel(tree))
}

// decodeData rewrites every object key of the data section to snake_case.
func decodeData(raw json.RawMessage) (json.RawMessage, error) {
	if isEmpty(raw) {
		return nil, nil
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(casing.ToSnake(tree))
}

func decodeTree(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == "{}" || s == "[]"
}

func (c *Client) FetchProcess(ctx context.Context, id int64) (*entity.ProcessInstance, error) {
	data, err := c.do(ctx, call{
		op:       "fetch_process",
		method:   http.MethodGet,
		endpoint: "process/findById",
		query:    url.Values{"id": {strconv.FormatInt(id, 10)}},
		fallback: "query failed",
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("process %d: %w", id, workflow.ErrNotFound)
	}

	var p entity.ProcessInstance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode process %d: %w", id, err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("process %d: %w", id, workflow.ErrNotFound)
	}
	return &p, nil
}

func (c *Client) FetchParticipants(ctx context.Context, procInstID int64, scope entity.ParticipantScope) ([]entity.ParticipantLogEntry, error) {
	endpoint := "identitylink/findParticipant"
	if scope == entity.ScopeAll {
		endpoint = "identitylinkHistory/findParticipant"
	}

	data, err := c.do(ctx, call{
		op:       "fetch_participants",
		method:   http.MethodGet,
		endpoint: endpoint,
		query:    url.Values{"procInstId": {strconv.FormatInt(procInstID, 10)}},
		fallback: "query failed",
	})
	if err != nil {
		return nil, err
	}

	var entries []entity.ParticipantLogEntry
	if err := unmarshalOptional(data, &entries); err != nil {
		return nil, fmt.Errorf("decode participants of %d: %w", procInstID, err)
	}
	return entries, nil
}

func (c *Client) StartProcess(ctx context.Context, req port.StartRequest) (*entity.ProcessInstance, error) {
	data, err := c.do(ctx, call{
		op:       "start_process",
		method:   http.MethodPost,
		endpoint: "process/start",
		payload:  req,
		fallback: "start failed",
	})
	if err != nil {
		return nil, err
	}

	var p entity.ProcessInstance
	if err := unmarshalOptional(data, &p); err != nil {
		return nil, fmt.Errorf("decode started process: %w", err)
	}
	if p.ID == 0 {
		return nil, &workflow.UpstreamError{Op: "start_process", Message: "engine returned no process id"}
	}
	return &p, nil
}

func (c *Client) CompleteTask(ctx context.Context, req port.CompleteRequest) (*entity.Task, error) {
	data, err := c.do(ctx, call{
		op:       "complete_task",
		method:   http.MethodPost,
		endpoint: "task/complete",
		payload:  req,
		fallback: "approval failed",
	})
	if err != nil {
		return nil, err
	}
	return decodeTask(data, req.TaskID, 0)
}

func (c *Client) WithdrawTask(ctx context.Context, req port.WithdrawRequest) (*entity.Task, error) {
	data, err := c.do(ctx, call{
		op:       "withdraw_task",
		method:   http.MethodPost,
		endpoint: "task/withdraw",
		payload:  req,
		fallback: "withdraw failed",
	})
	if err != nil {
		return nil, err
	}
	return decodeTask(data, req.TaskID, req.ProcInstID)
}

// decodeTask fills ids the engine left out from the request.
func decodeTask(data json.RawMessage, taskID, procInstID int64) (*entity.Task, error) {
	var task entity.Task
	if err := unmarshalOptional(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if task.ID == 0 {
		task.ID = taskID
	}
	if task.ProcInstID == 0 {
		task.ProcInstID = procInstID
	}
	return &task, nil
}

func (c *Client) ListProcesses(ctx context.Context, kind port.ListKind, history bool, q port.ListQuery) (*port.ProcessPage, error) {
	group := "process/"
	if history {
		group = "procHistory/"
	}

	data, err := c.do(ctx, call{
		op:       "list_" + string(kind),
		method:   http.MethodPost,
		endpoint: group + string(kind),
		payload:  q,
		fallback: "query failed",
	})
	if err != nil {
		return nil, err
	}

	page := &port.ProcessPage{PageIndex: q.PageIndex, PageSize: q.PageSize}
	if err := unmarshalOptional(data, page); err != nil {
		return nil, fmt.Errorf("decode %s page: %w", kind, err)
	}
	return page, nil
}

func (c *Client) FindProcessesInRange(ctx context.Context, f port.RangeFilter) ([]*entity.ProcessInstance, error) {
	data, err := c.do(ctx, call{
		op:       "find_processes",
		method:   http.MethodPost,
		endpoint: "process/findAllProcIns",
		payload:  f,
		fallback: "query failed",
	})
	if err != nil {
		return nil, err
	}

	var processes []*entity.ProcessInstance
	if err := unmarshalOptional(data, &processes); err != nil {
		return nil, fmt.Errorf("decode processes: %w", err)
	}
	return processes, nil
}

func (c *Client) ListDefinitions(ctx context.Context, name string) ([]*entity.Definition, error) {
	data, err := c.do(ctx, call{
		op:       "list_definitions",
		method:   http.MethodPost,
		endpoint: "procdef/findAll",
		payload:  map[string]string{"name": name},
		fallback: "query failed",
	})
	if err != nil {
		return nil, err
	}

	var defs []*entity.Definition
	if err := unmarshalOptional(data, &defs); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	return defs, nil
}

func (c *Client) DeleteDefinition(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{
		op:       "delete_definition",
		method:   http.MethodGet,
		endpoint: "procdef/delById",
		query:    url.Values{"id": {strconv.FormatInt(id, 10)}},
		fallback: "delete failed",
	})
	return err
}

func unmarshalOptional(data json.RawMessage, v interface{}) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}
