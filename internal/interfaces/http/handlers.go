package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/report"
	"github.com/garyjia/approval-bridge/internal/application/service"
	"github.com/garyjia/approval-bridge/internal/domain/workflow"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	exportService   service.ExportService
	metrics         *metrics.Metrics
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	exportService service.ExportService,
	m *metrics.Metrics,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		exportService:   exportService,
		metrics:         m,
		logger:          logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DefinitionQuery is the body of POST /procdef/all
type DefinitionQuery struct {
	Name string `json:"name"`
}

// ListParams are the query parameters of the process listings
type ListParams struct {
	History  bool `form:"history"`
	Page     int  `form:"page"`
	PageSize int  `form:"page_size"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// ListDefinitions handles POST /api/workflow/procdef/all
func (h *Handlers) ListDefinitions(c *gin.Context) {
	var q DefinitionQuery
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&q); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "invalid request body")
			return
		}
	}

	defs, err := h.workflowService.Definitions(c.Request.Context(), q.Name)
	if err != nil {
		h.fail(c, "list_definitions", err)
		return
	}
	ok(c, defs)
}

// DeleteDefinition handles DELETE /api/workflow/procdef/:id
func (h *Handlers) DeleteDefinition(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	if err := h.workflowService.DeleteDefinition(c.Request.Context(), id); err != nil {
		h.fail(c, "delete_definition", err)
		return
	}
	h.logger.Info("Process definition deleted", "id", id, "userid", callerOf(c).UserID)
	ok(c, nil)
}

// StartProcess handles POST /api/workflow/process/start
func (h *Handlers) StartProcess(c *gin.Context) {
	var req port.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	proc, err := h.workflowService.Start(c.Request.Context(), callerOf(c), req)
	if err != nil {
		h.fail(c, "start", err)
		return
	}
	ok(c, proc)
}

// CompleteTask handles POST /api/workflow/task/complete
func (h *Handlers) CompleteTask(c *gin.Context) {
	var req port.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	task, err := h.workflowService.Complete(c.Request.Context(), callerOf(c), req)
	if err != nil {
		h.fail(c, "complete", err)
		return
	}
	ok(c, task)
}

// WithdrawTask handles POST /api/workflow/task/withdraw
func (h *Handlers) WithdrawTask(c *gin.Context) {
	var req port.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	task, err := h.workflowService.Withdraw(c.Request.Context(), callerOf(c), req)
	if err != nil {
		h.fail(c, "withdraw", err)
		return
	}
	ok(c, task)
}

// GetProcess handles GET /api/workflow/process/:id
func (h *Handlers) GetProcess(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	proc, err := h.workflowService.Detail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "detail", err)
		return
	}
	ok(c, proc)
}

// GetParticipants handles GET /api/workflow/process/:id/participants
func (h *Handlers) GetParticipants(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	history, _ := strconv.ParseBool(c.DefaultQuery("history", "false"))

	entries, err := h.workflowService.Participants(c.Request.Context(), id, history)
	if err != nil {
		h.fail(c, "participants", err)
		return
	}
	ok(c, entries)
}

// ListTasks handles GET /api/workflow/process/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	h.list(c, port.ListTasks)
}

// ListStarted handles GET /api/workflow/process/started
func (h *Handlers) ListStarted(c *gin.Context) {
	h.list(c, port.ListStarted)
}

// ListNotified handles GET /api/workflow/process/notified
func (h *Handlers) ListNotified(c *gin.Context) {
	h.list(c, port.ListNotified)
}

func (h *Handlers) list(c *gin.Context, kind port.ListKind) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	page, err := h.workflowService.List(c.Request.Context(), callerOf(c), kind, params.History, params.Page, params.PageSize)
	if err != nil {
		h.fail(c, string(kind), err)
		return
	}
	ok(c, page)
}

// Export handles POST /api/workflow/export
func (h *Handlers) Export(c *gin.Context) {
	var req report.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ObserveExport("invalid")
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.exportService.Export(c.Request.Context(), callerOf(c), req)
	if err != nil {
		h.metrics.ObserveExport(exportOutcome(err))
		h.fail(c, "export", err)
		return
	}

	h.metrics.ObserveExport("ok")
	ok(c, result)
}

// Download handles GET /api/workflow/export/download
func (h *Handlers) Download(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		badRequest(c, "key is required")
		return
	}

	dl, err := h.exportService.Open(c.Request.Context(), callerOf(c), key)
	if err != nil {
		h.fail(c, "download", err)
		return
	}
	defer dl.Body.Close()

	c.DataFromReader(http.StatusOK, -1, contentTypeOf(dl.FileName), dl.Body, map[string]string{
		"Content-Disposition": `attachment; filename="` + dl.FileName + `"`,
	})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id "+raw)
		return 0, false
	}
	return id, true
}

func exportOutcome(err error) string {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		return "invalid"
	case errors.Is(err, workflow.ErrExportEmpty):
		return "empty"
	default:
		return "error"
	}
}

func contentTypeOf(name string) string {
	switch filepath.Ext(name) {
	case ".zip":
		return "application/zip"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
