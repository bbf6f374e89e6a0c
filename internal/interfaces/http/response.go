package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

// Error codes returned in Response.Code.
const (
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeExportEmpty  = "EXPORT_EMPTY"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Code: CodeValidation, Error: message})
}

// classify maps a service error to a status and response code.
// Not-found is checked first because the gateway wraps it in an UpstreamError.
func classify(err error) (int, string, string) {
	var (
		upstream   *workflow.UpstreamError
		validation *workflow.ValidationError
	)
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, CodeUpstream, upstream.Message
	case errors.As(err, &validation):
		return http.StatusBadRequest, CodeValidation, validation.Error()
	case errors.Is(err, workflow.ErrExportEmpty):
		return http.StatusUnprocessableEntity, CodeExportEmpty, err.Error()
	case errors.Is(err, workflow.ErrDownloadKey):
		return http.StatusUnauthorized, CodeUnauthorized, workflow.ErrDownloadKey.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "code", code, "error", err)
	} else {
		h.logger.Info("Request rejected", "op", op, "code", code, "error", err)
	}
	c.JSON(status, Response{Code: code, Error: message})
}
