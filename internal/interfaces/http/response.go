package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/domain/entity"
	domainwf "github.com/garyjia/docflow/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ListResponse is a Response carrying one page of a listing
type ListResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	Limit   int         `json:"limit"`
	Unread  *int        `json:"unread,omitempty"`
}

// Error codes carried in the error field
const (
	CodeValidation        = "validation_error"
	CodeInvalidTransition = "invalid_transition"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInternal          = "internal_error"
)

const internalErrorMessage = "internal server error"

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{entity.ErrValidation, http.StatusBadRequest, CodeValidation},
	{domainwf.ErrInvalidTransition, http.StatusBadRequest, CodeInvalidTransition},
	{domainwf.ErrGuardFailed, http.StatusBadRequest, CodeInvalidTransition},
	{domainwf.ErrInvalidState, http.StatusBadRequest, CodeValidation},
	{entity.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{entity.ErrConflict, http.StatusConflict, CodeConflict},
	{entity.ErrForbidden, http.StatusForbidden, CodeForbidden},
}

// classifyError returns the HTTP status and error code for err
func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func okMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: message})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Error: code})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, CodeValidation, message)
}

// respondError maps err onto the error taxonomy. Unclassified errors are
// logged and answered with a generic message.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		fail(c, status, code, internalErrorMessage)
		return
	}
	fail(c, status, code, err.Error())
}
