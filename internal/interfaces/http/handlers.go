package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	requests      service.RequestService
	notifications service.NotificationService
	engine        workflow.WorkflowEngine
	live          LiveChannel
	health        HealthFunc
	exportFormat  ExportFormat
	archiveKeep   int
	now           func() time.Time
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, archiveKeep int, logger Logger) *Handlers {
	if archiveKeep <= 0 {
		archiveKeep = 100
	}
	return &Handlers{
		requests:      deps.Requests,
		notifications: deps.Notifications,
		engine:        deps.Workflow,
		live:          deps.Live,
		health:        deps.Health,
		exportFormat:  deps.ExportFormat,
		archiveKeep:   archiveKeep,
		now:           time.Now,
		logger:        logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// ServeLive handles GET /ws. Browsers cannot set headers on an upgrade, so
// the userId query parameter is accepted in place of X-User-ID.
func (h *Handlers) ServeLive(c *gin.Context) {
	userID := actorFrom(c).ID
	if userID == "" {
		userID = strings.TrimSpace(c.Query("userId"))
	}
	if userID == "" {
		fail(c, http.StatusUnauthorized, CodeUnauthorized, HeaderUserID+" header or userId query is required")
		return
	}
	if err := h.live.Serve(c.Writer, c.Request, userID); err != nil {
		h.logger.Error("Live connection failed", "user_id", userID, "error", err)
	}
}

// parsePage reads the page and limit query parameters
func parsePage(c *gin.Context) (port.Page, error) {
	var p port.Page
	var err error
	if v := c.Query("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil || p.Page < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
	}
	if v := c.Query("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil || p.Limit < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
	}
	return p.Normalize(), nil
}

// parseBool reads an optional boolean query parameter
func parseBool(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return b, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. A plain date used
// as an upper bound covers the whole day.
func parseTimeParam(c *gin.Context, name string, upper bool) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", name)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func listResponse(c *gin.Context, data interface{}, total int, page port.Page, unread *int) {
	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    data,
		Total:   total,
		Page:    page.Page,
		Pages:   page.Pages(total),
		Limit:   page.Limit,
		Unread:  unread,
	})
}
