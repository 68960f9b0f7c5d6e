package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
	"github.com/garyjia/docflow/internal/domain/entity"
)

// ExportFormat describes the document produced by the export endpoint
type ExportFormat interface {
	ContentType() string
	FileExtension() string
}

// UpdateRequestBody is the body of PUT /requests/:id. Patch fields and a
// status that differs from the stored one are stored together or not at all.
type UpdateRequestBody struct {
	service.RequestPatch
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Version int    `json:"version"`
}

// TransitionBody is the body of POST /requests/:id/transitions
type TransitionBody struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
	Version int    `json:"version"`
}

// CommentBody is the body of POST /requests/:id/comments
type CommentBody struct {
	Text string `json:"text" binding:"required"`
}

// CreateRequest handles POST /api/v1/requests. Submitter fields left empty are
// taken from the caller identity.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	actor := actorFrom(c)
	if in.SubmittedBy == "" {
		in.SubmittedBy = actor.ID
	}
	if in.SubmitterName == "" {
		in.SubmitterName = actor.Name
	}
	if in.SubmitterEmail == "" {
		in.SubmitterEmail = actor.Email
	}
	if in.Department == "" {
		in.Department = actor.Department
	}

	req, err := h.requests.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "create request", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// ListRequests handles GET /api/v1/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter, err := parseRequestFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sort, err := parseRequestSort(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := h.requests.List(c.Request.Context(), filter, sort, page)
	if err != nil {
		h.respondError(c, "list requests", err)
		return
	}
	listResponse(c, list.Items, list.Total, list.Page, nil)
}

// ListUserRequests handles GET /api/v1/requests/user/:userId
func (h *Handlers) ListUserRequests(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := h.requests.ListByUser(c.Request.Context(), c.Param("userId"), page)
	if err != nil {
		h.respondError(c, "list user requests", err)
		return
	}
	listResponse(c, list.Items, list.Total, list.Page, nil)
}

// RequestStats handles GET /api/v1/requests/stats
func (h *Handlers) RequestStats(c *gin.Context) {
	filter, err := parseRequestFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	stats, err := h.requests.Stats(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "request stats", err)
		return
	}
	ok(c, http.StatusOK, stats)
}

// ExportRequests handles GET /api/v1/requests/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	filter, err := parseRequestFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var buf bytes.Buffer
	n, err := h.requests.Export(c.Request.Context(), filter, &buf)
	if err != nil {
		h.respondError(c, "export requests", err)
		return
	}

	contentType, ext := "application/octet-stream", ""
	if h.exportFormat != nil {
		contentType, ext = h.exportFormat.ContentType(), h.exportFormat.FileExtension()
	}
	filename := fmt.Sprintf("requests-%s%s", h.now().UTC().Format("20060102-150405"), ext)

	h.logger.Info("Requests exported", "count", n, "user_id", actorFrom(c).ID)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// UpdateRequest handles PUT /api/v1/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	var body UpdateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	actor := actorFrom(c)
	target := strings.TrimSpace(body.Status)

	if body.RequestPatch.IsEmpty() && target == "" {
		badRequest(c, "request body changes nothing")
		return
	}

	req, err := h.requests.Revise(ctx, id, service.Revision{
		Patch:   body.RequestPatch,
		Status:  target,
		Comment: body.Comment,
		Version: body.Version,
	}, actor)
	if err != nil {
		h.respondError(c, "update request", err)
		return
	}

	ok(c, http.StatusOK, req)
}

// DeleteRequest handles DELETE /api/v1/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	if err := h.requests.Delete(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.respondError(c, "delete request", err)
		return
	}
	okMessage(c, "request deleted", nil)
}

// TransitionRequest handles POST /api/v1/requests/:id/transitions
func (h *Handlers) TransitionRequest(c *gin.Context) {
	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := h.engine.Transition(c.Request.Context(), workflow.TransitionCommand{
		RequestID:       c.Param("id"),
		TargetStatus:    strings.TrimSpace(body.Status),
		Actor:           actorFrom(c),
		Comment:         body.Comment,
		ExpectedVersion: body.Version,
	})
	if err != nil {
		h.respondError(c, "transition request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// PermittedTransitions handles GET /api/v1/requests/:id/transitions
func (h *Handlers) PermittedTransitions(c *gin.Context) {
	targets, err := h.engine.PermittedTargets(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "permitted transitions", err)
		return
	}
	if targets == nil {
		targets = []string{}
	}
	ok(c, http.StatusOK, targets)
}

// RequestHistory handles GET /api/v1/requests/:id/history
func (h *Handlers) RequestHistory(c *gin.Context) {
	steps, err := h.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "request history", err)
		return
	}
	if steps == nil {
		steps = []entity.ApprovalStep{}
	}
	ok(c, http.StatusOK, steps)
}

// AddComment handles POST /api/v1/requests/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var body CommentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := h.requests.AddComment(c.Request.Context(), c.Param("id"), actorFrom(c), body.Text)
	if err != nil {
		h.respondError(c, "add comment", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// AddAttachment handles POST /api/v1/requests/:id/attachments
func (h *Handlers) AddAttachment(c *gin.Context) {
	var in service.AttachmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := h.requests.AddAttachment(c.Request.Context(), c.Param("id"), actorFrom(c), in)
	if err != nil {
		h.respondError(c, "add attachment", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

func parseRequestFilter(c *gin.Context) (port.RequestFilter, error) {
	f := port.RequestFilter{
		SubmittedBy:       strings.TrimSpace(c.Query("submittedBy")),
		Status:            strings.TrimSpace(c.Query("status")),
		FormID:            strings.TrimSpace(c.Query("formId")),
		Department:        strings.TrimSpace(c.Query("department")),
		CurrentApproverID: strings.TrimSpace(c.Query("currentApproverId")),
		Priority:          strings.TrimSpace(c.Query("priority")),
		Search:            strings.TrimSpace(c.Query("search")),
	}
	var err error
	if f.CreatedFrom, err = parseTimeParam(c, "createdFrom", false); err != nil {
		return f, err
	}
	if f.CreatedTo, err = parseTimeParam(c, "createdTo", true); err != nil {
		return f, err
	}
	return f, nil
}

func parseRequestSort(c *gin.Context) (port.RequestSort, error) {
	s := port.RequestSort{Field: c.DefaultQuery("sort", port.SortByCreatedAt)}
	switch strings.ToLower(c.DefaultQuery("order", "desc")) {
	case "asc":
		s.Asc = true
	case "desc":
	default:
		return s, fmt.Errorf("order must be asc or desc")
	}
	return s, nil
}
