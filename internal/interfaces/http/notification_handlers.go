package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/application/service"
)

// ArchiveBody is the optional body of POST /notifications/user/:userId/archive
type ArchiveBody struct {
	Keep *int `json:"keep"`
}

// CreateNotification handles POST /api/v1/notifications
func (h *Handlers) CreateNotification(c *gin.Context) {
	var in service.NotifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	n, err := h.notifications.Notify(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "create notification", err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// ListNotifications handles GET /api/v1/notifications/user/:userId
func (h *Handlers) ListNotifications(c *gin.Context) {
	unreadOnly, err := parseBool(c, "unread")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := h.notifications.List(c.Request.Context(), c.Param("userId"), unreadOnly, page)
	if err != nil {
		h.respondError(c, "list notifications", err)
		return
	}
	unread := list.Unread
	listResponse(c, list.Items, list.Total, list.Page, &unread)
}

// UnreadCount handles GET /api/v1/notifications/user/:userId/unread-count
func (h *Handlers) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, "unread count", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": n})
}

// MarkNotificationRead handles PUT /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	n, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "mark notification read", err)
		return
	}
	ok(c, http.StatusOK, n)
}

// MarkAllNotificationsRead handles PUT /api/v1/notifications/user/:userId/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, "mark all notifications read", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": n})
}

// ArchiveNotifications handles POST /api/v1/notifications/user/:userId/archive.
// keep comes from the query, then the body, then the configured default.
func (h *Handlers) ArchiveNotifications(c *gin.Context) {
	keep := h.archiveKeep
	if v := c.Query("keep"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "keep must be an integer")
			return
		}
		keep = k
	} else if c.Request.ContentLength > 0 {
		var body ArchiveBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
		if body.Keep != nil {
			keep = *body.Keep
		}
	}

	n, err := h.notifications.Archive(c.Request.Context(), c.Param("userId"), keep)
	if err != nil {
		h.respondError(c, "archive notifications", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n, "keep": keep})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "delete notification", err)
		return
	}
	okMessage(c, "notification deleted", nil)
}

// ClearNotifications handles DELETE /api/v1/notifications/user/:userId
func (h *Handlers) ClearNotifications(c *gin.Context) {
	n, err := h.notifications.Clear(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, "clear notifications", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}
