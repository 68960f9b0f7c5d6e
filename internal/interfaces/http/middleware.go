package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/domain/entity"
)

// Identity headers set by the upstream authentication layer
const (
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderUserName       = "X-User-Name"
	HeaderUserEmail      = "X-User-Email"
	HeaderUserDepartment = "X-User-Department"
)

const actorKey = "docflow.actor"

// identityMiddleware reads the caller identity from the request headers
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorKey, entity.Actor{
			ID:         strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Role:       strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))),
			Name:       strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Email:      strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
			Department: strings.TrimSpace(c.GetHeader(HeaderUserDepartment)),
		})
		c.Next()
	}
}

// requireUser rejects requests that carry no user id
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).ID == "" {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, HeaderUserID+" header is required")
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(entity.Actor); ok {
			return a
		}
	}
	return entity.Actor{}
}

// loggingMiddleware logs one line per request
func loggingMiddleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"user_id", actorFrom(c).ID,
		)
	}
}

// corsMiddleware adds CORS headers for the browser frontend
func corsMiddleware() gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type", "Authorization",
		HeaderUserID, HeaderUserRole, HeaderUserName, HeaderUserEmail, HeaderUserDepartment,
	}, ", ")

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
