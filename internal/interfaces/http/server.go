// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// LiveChannel upgrades a request into a live push connection for userID
type LiveChannel interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// HealthFunc reports whether the service is healthy, with per-component details
type HealthFunc func(ctx context.Context) (bool, interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
	ArchiveKeep     int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
		ArchiveKeep:     100,
	}
}

// Dependencies are the services the HTTP layer dispatches to. Live, Metrics,
// Health and ExportFormat are optional.
type Dependencies struct {
	Requests      service.RequestService
	Notifications service.NotificationService
	Workflow      workflow.WorkflowEngine
	Live          LiveChannel
	Metrics       http.Handler
	Health        HealthFunc
	ExportFormat  ExportFormat
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, config.ArchiveKeep, logger),
		deps:     deps,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(identityMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers
	auth := requireUser()

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Live != nil {
		s.router.GET("/ws", h.ServeLive)
	}
	if s.deps.Metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.deps.Metrics))
	}

	api := s.router.Group("/api/v1")
	{
		requests := api.Group("/requests")
		requests.POST("", auth, h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/stats", h.RequestStats)
		requests.GET("/export", h.ExportRequests)
		requests.GET("/user/:userId", h.ListUserRequests)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", auth, h.UpdateRequest)
		requests.DELETE("/:id", auth, h.DeleteRequest)
		requests.POST("/:id/transitions", auth, h.TransitionRequest)
		requests.GET("/:id/transitions", h.PermittedTransitions)
		requests.GET("/:id/history", h.RequestHistory)
		requests.POST("/:id/comments", auth, h.AddComment)
		requests.POST("/:id/attachments", auth, h.AddAttachment)

		notifications := api.Group("/notifications")
		notifications.POST("", auth, h.CreateNotification)
		notifications.GET("/user/:userId", h.ListNotifications)
		notifications.GET("/user/:userId/unread-count", h.UnreadCount)
		notifications.PUT("/:id/read", auth, h.MarkNotificationRead)
		notifications.PUT("/user/:userId/read-all", auth, h.MarkAllNotificationsRead)
		notifications.POST("/user/:userId/archive", auth, h.ArchiveNotifications)
		notifications.DELETE("/:id", auth, h.DeleteNotification)
		notifications.DELETE("/user/:userId", auth, h.ClearNotifications)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
