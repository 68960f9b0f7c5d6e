// Package container provides dependency injection and lifecycle management
// for the docflow service.
package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/dispatcher"
	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/application/service"
	"github.com/garyjia/docflow/internal/application/workflow"
	"github.com/garyjia/docflow/internal/config"
	"github.com/garyjia/docflow/internal/infrastructure/export"
	"github.com/garyjia/docflow/internal/infrastructure/metrics"
	"github.com/garyjia/docflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/docflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/docflow/internal/infrastructure/push"
	"github.com/garyjia/docflow/internal/infrastructure/schema"
	"github.com/garyjia/docflow/internal/infrastructure/worker"
	"github.com/garyjia/docflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// SQL returns the underlying connection pool
func (b *DatabaseBundle) SQL() *sql.DB {
	return b.DB.DB
}

// PushBundle holds the configured live delivery channels.
type PushBundle struct {
	Hub    *push.Hub
	Lark   *push.LarkPusher
	Pusher port.Pusher
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run(ctx, database.Migrations())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("Database migrations applied", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Request:      repository.NewRequestRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
	}, nil
}

// ProvideMetrics returns the prometheus sink when enabled, else a no-op.
func ProvideMetrics(cfg *config.MetricsConfig) (port.Metrics, *metrics.Prometheus) {
	if cfg == nil || !cfg.Enabled {
		return port.NoopMetrics{}, nil
	}
	p := metrics.NewPrometheus()
	return p, p
}

// ProvidePushers builds the enabled push channels. With none enabled Pusher is nil
// and notifications are stored without a push attempt.
func ProvidePushers(cfg *config.PushConfig, logger *zap.Logger) *PushBundle {
	bundle := &PushBundle{}
	var channels push.Multi

	if cfg.WebSocket.Enabled {
		bundle.Hub = push.NewHub(push.HubConfig{
			WriteTimeout:   cfg.WebSocket.WriteTimeout,
			PongWait:       cfg.WebSocket.PongWait,
			AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		}, logger.Named("ws"))
		channels = append(channels, bundle.Hub)
	}

	if cfg.Lark.Enabled {
		bundle.Lark = push.NewLarkPusher(push.LarkConfig{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			BaseURL:       cfg.Lark.BaseURL,
		}, logger.Named("lark"))
		channels = append(channels, bundle.Lark)
	}

	switch len(channels) {
	case 0:
	case 1:
		bundle.Pusher = channels[0]
	default:
		bundle.Pusher = channels
	}
	return bundle
}

// ProvideFormRegistry loads the configured form templates.
func ProvideFormRegistry(forms map[string]config.FormConfig) *schema.Registry {
	templates := make(map[string]schema.Form, len(forms))
	for id, f := range forms {
		templates[id] = schema.Form{Title: f.Title, RequiredFields: f.RequiredFields}
	}
	return schema.NewRegistry(templates)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *config.NotificationConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newLoggerAdapter(logger.Named("dispatcher"))),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	)
}

// ServiceDeps groups everything the application services need.
type ServiceDeps struct {
	Config     *config.Config
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Pusher     port.Pusher
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification fan-out on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	cfg := deps.Config
	log := newLoggerAdapter(deps.Logger)

	notifyOpts := []service.NotificationOption{
		service.WithTTL(cfg.Notification.TTL),
		service.WithPushTimeout(cfg.Notification.PushTimeout),
		service.WithNotificationMetrics(deps.Metrics),
	}
	if deps.Pusher != nil {
		notifyOpts = append(notifyOpts, service.WithPusher(deps.Pusher))
	}
	notifications := service.NewNotificationService(deps.Repos.Notification, log, notifyOpts...)

	engine := workflow.NewEngine(deps.Repos.Request, deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithLogger(log),
		workflow.WithCorrectionLoop(cfg.Workflow.AllowCorrection),
	)

	exporter := export.NewXLSXExporter(deps.Logger.Named("export"))
	requests := service.NewRequestService(deps.Repos.Request, deps.TxManager, log,
		service.WithFormRegistry(ProvideFormRegistry(cfg.Forms)),
		service.WithExporter(exporter),
		service.WithEventDispatcher(deps.Dispatcher),
		service.WithWorkflowEngine(engine),
	)

	service.NewFanOut(notifications, log).Register(deps.Dispatcher)

	return &ServiceBundle{
		Request:      requests,
		Notification: notifications,
		Workflow:     engine,
		Exporter:     exporter,
	}, nil
}

// ProvideWorkers registers the background workers.
func ProvideWorkers(cfg *config.NotificationConfig, notifications service.NotificationService, m port.Metrics, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	manager.Register(worker.NewExpirySweeper(
		worker.ExpirySweeperConfig{Interval: cfg.SweepInterval},
		notifications,
		m,
		logger.Named("sweeper"),
	))
	return manager
}

// MaintenanceBundle holds the components the offline maintenance commands need.
type MaintenanceBundle struct {
	Database      *DatabaseBundle
	Notifications service.NotificationService
}

// ProvideMaintenance opens the database and builds a notification service
// without live pushers, dispatcher or workers.
func ProvideMaintenance(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*MaintenanceBundle, error) {
	db, err := ProvideDatabase(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	repos, err := ProvideRepositories(db.SQL(), logger)
	if err != nil {
		_ = db.DB.Close()
		return nil, err
	}
	return &MaintenanceBundle{
		Database: db,
		Notifications: service.NewNotificationService(repos.Notification, newLoggerAdapter(logger),
			service.WithTTL(cfg.Notification.TTL),
		),
	}, nil
}

// Close releases the database.
func (b *MaintenanceBundle) Close() error {
	if b == nil || b.Database == nil {
		return nil
	}
	return b.Database.DB.Close()
}
