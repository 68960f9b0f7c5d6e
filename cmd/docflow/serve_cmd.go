package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/config"
	"github.com/garyjia/docflow/internal/container"
	httpapi "github.com/garyjia/docflow/internal/interfaces/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live push channels and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting docflow",
		zap.String("address", cfg.Server.Addr()),
		zap.Bool("correction_loop", cfg.Workflow.AllowCorrection))

	c, err := container.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	server := httpapi.NewServer(serverConfig(cfg), dependencies(c), c.KVLogger())

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("docflow stopped")
	return nil
}

func serverConfig(cfg *config.Config) httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     cfg.Metrics.Path,
		ArchiveKeep:     cfg.Notification.ArchiveKeep,
	}
}

// dependencies wires the started container into the HTTP layer. Optional
// components are only set when present so the interfaces never hold a typed nil.
func dependencies(c *container.Container) httpapi.Dependencies {
	services := c.Services()
	deps := httpapi.Dependencies{
		Requests:      services.Request,
		Notifications: services.Notification,
		Workflow:      services.Workflow,
		Health: func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
	}
	if services.Exporter != nil {
		deps.ExportFormat = services.Exporter
	}
	if p := c.Push(); p != nil && p.Hub != nil {
		deps.Live = p.Hub
	}
	if prom := c.Prometheus(); prom != nil {
		deps.Metrics = prom.Handler()
	}
	return deps
}
