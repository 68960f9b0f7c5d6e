package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/container"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := container.ProvideDatabase(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				return err
			}
			logger.Info("Database is up to date", zap.String("path", cfg.Database.Path))
			return db.DB.Close()
		},
	}
}
