package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/docflow/internal/container"
)

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Notification maintenance",
	}
	cmd.AddCommand(newArchiveCmd(opts))
	cmd.AddCommand(newSweepCmd(opts))
	return cmd
}

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		keep   int
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Delete all but the most recent notifications of a user",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !cmd.Flags().Changed("keep") {
				keep = cfg.Notification.ArchiveKeep
			}

			m, err := container.ProvideMaintenance(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, m.Close()) }()

			n, err := m.Notifications.Archive(cmd.Context(), userID, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d notifications of %s (kept %d)\n", n, userID, keep)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().IntVar(&keep, "keep", 100, "Number of most recent notifications to keep")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired notifications once and exit",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			m, err := container.ProvideMaintenance(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, m.Close()) }()

			n, err := m.Notifications.DeleteExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired notifications\n", n)
			return nil
		},
	}
}
