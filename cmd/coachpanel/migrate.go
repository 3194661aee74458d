package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/coachpanel/backend/internal/config"
	"github.com/coachpanel/backend/internal/database"
	"github.com/coachpanel/backend/internal/logger"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			log := logger.NewLogger(cfg.Observability)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return database.Migrate(ctx, &log, cfg)
		},
	}
}
