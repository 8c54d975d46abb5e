package main

import (
	"fmt"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/metrics"
	"challenge-hub-backend/pkg/services"

	"github.com/spf13/cobra"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Apply pending outbox events once and exit",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, cfg, logger, err := bootstrap(c.Context())
		if err != nil {
			return err
		}

		db, err := database.NewDatabase(ctx, cfg.DatabaseConfig())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		relay := services.NewOutboxRelay(services.Options{DB: db, Metrics: metrics.New(), Logger: logger})
		n, err := relay.Drain(ctx)
		logger.Info("outbox drained", "applied", n)
		return err
	},
}
