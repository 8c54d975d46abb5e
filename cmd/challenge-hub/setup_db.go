package main

import (
	"fmt"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/services"

	"github.com/spf13/cobra"
)

var (
	adminEmail    string
	adminPassword string
)

var setupDBCmd = &cobra.Command{
	Use:   "setup-db",
	Short: "Create tables and indexes, optionally seeding an admin account",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, cfg, logger, err := bootstrap(c.Context())
		if err != nil {
			return err
		}

		// NewDatabase 会执行 EnsureSchema
		db, err := database.NewDatabase(ctx, cfg.DatabaseConfig())
		if err != nil {
			return fmt.Errorf("setup database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		logger.Info("schema ready", "driver", cfg.Driver())

		challenges, err := db.ListChallenges(ctx, "")
		if err != nil {
			return err
		}
		partners, err := db.ListOrganizations(ctx, "")
		if err != nil {
			return err
		}
		pending, err := db.ListPendingOutbox(ctx, 1000)
		if err != nil {
			return err
		}
		logger.Info("records", "challenges", len(challenges), "partners", len(partners), "pending_outbox", len(pending))

		if adminEmail == "" {
			return nil
		}
		auth := services.NewAuthService(services.Options{DB: db, Logger: logger}, cfg.JWTSecret)
		profile, err := auth.EnsureAdmin(ctx, adminEmail, adminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("admin ready", "user", profile.ID, "email", profile.Email)
		return nil
	},
}

func init() {
	setupDBCmd.Flags().StringVar(&adminEmail, "admin-email", "", "email of the admin account to create or promote")
	setupDBCmd.Flags().StringVar(&adminPassword, "admin-password", "", "password used when the admin account is created")
}
