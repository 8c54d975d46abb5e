package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	handler "challenge-hub-backend/api"
	"challenge-hub-backend/pkg/cron"
	"challenge-hub-backend/pkg/database"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the outbox relay",
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

		deps, err := handler.NewDeps(cfg, db, logger)
		if err != nil {
			return err
		}

		scheduler := cron.NewScheduler(ctx)
		if _, err := scheduler.AddFunc(cfg.OutboxSchedule, func() {
			n, err := deps.Services.Relay.Drain(ctx)
			if err != nil {
				logger.Warn("outbox drain failed", "applied", n, "err", err)
				return
			}
			if n > 0 {
				logger.Info("outbox drained", "applied", n)
			}
		}); err != nil {
			return fmt.Errorf("schedule outbox relay: %w", err)
		}
		scheduler.Start()
		defer scheduler.Shutdown()

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		lch := make(chan error, 1)
		go func() {
			logger.Info("server started", "addr", srv.Addr, "env", cfg.Environment, "driver", cfg.Driver())
			lch <- srv.ListenAndServe()
		}()

		select {
		case err := <-lch:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
