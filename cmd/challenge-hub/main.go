package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"challenge-hub-backend/pkg/config"
	"challenge-hub-backend/pkg/logger"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var rootCmd = &cobra.Command{
	Use:          "challenge-hub",
	Short:        "Challenge hub backend",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, setupDBCmd, relayCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

// bootstrap loads the configuration and attaches the process logger to ctx.
func bootstrap(ctx context.Context) (context.Context, *config.Config, *log.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return ctx, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, nil, err
	}
	l, err := logger.NewLogger(cfg)
	if err != nil {
		return ctx, nil, nil, err
	}
	log.SetDefault(l)

	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		l.Warn("failed to set GOMAXPROCS", "err", err)
	}
	return log.WithContext(ctx, l), cfg, l, nil
}
