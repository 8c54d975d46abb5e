// Package logger builds the process logger from the configuration.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"challenge-hub-backend/pkg/config"

	"github.com/charmbracelet/log"
)

// NewLogger returns a logger writing to stderr.
func NewLogger(cfg *config.Config) (*log.Logger, error) {
	return New(os.Stderr, cfg)
}

// New returns a logger writing to w, formatted and levelled per cfg.Log.
// Debug mode forces the debug level and reports callers.
func New(w io.Writer, cfg *config.Config) (*log.Logger, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	if cfg.Log.Level != "" {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		logger.SetLevel(level)
	}
	if cfg.Debug {
		logger.SetReportCaller(true)
		logger.SetLevel(log.DebugLevel)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	case "text":
		logger.SetFormatter(log.TextFormatter)
	}

	return logger, nil
}
