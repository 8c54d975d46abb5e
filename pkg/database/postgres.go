package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// openPostgres 尝试多种连接策略, returning the first one that answers a ping.
func openPostgres(ctx context.Context, dsn string) (*DB, error) {
	logger := log.FromContext(ctx).WithPrefix("postgres")

	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		dsn,
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sqlx.Open("postgres", strategy)
		if err != nil {
			logger.Warn("connection strategy failed to open", "strategy", i+1, "err", err)
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("connection strategy failed to ping", "strategy", i+1, "err", err)
			db.Close() //nolint:errcheck
			lastErr = err
			continue
		}

		logger.Info("postgres connection established", "strategy", i+1)
		return &DB{DB: db}, nil
	}

	return nil, fmt.Errorf("failed to connect to postgres with all strategies: %w", lastErr)
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

func wrapPostgresError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		return ErrDuplicateKey
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return ErrTransactionConflict
	}
	return err
}
