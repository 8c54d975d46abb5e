package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver        string
	DSN           string
	MongoURI      string
	MongoDatabase string
	DataDir       string
	Debug         bool
}

// NewDatabase opens the backend named by config.Driver and applies its schema.
func NewDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	var (
		db  DatabaseInterface
		err error
	)
	switch config.Driver {
	case DriverMemory, "":
		db, err = NewLocalDatabase(ctx, config.DataDir)
	case DriverSQLite, DriverPostgres:
		db, err = NewSQLDatabase(ctx, config.Driver, config.DSN, config.Debug)
	case DriverMongo:
		db, err = NewMongoDatabase(ctx, config.MongoURI, config.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown database driver %q", config.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return db, nil
}

// DatabasePool 数据库连接池
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase 获取数据库连接（单例模式 + 连接池）. Warm serverless invocations
// reuse the connection while it is healthy and the config is unchanged.
func GetDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	logger := log.FromContext(ctx).WithPrefix("pool")

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		logger.Debug("reusing existing database connection")
		return globalPool.instance, nil
	}

	logger.Info("creating new database connection", "driver", config.Driver)
	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close() //nolint:errcheck
		globalPool = nil
	}

	instance, err := NewDatabase(ctx, config)
	if err != nil {
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig) bool {
	if pool == nil || pool.instance == nil {
		return true
	}

	logger := log.FromContext(ctx).WithPrefix("pool")

	if pool.config != newConfig {
		logger.Info("database configuration changed, recreating connection")
		return true
	}

	// 检查连接是否过期（30分钟）
	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		logger.Info("database connection expired, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(ctx); err != nil {
		logger.Warn("database health check failed, recreating", "err", err)
		return true
	}

	return false
}

// CloseDatabase closes and forgets the pooled connection.
func CloseDatabase() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	return err
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"driver":    globalPool.config.Driver,
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}

// IsServerlessEnvironment reports whether the process runs on Vercel or AWS Lambda.
func IsServerlessEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" ||
		os.Getenv("VERCEL_URL") != "" ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
