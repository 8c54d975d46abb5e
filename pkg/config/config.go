package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"challenge-hub-backend/pkg/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix may prefix every variable; prefixed values win over plain ones.
const EnvPrefix = "CHALLENGE_HUB_"

const defaultJWTSecret = "your-secret-key-change-in-production"

// ErrNilConfig is returned when a nil config is passed to a constructor.
var ErrNilConfig = errors.New("nil config")

// LogConfig is the logger configuration.
type LogConfig struct {
	// Format is one of "text", "json" or "logfmt".
	Format string `env:"LOG_FORMAT" yaml:"format"`

	// Level is the minimum level written: debug, info, warn or error.
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string `env:"ENVIRONMENT" yaml:"environment"`
	Port        string `env:"PORT" yaml:"port"`

	// 数据库配置
	UseLocalDB    bool   `env:"USE_LOCAL_DB" yaml:"use_local_db"`
	DataDir       string `env:"DATA_DIR" yaml:"data_dir"`
	DBDriver      string `env:"DB_DRIVER" yaml:"db_driver"`
	MongoURI      string `env:"MONGODB_URI" yaml:"mongodb_uri"`
	MongoDatabase string `env:"MONGODB_DATABASE" yaml:"mongodb_database"`
	PostgresDSN   string `env:"POSTGRES_DSN" yaml:"postgres_dsn"`
	SQLitePath    string `env:"SQLITE_PATH" yaml:"sqlite_path"`

	// JWT配置
	JWTSecret string `env:"JWT_SECRET" yaml:"jwt_secret"`

	// CORS配置
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," yaml:"allowed_origins"`

	Log LogConfig `yaml:"log"`

	// OutboxSchedule is the cron spec of the outbox relay.
	OutboxSchedule string `env:"OUTBOX_SCHEDULE" yaml:"outbox_schedule"`

	PartnerCacheSize   int `env:"PARTNER_CACHE_SIZE" yaml:"partner_cache_size"`
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" yaml:"rate_limit_per_minute"`

	// 调试配置
	Debug bool `env:"DEBUG" yaml:"debug"`

	// ConfigFile is an optional YAML file read before the environment.
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Environment:        "development",
		Port:               "3000",
		UseLocalDB:         true,
		MongoDatabase:      "challenge_hub",
		JWTSecret:          defaultJWTSecret,
		AllowedOrigins:     []string{"*"},
		Log:                LogConfig{Format: "text", Level: "info"},
		OutboxSchedule:     "@every 30s",
		PartnerCacheSize:   256,
		RateLimitPerMinute: 120,
	}
}

// LoadConfig 加载配置（支持本地和Vercel环境）
//
// Precedence, lowest first: defaults, YAML file, environment, prefixed environment.
// .env files never override variables that are already set.
func LoadConfig() (*Config, error) {
	// 根据环境加载对应的 .env 文件
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		if err := loadEnvFile(".env.production"); err != nil {
			return nil, err
		}
	default:
		if err := loadEnvFile(".env.local"); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()

	path := os.Getenv(EnvPrefix + "CONFIG_FILE")
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}

	// 环境特定配置
	if cfg.IsProduction() {
		// 生产环境强制使用外部数据库
		if cfg.MongoURI != "" || cfg.PostgresDSN != "" {
			cfg.UseLocalDB = false
		}
		// 生产环境关闭调试
		cfg.Debug = false
	}

	return cfg, nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	// 验证JWT密钥
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}

	// 验证数据库配置
	switch c.Driver() {
	case database.DriverMemory:
	case database.DriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("数据库配置不完整：mongo driver requires MONGODB_URI and MONGODB_DATABASE")
		}
	case database.DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("数据库配置不完整：postgres driver requires POSTGRES_DSN")
		}
	case database.DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("数据库配置不完整：sqlite driver requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format)
	}

	if c.PartnerCacheSize <= 0 {
		return errors.New("PARTNER_CACHE_SIZE must be positive")
	}

	return nil
}

// Driver resolves the storage backend. An explicit DB_DRIVER wins; otherwise
// USE_LOCAL_DB selects the in-memory store and the first configured external
// database is used.
func (c *Config) Driver() string {
	switch {
	case c.DBDriver != "":
		return c.DBDriver
	case c.UseLocalDB:
		return database.DriverMemory
	case c.MongoURI != "":
		return database.DriverMongo
	case c.PostgresDSN != "":
		return database.DriverPostgres
	case c.SQLitePath != "":
		return database.DriverSQLite
	}
	return database.DriverMemory
}

// DatabaseConfig returns the store settings for database.NewDatabase.
func (c *Config) DatabaseConfig() database.DatabaseConfig {
	dc := database.DatabaseConfig{
		Driver:        c.Driver(),
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		DataDir:       c.DataDir,
		Debug:         c.Debug,
	}
	switch dc.Driver {
	case database.DriverPostgres:
		dc.DSN = c.PostgresDSN
	case database.DriverSQLite:
		dc.DSN = c.SQLitePath
	}
	return dc
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// parseFile decodes the YAML file at path into cfg.
func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close() // nolint: errcheck

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// parseEnv applies plain variables, then prefixed ones.
func parseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	return nil
}

// loadEnvFile 加载 .env 文件到环境变量. A missing file is not an error.
func loadEnvFile(filename string) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(filename); err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	return nil
}
