package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:":8081"`
	Env       string `env:"APP_ENV" envDefault:"local"`
	Server    ServerConfig
	EventLog  EventLogConfig
	Tree      TreeConfig
	Ownership OwnershipConfig
	Export    ExportConfig
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"2m"`
}

type EventLogConfig struct {
	Backend        string        `env:"EVENTLOG_BACKEND" envDefault:"memory"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"tmp/sketches.db"`
	ReadCacheSize  int           `env:"EVENTLOG_READ_CACHE_SIZE" envDefault:"256"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
}

type TreeConfig struct {
	MaxDepth int `env:"TREE_MAX_DEPTH" envDefault:"64"`
}

type OwnershipConfig struct {
	CacheTTL  time.Duration `env:"OWNERSHIP_CACHE_TTL" envDefault:"30s"`
	CacheSize int           `env:"OWNERSHIP_CACHE_SIZE" envDefault:"1024"`
}

type ExportConfig struct {
	Endpoint  string `env:"EXPORT_S3_ENDPOINT"`
	Region    string `env:"EXPORT_S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"EXPORT_S3_ACCESS_KEY"`
	SecretKey string `env:"EXPORT_S3_SECRET_KEY"`
	Bucket    string `env:"EXPORT_S3_BUCKET" envDefault:"sketch-exports"`
	UseSSL    bool   `env:"EXPORT_S3_USE_SSL" envDefault:"true"`
}

// CanUseS3 reports whether enough is configured to reach a bucket.
func (c ExportConfig) CanUseS3() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// Load reads .env (if present), the process environment and args. A -port
// flag overrides PORT.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	port := fs.String("port", "", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *port != "" {
		cfg.Port = *port
	}
	cfg.Port = normalizePort(cfg.Port)
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.Env == "local" {
		applyLocalDefaults(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AllowsReset reports whether the test-only reset endpoint is served.
func (c *Config) AllowsReset() bool {
	return c.Env == "local" || c.Env == "test"
}

func (c *Config) validate() error {
	switch strings.ToLower(c.EventLog.Backend) {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.EventLog.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when EVENTLOG_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("EVENTLOG_BACKEND must be memory, postgres or sqlite, got %q", c.EventLog.Backend)
	}
	if c.Tree.MaxDepth <= 0 {
		return fmt.Errorf("TREE_MAX_DEPTH must be positive")
	}
	return nil
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8081"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
