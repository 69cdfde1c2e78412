// Package config provides unified configuration loading for the TOC
// extraction service. Supports YAML files, environment variables, and
// programmatic overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	PDF           PDFConfig           `yaml:"pdf"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// OpenAIConfig holds external model settings. APIKey may be empty at
// startup; extraction then fails with a configuration error rather
// than preventing the service from serving health and status routes.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// PDFConfig holds page rendering settings.
type PDFConfig struct {
	MaxPages      int    `yaml:"max_pages"`
	OutputDir     string `yaml:"output_dir"`
	RenderWorkers int    `yaml:"render_workers"`
}

// JobsConfig holds async job processing settings.
type JobsConfig struct {
	DBPath           string        `yaml:"db_path"`
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue_size"`
	Retention        time.Duration `yaml:"retention"`
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

// CacheConfig holds extraction result cache settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   10 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4.1-mini",
		},
		PDF: PDFConfig{
			MaxPages:      20,
			OutputDir:     "toc",
			RenderWorkers: defaultRenderWorkers(),
		},
		Jobs: JobsConfig{
			DBPath:           "toc_jobs.sqlite",
			Workers:          4,
			QueueSize:        64,
			Retention:        24 * time.Hour,
			EvictionInterval: 10 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Driver:     "memory",
			TTL:        time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// defaultRenderWorkers leaves one core for the serving process.
func defaultRenderWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.PDF.MaxPages < 1 {
		return fmt.Errorf("pdf max_pages must be at least 1")
	}

	if c.PDF.RenderWorkers < 1 {
		return fmt.Errorf("pdf render_workers must be at least 1")
	}

	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs workers must be at least 1")
	}

	if c.Jobs.DBPath == "" {
		return fmt.Errorf("jobs db_path must not be empty")
	}

	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("jobs retention must be positive")
	}

	if c.Jobs.EvictionInterval <= 0 {
		return fmt.Errorf("jobs eviction_interval must be positive")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}

	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}

	if v := os.Getenv("PDF_MAX_PAGES"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.PDF.MaxPages = n
		}
	}

	if v := os.Getenv("PDF_OUTPUT_DIR"); v != "" {
		cfg.PDF.OutputDir = v
	}

	if v := os.Getenv("RENDER_WORKERS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.PDF.RenderWorkers = n
		}
	}

	if v := os.Getenv("JOB_DB_PATH"); v != "" {
		cfg.Jobs.DBPath = v
	}

	if v := os.Getenv("JOB_WORKERS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.Jobs.Workers = n
		}
	}

	if v := os.Getenv("JOB_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Jobs.Retention = d
		}
	}

	if v := os.Getenv("JOB_EVICTION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Jobs.EvictionInterval = d
		}
	}

	if v := os.Getenv("CACHE_ENABLED"); v == "true" {
		cfg.Cache.Enabled = true
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Driver = "redis"
		// Parse redis://host:port format
		addr := strings.TrimPrefix(v, "redis://")
		cfg.Cache.Redis.Addr = addr
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
