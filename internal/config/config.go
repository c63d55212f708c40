// Package config provides unified configuration loading for the pipeline.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vialaky/ProductImagePipeline/internal/catalog"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Project       ProjectConfig       `yaml:"project"`
	Download      DownloadConfig      `yaml:"download"`
	Extract       ExtractConfig       `yaml:"extract"`
	Image         ImageConfig         `yaml:"image"`
	Run           RunConfig           `yaml:"run"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
	Catalog       CatalogConfig       `yaml:"catalog"`
}

// ProjectConfig holds project identity and filesystem layout.
type ProjectConfig struct {
	Name       string `yaml:"name"`
	DataDir    string `yaml:"data_dir"`    // per-SKU scratch/download area
	OutputDir  string `yaml:"output_dir"`  // normalized images
	ReportPath string `yaml:"report_path"` // report.json location
}

// DownloadConfig holds archive fetch settings.
type DownloadConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	ChunkSize   int           `yaml:"chunk_size"`
	UserAgents  []string      `yaml:"user_agents"`
}

// ExtractConfig holds archive extraction settings.
type ExtractConfig struct {
	ContinueOnPartial bool `yaml:"continue_on_partial"`
}

// ImageConfig holds the normalization profile.
type ImageConfig struct {
	TargetSide int `yaml:"target_side"`
	Quality    int `yaml:"quality"`
}

// RunConfig holds batch execution settings.
type RunConfig struct {
	MaxConcurrentSKUs int  `yaml:"max_concurrent_skus"`
	KeepScratch       bool `yaml:"keep_scratch"`
}

// DatabaseConfig holds run-history storage settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds download idempotency cache settings.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ServerConfig holds the report API server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// CatalogConfig holds the SKU catalog, inline or from a separate file.
type CatalogConfig struct {
	Path string            `yaml:"path"`
	SKUs []catalog.SkuTask `yaml:"skus"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:       "ProductImagePipeline",
			DataDir:    "data/ProductImagePipeline Data",
			OutputDir:  "output",
			ReportPath: "data/ProductImagePipeline Data/report.json",
		},
		Download: DownloadConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			ChunkSize:   1 << 20,
		},
		Extract: ExtractConfig{
			ContinueOnPartial: true,
		},
		Image: ImageConfig{
			TargetSide: 1080,
			Quality:    85,
		},
		Run: RunConfig{
			MaxConcurrentSKUs: 3,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "data/pipeline.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver: "memory",
			TTL:    24 * time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8085,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("download max_attempts must be at least 1")
	}

	if c.Image.TargetSide < 1 {
		return fmt.Errorf("image target_side must be positive")
	}

	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("image quality must be between 1 and 100")
	}

	if c.Run.MaxConcurrentSKUs < 1 {
		return fmt.Errorf("max_concurrent_skus must be at least 1")
	}

	return nil
}

// LoadCatalog resolves the configured catalog, inline entries taking
// precedence over the external file.
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	if len(c.Catalog.SKUs) > 0 {
		return catalog.New(c.Catalog.SKUs)
	}
	if c.Catalog.Path != "" {
		return catalog.Load(c.Catalog.Path)
	}
	return nil, fmt.Errorf("no catalog configured: set catalog.skus or catalog.path")
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PIPELINE_DATA_DIR"); v != "" {
		cfg.Project.DataDir = v
	}

	if v := os.Getenv("PIPELINE_OUTPUT_DIR"); v != "" {
		cfg.Project.OutputDir = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DOWNLOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Download.Timeout = d
		}
	}

	if v := os.Getenv("MAX_CONCURRENT_SKUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.MaxConcurrentSKUs = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
