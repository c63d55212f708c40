package commands

import (
	"database/sql"

	"github.com/vialaky/ProductImagePipeline/internal/cache"
	"github.com/vialaky/ProductImagePipeline/internal/config"
	"github.com/vialaky/ProductImagePipeline/internal/observability"
	"github.com/vialaky/ProductImagePipeline/internal/storage"
)

// newLogger builds the logger from config, honoring the --verbose flag.
func newLogger(cfg *config.Config) *observability.Logger {
	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "product-image-pipeline",
	})
}

// openDatabase opens the run-history database from config.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return storage.Open(storage.OpenConfig{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.DatabaseDSN(),
		MaxOpenConns: maxOpenConns(cfg),
		MaxIdleConns: cfg.Database.Postgres.MaxIdleConns,
	})
}

func maxOpenConns(cfg *config.Config) int {
	if cfg.Database.Driver == "sqlite" {
		return cfg.Database.SQLite.MaxOpenConns
	}
	return cfg.Database.Postgres.MaxOpenConns
}

// newCache builds the download idempotency cache from config.
func newCache(cfg *config.Config, logger *observability.Logger) cache.Client {
	if cfg.Cache.Driver == "redis" {
		c, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err == nil {
			return c
		}
		logger.Warn().Err(err).Msg("redis unavailable, falling back to memory cache")
	}
	return cache.NewMemoryClient()
}
