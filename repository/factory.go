package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/migrations"
)

// New builds the repository selected by cfg without initializing it
func New(cfg *config.StoreConfig, logger *slog.Logger) (Repository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.Database == nil {
			return nil, fmt.Errorf("postgres driver requires a database configuration")
		}
		return NewPostgresRepository(cfg.Database, logger), nil
	case config.DriverSQLite:
		return NewSQLiteRepository(cfg.SQLitePath, logger), nil
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Open reads the store configuration from provider and returns an
// initialized repository. The caller must call Cleanup.
func Open(ctx context.Context, provider config.Provider, logger *slog.Logger) (Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.GetStoreConfig(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get store config: %w", err)
	}
	repo, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Driver, err)
	}
	logger.Info("record store ready", "driver", cfg.Driver)
	return repo, nil
}

// Migrations returns the schema migration runner for a SQL store
func Migrations(cfg *config.StoreConfig, logger *slog.Logger) (migrations.Runner, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.Database == nil {
			return migrations.Runner{}, fmt.Errorf("postgres driver requires a database configuration")
		}
		return migrations.Runner{URL: cfg.Database.URL(), Dialect: migrations.Postgres, Logger: logger}, nil
	case config.DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = config.DefaultSQLitePath()
		}
		return migrations.Runner{URL: "sqlite3://" + path, Dialect: migrations.SQLite, Logger: logger}, nil
	default:
		return migrations.Runner{}, fmt.Errorf("store driver %q has no schema migrations", cfg.Driver)
	}
}
