// Package app wires configuration, the record store, the hierarchy services
// and the query cache for the HTTP server and the Lambda entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ammiranda/menutree/cache"
	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/hierarchy"
	"github.com/ammiranda/menutree/repository"
)

// Deps holds every long-lived dependency of a running process
type Deps struct {
	Config config.Provider
	Server config.ServerConfig
	Logger *slog.Logger
	Repo   repository.Repository
	Engine *hierarchy.Engine
	Menus  *hierarchy.Menus
	Cache  cache.Provider
}

// NewLogger returns the JSON logger used by every entry point
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Build reads configuration from the source selected by CONFIG_SOURCE and
// opens every dependency. A nil logger is replaced by one at the configured
// level. The caller must call Close.
func Build(ctx context.Context, logger *slog.Logger) (*Deps, error) {
	provider, err := config.NewProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}
	return BuildWith(ctx, provider, logger)
}

// BuildWith is Build with an explicit configuration provider
func BuildWith(ctx context.Context, provider config.Provider, logger *slog.Logger) (*Deps, error) {
	server, err := config.GetServerConfig(ctx, provider)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger(server.LogLevel)
	}

	engineCfg, err := config.GetEngineConfig(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get engine config: %w", err)
	}
	cacheCfg, err := config.GetCacheConfig(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache config: %w", err)
	}

	repo, err := repository.Open(ctx, provider, logger)
	if err != nil {
		return nil, err
	}

	c, err := cache.New(ctx, cacheCfg, logger)
	if err == nil {
		err = c.Initialize(ctx)
	}
	if err != nil {
		repo.Cleanup(ctx)
		return nil, fmt.Errorf("failed to initialize %s cache: %w", cacheCfg.Provider, err)
	}

	return &Deps{
		Config: provider,
		Server: server,
		Logger: logger,
		Repo:   repo,
		Engine: hierarchy.NewEngine(repo, engineCfg, logger),
		Menus:  hierarchy.NewMenus(repo, engineCfg, logger),
		Cache:  c,
	}, nil
}

// Close releases the store and, where it holds one, the cache connection
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if closer, ok := d.Cache.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, d.Repo.Cleanup(ctx))
	return errors.Join(errs...)
}
