// Package cache holds rendered read responses per menu so the HTTP and
// Lambda surfaces can skip the store for repeated queries. Entries are keyed
// by (menuID, query) and every entry of a menu is dropped together when the
// menu changes.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when a provider is created without one
const DefaultTTL = 5 * time.Minute

// Provider defines the interface for cache implementations.
// Values are opaque encoded responses.
//
// Each menu has a generation that InvalidateMenu advances. A reader takes
// the generation before loading from the store and hands it to Set, which
// drops the write if the menu was invalidated in between. A response read
// before a mutation therefore never outlives that mutation's invalidation.
type Provider interface {
	// Initialize performs any necessary setup for the cache provider.
	// This may include establishing connections or creating tables.
	// Returns an error if initialization fails.
	Initialize(ctx context.Context) error

	// Generation returns the menu's current generation.
	// Returns:
	//   - The generation, 0 for a menu that was never invalidated
	//   - An error if the cache cannot be reached; callers then skip the cache
	Generation(ctx context.Context, menuID string) (uint64, error)

	// Get retrieves a cached response.
	// Parameters:
	//   - menuID: The menu the query reads from
	//   - query: A key identifying the query and its arguments
	// Returns:
	//   - The cached value
	//   - A boolean indicating whether the value was found and not expired
	Get(ctx context.Context, menuID, query string) ([]byte, bool)

	// Set stores a response loaded while the menu was at generation.
	// The write is dropped when the menu's generation has moved on.
	// Failures are logged and otherwise ignored; a missing entry only
	// costs a store read.
	Set(ctx context.Context, menuID string, generation uint64, query string, value []byte)

	// InvalidateMenu removes every cached response of a menu and advances
	// its generation. This is called after each successful mutation of the menu.
	InvalidateMenu(ctx context.Context, menuID string) error

	// SetTTL sets the time after which new entries expire
	SetTTL(ttl time.Duration)
}

// New builds the provider selected by cfg. It does not initialize it.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "cache", "provider", cfg.Provider)

	var p Provider
	switch cfg.Provider {
	case "none":
		p = Disabled{}
	case "memory":
		p = NewMemoryCache()
	case "redis":
		p = NewRedisCache(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
	case "dynamodb":
		dc, err := NewDynamoDBCache(ctx, cfg.DynamoDBTable, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating dynamodb cache: %w", err)
		}
		p = dc
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}

	if cfg.TTL > 0 {
		p.SetTTL(cfg.TTL)
	}
	return p, nil
}

// Disabled is a Provider that never stores anything
type Disabled struct{}

func (Disabled) Initialize(context.Context) error { return nil }

func (Disabled) Generation(context.Context, string) (uint64, error) { return 0, nil }

func (Disabled) Get(context.Context, string, string) ([]byte, bool) { return nil, false }

func (Disabled) Set(context.Context, string, uint64, string, []byte) {}

func (Disabled) InvalidateMenu(context.Context, string) error { return nil }

func (Disabled) SetTTL(time.Duration) {}
