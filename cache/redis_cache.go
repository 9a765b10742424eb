package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Provider using one Redis hash per menu. The hash
// expires as a whole, so the TTL of a menu restarts on every write to it.
// The menu's generation is a counter in a separate key that never expires.
type RedisCache struct {
	client redis.UniversalClient
	logger *slog.Logger
	mu     sync.RWMutex
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache provider
func NewRedisCache(opts *redis.Options, logger *slog.Logger) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(opts), logger)
}

// NewRedisCacheWithClient creates a Redis cache provider with a custom client
func NewRedisCacheWithClient(client redis.UniversalClient, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisCache{client: client, logger: logger, ttl: DefaultTTL}
}

// errStaleGeneration aborts a Set whose menu was invalidated after the read
var errStaleGeneration = errors.New("stale cache generation")

func menuKey(menuID string) string {
	return "menutree:menu:" + menuID
}

func generationKey(menuID string) string {
	return "menutree:menu:" + menuID + ":generation"
}

// Initialize checks that Redis is reachable
func (c *RedisCache) Initialize(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Generation returns the menu's counter, 0 when it was never invalidated
func (c *RedisCache) Generation(ctx context.Context, menuID string) (uint64, error) {
	gen, err := c.client.Get(ctx, generationKey(menuID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get retrieves a cached response
func (c *RedisCache) Get(ctx context.Context, menuID, query string) ([]byte, bool) {
	data, err := c.client.HGet(ctx, menuKey(menuID), query).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "error reading cache", "menu_id", menuID, "query", query, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores a response and refreshes the menu's expiry. The generation key
// is watched, so an invalidation racing the write makes the transaction fail.
func (c *RedisCache) Set(ctx context.Context, menuID string, generation uint64, query string, value []byte) {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	key := menuKey(menuID)
	genKey := generationKey(menuID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, query, value)
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "dropping stale cache write", "menu_id", menuID, "query", query)
	default:
		c.logger.WarnContext(ctx, "error writing cache", "menu_id", menuID, "query", query, "error", err)
	}
}

// InvalidateMenu advances the menu's generation and removes its hash
func (c *RedisCache) InvalidateMenu(ctx context.Context, menuID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(menuID))
		pipe.Del(ctx, menuKey(menuID))
		return nil
	})
	return err
}

// SetTTL sets the cache time-to-live duration
func (c *RedisCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
