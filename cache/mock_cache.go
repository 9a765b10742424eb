package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCache is a cache provider that records calls, for tests of the
// surfaces that use a cache.
type MockCache struct {
	mu              sync.Mutex
	inner           *MemoryCache
	GetCalls        int
	Hits            int
	SetCalls        int
	StaleSets       int
	InvalidateCalls int
	Invalidated     []string
	InitCalls       int
	ShouldFail      bool
}

// NewMockCache creates a new mock cache provider
func NewMockCache() *MockCache {
	return &MockCache{inner: NewMemoryCache()}
}

// Initialize performs any necessary setup for the cache provider
func (c *MockCache) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InitCalls++
	if c.ShouldFail {
		return ErrCacheInitialization
	}
	return nil
}

// Generation returns the menu's current generation
func (c *MockCache) Generation(ctx context.Context, menuID string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ShouldFail {
		return 0, ErrCacheUnavailable
	}
	return c.inner.Generation(ctx, menuID)
}

// Get retrieves a cached response if available
func (c *MockCache) Get(ctx context.Context, menuID, query string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetCalls++
	if c.ShouldFail {
		return nil, false
	}
	value, ok := c.inner.Get(ctx, menuID, query)
	if ok {
		c.Hits++
	}
	return value, ok
}

// Set stores a response and counts writes dropped for a stale generation
func (c *MockCache) Set(ctx context.Context, menuID string, generation uint64, query string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetCalls++
	if c.ShouldFail {
		return
	}
	if current, _ := c.inner.Generation(ctx, menuID); current != generation {
		c.StaleSets++
	}
	c.inner.Set(ctx, menuID, generation, query, value)
}

// InvalidateMenu removes every cached response of a menu
func (c *MockCache) InvalidateMenu(ctx context.Context, menuID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InvalidateCalls++
	c.Invalidated = append(c.Invalidated, menuID)
	if c.ShouldFail {
		return ErrCacheUnavailable
	}
	return c.inner.InvalidateMenu(ctx, menuID)
}

// SetTTL sets the cache time-to-live duration
func (c *MockCache) SetTTL(ttl time.Duration) {
	c.inner.SetTTL(ttl)
}

// Reset resets all counters and state
func (c *MockCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner = NewMemoryCache()
	c.GetCalls, c.Hits, c.SetCalls, c.StaleSets, c.InvalidateCalls, c.InitCalls = 0, 0, 0, 0, 0, 0
	c.Invalidated = nil
	c.ShouldFail = false
}

// SetShouldFail makes the mock cache fail all operations
func (c *MockCache) SetShouldFail(shouldFail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ShouldFail = shouldFail
}

var (
	// ErrCacheInitialization is returned when the mock cache is configured to fail
	ErrCacheInitialization = errors.New("mock cache initialization failed")
	// ErrCacheUnavailable is returned by a failing mock on reads of the generation and on invalidation
	ErrCacheUnavailable = errors.New("mock cache unavailable")
)
