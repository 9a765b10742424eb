package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value  []byte
	expiry time.Time
}

type memoryMenu struct {
	generation uint64
	entries    map[string]memoryEntry
}

// MemoryCache implements Provider using in-process storage
type MemoryCache struct {
	mu    sync.RWMutex
	menus map[string]*memoryMenu
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		menus: make(map[string]*memoryMenu),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MemoryCache) Initialize(ctx context.Context) error {
	return nil
}

// Generation returns the menu's current generation
func (c *MemoryCache) Generation(ctx context.Context, menuID string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.menus[menuID]; ok {
		return m.generation, nil
	}
	return 0, nil
}

// Get retrieves a cached response if present and not expired
func (c *MemoryCache) Get(ctx context.Context, menuID, query string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.menus[menuID]
	if !ok {
		return nil, false
	}
	entry, ok := m.entries[query]
	if !ok || c.now().After(entry.expiry) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a response unless the menu moved past generation
func (c *MemoryCache) Set(ctx context.Context, menuID string, generation uint64, query string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.menu(menuID)
	if m.generation != generation {
		return
	}
	m.entries[query] = memoryEntry{value: value, expiry: c.now().Add(c.ttl)}
}

// InvalidateMenu removes every cached response of a menu and advances its generation
func (c *MemoryCache) InvalidateMenu(ctx context.Context, menuID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.menu(menuID)
	m.generation++
	m.entries = make(map[string]memoryEntry)
	return nil
}

// menu must be called with mu held for writing
func (c *MemoryCache) menu(menuID string) *memoryMenu {
	m, ok := c.menus[menuID]
	if !ok {
		m = &memoryMenu{entries: make(map[string]memoryEntry)}
		c.menus[menuID] = m
	}
	return m
}

// SetTTL sets the cache time-to-live duration for new entries
func (c *MemoryCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
}
