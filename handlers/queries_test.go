package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/ammiranda/menutree/cache"
	"github.com/ammiranda/menutree/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedItems serves FindAll from a fixed listing and can hold the first
// call open until released
type gatedItems struct {
	MenuItemService

	mu      sync.Mutex
	calls   int
	listing []*models.MenuItem
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedItems) FindAll(ctx context.Context, menuID string, includeChildren bool) ([]*models.MenuItem, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	listing := g.listing
	g.mu.Unlock()

	if first && g.loaded != nil {
		close(g.loaded)
		<-g.release
	}
	return listing, nil
}

func (g *gatedItems) setListing(items ...*models.MenuItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listing = items
}

func TestInvalidationDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	items := &gatedItems{
		listing: []*models.MenuItem{{ID: "b", Name: "B", Path: "1.1", Depth: 1}},
		loaded:  make(chan struct{}),
		release: make(chan struct{}),
	}
	mc := cache.NewMockCache()
	q := NewQueries(items, mc)

	done := make(chan []byte, 1)
	go func() {
		body, err := q.Items(ctx, "menu", false)
		assert.NoError(t, err)
		done <- body
	}()

	// the listing was read, then a move commits and invalidates the menu
	<-items.loaded
	items.setListing(&models.MenuItem{ID: "b", Name: "B", Path: "2", Depth: 0})
	require.NoError(t, q.Invalidate(ctx, "menu"))
	close(items.release)

	stale := <-done
	assert.Contains(t, string(stale), `"path":"1.1"`)
	assert.Equal(t, 1, mc.StaleSets)

	fresh, err := q.Items(ctx, "menu", false)
	require.NoError(t, err)
	assert.Contains(t, string(fresh), `"path":"2"`)
	assert.Equal(t, 2, items.calls, "the stale listing was not cached")
	assert.Equal(t, 0, mc.Hits)

	again, err := q.Items(ctx, "menu", false)
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
	assert.Equal(t, 1, mc.Hits)
}

func TestUnreadableGenerationBypassesCache(t *testing.T) {
	ctx := context.Background()
	items := &gatedItems{listing: []*models.MenuItem{{ID: "a", Name: "A", Path: "1"}}}
	mc := cache.NewMockCache()
	mc.SetShouldFail(true)
	q := NewQueries(items, mc)

	for i := 0; i < 2; i++ {
		body, err := q.Items(ctx, "menu", true)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"name":"A"`)
	}
	assert.Equal(t, 2, items.calls)
	assert.Zero(t, mc.SetCalls)
}
