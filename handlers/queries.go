package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ammiranda/menutree/cache"
)

// Queries answers the menu-scoped read endpoints through the query cache.
// The results are JSON ready to write.
type Queries struct {
	items MenuItemService
	cache cache.Provider
}

// NewQueries creates a Queries. A nil cache disables caching.
func NewQueries(items MenuItemService, c cache.Provider) *Queries {
	if c == nil {
		c = cache.Disabled{}
	}
	return &Queries{items: items, cache: c}
}

// Items lists a menu's active items
func (q *Queries) Items(ctx context.Context, menuID string, includeChildren bool) ([]byte, error) {
	key := "items?includeChildren=" + strconv.FormatBool(includeChildren)
	return q.cached(ctx, menuID, key, func() (any, error) {
		return q.items.FindAll(ctx, menuID, includeChildren)
	})
}

// Roots lists a menu's active roots with their children
func (q *Queries) Roots(ctx context.Context, menuID string) ([]byte, error) {
	return q.cached(ctx, menuID, "roots", func() (any, error) {
		return q.items.FindRoots(ctx, menuID)
	})
}

// ByDepth lists a menu's active items at one depth
func (q *Queries) ByDepth(ctx context.Context, menuID string, depth int) ([]byte, error) {
	return q.cached(ctx, menuID, "depth="+strconv.Itoa(depth), func() (any, error) {
		return q.items.FindByDepth(ctx, menuID, depth)
	})
}

// Invalidate drops the cached reads of a menu after a mutation
func (q *Queries) Invalidate(ctx context.Context, menuID string) error {
	return q.cache.InvalidateMenu(ctx, menuID)
}

// cached serves key from the cache or loads it. The menu's generation is
// read before the load, so a result that raced an invalidation is not stored.
// When the generation is unreadable the cache is bypassed.
func (q *Queries) cached(ctx context.Context, menuID, key string, load func() (any, error)) ([]byte, error) {
	gen, genErr := q.cache.Generation(ctx, menuID)
	if genErr == nil {
		if body, ok := q.cache.Get(ctx, menuID, key); ok {
			return body, nil
		}
	}

	result, err := load()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("error encoding response: %w", err)
	}
	if genErr == nil {
		q.cache.Set(ctx, menuID, gen, key, body)
	}
	return body, nil
}
