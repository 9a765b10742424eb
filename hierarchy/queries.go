package hierarchy

import (
	"context"
	"fmt"
	"sort"

	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
	"github.com/ammiranda/menutree/repository"
)

// FindAll lists the active items of a menu ordered by order, then path.
// With includeChildren every item also carries its active children.
func (e *Engine) FindAll(ctx context.Context, menuID string, includeChildren bool) ([]*models.MenuItem, error) {
	var items []*models.MenuItem
	err := e.tx.withTx(ctx, "findAll", readTx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMenu(ctx, menuID); err != nil {
			return err
		}
		var err error
		items, err = tx.ListItems(ctx, repository.ItemFilter{MenuID: menuID, ActiveOnly: true})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error listing menu items: %w", err)
	}

	sortByOrder(items)
	if includeChildren {
		attachChildren(items, items)
	}
	return nonNil(items), nil
}

// FindRoots lists the active root items of a menu, each with its active children.
func (e *Engine) FindRoots(ctx context.Context, menuID string) ([]*models.MenuItem, error) {
	var roots, level1 []*models.MenuItem
	err := e.tx.withTx(ctx, "findRoots", readTx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMenu(ctx, menuID); err != nil {
			return err
		}
		var err error
		roots, err = tx.ListItems(ctx, repository.ItemFilter{MenuID: menuID, ByParent: true, ActiveOnly: true})
		if err != nil {
			return err
		}
		depth := 1
		level1, err = tx.ListItems(ctx, repository.ItemFilter{MenuID: menuID, Depth: &depth, ActiveOnly: true})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error listing root menu items: %w", err)
	}

	sortByOrder(roots)
	attachChildren(roots, level1)
	return nonNil(roots), nil
}

// FindByDepth lists the active items of a menu at the given depth.
func (e *Engine) FindByDepth(ctx context.Context, menuID string, depth int) ([]*models.MenuItem, error) {
	if depth < 0 {
		return nil, invalidArgument("depth must not be negative, got %d", depth)
	}

	var items []*models.MenuItem
	err := e.tx.withTx(ctx, "findByDepth", readTx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMenu(ctx, menuID); err != nil {
			return err
		}
		var err error
		items, err = tx.ListItems(ctx, repository.ItemFilter{MenuID: menuID, Depth: &depth, ActiveOnly: true})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error listing menu items by depth: %w", err)
	}

	sortByOrder(items)
	return nonNil(items), nil
}

// FindOne returns an item, active or not. With includeChildren the result
// also carries its active children and its parent.
func (e *Engine) FindOne(ctx context.Context, id string, includeChildren bool) (*models.MenuItem, error) {
	var item *models.MenuItem
	err := e.tx.withTx(ctx, "findOne", readTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		item, err = tx.GetItem(ctx, id)
		if err != nil || !includeChildren {
			return err
		}

		children, err := tx.ListItems(ctx, repository.ItemFilter{
			MenuID:     item.MenuID,
			ByParent:   true,
			ParentID:   &item.ID,
			ActiveOnly: true,
		})
		if err != nil {
			return err
		}
		sortByOrder(children)
		item.Children = nonNil(children)

		if item.ParentID != nil {
			parent, err := tx.GetItem(ctx, *item.ParentID)
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			item.Parent = parent
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error getting menu item: %w", err)
	}
	return item, nil
}

// GetAncestors returns the item's ancestors from the root down to its parent,
// resolved from the prefixes of its path. Inactive ancestors are included.
func (e *Engine) GetAncestors(ctx context.Context, id string) ([]*models.MenuItem, error) {
	ancestors := make([]*models.MenuItem, 0)
	err := e.tx.withTx(ctx, "getAncestors", readTx, func(ctx context.Context, tx repository.Tx) error {
		ancestors = ancestors[:0]
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		for _, prefix := range mpath.Prefixes(item.Path) {
			ancestor, err := tx.FindByPath(ctx, item.MenuID, prefix)
			if err != nil {
				return err
			}
			if ancestor == nil {
				e.logger.WarnContext(ctx, "no menu item at ancestor path", "id", id, "path", item.Path, "prefix", prefix)
				continue
			}
			ancestors = append(ancestors, ancestor)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error getting ancestors: %w", err)
	}
	return ancestors, nil
}

// GetDescendants returns the active items below id in pre-order.
func (e *Engine) GetDescendants(ctx context.Context, id string) ([]*models.MenuItem, error) {
	var descendants []*models.MenuItem
	err := e.tx.withTx(ctx, "getDescendants", readTx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		descendants, err = tx.FindByPathPrefix(ctx, item.MenuID, item.Path, repository.ScanOptions{
			ActiveOnly:  true,
			ExcludeRoot: true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error getting descendants: %w", err)
	}

	sortByPath(descendants)
	return nonNil(descendants), nil
}

// GetSiblings returns the active items sharing id's parent, excluding id.
func (e *Engine) GetSiblings(ctx context.Context, id string) ([]*models.MenuItem, error) {
	var siblings []*models.MenuItem
	err := e.tx.withTx(ctx, "getSiblings", readTx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		siblings, err = tx.ListItems(ctx, repository.ItemFilter{
			MenuID:     item.MenuID,
			ByParent:   true,
			ParentID:   item.ParentID,
			ActiveOnly: true,
			ExcludeID:  item.ID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error getting siblings: %w", err)
	}

	sortByOrder(siblings)
	return nonNil(siblings), nil
}

// attachChildren gives each parent clones of its children found in pool
func attachChildren(parents, pool []*models.MenuItem) {
	byID := make(map[string]*models.MenuItem, len(parents))
	for _, p := range parents {
		p.Children = []*models.MenuItem{}
		byID[p.ID] = p
	}
	for _, item := range pool {
		if item.IsRoot() {
			continue
		}
		if p, ok := byID[*item.ParentID]; ok {
			p.AddChild(item.Clone())
		}
	}
	for _, p := range parents {
		sortByOrder(p.Children)
	}
}

func sortByOrder(items []*models.MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return mpath.Compare(items[i].Path, items[j].Path) < 0
	})
}

// sortByPath is a pre-order walk
func sortByPath(items []*models.MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return mpath.Compare(items[i].Path, items[j].Path) < 0
	})
}

func sortDeepestFirst(items []*models.MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Depth != items[j].Depth {
			return items[i].Depth > items[j].Depth
		}
		return mpath.Compare(items[i].Path, items[j].Path) > 0
	})
}

func nonNil(items []*models.MenuItem) []*models.MenuItem {
	if items == nil {
		return []*models.MenuItem{}
	}
	return items
}
