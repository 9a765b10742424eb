// Package hierarchy maintains menu trees stored as materialized paths.
//
// Every item carries its sibling order, its depth and its path, the chain of
// orders from the root ("1.3.2"). Engine keeps those fields and the cached
// hasChildren flag consistent across create, update, move and remove, each of
// which runs as a single store transaction.
package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
	"github.com/ammiranda/menutree/repository"
	"github.com/google/uuid"
)

// Engine owns every structural change to menu items.
type Engine struct {
	tx     *transactor
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewEngine creates an Engine. A nil logger discards logs.
func NewEngine(repo repository.Repository, cfg config.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "hierarchy")
	return &Engine{
		tx:     &transactor{repo: repo, cfg: cfg, logger: logger},
		logger: logger,
		now:    timestamp,
		newID:  uuid.NewString,
	}
}

// timestamp is truncated to the precision every store keeps
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts a new item as the last child of its parent, or as the last
// root when no parent is given.
func (e *Engine) Create(ctx context.Context, req models.CreateMenuItemRequest) (*models.MenuItem, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument("invalid menu item: %v", err)
	}

	var created *models.MenuItem
	err := e.tx.withTx(ctx, "create", writeTx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMenu(ctx, req.MenuID); err != nil {
			return err
		}

		var parent *models.MenuItem
		if req.ParentID != nil {
			p, err := tx.GetItem(ctx, *req.ParentID)
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			if p.MenuID != req.MenuID {
				return invalidArgument("parent %s belongs to menu %s, not %s", p.ID, p.MenuID, req.MenuID)
			}
			parent = p
		}

		if err := checkNameFree(ctx, tx, req.MenuID, req.ParentID, req.Name, ""); err != nil {
			return err
		}

		order, err := nextOrder(ctx, tx, req.MenuID, req.ParentID)
		if err != nil {
			return err
		}

		now := e.now()
		item := &models.MenuItem{
			ID:        e.newID(),
			Name:      req.Name,
			MenuID:    req.MenuID,
			ParentID:  req.ParentID,
			Order:     order,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if req.IsActive != nil {
			item.IsActive = *req.IsActive
		}
		parentPath := ""
		if parent != nil {
			item.Depth = parent.Depth + 1
			parentPath = parent.Path
		}
		if item.Path, err = mpath.Append(parentPath, order); err != nil {
			return fmt.Errorf("error building path: %w", err)
		}

		inserted, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		if parent != nil {
			if err := recomputeHasChildren(ctx, tx, parent.ID); err != nil {
				return err
			}
		}
		created = inserted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error creating menu item: %w", err)
	}

	e.logger.DebugContext(ctx, "menu item created", "id", created.ID, "menu_id", created.MenuID, "path", created.Path)
	return created, nil
}

// Update renames an item or toggles its active flag. A ParentID that differs
// from the current parent moves the item, in the same transaction.
func (e *Engine) Update(ctx context.Context, id string, req models.UpdateMenuItemRequest) (*models.MenuItem, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument("invalid menu item update: %v", err)
	}

	var updated *models.MenuItem
	err := e.tx.withTx(ctx, "update", writeTx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}

		name := item.Name
		if req.Name != nil {
			name = *req.Name
		}

		if req.ParentID.Present && !models.SameParent(req.ParentID.ID(), item.ParentID) {
			// the name is checked at the destination
			item, err = e.moveTx(ctx, tx, item, req.ParentID.ID(), nil, name)
			if err != nil {
				return err
			}
		} else if req.Name != nil {
			if err := checkNameFree(ctx, tx, item.MenuID, item.ParentID, name, item.ID); err != nil {
				return err
			}
		}

		patch := repository.ItemPatch{Name: req.Name, IsActive: req.IsActive, UpdatedAt: e.now()}
		result, err := tx.UpdateItem(ctx, id, patch)
		if err != nil {
			return err
		}

		if req.IsActive != nil && *req.IsActive != item.IsActive && result.ParentID != nil {
			if err := recomputeHasChildren(ctx, tx, *result.ParentID); err != nil {
				return err
			}
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error updating menu item: %w", err)
	}

	e.logger.DebugContext(ctx, "menu item updated", "id", updated.ID, "path", updated.Path)
	return updated, nil
}

// Remove deletes an item together with its whole subtree.
func (e *Engine) Remove(ctx context.Context, id string) error {
	_, err := e.RemoveSubtree(ctx, id)
	return err
}

// RemoveSubtree deletes an item and every descendant, deepest first, and
// reports how many rows went.
func (e *Engine) RemoveSubtree(ctx context.Context, id string) (*models.RemoveResult, error) {
	var result *models.RemoveResult
	err := e.tx.withTx(ctx, "remove", writeTx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}

		descendants, err := tx.FindByPathPrefix(ctx, item.MenuID, item.Path, repository.ScanOptions{
			ExcludeRoot: true,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}
		sortDeepestFirst(descendants)

		for _, d := range descendants {
			if err := tx.DeleteItem(ctx, d.ID); err != nil {
				return fmt.Errorf("error deleting descendant %s: %w", d.ID, err)
			}
		}
		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return err
		}

		if item.ParentID != nil {
			if err := recomputeHasChildren(ctx, tx, *item.ParentID); err != nil {
				return err
			}
		}
		result = &models.RemoveResult{ID: item.ID, MenuID: item.MenuID, Deleted: len(descendants) + 1}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error removing menu item: %w", err)
	}

	e.logger.DebugContext(ctx, "menu item removed", "id", id, "deleted", result.Deleted)
	return result, nil
}

// checkNameFree fails with ErrConflict when another item under (menuID,
// parentID) is named name. Inactive siblings count.
func checkNameFree(ctx context.Context, tx repository.Tx, menuID string, parentID *string, name, selfID string) error {
	existing, err := tx.FindBySiblingKey(ctx, menuID, parentID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return conflict("a sibling named %q already exists", name)
	}
	return nil
}

// nextOrder is one past the highest sibling order, starting at 1
func nextOrder(ctx context.Context, tx repository.Tx, menuID string, parentID *string) (int, error) {
	max, ok, err := tx.MaxOrder(ctx, menuID, parentID)
	if err != nil {
		return 0, err
	}
	if !ok {
		max = 0
	}
	if max >= models.MaxOrder {
		return 0, invalidArgument("no order left after %d under this parent", max)
	}
	return max + 1, nil
}
