package hierarchy

import (
	"context"
	"fmt"

	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
	"github.com/ammiranda/menutree/repository"
)

// Move relocates an item and its whole subtree under TargetParentID, or to
// the root level when the target is absent or null. Without NewOrder the
// item becomes the last child of its destination.
func (e *Engine) Move(ctx context.Context, id string, req models.MoveMenuItemRequest) (*models.MenuItem, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument("invalid move: %v", err)
	}

	var moved *models.MenuItem
	err := e.tx.withTx(ctx, "move", writeTx, func(ctx context.Context, tx repository.Tx) error {
		item, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		moved, err = e.moveTx(ctx, tx, item, req.TargetParentID.ID(), req.NewOrder, item.Name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error moving menu item: %w", err)
	}

	e.logger.DebugContext(ctx, "menu item moved", "id", moved.ID, "path", moved.Path, "depth", moved.Depth)
	return moved, nil
}

// moveTx runs the move inside the caller's transaction. name is the name the
// item will carry at its destination and is checked for collisions there.
// Every precondition is checked before the first write.
func (e *Engine) moveTx(ctx context.Context, tx repository.Tx, item *models.MenuItem, targetParentID *string, newOrder *int, name string) (*models.MenuItem, error) {
	if targetParentID != nil && *targetParentID == item.ID {
		return nil, invalidArgument("menu item %s cannot be its own parent", item.ID)
	}

	var target *models.MenuItem
	if targetParentID != nil {
		t, err := tx.GetItem(ctx, *targetParentID)
		if err != nil {
			return nil, fmt.Errorf("target parent: %w", err)
		}
		if t.MenuID != item.MenuID {
			return nil, invalidArgument("target parent %s belongs to menu %s, not %s", t.ID, t.MenuID, item.MenuID)
		}
		if mpath.IsAncestorPathOf(item.Path, t.Path) {
			return nil, invalidArgument("cannot move menu item %s under its own descendant %s", item.ID, t.ID)
		}
		target = t
	}

	newDepth := 0
	targetPath := ""
	if target != nil {
		newDepth = target.Depth + 1
		targetPath = target.Path
	}

	var finalOrder int
	if newOrder != nil {
		if *newOrder < 0 || *newOrder > models.MaxOrder {
			return nil, invalidArgument("order must be between 0 and %d, got %d", models.MaxOrder, *newOrder)
		}
		occupant, err := tx.FindBySiblingOrder(ctx, item.MenuID, targetParentID, *newOrder)
		if err != nil {
			return nil, err
		}
		if occupant != nil && occupant.ID != item.ID {
			return nil, conflict("order %d is already taken by %s", *newOrder, occupant.ID)
		}
		finalOrder = *newOrder
	} else {
		order, err := nextOrder(ctx, tx, item.MenuID, targetParentID)
		if err != nil {
			return nil, err
		}
		finalOrder = order
	}

	if err := checkNameFree(ctx, tx, item.MenuID, targetParentID, name, item.ID); err != nil {
		return nil, err
	}

	newPath, err := mpath.Append(targetPath, finalOrder)
	if err != nil {
		return nil, fmt.Errorf("error building path: %w", err)
	}

	// the old path bounds the subtree; it is locked until commit
	subtree, err := tx.FindByPathPrefix(ctx, item.MenuID, item.Path, repository.ScanOptions{ForUpdate: true})
	if err != nil {
		return nil, err
	}

	_, err = tx.UpdateItem(ctx, item.ID, repository.ItemPatch{
		SetParent: true,
		ParentID:  targetParentID,
		Order:     &finalOrder,
		Depth:     &newDepth,
		Path:      &newPath,
		UpdatedAt: e.now(),
	})
	if err != nil {
		return nil, err
	}

	delta := newDepth - item.Depth
	for _, d := range subtree {
		if d.ID == item.ID {
			continue
		}
		path, err := mpath.Rebase(item.Path, newPath, d.Path)
		if err != nil {
			return nil, fmt.Errorf("error rebasing descendant %s: %w", d.ID, err)
		}
		depth := d.Depth + delta
		if _, err := tx.UpdateItem(ctx, d.ID, repository.ItemPatch{Path: &path, Depth: &depth}); err != nil {
			return nil, fmt.Errorf("error updating descendant %s: %w", d.ID, err)
		}
	}

	for _, parentID := range touchedParents(item.ParentID, targetParentID) {
		if err := recomputeHasChildren(ctx, tx, parentID); err != nil {
			return nil, err
		}
	}

	return tx.GetItem(ctx, item.ID)
}

// touchedParents lists the distinct non-root parents of a move
func touchedParents(oldParentID, newParentID *string) []string {
	var ids []string
	if oldParentID != nil {
		ids = append(ids, *oldParentID)
	}
	if newParentID != nil && !models.SameParent(oldParentID, newParentID) {
		ids = append(ids, *newParentID)
	}
	return ids
}
