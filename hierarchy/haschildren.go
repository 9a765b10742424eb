package hierarchy

import (
	"context"

	"github.com/ammiranda/menutree/repository"
)

// recomputeHasChildren sets the parent's hasChildren flag from its active
// children in the caller's transaction. The flag is never set by hand. The
// row is only written when the flag changes, and updatedAt is left alone.
func recomputeHasChildren(ctx context.Context, tx repository.Tx, parentID string) error {
	n, err := tx.CountChildren(ctx, parentID, true)
	if err != nil {
		return err
	}
	parent, err := tx.GetItem(ctx, parentID)
	if err != nil {
		return err
	}

	hasChildren := n > 0
	if parent.HasChildren == hasChildren {
		return nil
	}
	_, err = tx.UpdateItem(ctx, parentID, repository.ItemPatch{HasChildren: &hasChildren})
	return err
}
