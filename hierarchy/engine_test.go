package hierarchy

import (
	"context"
	"strings"
	"testing"

	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsDerivedFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		assert.Equal(t, 1, a.Order)
		assert.Equal(t, "1", a.Path)
		assert.Equal(t, 0, a.Depth)
		assert.False(t, a.HasChildren)
		assert.True(t, a.IsActive)
		assert.Nil(t, a.ParentID)

		b := f.create(t, "B", a)
		assert.Equal(t, "1.1", b.Path)
		assert.Equal(t, 1, b.Depth)
		require.NotNil(t, b.ParentID)
		assert.Equal(t, a.ID, *b.ParentID)
		assert.True(t, f.reload(t, a).HasChildren)

		c := f.create(t, "C", b)
		assert.Equal(t, "1.1.1", c.Path)
		assert.Equal(t, mpath.SegmentCount(c.Path)-1, c.Depth)
		assert.True(t, strings.HasPrefix(c.Path, b.Path+"."))

		second := f.create(t, "Second", nil)
		assert.Equal(t, 2, second.Order)
		assert.Equal(t, "2", second.Path)

		f.assertInvariants(t)
	})
}

func TestCreateSiblingNameUniqueness(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := f.create(t, "A", nil)
		b := f.create(t, "B", nil)
		f.create(t, "Dup", a)

		_, err := f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Dup", MenuID: f.menuID, ParentID: &a.ID})
		assert.ErrorIs(t, err, ErrConflict)

		// same name under a different parent is fine
		f.create(t, "Dup", b)
		f.create(t, "Dup", nil)

		// inactive siblings still hold their name
		_, err = f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Hidden", MenuID: f.menuID, IsActive: boolPtr(false)})
		require.NoError(t, err)
		_, err = f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Hidden", MenuID: f.menuID})
		assert.ErrorIs(t, err, ErrConflict)

		// names are case sensitive
		f.create(t, "dup", a)
		f.assertInvariants(t)
	})
}

func TestCreatePreconditions(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := f.create(t, "A", nil)

		other, err := f.menus.Create(ctx, models.CreateMenuRequest{Name: "footer"})
		require.NoError(t, err)

		testCases := []struct {
			name    string
			req     models.CreateMenuItemRequest
			wantErr error
		}{
			{name: "Unknown menu", req: models.CreateMenuItemRequest{Name: "X", MenuID: uuid.NewString()}, wantErr: ErrNotFound},
			{name: "Unknown parent", req: models.CreateMenuItemRequest{Name: "X", MenuID: f.menuID, ParentID: strPtr(uuid.NewString())}, wantErr: ErrNotFound},
			{name: "Parent in another menu", req: models.CreateMenuItemRequest{Name: "X", MenuID: other.ID, ParentID: &a.ID}, wantErr: ErrInvalidArgument},
			{name: "Empty name", req: models.CreateMenuItemRequest{Name: "", MenuID: f.menuID}, wantErr: ErrInvalidArgument},
			{name: "Malformed menu id", req: models.CreateMenuItemRequest{Name: "X", MenuID: "menu-1"}, wantErr: ErrInvalidArgument},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.engine.Create(ctx, tc.req)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}
		assert.Len(t, f.snapshot(t), 1)
	})
}

func TestScenarioMoveChildToRoot(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		require.Equal(t, "1", a.Path)

		b := f.create(t, "B", a)
		assert.Equal(t, "1.1", b.Path)
		assert.Equal(t, 1, b.Depth)
		assert.True(t, f.reload(t, a).HasChildren)

		moved, err := f.moveTo(t, b, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "2", moved.Path)
		assert.Equal(t, 0, moved.Depth)
		assert.Equal(t, 2, moved.Order)
		assert.Nil(t, moved.ParentID)
		assert.False(t, f.reload(t, a).HasChildren)

		f.assertInvariants(t)
	})
}

func TestMoveWithAbsentTargetGoesToRoot(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		b := f.create(t, "B", a)

		moved, err := f.engine.Move(context.Background(), b.ID, models.MoveMenuItemRequest{})
		require.NoError(t, err)
		assert.Nil(t, moved.ParentID)
		assert.Equal(t, "2", moved.Path)
	})
}

func TestScenarioSiblingOrders(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		parent := f.create(t, "Parent", nil)
		x := f.create(t, "X", parent)
		y := f.create(t, "Y", parent)
		z := f.create(t, "Z", parent)

		assert.Equal(t, []int{1, 2, 3}, []int{x.Order, y.Order, z.Order})

		siblings, err := f.engine.GetSiblings(context.Background(), x.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Y", "Z"}, names(siblings))
	})
}

func TestScenarioAncestorsAndDescendants(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := f.create(t, "A", nil)
		b := f.create(t, "B", a)
		c := f.create(t, "C", b)

		ancestors, err := f.engine.GetAncestors(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, names(ancestors))

		descendants, err := f.engine.GetDescendants(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, names(descendants))

		rootAncestors, err := f.engine.GetAncestors(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, rootAncestors)

		leaf, err := f.engine.GetDescendants(ctx, c.ID)
		require.NoError(t, err)
		assert.NotNil(t, leaf)
		assert.Empty(t, leaf)
	})
}

func TestDescendantsArePreOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		root := f.create(t, "Root", nil)
		var second *models.MenuItem
		for i := 1; i <= 11; i++ {
			child := f.create(t, "Child"+strings.Repeat("+", i), root)
			if i == 2 {
				second = child
			}
		}
		f.create(t, "Grandchild", second)

		descendants, err := f.engine.GetDescendants(context.Background(), root.ID)
		require.NoError(t, err)
		require.Len(t, descendants, 12)

		var paths []string
		for _, d := range descendants {
			paths = append(paths, d.Path)
		}
		assert.Equal(t, "1.1", paths[0])
		assert.Equal(t, "1.2", paths[1])
		assert.Equal(t, "1.2.1", paths[2])
		assert.Equal(t, "1.3", paths[3])
		assert.Equal(t, "1.10", paths[10])
		assert.Equal(t, "1.11", paths[11])
	})
}

func TestMoveSubtreeKeepsRelativePaths(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		b := f.create(t, "B", a)
		c := f.create(t, "C", b)
		d := f.create(t, "D", b)
		e := f.create(t, "E", c)
		f.create(t, "Sibling", a)
		r := f.create(t, "R", nil)
		s := f.create(t, "S", r)

		before := f.snapshot(t)
		moved, err := f.moveTo(t, b, s, nil)
		require.NoError(t, err)
		assert.Equal(t, "2.1.1", moved.Path)
		assert.Equal(t, 2, moved.Depth)
		require.NotNil(t, moved.ParentID)
		assert.Equal(t, s.ID, *moved.ParentID)

		after := f.snapshot(t)
		for _, id := range []string{c.ID, d.ID, e.ID} {
			oldItem, newItem := before[id], after[id]
			assert.True(t, mpath.IsAncestorPathOf(moved.Path, newItem.Path), "%s under %s", newItem.Path, moved.Path)
			assert.Equal(t,
				strings.TrimPrefix(oldItem.Path, before[b.ID].Path),
				strings.TrimPrefix(newItem.Path, moved.Path),
				"relative suffix of %s", newItem.Name)
			assert.Equal(t, oldItem.Depth+1, newItem.Depth)
			assert.Equal(t, oldItem.Order, newItem.Order)
		}
		assert.Equal(t, "2.1.1.1.1", after[e.ID].Path)

		assert.True(t, after[a.ID].HasChildren, "A keeps its other child")
		assert.True(t, after[s.ID].HasChildren)
		f.assertInvariants(t)
	})
}

func TestMoveWithSharedTextualPrefix(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		b := f.create(t, "B", a)

		b, err := f.moveTo(t, b, a, intPtr(10))
		require.NoError(t, err)
		require.Equal(t, "1.10", b.Path)
		c := f.create(t, "C", b)
		require.Equal(t, "1.10.1", c.Path)

		r := f.create(t, "R", nil)
		require.Equal(t, "2", r.Path)

		movedA, err := f.moveTo(t, a, r, intPtr(1))
		require.NoError(t, err)
		assert.Equal(t, "2.1", movedA.Path)
		assert.Equal(t, "2.1.10", f.reload(t, b).Path)
		assert.Equal(t, "2.1.10.1", f.reload(t, c).Path)
		assert.Equal(t, 3, f.reload(t, c).Depth)
		f.assertInvariants(t)
	})
}

func TestMoveRejectsCycles(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		a := f.create(t, "A", nil)
		b := f.create(t, "B", a)
		c := f.create(t, "C", b)
		before := f.snapshot(t)

		_, err := f.moveTo(t, a, a, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = f.moveTo(t, a, b, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = f.moveTo(t, a, c, intPtr(5))
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = f.moveTo(t, b, c, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		assert.Equal(t, before, f.snapshot(t), "failed moves write nothing")
	})
}

func TestMovePreconditions(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := f.create(t, "A", nil)
		b := f.create(t, "B", nil)
		f.create(t, "Taken", b)
		mover := f.create(t, "Taken", a)
		f.create(t, "Other", a)

		footer, err := f.menus.Create(ctx, models.CreateMenuRequest{Name: "footer"})
		require.NoError(t, err)
		foreign, err := f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Foreign", MenuID: footer.ID})
		require.NoError(t, err)

		testCases := []struct {
			name    string
			id      string
			req     models.MoveMenuItemRequest
			wantErr error
		}{
			{name: "Unknown item", id: uuid.NewString(), req: models.MoveMenuItemRequest{}, wantErr: ErrNotFound},
			{name: "Unknown target", id: mover.ID, req: models.MoveMenuItemRequest{TargetParentID: models.SetID(uuid.NewString())}, wantErr: ErrNotFound},
			{name: "Target in another menu", id: mover.ID, req: models.MoveMenuItemRequest{TargetParentID: models.SetID(foreign.ID)}, wantErr: ErrInvalidArgument},
			{name: "Negative order", id: mover.ID, req: models.MoveMenuItemRequest{NewOrder: intPtr(-1)}, wantErr: ErrInvalidArgument},
			{name: "Name taken at destination", id: mover.ID, req: models.MoveMenuItemRequest{TargetParentID: models.SetID(b.ID)}, wantErr: ErrConflict},
			{name: "Order taken at destination", id: mover.ID, req: models.MoveMenuItemRequest{TargetParentID: models.SetNull(), NewOrder: intPtr(2)}, wantErr: ErrConflict},
		}

		before := f.snapshot(t)
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.engine.Move(ctx, tc.id, tc.req)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}
		assert.Equal(t, before, f.snapshot(t))
	})
}

func TestMoveWithinParentToExplicitOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		p := f.create(t, "P", nil)
		x := f.create(t, "X", p)
		y := f.create(t, "Y", p)
		f.create(t, "Under", x)

		// keeping the current order is allowed
		same, err := f.moveTo(t, x, p, intPtr(1))
		require.NoError(t, err)
		assert.Equal(t, "1.1", same.Path)

		_, err = f.moveTo(t, x, p, intPtr(y.Order))
		assert.ErrorIs(t, err, ErrConflict)

		moved, err := f.moveTo(t, x, p, intPtr(0))
		require.NoError(t, err)
		assert.Equal(t, "1.0", moved.Path)
		assert.Equal(t, 0, moved.Order)

		siblings, err := f.engine.GetSiblings(context.Background(), y.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"X"}, names(siblings))
		f.assertInvariants(t)
	})
}

func TestOrderUpperBound(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		p := f.create(t, "P", nil)
		x := f.create(t, "X", p)

		tooHigh := models.MaxOrder
		tooHigh++
		_, err := f.moveTo(t, x, p, &tooHigh)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		last, err := f.moveTo(t, x, p, intPtr(models.MaxOrder))
		require.NoError(t, err)
		assert.Equal(t, "1.2147483647", last.Path)

		// no order is left after the highest one
		_, err = f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Y", MenuID: f.menuID, ParentID: &p.ID})
		assert.ErrorIs(t, err, ErrInvalidArgument)
		f.assertInvariants(t)
	})
}

func TestRemoveCascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		root := f.create(t, "Root", nil)
		a := f.create(t, "A", root)
		b := f.create(t, "B", root)
		a1 := f.create(t, "A1", a)
		f.create(t, "A2", a)
		f.create(t, "A1x", a1)
		ten := f.create(t, "Ten", nil)

		descendants, err := f.engine.GetDescendants(ctx, a.ID)
		require.NoError(t, err)

		result, err := f.engine.RemoveSubtree(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1+len(descendants), result.Deleted)
		assert.Equal(t, 4, result.Deleted)
		assert.Equal(t, f.menuID, result.MenuID)

		_, err = f.engine.FindOne(ctx, a1.ID, false)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, f.reload(t, root).HasChildren, "B remains")
		assert.Len(t, f.snapshot(t), 3)

		require.NoError(t, f.engine.Remove(ctx, b.ID))
		assert.False(t, f.reload(t, root).HasChildren)

		assert.ErrorIs(t, f.engine.Remove(ctx, b.ID), ErrNotFound)
		assert.Equal(t, "2", f.reload(t, ten).Path)
		f.assertInvariants(t)
	})
}

func TestRemoveKeepsHasChildrenForInactiveSiblings(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		p := f.create(t, "P", nil)
		x := f.create(t, "X", p)
		_, err := f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Hidden", MenuID: f.menuID, ParentID: &p.ID, IsActive: boolPtr(false)})
		require.NoError(t, err)

		require.NoError(t, f.engine.Remove(ctx, x.ID))
		assert.False(t, f.reload(t, p).HasChildren, "only inactive children remain")
		f.assertInvariants(t)
	})
}

func TestUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		x := f.create(t, "X", nil)
		f.create(t, "R", nil)
		y := f.create(t, "Y", x)
		z := f.create(t, "Z", x)

		_, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{Name: strPtr("Z")})
		assert.ErrorIs(t, err, ErrConflict)

		same, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{Name: strPtr("Y")})
		require.NoError(t, err)
		assert.Equal(t, "Y", same.Name)

		renamed, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{Name: strPtr("Why")})
		require.NoError(t, err)
		assert.Equal(t, "Why", renamed.Name)
		assert.Equal(t, "1.1", renamed.Path)

		_, err = f.engine.Update(ctx, uuid.NewString(), models.UpdateMenuItemRequest{Name: strPtr("Nobody")})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{Name: strPtr("")})
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{IsActive: boolPtr(false)})
		require.NoError(t, err)
		assert.True(t, f.reload(t, x).HasChildren, "Z is still active")

		_, err = f.engine.Update(ctx, z.ID, models.UpdateMenuItemRequest{IsActive: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, f.reload(t, x).HasChildren)

		_, err = f.engine.Update(ctx, z.ID, models.UpdateMenuItemRequest{IsActive: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, f.reload(t, x).HasChildren)
		f.assertInvariants(t)
	})
}

func TestUpdateParentChangeMoves(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		x := f.create(t, "X", nil)
		f.create(t, "Root2", nil)
		y := f.create(t, "Y", x)
		z := f.create(t, "Z", x)
		f.create(t, "Root2", z)
		leaf := f.create(t, "Leaf", y)

		// absent parent leaves the item in place
		kept, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{Name: strPtr("Y2")})
		require.NoError(t, err)
		require.NotNil(t, kept.ParentID)
		assert.Equal(t, x.ID, *kept.ParentID)

		// the name is checked against the destination
		_, err = f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{ParentID: models.SetID(z.ID), Name: strPtr("Root2")})
		assert.ErrorIs(t, err, ErrConflict)

		moved, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{ParentID: models.SetID(z.ID), Name: strPtr("W")})
		require.NoError(t, err)
		assert.Equal(t, "W", moved.Name)
		assert.Equal(t, "1.2.2", moved.Path)
		assert.Equal(t, 2, moved.Depth)
		assert.Equal(t, "1.2.2.1", f.reload(t, leaf).Path)

		toRoot, err := f.engine.Update(ctx, y.ID, models.UpdateMenuItemRequest{ParentID: models.SetNull()})
		require.NoError(t, err)
		assert.Nil(t, toRoot.ParentID)
		assert.Equal(t, "3", toRoot.Path)
		assert.Equal(t, "3.1", f.reload(t, leaf).Path)

		_, err = f.engine.Update(ctx, x.ID, models.UpdateMenuItemRequest{ParentID: models.SetID(z.ID)})
		assert.ErrorIs(t, err, ErrInvalidArgument, "cannot move under a descendant")
		f.assertInvariants(t)
	})
}

func TestQueries(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		a := f.create(t, "A", nil)
		f.create(t, "B", nil)
		_, err := f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "C", MenuID: f.menuID, IsActive: boolPtr(false)})
		require.NoError(t, err)
		a1 := f.create(t, "A1", a)
		_, err = f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "A2", MenuID: f.menuID, ParentID: &a.ID, IsActive: boolPtr(false)})
		require.NoError(t, err)
		f.create(t, "A3", a)

		all, err := f.engine.FindAll(ctx, f.menuID, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "A1", "B", "A3"}, names(all))
		assert.Empty(t, all[0].Children)

		withChildren, err := f.engine.FindAll(ctx, f.menuID, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A3"}, names(withChildren[0].Children))

		roots, err := f.engine.FindRoots(ctx, f.menuID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, names(roots))
		assert.Equal(t, []string{"A1", "A3"}, names(roots[0].Children))
		assert.NotNil(t, roots[1].Children)
		assert.Empty(t, roots[1].Children)

		level1, err := f.engine.FindByDepth(ctx, f.menuID, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A3"}, names(level1))

		_, err = f.engine.FindByDepth(ctx, f.menuID, -1)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = f.engine.FindAll(ctx, uuid.NewString(), false)
		assert.ErrorIs(t, err, ErrNotFound)

		one, err := f.engine.FindOne(ctx, a.ID, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A3"}, names(one.Children))
		assert.Nil(t, one.Parent)

		child, err := f.engine.FindOne(ctx, a1.ID, true)
		require.NoError(t, err)
		require.NotNil(t, child.Parent)
		assert.Equal(t, a.ID, child.Parent.ID)
		assert.Empty(t, child.Children)

		siblings, err := f.engine.GetSiblings(ctx, a1.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A3"}, names(siblings))

		rootSiblings, err := f.engine.GetSiblings(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, names(rootSiblings))

		descendants, err := f.engine.GetDescendants(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A3"}, names(descendants))

		_, err = f.engine.GetAncestors(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCancelledContextAborts(t *testing.T) {
	forEachStore(t, func(t *testing.T, f *fixture) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.engine.Create(ctx, models.CreateMenuItemRequest{Name: "Late", MenuID: f.menuID})
		assert.ErrorIs(t, err, ErrTransactionAborted)
		assert.Empty(t, f.snapshot(t))
	})
}
