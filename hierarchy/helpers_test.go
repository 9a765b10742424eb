package hierarchy

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
	"github.com/ammiranda/menutree/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEngineConfig = config.EngineConfig{
	MaxRetries:   2,
	RetryBackoff: time.Millisecond,
	TxTimeout:    5 * time.Second,
}

type fixture struct {
	repo   repository.Repository
	engine *Engine
	menus  *Menus
	menuID string
}

type fixtureFactory func(t *testing.T) *fixture

func fixtures() map[string]fixtureFactory {
	return map[string]fixtureFactory{
		"memory": func(t *testing.T) *fixture {
			return newFixture(t, repository.NewMemoryRepository())
		},
		"sqlite": func(t *testing.T) *fixture {
			repo := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "menutree.db"), nil)
			require.NoError(t, repo.Initialize(context.Background()))
			t.Cleanup(func() { repo.Cleanup(context.Background()) })
			return newFixture(t, repo)
		},
	}
}

func newFixture(t *testing.T, repo repository.Repository) *fixture {
	t.Helper()
	f := &fixture{
		repo:   repo,
		engine: NewEngine(repo, testEngineConfig, nil),
		menus:  NewMenus(repo, testEngineConfig, nil),
	}
	menu, err := f.menus.Create(context.Background(), models.CreateMenuRequest{Name: "main"})
	require.NoError(t, err)
	f.menuID = menu.ID
	return f
}

// forEachStore runs fn once per store implementation
func forEachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, factory := range fixtures() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func (f *fixture) create(t *testing.T, name string, parent *models.MenuItem) *models.MenuItem {
	t.Helper()
	req := models.CreateMenuItemRequest{Name: name, MenuID: f.menuID}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	item, err := f.engine.Create(context.Background(), req)
	require.NoError(t, err, "creating %s", name)
	return item
}

func (f *fixture) reload(t *testing.T, item *models.MenuItem) *models.MenuItem {
	t.Helper()
	got, err := f.engine.FindOne(context.Background(), item.ID, false)
	require.NoError(t, err)
	return got
}

func (f *fixture) moveTo(t *testing.T, item, target *models.MenuItem, order *int) (*models.MenuItem, error) {
	t.Helper()
	req := models.MoveMenuItemRequest{TargetParentID: models.SetNull(), NewOrder: order}
	if target != nil {
		req.TargetParentID = models.SetID(target.ID)
	}
	return f.engine.Move(context.Background(), item.ID, req)
}

// snapshot reads every item of the menu, active or not
func (f *fixture) snapshot(t *testing.T) map[string]*models.MenuItem {
	t.Helper()
	ctx := context.Background()
	tx, err := f.repo.BeginTx(ctx, repository.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer tx.Rollback()

	items, err := tx.ListItems(ctx, repository.ItemFilter{MenuID: f.menuID})
	require.NoError(t, err)
	byID := make(map[string]*models.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID
}

// assertInvariants checks every structural invariant over the whole menu
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	items := f.snapshot(t)

	nameSeen := make(map[string]string)
	orders := make(map[string]string)
	paths := make(map[string]string)
	activeChildren := make(map[string]int)

	for _, item := range items {
		assert.Equal(t, mpath.SegmentCount(item.Path)-1, item.Depth, "depth of %s (%s)", item.Name, item.Path)

		parentKey := ""
		if item.ParentID != nil {
			parentKey = *item.ParentID
			parent, ok := items[*item.ParentID]
			if assert.True(t, ok, "parent of %s exists in the same menu", item.Name) {
				assert.True(t, mpath.IsStrictAncestorPathOf(parent.Path, item.Path), "%s under %s", item.Path, parent.Path)
				assert.Equal(t, parent.Path, mpath.Parent(item.Path))
				assert.Equal(t, parent.Depth+1, item.Depth)
				assert.NotEqual(t, item.ID, parent.ID)
			}
			if item.IsActive {
				activeChildren[*item.ParentID]++
			}
		} else {
			assert.Equal(t, 1, mpath.SegmentCount(item.Path), "root %s", item.Name)
		}

		nameKey := parentKey + "/" + item.Name
		if other, dup := nameSeen[nameKey]; dup {
			t.Errorf("duplicate sibling name %q (%s, %s)", item.Name, other, item.ID)
		}
		nameSeen[nameKey] = item.ID
		orderKey := fmt.Sprintf("%s/%d", parentKey, item.Order)
		if other, dup := orders[orderKey]; dup {
			t.Errorf("duplicate sibling order %d (%s, %s)", item.Order, other, item.ID)
		}
		orders[orderKey] = item.ID
		if other, dup := paths[item.Path]; dup {
			t.Errorf("duplicate path %s (%s, %s)", item.Path, other, item.ID)
		}
		paths[item.Path] = item.ID

		orderSegs, err := mpath.Parse(item.Path)
		if assert.NoError(t, err) {
			assert.Equal(t, item.Order, orderSegs[len(orderSegs)-1], "last path segment of %s is its order", item.Name)
		}
	}

	for _, item := range items {
		assert.Equal(t, activeChildren[item.ID] > 0, item.HasChildren, "hasChildren of %s", item.Name)
	}
}

func names(items []*models.MenuItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func intPtr(n int) *int {
	return &n
}

func boolPtr(b bool) *bool {
	return &b
}

func strPtr(s string) *string {
	return &s
}
