package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/mpath"
)

// MemoryRepository implements Repository in process memory. It is used by
// tests and by the "memory" store driver, which config refuses in production.
//
// A write transaction holds the store lock until it ends and works on a copy
// of the data that replaces the live data on commit, so a rolled back
// transaction leaves nothing behind. Every write transaction therefore costs
// O(N) in the number of stored items, and writers are fully serialized.
// Read-only transactions share a read lock.
type MemoryRepository struct {
	mu     sync.RWMutex
	menus  map[string]*models.Menu
	items  map[string]*models.MenuItem
	faults map[string]*fault
	fmu    sync.Mutex
}

type fault struct {
	skip int
	err  error
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		menus:  make(map[string]*models.Menu),
		items:  make(map[string]*models.MenuItem),
		faults: make(map[string]*fault),
	}
}

// Initialize performs any necessary setup
func (m *MemoryRepository) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops all data
func (m *MemoryRepository) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus = make(map[string]*models.Menu)
	m.items = make(map[string]*models.MenuItem)
	return nil
}

// InjectFault makes the named operation ("BeginTx", "Commit", or any Tx
// method name) succeed skip more times and then fail once with err.
func (m *MemoryRepository) InjectFault(op string, skip int, err error) {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	m.faults[op] = &fault{skip: skip, err: err}
}

func (m *MemoryRepository) checkFault(op string) error {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(m.faults, op)
	return f.err
}

// BeginTx starts a transaction
func (m *MemoryRepository) BeginTx(ctx context.Context, opts TxOptions) (Tx, error) {
	if err := classifyContext(ctx.Err()); err != nil {
		return nil, err
	}
	if err := m.checkFault("BeginTx"); err != nil {
		return nil, err
	}

	if opts.ReadOnly {
		m.mu.RLock()
		return &memoryTx{repo: m, readOnly: true, menus: m.menus, items: m.items}, nil
	}

	m.mu.Lock()
	tx := &memoryTx{
		repo:  m,
		menus: make(map[string]*models.Menu, len(m.menus)),
		items: make(map[string]*models.MenuItem, len(m.items)),
	}
	for id, menu := range m.menus {
		c := *menu
		tx.menus[id] = &c
	}
	for id, item := range m.items {
		tx.items[id] = item.Clone()
	}
	return tx, nil
}

type memoryTx struct {
	repo     *MemoryRepository
	readOnly bool
	done     bool
	menus    map[string]*models.Menu
	items    map[string]*models.MenuItem
}

func (t *memoryTx) release() {
	t.done = true
	if t.readOnly {
		t.repo.mu.RUnlock()
	} else {
		t.repo.mu.Unlock()
	}
}

// Commit publishes the transaction's copy of the data
func (t *memoryTx) Commit() error {
	if t.done {
		return fmt.Errorf("error committing transaction: %w", ErrTransactionAborted)
	}
	if err := t.repo.checkFault("Commit"); err != nil {
		t.release()
		return err
	}
	if !t.readOnly {
		t.repo.menus = t.menus
		t.repo.items = t.items
	}
	t.release()
	return nil
}

// Rollback discards the transaction's copy of the data
func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

// begin runs the checks every operation shares
func (t *memoryTx) begin(ctx context.Context, op string, write bool) error {
	if t.done {
		return fmt.Errorf("%s: transaction already closed: %w", op, ErrInvalidArgument)
	}
	if write && t.readOnly {
		return fmt.Errorf("%s: write in read-only transaction: %w", op, ErrInvalidArgument)
	}
	if err := classifyContext(ctx.Err()); err != nil {
		return err
	}
	return t.repo.checkFault(op)
}

func (t *memoryTx) InsertMenu(ctx context.Context, menu *models.Menu) error {
	if err := t.begin(ctx, "InsertMenu", true); err != nil {
		return err
	}
	if _, ok := t.menus[menu.ID]; ok {
		return fmt.Errorf("menu %s already exists: %w", menu.ID, ErrConflict)
	}
	for _, other := range t.menus {
		if other.Name == menu.Name {
			return fmt.Errorf("menu name %q is taken: %w", menu.Name, ErrConflict)
		}
	}
	c := *menu
	t.menus[menu.ID] = &c
	return nil
}

func (t *memoryTx) GetMenu(ctx context.Context, id string) (*models.Menu, error) {
	if err := t.begin(ctx, "GetMenu", false); err != nil {
		return nil, err
	}
	menu, ok := t.menus[id]
	if !ok {
		return nil, fmt.Errorf("menu %s: %w", id, ErrNotFound)
	}
	c := *menu
	return &c, nil
}

func (t *memoryTx) FindMenuByName(ctx context.Context, name string) (*models.Menu, error) {
	if err := t.begin(ctx, "FindMenuByName", false); err != nil {
		return nil, err
	}
	for _, menu := range t.menus {
		if menu.Name == name {
			c := *menu
			return &c, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) ListMenus(ctx context.Context, isActive *bool) ([]*models.Menu, error) {
	if err := t.begin(ctx, "ListMenus", false); err != nil {
		return nil, err
	}
	result := make([]*models.Menu, 0, len(t.menus))
	for _, menu := range t.menus {
		if isActive != nil && menu.IsActive != *isActive {
			continue
		}
		c := *menu
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *memoryTx) UpdateMenu(ctx context.Context, id string, patch MenuPatch) (*models.Menu, error) {
	if err := t.begin(ctx, "UpdateMenu", true); err != nil {
		return nil, err
	}
	menu, ok := t.menus[id]
	if !ok {
		return nil, fmt.Errorf("menu %s: %w", id, ErrNotFound)
	}
	if patch.Name != nil {
		for _, other := range t.menus {
			if other.ID != id && other.Name == *patch.Name {
				return nil, fmt.Errorf("menu name %q is taken: %w", *patch.Name, ErrConflict)
			}
		}
		menu.Name = *patch.Name
	}
	if patch.IsActive != nil {
		menu.IsActive = *patch.IsActive
	}
	if !patch.UpdatedAt.IsZero() {
		menu.UpdatedAt = patch.UpdatedAt
	}
	c := *menu
	return &c, nil
}

func (t *memoryTx) DeleteMenu(ctx context.Context, id string) error {
	if err := t.begin(ctx, "DeleteMenu", true); err != nil {
		return err
	}
	if _, ok := t.menus[id]; !ok {
		return fmt.Errorf("menu %s: %w", id, ErrNotFound)
	}
	for _, item := range t.items {
		if item.MenuID == id {
			return fmt.Errorf("menu %s still has items: %w", id, ErrConflict)
		}
	}
	delete(t.menus, id)
	return nil
}

func (t *memoryTx) CountMenuItems(ctx context.Context, menuID string) (int, error) {
	if err := t.begin(ctx, "CountMenuItems", false); err != nil {
		return 0, err
	}
	n := 0
	for _, item := range t.items {
		if item.MenuID == menuID {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	if err := t.begin(ctx, "GetItem", false); err != nil {
		return nil, err
	}
	item, ok := t.items[id]
	if !ok {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return item.Clone(), nil
}

// siblings yields the items sharing (menuID, parentID)
func (t *memoryTx) siblings(menuID string, parentID *string) []*models.MenuItem {
	var result []*models.MenuItem
	for _, item := range t.items {
		if item.MenuID == menuID && models.SameParent(item.ParentID, parentID) {
			result = append(result, item)
		}
	}
	return result
}

func (t *memoryTx) FindBySiblingKey(ctx context.Context, menuID string, parentID *string, name string) (*models.MenuItem, error) {
	if err := t.begin(ctx, "FindBySiblingKey", false); err != nil {
		return nil, err
	}
	for _, item := range t.siblings(menuID, parentID) {
		if item.Name == name {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memoryTx) FindBySiblingOrder(ctx context.Context, menuID string, parentID *string, order int) (*models.MenuItem, error) {
	if err := t.begin(ctx, "FindBySiblingOrder", false); err != nil {
		return nil, err
	}
	for _, item := range t.siblings(menuID, parentID) {
		if item.Order == order {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memoryTx) MaxOrder(ctx context.Context, menuID string, parentID *string) (int, bool, error) {
	if err := t.begin(ctx, "MaxOrder", false); err != nil {
		return 0, false, err
	}
	max, ok := 0, false
	for _, item := range t.siblings(menuID, parentID) {
		if !ok || item.Order > max {
			max, ok = item.Order, true
		}
	}
	return max, ok, nil
}

func (t *memoryTx) FindByPath(ctx context.Context, menuID, path string) (*models.MenuItem, error) {
	if err := t.begin(ctx, "FindByPath", false); err != nil {
		return nil, err
	}
	for _, item := range t.items {
		if item.MenuID == menuID && item.Path == path {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memoryTx) FindByPathPrefix(ctx context.Context, menuID, prefix string, opts ScanOptions) ([]*models.MenuItem, error) {
	if err := t.begin(ctx, "FindByPathPrefix", false); err != nil {
		return nil, err
	}
	var result []*models.MenuItem
	for _, item := range t.items {
		if item.MenuID != menuID || !mpath.IsAncestorPathOf(prefix, item.Path) {
			continue
		}
		if opts.ExcludeRoot && item.Path == prefix {
			continue
		}
		if opts.ActiveOnly && !item.IsActive {
			continue
		}
		result = append(result, item.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.Compare(result[i].Path, result[j].Path) < 0
	})
	return result, nil
}

func (t *memoryTx) ListItems(ctx context.Context, filter ItemFilter) ([]*models.MenuItem, error) {
	if err := t.begin(ctx, "ListItems", false); err != nil {
		return nil, err
	}
	var result []*models.MenuItem
	for _, item := range t.items {
		if filter.MenuID != "" && item.MenuID != filter.MenuID {
			continue
		}
		if filter.ByParent && !models.SameParent(item.ParentID, filter.ParentID) {
			continue
		}
		if filter.Depth != nil && item.Depth != *filter.Depth {
			continue
		}
		if filter.ActiveOnly && !item.IsActive {
			continue
		}
		if filter.ExcludeID != "" && item.ID == filter.ExcludeID {
			continue
		}
		result = append(result, item.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Path < result[j].Path
	})
	return result, nil
}

func (t *memoryTx) CountChildren(ctx context.Context, parentID string, activeOnly bool) (int, error) {
	if err := t.begin(ctx, "CountChildren", false); err != nil {
		return 0, err
	}
	n := 0
	for _, item := range t.items {
		if item.ParentID == nil || *item.ParentID != parentID {
			continue
		}
		if activeOnly && !item.IsActive {
			continue
		}
		n++
	}
	return n, nil
}

// checkUnique enforces the sibling name and sibling order constraints
func (t *memoryTx) checkUnique(candidate *models.MenuItem) error {
	for _, other := range t.siblings(candidate.MenuID, candidate.ParentID) {
		if other.ID == candidate.ID {
			continue
		}
		if other.Name == candidate.Name {
			return fmt.Errorf("sibling name %q is taken: %w", candidate.Name, ErrConflict)
		}
		if other.Order == candidate.Order {
			return fmt.Errorf("sibling order %d is taken: %w", candidate.Order, ErrConflict)
		}
	}
	return nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error) {
	if err := t.begin(ctx, "InsertItem", true); err != nil {
		return nil, err
	}
	if _, ok := t.items[item.ID]; ok {
		return nil, fmt.Errorf("menu item %s already exists: %w", item.ID, ErrConflict)
	}
	if _, ok := t.menus[item.MenuID]; !ok {
		return nil, fmt.Errorf("menu %s: %w", item.MenuID, ErrNotFound)
	}
	if item.ParentID != nil {
		if _, ok := t.items[*item.ParentID]; !ok {
			return nil, fmt.Errorf("parent %s: %w", *item.ParentID, ErrNotFound)
		}
	}
	if err := t.checkUnique(item); err != nil {
		return nil, err
	}
	stored := item.Clone()
	t.items[item.ID] = stored
	return stored.Clone(), nil
}

func (t *memoryTx) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*models.MenuItem, error) {
	if err := t.begin(ctx, "UpdateItem", true); err != nil {
		return nil, err
	}
	current, ok := t.items[id]
	if !ok {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	next := current.Clone()
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	if patch.HasChildren != nil {
		next.HasChildren = *patch.HasChildren
	}
	if patch.SetParent {
		next.ParentID = nil
		if patch.ParentID != nil {
			if _, ok := t.items[*patch.ParentID]; !ok {
				return nil, fmt.Errorf("parent %s: %w", *patch.ParentID, ErrNotFound)
			}
			parentID := *patch.ParentID
			next.ParentID = &parentID
		}
	}
	if patch.Order != nil {
		next.Order = *patch.Order
	}
	if patch.Depth != nil {
		next.Depth = *patch.Depth
	}
	if patch.Path != nil {
		next.Path = *patch.Path
	}
	if !patch.UpdatedAt.IsZero() {
		next.UpdatedAt = patch.UpdatedAt
	}
	if err := t.checkUnique(next); err != nil {
		return nil, err
	}
	t.items[id] = next
	return next.Clone(), nil
}

func (t *memoryTx) DeleteItem(ctx context.Context, id string) error {
	if err := t.begin(ctx, "DeleteItem", true); err != nil {
		return err
	}
	if _, ok := t.items[id]; !ok {
		return fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	for _, item := range t.items {
		if item.ParentID != nil && *item.ParentID == id {
			return fmt.Errorf("menu item %s still has children: %w", id, ErrConflict)
		}
	}
	delete(t.items, id)
	return nil
}
