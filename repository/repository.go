package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ammiranda/menutree/models"
)

// Common errors
var (
	// ErrNotFound is returned when a referenced menu or menu item does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a sibling name, sibling order or menu name is taken
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is returned when the input parameters are invalid
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTransactionAborted is returned when the store aborted the transaction
	// because of a concurrent writer, a lock timeout or a deadline. It is safe to retry.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrStoreUnavailable is returned when the store cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TxOptions configures a transaction.
type TxOptions struct {
	// ReadOnly transactions may not write and may run concurrently with each other.
	ReadOnly bool
}

// ScanOptions narrows a path prefix scan.
type ScanOptions struct {
	// ActiveOnly drops inactive items
	ActiveOnly bool
	// ExcludeRoot drops the item whose path equals the prefix
	ExcludeRoot bool
	// ForUpdate locks the returned rows until the transaction ends
	ForUpdate bool
}

// ItemFilter selects menu items within one menu. Zero fields do not filter.
type ItemFilter struct {
	MenuID string
	// ByParent restricts the result to children of ParentID (nil means roots)
	ByParent   bool
	ParentID   *string
	Depth      *int
	ActiveOnly bool
	ExcludeID  string
}

// ItemPatch lists the columns UpdateItem writes. Nil fields are left unchanged.
type ItemPatch struct {
	Name        *string
	IsActive    *bool
	HasChildren *bool
	// SetParent writes ParentID, which may be nil to make the item a root
	SetParent bool
	ParentID  *string
	Order     *int
	Depth     *int
	Path      *string
	// UpdatedAt is written when non-zero
	UpdatedAt time.Time
}

// IsEmpty reports whether the patch would write nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.IsActive == nil && p.HasChildren == nil && !p.SetParent &&
		p.Order == nil && p.Depth == nil && p.Path == nil && p.UpdatedAt.IsZero()
}

// MenuPatch lists the columns UpdateMenu writes. Nil fields are left unchanged.
type MenuPatch struct {
	Name      *string
	IsActive  *bool
	UpdatedAt time.Time
}

// Repository defines the interface for data access operations.
// All reads and writes happen inside a transaction obtained from BeginTx.
type Repository interface {
	// Initialize performs any necessary setup for the repository.
	// This may include establishing database connections and running migrations.
	// Returns an error if initialization fails.
	Initialize(ctx context.Context) error

	// Cleanup performs any necessary cleanup operations for the repository.
	// Returns an error if cleanup fails.
	Cleanup(ctx context.Context) error

	// BeginTx starts a transaction.
	// Parameters:
	//   - ctx: Context for the transaction; cancelling it aborts the transaction
	//   - opts: Transaction options
	// Returns:
	//   - The open transaction, which must be committed or rolled back
	//   - ErrTransactionAborted if the context is already done
	//   - ErrStoreUnavailable if the store cannot be reached
	BeginTx(ctx context.Context, opts TxOptions) (Tx, error)
}

// Tx is an open transaction against the record store.
//
// Get methods return ErrNotFound for unknown ids. Find methods return a nil
// record and a nil error when nothing matches.
type Tx interface {
	// Commit makes every write of the transaction visible atomically.
	// Returns ErrTransactionAborted if a concurrent writer won.
	Commit() error
	// Rollback discards the transaction. Calling it after Commit is a no-op.
	Rollback() error

	// InsertMenu persists a new menu.
	// Returns ErrConflict if the name is taken.
	InsertMenu(ctx context.Context, menu *models.Menu) error
	// GetMenu retrieves a menu by its ID.
	GetMenu(ctx context.Context, id string) (*models.Menu, error)
	// FindMenuByName looks up a menu by its unique name.
	FindMenuByName(ctx context.Context, name string) (*models.Menu, error)
	// ListMenus returns menus newest first, optionally filtered by isActive.
	ListMenus(ctx context.Context, isActive *bool) ([]*models.Menu, error)
	// UpdateMenu writes the patch and returns the updated menu.
	UpdateMenu(ctx context.Context, id string, patch MenuPatch) (*models.Menu, error)
	// DeleteMenu deletes a menu by its ID.
	DeleteMenu(ctx context.Context, id string) error
	// CountMenuItems counts every item of a menu, active or not.
	CountMenuItems(ctx context.Context, menuID string) (int, error)

	// GetItem retrieves a menu item by its ID.
	GetItem(ctx context.Context, id string) (*models.MenuItem, error)
	// FindBySiblingKey finds the item named name under (menuID, parentID),
	// active or not. A nil parentID means the root level.
	FindBySiblingKey(ctx context.Context, menuID string, parentID *string, name string) (*models.MenuItem, error)
	// FindBySiblingOrder finds the item holding order under (menuID, parentID).
	FindBySiblingOrder(ctx context.Context, menuID string, parentID *string, order int) (*models.MenuItem, error)
	// MaxOrder returns the highest sibling order under (menuID, parentID).
	// ok is false when there are no siblings.
	MaxOrder(ctx context.Context, menuID string, parentID *string) (max int, ok bool, err error)
	// FindByPath finds the item of menuID with exactly this path.
	FindByPath(ctx context.Context, menuID, path string) (*models.MenuItem, error)
	// FindByPathPrefix returns the items of menuID whose path equals prefix
	// or extends it by at least one segment, ordered by path.
	FindByPathPrefix(ctx context.Context, menuID, prefix string, opts ScanOptions) ([]*models.MenuItem, error)
	// ListItems returns the items matching filter, ordered by order then path.
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.MenuItem, error)
	// CountChildren counts the direct children of parentID.
	CountChildren(ctx context.Context, parentID string, activeOnly bool) (int, error)
	// InsertItem persists a new menu item and returns the stored record.
	// Returns ErrConflict if the sibling name or order is taken.
	InsertItem(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error)
	// UpdateItem writes the patch and returns the updated item.
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (*models.MenuItem, error)
	// DeleteItem deletes a single menu item by its ID.
	DeleteItem(ctx context.Context, id string) error
}
