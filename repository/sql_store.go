package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ammiranda/menutree/models"
)

// dialect captures what differs between the SQL stores. Queries are written
// with ? placeholders and rebound per dialect.
type dialect struct {
	name string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// forUpdate is appended to locking scans; empty where the store locks the
	// whole database for a write transaction
	forUpdate string
	classify  func(error) error
	txOptions func(TxOptions) *sql.TxOptions
}

func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore is the transaction factory shared by the Postgres and SQLite repositories
type sqlStore struct {
	db      *sql.DB
	dialect *dialect
}

// BeginTx starts a transaction
func (s *sqlStore) BeginTx(ctx context.Context, opts TxOptions) (Tx, error) {
	if s.db == nil {
		return nil, fmt.Errorf("error beginning transaction: repository not initialized: %w", ErrStoreUnavailable)
	}
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", s.dialect.classify(err))
	}
	return &sqlTx{tx: tx, d: s.dialect}, nil
}

type sqlTx struct {
	tx *sql.Tx
	d  *dialect
}

const itemColumns = "id, menu_id, parent_id, name, sort_order, depth, path, has_children, is_active, created_at, updated_at"

const menuColumns = "id, name, is_active, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.MenuItem, error) {
	var item models.MenuItem
	var parentID sql.NullString
	err := row.Scan(
		&item.ID, &item.MenuID, &parentID, &item.Name, &item.Order, &item.Depth,
		&item.Path, &item.HasChildren, &item.IsActive, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	return &item, nil
}

func scanMenu(row rowScanner) (*models.Menu, error) {
	var menu models.Menu
	if err := row.Scan(&menu.ID, &menu.Name, &menu.IsActive, &menu.CreatedAt, &menu.UpdatedAt); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", t.d.classify(err))
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("error rolling back transaction: %w", t.d.classify(err))
	}
	return nil
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) queryItems(ctx context.Context, query string, args ...any) ([]*models.MenuItem, error) {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying menu items: %w", t.d.classify(err))
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning menu item: %w", t.d.classify(err))
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menu items: %w", t.d.classify(err))
	}
	return items, nil
}

// findItem runs a single-row item query; no row yields (nil, nil)
func (t *sqlTx) findItem(ctx context.Context, query string, args ...any) (*models.MenuItem, error) {
	item, err := scanItem(t.queryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting menu item: %w", t.d.classify(err))
	}
	return item, nil
}

// parentClause matches (menu_id, parent_id), treating a nil parent as the root level
func parentClause(parentID *string) (string, []any) {
	if parentID == nil {
		return "parent_id IS NULL", nil
	}
	return "parent_id = ?", []any{*parentID}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (t *sqlTx) InsertMenu(ctx context.Context, menu *models.Menu) error {
	_, err := t.exec(ctx,
		"INSERT INTO menus ("+menuColumns+") VALUES (?, ?, ?, ?, ?)",
		menu.ID, menu.Name, menu.IsActive, menu.CreatedAt, menu.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating menu: %w", t.d.classify(err))
	}
	return nil
}

func (t *sqlTx) GetMenu(ctx context.Context, id string) (*models.Menu, error) {
	menu, err := scanMenu(t.queryRow(ctx, "SELECT "+menuColumns+" FROM menus WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("menu %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting menu: %w", t.d.classify(err))
	}
	return menu, nil
}

func (t *sqlTx) FindMenuByName(ctx context.Context, name string) (*models.Menu, error) {
	menu, err := scanMenu(t.queryRow(ctx, "SELECT "+menuColumns+" FROM menus WHERE name = ?", name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting menu: %w", t.d.classify(err))
	}
	return menu, nil
}

func (t *sqlTx) ListMenus(ctx context.Context, isActive *bool) ([]*models.Menu, error) {
	query := "SELECT " + menuColumns + " FROM menus"
	var args []any
	if isActive != nil {
		query += " WHERE is_active = ?"
		args = append(args, *isActive)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing menus: %w", t.d.classify(err))
	}
	defer rows.Close()

	menus := make([]*models.Menu, 0)
	for rows.Next() {
		menu, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning menu: %w", t.d.classify(err))
		}
		menus = append(menus, menu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating menus: %w", t.d.classify(err))
	}
	return menus, nil
}

func (t *sqlTx) UpdateMenu(ctx context.Context, id string, patch MenuPatch) (*models.Menu, error) {
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}
	if !patch.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = ?")
		args = append(args, patch.UpdatedAt)
	}
	if len(sets) > 0 {
		args = append(args, id)
		result, err := t.exec(ctx, "UPDATE menus SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("error updating menu: %w", t.d.classify(err))
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("error getting rows affected: %w", t.d.classify(err))
		}
		if rows == 0 {
			return nil, fmt.Errorf("menu %s: %w", id, ErrNotFound)
		}
	}
	return t.GetMenu(ctx, id)
}

func (t *sqlTx) DeleteMenu(ctx context.Context, id string) error {
	result, err := t.exec(ctx, "DELETE FROM menus WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting menu: %w", t.d.classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", t.d.classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("menu %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *sqlTx) CountMenuItems(ctx context.Context, menuID string) (int, error) {
	var n int
	if err := t.queryRow(ctx, "SELECT COUNT(*) FROM menu_items WHERE menu_id = ?", menuID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting menu items: %w", t.d.classify(err))
	}
	return n, nil
}

func (t *sqlTx) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := t.findItem(ctx, "SELECT "+itemColumns+" FROM menu_items WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return item, nil
}

func (t *sqlTx) FindBySiblingKey(ctx context.Context, menuID string, parentID *string, name string) (*models.MenuItem, error) {
	clause, args := parentClause(parentID)
	args = append([]any{menuID}, args...)
	args = append(args, name)
	return t.findItem(ctx,
		"SELECT "+itemColumns+" FROM menu_items WHERE menu_id = ? AND "+clause+" AND name = ?",
		args...,
	)
}

func (t *sqlTx) FindBySiblingOrder(ctx context.Context, menuID string, parentID *string, order int) (*models.MenuItem, error) {
	clause, args := parentClause(parentID)
	args = append([]any{menuID}, args...)
	args = append(args, order)
	return t.findItem(ctx,
		"SELECT "+itemColumns+" FROM menu_items WHERE menu_id = ? AND "+clause+" AND sort_order = ?",
		args...,
	)
}

func (t *sqlTx) MaxOrder(ctx context.Context, menuID string, parentID *string) (int, bool, error) {
	clause, args := parentClause(parentID)
	args = append([]any{menuID}, args...)
	var max sql.NullInt64
	err := t.queryRow(ctx,
		"SELECT MAX(sort_order) FROM menu_items WHERE menu_id = ? AND "+clause,
		args...,
	).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("error getting max order: %w", t.d.classify(err))
	}
	return int(max.Int64), max.Valid, nil
}

func (t *sqlTx) FindByPath(ctx context.Context, menuID, path string) (*models.MenuItem, error) {
	return t.findItem(ctx,
		"SELECT "+itemColumns+" FROM menu_items WHERE menu_id = ? AND path = ?",
		menuID, path,
	)
}

// FindByPathPrefix matches path = prefix or path LIKE prefix || '.%'. Paths
// hold only digits and separators, so the prefix never needs LIKE escaping.
func (t *sqlTx) FindByPathPrefix(ctx context.Context, menuID, prefix string, opts ScanOptions) ([]*models.MenuItem, error) {
	query := "SELECT " + itemColumns + " FROM menu_items WHERE menu_id = ?"
	args := []any{menuID}
	if opts.ExcludeRoot {
		query += " AND path LIKE ?"
		args = append(args, prefix+".%")
	} else {
		query += " AND (path = ? OR path LIKE ?)"
		args = append(args, prefix, prefix+".%")
	}
	if opts.ActiveOnly {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY path"
	if opts.ForUpdate {
		query += t.d.forUpdate
	}
	return t.queryItems(ctx, query, args...)
}

func (t *sqlTx) ListItems(ctx context.Context, filter ItemFilter) ([]*models.MenuItem, error) {
	var where []string
	var args []any
	if filter.MenuID != "" {
		where = append(where, "menu_id = ?")
		args = append(args, filter.MenuID)
	}
	if filter.ByParent {
		clause, parentArgs := parentClause(filter.ParentID)
		where = append(where, clause)
		args = append(args, parentArgs...)
	}
	if filter.Depth != nil {
		where = append(where, "depth = ?")
		args = append(args, *filter.Depth)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if filter.ExcludeID != "" {
		where = append(where, "id <> ?")
		args = append(args, filter.ExcludeID)
	}

	query := "SELECT " + itemColumns + " FROM menu_items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sort_order, path"
	return t.queryItems(ctx, query, args...)
}

func (t *sqlTx) CountChildren(ctx context.Context, parentID string, activeOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM menu_items WHERE parent_id = ?"
	args := []any{parentID}
	if activeOnly {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	var n int
	if err := t.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting children: %w", t.d.classify(err))
	}
	return n, nil
}

func (t *sqlTx) InsertItem(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error) {
	_, err := t.exec(ctx,
		"INSERT INTO menu_items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.MenuID, nullString(item.ParentID), item.Name, item.Order, item.Depth,
		item.Path, item.HasChildren, item.IsActive, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating menu item: %w", t.d.classify(err))
	}
	return t.GetItem(ctx, item.ID)
}

func (t *sqlTx) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*models.MenuItem, error) {
	if patch.IsEmpty() {
		return t.GetItem(ctx, id)
	}

	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}
	if patch.HasChildren != nil {
		sets = append(sets, "has_children = ?")
		args = append(args, *patch.HasChildren)
	}
	if patch.SetParent {
		sets = append(sets, "parent_id = ?")
		args = append(args, nullString(patch.ParentID))
	}
	if patch.Order != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *patch.Order)
	}
	if patch.Depth != nil {
		sets = append(sets, "depth = ?")
		args = append(args, *patch.Depth)
	}
	if patch.Path != nil {
		sets = append(sets, "path = ?")
		args = append(args, *patch.Path)
	}
	if !patch.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = ?")
		args = append(args, patch.UpdatedAt)
	}
	args = append(args, id)

	result, err := t.exec(ctx, "UPDATE menu_items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("error updating menu item: %w", t.d.classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("error getting rows affected: %w", t.d.classify(err))
	}
	if rows == 0 {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return t.GetItem(ctx, id)
}

func (t *sqlTx) DeleteItem(ctx context.Context, id string) error {
	result, err := t.exec(ctx, "DELETE FROM menu_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting menu item: %w", t.d.classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", t.d.classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return nil
}
