package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/repository"
	"github.com/google/uuid"
)

// Menus manages the tree roots. A menu can only be removed once it has no items.
type Menus struct {
	tx     *transactor
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewMenus creates a Menus service. A nil logger discards logs.
func NewMenus(repo repository.Repository, cfg config.EngineConfig, logger *slog.Logger) *Menus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "menus")
	return &Menus{
		tx:     &transactor{repo: repo, cfg: cfg, logger: logger},
		logger: logger,
		now:    timestamp,
		newID:  uuid.NewString,
	}
}

// Create adds a menu with a globally unique name
func (m *Menus) Create(ctx context.Context, req models.CreateMenuRequest) (*models.Menu, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument("invalid menu: %v", err)
	}

	var menu *models.Menu
	err := m.tx.withTx(ctx, "createMenu", writeTx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.FindMenuByName(ctx, req.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict("menu %q already exists", req.Name)
		}

		now := m.now()
		menu = &models.Menu{ID: m.newID(), Name: req.Name, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if req.IsActive != nil {
			menu.IsActive = *req.IsActive
		}
		return tx.InsertMenu(ctx, menu)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating menu: %w", err)
	}

	m.logger.DebugContext(ctx, "menu created", "id", menu.ID, "name", menu.Name)
	return menu, nil
}

// FindAll lists menus newest first. A nil isActive lists every menu.
func (m *Menus) FindAll(ctx context.Context, isActive *bool) ([]*models.Menu, error) {
	var menus []*models.Menu
	err := m.tx.withTx(ctx, "findMenus", readTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		menus, err = tx.ListMenus(ctx, isActive)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error listing menus: %w", err)
	}
	if menus == nil {
		menus = []*models.Menu{}
	}
	return menus, nil
}

// FindOne returns a menu by id
func (m *Menus) FindOne(ctx context.Context, id string) (*models.Menu, error) {
	var menu *models.Menu
	err := m.tx.withTx(ctx, "findMenu", readTx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		menu, err = tx.GetMenu(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error getting menu: %w", err)
	}
	return menu, nil
}

// Update renames a menu or sets its active flag
func (m *Menus) Update(ctx context.Context, id string, req models.UpdateMenuRequest) (*models.Menu, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidArgument("invalid menu update: %v", err)
	}

	var menu *models.Menu
	err := m.tx.withTx(ctx, "updateMenu", writeTx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetMenu(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != current.Name {
			existing, err := tx.FindMenuByName(ctx, *req.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				return conflict("menu %q already exists", *req.Name)
			}
		}
		menu, err = tx.UpdateMenu(ctx, id, repository.MenuPatch{Name: req.Name, IsActive: req.IsActive, UpdatedAt: m.now()})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error updating menu: %w", err)
	}
	return menu, nil
}

// Remove deletes an empty menu. It fails with ErrConflict while the menu
// still has items, active or not.
func (m *Menus) Remove(ctx context.Context, id string) error {
	err := m.tx.withTx(ctx, "removeMenu", writeTx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetMenu(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountMenuItems(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict("menu %s still has %d items", id, n)
		}
		return tx.DeleteMenu(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("error removing menu: %w", err)
	}

	m.logger.DebugContext(ctx, "menu removed", "id", id)
	return nil
}

// ToggleActive flips the menu's active flag
func (m *Menus) ToggleActive(ctx context.Context, id string) (*models.Menu, error) {
	var menu *models.Menu
	err := m.tx.withTx(ctx, "toggleMenu", writeTx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetMenu(ctx, id)
		if err != nil {
			return err
		}
		active := !current.IsActive
		menu, err = tx.UpdateMenu(ctx, id, repository.MenuPatch{IsActive: &active, UpdatedAt: m.now()})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error toggling menu: %w", err)
	}
	return menu, nil
}
