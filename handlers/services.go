package handlers

import (
	"context"

	"github.com/ammiranda/menutree/models"
)

// MenuItemService is the part of hierarchy.Engine the HTTP surface uses
type MenuItemService interface {
	Create(ctx context.Context, req models.CreateMenuItemRequest) (*models.MenuItem, error)
	FindAll(ctx context.Context, menuID string, includeChildren bool) ([]*models.MenuItem, error)
	FindRoots(ctx context.Context, menuID string) ([]*models.MenuItem, error)
	FindByDepth(ctx context.Context, menuID string, depth int) ([]*models.MenuItem, error)
	FindOne(ctx context.Context, id string, includeChildren bool) (*models.MenuItem, error)
	GetAncestors(ctx context.Context, id string) ([]*models.MenuItem, error)
	GetDescendants(ctx context.Context, id string) ([]*models.MenuItem, error)
	GetSiblings(ctx context.Context, id string) ([]*models.MenuItem, error)
	Update(ctx context.Context, id string, req models.UpdateMenuItemRequest) (*models.MenuItem, error)
	Move(ctx context.Context, id string, req models.MoveMenuItemRequest) (*models.MenuItem, error)
	RemoveSubtree(ctx context.Context, id string) (*models.RemoveResult, error)
}

// MenuService is the part of hierarchy.Menus the HTTP surface uses
type MenuService interface {
	Create(ctx context.Context, req models.CreateMenuRequest) (*models.Menu, error)
	FindAll(ctx context.Context, isActive *bool) ([]*models.Menu, error)
	FindOne(ctx context.Context, id string) (*models.Menu, error)
	Update(ctx context.Context, id string, req models.UpdateMenuRequest) (*models.Menu, error)
	Remove(ctx context.Context, id string) error
	ToggleActive(ctx context.Context, id string) (*models.Menu, error)
}
