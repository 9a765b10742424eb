package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate caches struct metadata across requests
var validate = validator.New()

// CreateMenuRequest represents the request body for creating a menu
type CreateMenuRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// UpdateMenuRequest represents the request body for updating a menu
type UpdateMenuRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// CreateMenuItemRequest represents the request body for creating a menu item
type CreateMenuItemRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=100"`
	MenuID   string  `json:"menuId" validate:"required,uuid"`
	ParentID *string `json:"parentId,omitempty" validate:"omitempty,uuid"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// UpdateMenuItemRequest represents the request body for updating a menu item.
// A ParentID change is carried out as a move.
type UpdateMenuItemRequest struct {
	Name     *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	ParentID OptionalID `json:"parentId,omitzero"`
	IsActive *bool      `json:"isActive,omitempty"`
}

// MaxOrder is the highest sibling order, the range of a 32-bit INTEGER
// column. Keep the max on MoveMenuItemRequest.NewOrder in step with it.
const MaxOrder = 1<<31 - 1

// MoveMenuItemRequest represents the request body for moving a menu item.
// An absent or null TargetParentID moves the item to the root level.
type MoveMenuItemRequest struct {
	TargetParentID OptionalID `json:"targetParentId,omitzero"`
	NewOrder       *int       `json:"newOrder,omitempty" validate:"omitempty,min=0,max=2147483647"`
}

// Validate validates the create menu request
func (r *CreateMenuRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update menu request
func (r *UpdateMenuRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the create menu item request
func (r *CreateMenuItemRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update menu item request
func (r *UpdateMenuItemRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateOptionalID("parentId", r.ParentID)
}

// Validate validates the move menu item request
func (r *MoveMenuItemRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateOptionalID("targetParentId", r.TargetParentID)
}

func validateOptionalID(field string, o OptionalID) error {
	if o.Value == nil {
		return nil
	}
	if _, err := uuid.Parse(*o.Value); err != nil {
		return fmt.Errorf("%s must be a valid UUID: %w", field, err)
	}
	return nil
}
