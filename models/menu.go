package models

import "time"

// Menu is an independently scoped tree root. Menu items never move between
// menus.
type Menu struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MenuItem represents a single node in a menu tree.
//
// Order, Depth, Path and HasChildren are derived fields owned by the
// hierarchy engine. Children and Parent are only filled in for responses
// that ask for them.
type MenuItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MenuID      string    `json:"menuId"`
	ParentID    *string   `json:"parentId"`
	Order       int       `json:"order"`
	Depth       int       `json:"depth"`
	Path        string    `json:"path"`
	HasChildren bool      `json:"hasChildren"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Children []*MenuItem `json:"children,omitempty"`
	Parent   *MenuItem   `json:"parent,omitempty"`
}

// IsRoot reports whether the item sits at the top level of its menu
func (m *MenuItem) IsRoot() bool {
	return m.ParentID == nil
}

// Clone returns a copy of the stored fields without Children or Parent.
func (m *MenuItem) Clone() *MenuItem {
	c := *m
	if m.ParentID != nil {
		parentID := *m.ParentID
		c.ParentID = &parentID
	}
	c.Children = nil
	c.Parent = nil
	return &c
}

// AddChild adds a child item to the current item
func (m *MenuItem) AddChild(child *MenuItem) {
	m.Children = append(m.Children, child)
}

// RemoveResult describes a cascading delete.
type RemoveResult struct {
	ID      string `json:"id"`
	MenuID  string `json:"menuId"`
	Deleted int    `json:"deleted"`
}

// SameParent reports whether two optional parent references point at the
// same item (both nil means both are roots).
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
