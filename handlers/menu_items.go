package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammiranda/menutree/models"
	"github.com/gin-gonic/gin"
)

// MenuItemHandler handles menu item HTTP requests
type MenuItemHandler struct {
	items   MenuItemService
	queries *Queries
	logger  *slog.Logger
}

// NewMenuItemHandler creates a new MenuItemHandler instance
func NewMenuItemHandler(items MenuItemService, queries *Queries, logger *slog.Logger) *MenuItemHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MenuItemHandler{items: items, queries: queries, logger: logger}
}

// Register mounts the menu item routes on the /api group. Menu-scoped
// listings live under /menus/:id/items.
func (h *MenuItemHandler) Register(api *gin.RouterGroup) {
	api.GET("/menus/:id/items", h.FindAll)
	api.GET("/menus/:id/items/root", h.FindRoots)
	api.GET("/menus/:id/items/depth/:depth", h.FindByDepth)

	group := api.Group("/menu-items")
	group.POST("", h.Create)
	group.GET("/:id", h.FindOne)
	group.GET("/:id/ancestors", h.GetAncestors)
	group.GET("/:id/descendants", h.GetDescendants)
	group.GET("/:id/siblings", h.GetSiblings)
	group.PATCH("/:id", h.Update)
	group.PATCH("/:id/move", h.Move)
	group.DELETE("/:id", h.Remove)
}

// Create creates a new menu item
func (h *MenuItemHandler) Create(c *gin.Context) {
	var req models.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	item, err := h.items.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidate(c, item.MenuID)
	c.JSON(http.StatusCreated, item)
}

// FindAll returns a menu's active items, ?includeChildren=true nests children
func (h *MenuItemHandler) FindAll(c *gin.Context) {
	body, err := h.queries.Items(c.Request.Context(), c.Param("id"), c.Query("includeChildren") == "true")
	h.writeJSON(c, body, err)
}

// FindRoots returns a menu's active roots with their children
func (h *MenuItemHandler) FindRoots(c *gin.Context) {
	body, err := h.queries.Roots(c.Request.Context(), c.Param("id"))
	h.writeJSON(c, body, err)
}

// FindByDepth returns a menu's active items at one depth
func (h *MenuItemHandler) FindByDepth(c *gin.Context) {
	depth, err := strconv.Atoi(c.Param("depth"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "depth must be an integer"})
		return
	}
	body, err := h.queries.ByDepth(c.Request.Context(), c.Param("id"), depth)
	h.writeJSON(c, body, err)
}

// FindOne returns one item, ?includeChildren=true adds children and parent
func (h *MenuItemHandler) FindOne(c *gin.Context) {
	item, err := h.items.FindOne(c.Request.Context(), c.Param("id"), c.Query("includeChildren") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuItemHandler) GetAncestors(c *gin.Context) {
	items, err := h.items.GetAncestors(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuItemHandler) GetDescendants(c *gin.Context) {
	items, err := h.items.GetDescendants(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuItemHandler) GetSiblings(c *gin.Context) {
	items, err := h.items.GetSiblings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Update renames, toggles or reparents an item
func (h *MenuItemHandler) Update(c *gin.Context) {
	var req models.UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	item, err := h.items.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidate(c, item.MenuID)
	c.JSON(http.StatusOK, item)
}

// Move relocates an item with its subtree
func (h *MenuItemHandler) Move(c *gin.Context) {
	var req models.MoveMenuItemRequest
	// an empty body, chunked or not, moves to the root level
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	item, err := h.items.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidate(c, item.MenuID)
	c.JSON(http.StatusOK, item)
}

// Remove deletes an item and its subtree
func (h *MenuItemHandler) Remove(c *gin.Context) {
	result, err := h.items.RemoveSubtree(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidate(c, result.MenuID)
	c.Status(http.StatusNoContent)
}

func (h *MenuItemHandler) writeJSON(c *gin.Context, body []byte, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// invalidate failures are logged; the mutation itself already committed
func (h *MenuItemHandler) invalidate(c *gin.Context, menuID string) {
	if err := h.queries.Invalidate(c.Request.Context(), menuID); err != nil {
		h.logger.WarnContext(c.Request.Context(), "error invalidating menu cache", "menu_id", menuID, "error", err)
	}
}

func (h *MenuItemHandler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, NewErrorResponse(err))
}
