package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammiranda/menutree/models"
	"github.com/gin-gonic/gin"
)

// MenuHandler handles menu HTTP requests
type MenuHandler struct {
	menus   MenuService
	queries *Queries
	logger  *slog.Logger
}

// NewMenuHandler creates a new MenuHandler instance
func NewMenuHandler(menus MenuService, queries *Queries, logger *slog.Logger) *MenuHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MenuHandler{menus: menus, queries: queries, logger: logger}
}

// Register mounts the menu routes on group
func (h *MenuHandler) Register(group *gin.RouterGroup) {
	group.POST("", h.Create)
	group.GET("", h.FindAll)
	group.GET("/:id", h.FindOne)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Remove)
	group.PATCH("/:id/toggle-active", h.ToggleActive)
}

func (h *MenuHandler) Create(c *gin.Context) {
	var req models.CreateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	menu, err := h.menus.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, menu)
}

// FindAll lists menus newest first; ?isActive=true|false filters them
func (h *MenuHandler) FindAll(c *gin.Context) {
	var isActive *bool
	if raw, ok := c.GetQuery("isActive"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "isActive must be true or false"})
			return
		}
		isActive = &v
	}
	menus, err := h.menus.FindAll(c.Request.Context(), isActive)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, menus)
}

func (h *MenuHandler) FindOne(c *gin.Context) {
	menu, err := h.menus.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (h *MenuHandler) Update(c *gin.Context) {
	var req models.UpdateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	menu, err := h.menus.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

// Remove deletes an empty menu
func (h *MenuHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.menus.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	// cached reads of a deleted menu would outlive it
	if err := h.queries.Invalidate(c.Request.Context(), id); err != nil {
		h.logger.WarnContext(c.Request.Context(), "error invalidating menu cache", "menu_id", id, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (h *MenuHandler) ToggleActive(c *gin.Context) {
	menu, err := h.menus.ToggleActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (h *MenuHandler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, NewErrorResponse(err))
}
