package handlers

import (
	"log/slog"
	"time"

	"github.com/ammiranda/menutree/cache"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine serving every route under /api
func NewRouter(items MenuItemService, menus MenuService, c cache.Provider, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "http")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	queries := NewQueries(items, c)
	api := r.Group("/api")
	NewMenuItemHandler(items, queries, logger).Register(api)
	NewMenuHandler(menus, queries, logger).Register(api.Group("/menus"))
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
