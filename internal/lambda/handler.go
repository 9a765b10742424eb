// Package lambda serves the menu API behind API Gateway. Routes and status
// codes match the HTTP server in package handlers.
package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ammiranda/menutree/cache"
	"github.com/ammiranda/menutree/handlers"
	"github.com/ammiranda/menutree/models"
	"github.com/aws/aws-lambda-go/events"
)

// Handler represents the Lambda handler with its dependencies
type Handler struct {
	items   handlers.MenuItemService
	menus   handlers.MenuService
	queries *handlers.Queries
	logger  *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(items handlers.MenuItemService, menus handlers.MenuService, c cache.Provider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		items:   items,
		menus:   menus,
		queries: handlers.NewQueries(items, c),
		logger:  logger.With("component", "lambda"),
	}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	segs := strings.Split(strings.Trim(request.Path, "/"), "/")
	if len(segs) < 2 || segs[0] != "api" {
		return notFound(), nil
	}

	switch segs[1] {
	case "menu-items":
		return h.routeItems(ctx, request, segs[2:]), nil
	case "menus":
		return h.routeMenus(ctx, request, segs[2:]), nil
	default:
		return notFound(), nil
	}
}

// routeItems serves /api/menu-items/...
func (h *Handler) routeItems(ctx context.Context, request events.APIGatewayProxyRequest, segs []string) events.APIGatewayProxyResponse {
	method := request.HTTPMethod
	switch {
	case len(segs) == 0 && method == http.MethodPost:
		var req models.CreateMenuItemRequest
		if err := decode(request.Body, &req); err != nil {
			return badRequest(err)
		}
		item, err := h.items.Create(ctx, req)
		if err != nil {
			return h.fail(ctx, err)
		}
		h.invalidate(ctx, item.MenuID)
		return respond(http.StatusCreated, item)

	case len(segs) == 1 && method == http.MethodGet:
		item, err := h.items.FindOne(ctx, segs[0], request.QueryStringParameters["includeChildren"] == "true")
		return h.result(ctx, item, err)

	case len(segs) == 1 && method == http.MethodPatch:
		var req models.UpdateMenuItemRequest
		if err := decode(request.Body, &req); err != nil {
			return badRequest(err)
		}
		item, err := h.items.Update(ctx, segs[0], req)
		if err != nil {
			return h.fail(ctx, err)
		}
		h.invalidate(ctx, item.MenuID)
		return respond(http.StatusOK, item)

	case len(segs) == 1 && method == http.MethodDelete:
		result, err := h.items.RemoveSubtree(ctx, segs[0])
		if err != nil {
			return h.fail(ctx, err)
		}
		h.invalidate(ctx, result.MenuID)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}

	case len(segs) == 2 && method == http.MethodPatch && segs[1] == "move":
		var req models.MoveMenuItemRequest
		if err := decode(request.Body, &req); err != nil {
			return badRequest(err)
		}
		item, err := h.items.Move(ctx, segs[0], req)
		if err != nil {
			return h.fail(ctx, err)
		}
		h.invalidate(ctx, item.MenuID)
		return respond(http.StatusOK, item)

	case len(segs) == 2 && method == http.MethodGet:
		var items []*models.MenuItem
		var err error
		switch segs[1] {
		case "ancestors":
			items, err = h.items.GetAncestors(ctx, segs[0])
		case "descendants":
			items, err = h.items.GetDescendants(ctx, segs[0])
		case "siblings":
			items, err = h.items.GetSiblings(ctx, segs[0])
		default:
			return notFound()
		}
		return h.result(ctx, items, err)
	}
	return notFound()
}

// routeMenus serves /api/menus/... including the menu-scoped item listings
func (h *Handler) routeMenus(ctx context.Context, request events.APIGatewayProxyRequest, segs []string) events.APIGatewayProxyResponse {
	method := request.HTTPMethod
	switch {
	case len(segs) == 0 && method == http.MethodPost:
		var req models.CreateMenuRequest
		if err := decode(request.Body, &req); err != nil {
			return badRequest(err)
		}
		menu, err := h.menus.Create(ctx, req)
		if err != nil {
			return h.fail(ctx, err)
		}
		return respond(http.StatusCreated, menu)

	case len(segs) == 0 && method == http.MethodGet:
		var isActive *bool
		if raw, ok := request.QueryStringParameters["isActive"]; ok {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return badRequest(fmt.Errorf("isActive must be true or false"))
			}
			isActive = &v
		}
		menus, err := h.menus.FindAll(ctx, isActive)
		return h.result(ctx, menus, err)

	case len(segs) == 1 && method == http.MethodGet:
		menu, err := h.menus.FindOne(ctx, segs[0])
		return h.result(ctx, menu, err)

	case len(segs) == 1 && method == http.MethodPatch:
		var req models.UpdateMenuRequest
		if err := decode(request.Body, &req); err != nil {
			return badRequest(err)
		}
		menu, err := h.menus.Update(ctx, segs[0], req)
		return h.result(ctx, menu, err)

	case len(segs) == 1 && method == http.MethodDelete:
		if err := h.menus.Remove(ctx, segs[0]); err != nil {
			return h.fail(ctx, err)
		}
		h.invalidate(ctx, segs[0])
		return respond(http.StatusOK, map[string]any{"id": segs[0], "deleted": true})

	case len(segs) == 2 && method == http.MethodPatch && segs[1] == "toggle-active":
		menu, err := h.menus.ToggleActive(ctx, segs[0])
		return h.result(ctx, menu, err)

	case len(segs) >= 2 && method == http.MethodGet && segs[1] == "items":
		return h.listItems(ctx, request, segs[0], segs[2:])
	}
	return notFound()
}

// listItems serves /api/menus/:id/items, /items/root and /items/depth/:depth
func (h *Handler) listItems(ctx context.Context, request events.APIGatewayProxyRequest, menuID string, segs []string) events.APIGatewayProxyResponse {
	var body []byte
	var err error
	switch {
	case len(segs) == 0:
		body, err = h.queries.Items(ctx, menuID, request.QueryStringParameters["includeChildren"] == "true")
	case len(segs) == 1 && segs[0] == "root":
		body, err = h.queries.Roots(ctx, menuID)
	case len(segs) == 2 && segs[0] == "depth":
		depth, convErr := strconv.Atoi(segs[1])
		if convErr != nil {
			return badRequest(fmt.Errorf("depth must be an integer"))
		}
		body, err = h.queries.ByDepth(ctx, menuID, depth)
	default:
		return notFound()
	}
	if err != nil {
		return h.fail(ctx, err)
	}
	return raw(http.StatusOK, body)
}

func (h *Handler) result(ctx context.Context, v any, err error) events.APIGatewayProxyResponse {
	if err != nil {
		return h.fail(ctx, err)
	}
	return respond(http.StatusOK, v)
}

func (h *Handler) fail(ctx context.Context, err error) events.APIGatewayProxyResponse {
	status := handlers.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "error", err)
	}
	return respond(status, handlers.NewErrorResponse(err))
}

func (h *Handler) invalidate(ctx context.Context, menuID string) {
	if err := h.queries.Invalidate(ctx, menuID); err != nil {
		h.logger.WarnContext(ctx, "error invalidating menu cache", "menu_id", menuID, "error", err)
	}
}

// decode reads a JSON body; an empty body leaves v zero
func decode(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func respond(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return raw(http.StatusInternalServerError, []byte(`{"error":"internal server error"}`))
	}
	return raw(status, body)
}

func raw(status int, body []byte) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func badRequest(err error) events.APIGatewayProxyResponse {
	return respond(http.StatusBadRequest, handlers.ErrorResponse{Error: err.Error()})
}

func notFound() events.APIGatewayProxyResponse {
	return respond(http.StatusNotFound, handlers.ErrorResponse{Error: "not found"})
}
