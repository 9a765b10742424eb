package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ammiranda/menutree/cache"
	"github.com/ammiranda/menutree/config"
	"github.com/ammiranda/menutree/hierarchy"
	"github.com/ammiranda/menutree/models"
	"github.com/ammiranda/menutree/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	cache  *cache.MockCache
	menuID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryRepository()
	cfg := config.EngineConfig{MaxRetries: 1, RetryBackoff: time.Millisecond, TxTimeout: time.Second}
	mc := cache.NewMockCache()

	s := &testServer{
		router: NewRouter(hierarchy.NewEngine(repo, cfg, nil), hierarchy.NewMenus(repo, cfg, nil), mc, nil),
		cache:  mc,
	}

	var menu models.Menu
	s.do(t, http.MethodPost, "/api/menus", `{"name":"main"}`, http.StatusCreated, &menu)
	s.menuID = menu.ID
	return s
}

// do sends a request, checks the status and decodes the body into out
func (s *testServer) do(t *testing.T, method, path, body string, wantStatus int, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, wantStatus, w.Code, "%s %s: %s", method, path, w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func (s *testServer) createItem(t *testing.T, name string, parentID *string) *models.MenuItem {
	t.Helper()
	payload := map[string]any{"name": name, "menuId": s.menuID}
	if parentID != nil {
		payload["parentId"] = *parentID
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	var item models.MenuItem
	s.do(t, http.MethodPost, "/api/menu-items", string(body), http.StatusCreated, &item)
	return &item
}

func itemNames(items []*models.MenuItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func TestMenuItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	a := s.createItem(t, "A", nil)
	b := s.createItem(t, "B", &a.ID)
	c := s.createItem(t, "C", &b.ID)
	assert.Equal(t, "1.1.1", c.Path)
	assert.Equal(t, 2, c.Depth)

	var found models.MenuItem
	s.do(t, http.MethodGet, "/api/menu-items/"+a.ID+"?includeChildren=true", "", http.StatusOK, &found)
	assert.True(t, found.HasChildren)
	assert.Equal(t, []string{"B"}, itemNames(found.Children))

	var ancestors []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menu-items/"+c.ID+"/ancestors", "", http.StatusOK, &ancestors)
	assert.Equal(t, []string{"A", "B"}, itemNames(ancestors))

	var descendants []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menu-items/"+a.ID+"/descendants", "", http.StatusOK, &descendants)
	assert.Equal(t, []string{"B", "C"}, itemNames(descendants))

	var moved models.MenuItem
	s.do(t, http.MethodPatch, "/api/menu-items/"+b.ID+"/move", `{"targetParentId":null}`, http.StatusOK, &moved)
	assert.Equal(t, "2", moved.Path)
	assert.Nil(t, moved.ParentID)

	var siblings []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menu-items/"+a.ID+"/siblings", "", http.StatusOK, &siblings)
	assert.Equal(t, []string{"B"}, itemNames(siblings))

	var updated models.MenuItem
	s.do(t, http.MethodPatch, "/api/menu-items/"+c.ID, `{"name":"C2","parentId":"`+a.ID+`"}`, http.StatusOK, &updated)
	assert.Equal(t, "C2", updated.Name)
	assert.Equal(t, "1.1", updated.Path)

	s.do(t, http.MethodDelete, "/api/menu-items/"+a.ID, "", http.StatusNoContent, nil)
	s.do(t, http.MethodGet, "/api/menu-items/"+updated.ID, "", http.StatusNotFound, nil)
}

func TestMoveWithEmptyBodyGoesToRoot(t *testing.T) {
	s := newTestServer(t)
	a := s.createItem(t, "A", nil)
	b := s.createItem(t, "B", &a.ID)

	var moved models.MenuItem
	s.do(t, http.MethodPatch, "/api/menu-items/"+b.ID+"/move", "", http.StatusOK, &moved)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 0, moved.Depth)

	// a chunked request has no content length even when empty
	c := s.createItem(t, "C", &a.ID)
	req := httptest.NewRequest(http.MethodPatch, "/api/menu-items/"+c.ID+"/move", bytes.NewReader(nil))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, "3", moved.Path)

	s.do(t, http.MethodPatch, "/api/menu-items/"+c.ID+"/move", `{"targetParentId":`, http.StatusBadRequest, nil)
}

func TestMenuScopedListings(t *testing.T) {
	s := newTestServer(t)
	a := s.createItem(t, "A", nil)
	s.createItem(t, "B", nil)
	s.createItem(t, "A1", &a.ID)

	var all []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menus/"+s.menuID+"/items", "", http.StatusOK, &all)
	assert.Equal(t, []string{"A", "A1", "B"}, itemNames(all))

	var roots []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menus/"+s.menuID+"/items/root", "", http.StatusOK, &roots)
	assert.Equal(t, []string{"A", "B"}, itemNames(roots))
	assert.Equal(t, []string{"A1"}, itemNames(roots[0].Children))

	var level []*models.MenuItem
	s.do(t, http.MethodGet, "/api/menus/"+s.menuID+"/items/depth/1", "", http.StatusOK, &level)
	assert.Equal(t, []string{"A1"}, itemNames(level))

	s.do(t, http.MethodGet, "/api/menus/"+s.menuID+"/items/depth/deep", "", http.StatusBadRequest, nil)
	s.do(t, http.MethodGet, "/api/menus/"+s.menuID+"/items/depth/-1", "", http.StatusBadRequest, nil)
	s.do(t, http.MethodGet, "/api/menus/"+uuid.NewString()+"/items", "", http.StatusNotFound, nil)
}

func TestListingsAreCachedUntilMutation(t *testing.T) {
	s := newTestServer(t)
	s.createItem(t, "A", nil)
	path := "/api/menus/" + s.menuID + "/items"

	var first, second []*models.MenuItem
	s.do(t, http.MethodGet, path, "", http.StatusOK, &first)
	s.do(t, http.MethodGet, path, "", http.StatusOK, &second)
	assert.Equal(t, 1, s.cache.Hits)
	assert.Equal(t, itemNames(first), itemNames(second))

	invalidations := s.cache.InvalidateCalls
	s.createItem(t, "B", nil)
	assert.Equal(t, invalidations+1, s.cache.InvalidateCalls)
	assert.Equal(t, s.menuID, s.cache.Invalidated[len(s.cache.Invalidated)-1])

	var third []*models.MenuItem
	s.do(t, http.MethodGet, path, "", http.StatusOK, &third)
	assert.Equal(t, []string{"A", "B"}, itemNames(third))
	assert.Equal(t, 1, s.cache.Hits, "the mutation dropped the cached listing")
}

func TestFailedMutationKeepsCache(t *testing.T) {
	s := newTestServer(t)
	a := s.createItem(t, "A", nil)
	invalidations := s.cache.InvalidateCalls

	s.do(t, http.MethodPatch, "/api/menu-items/"+a.ID+"/move", `{"targetParentId":"`+a.ID+`"}`, http.StatusBadRequest, nil)
	assert.Equal(t, invalidations, s.cache.InvalidateCalls)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	a := s.createItem(t, "A", nil)
	s.createItem(t, "B", nil)
	missing := uuid.NewString()

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "Malformed JSON", method: http.MethodPost, path: "/api/menu-items", body: `{"name":`, status: http.StatusBadRequest},
		{name: "Missing name", method: http.MethodPost, path: "/api/menu-items", body: `{"menuId":"` + s.menuID + `"}`, status: http.StatusBadRequest},
		{name: "Unknown parent", method: http.MethodPost, path: "/api/menu-items", body: `{"name":"X","menuId":"` + s.menuID + `","parentId":"` + missing + `"}`, status: http.StatusNotFound},
		{name: "Duplicate sibling", method: http.MethodPost, path: "/api/menu-items", body: `{"name":"A","menuId":"` + s.menuID + `"}`, status: http.StatusConflict},
		{name: "Unknown item", method: http.MethodGet, path: "/api/menu-items/" + missing, status: http.StatusNotFound},
		{name: "Self parent", method: http.MethodPatch, path: "/api/menu-items/" + a.ID + "/move", body: `{"targetParentId":"` + a.ID + `"}`, status: http.StatusBadRequest},
		{name: "Order taken", method: http.MethodPatch, path: "/api/menu-items/" + a.ID + "/move", body: `{"newOrder":2}`, status: http.StatusConflict},
		{name: "Negative order", method: http.MethodPatch, path: "/api/menu-items/" + a.ID + "/move", body: `{"newOrder":-1}`, status: http.StatusBadRequest},
		{name: "Rename conflict", method: http.MethodPatch, path: "/api/menu-items/" + a.ID, body: `{"name":"B"}`, status: http.StatusConflict},
		{name: "Delete unknown", method: http.MethodDelete, path: "/api/menu-items/" + missing, status: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var resp ErrorResponse
			s.do(t, tc.method, tc.path, tc.body, tc.status, &resp)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestMenuRoutes(t *testing.T) {
	s := newTestServer(t)

	var footer models.Menu
	s.do(t, http.MethodPost, "/api/menus", `{"name":"footer","isActive":false}`, http.StatusCreated, &footer)
	s.do(t, http.MethodPost, "/api/menus", `{"name":"footer"}`, http.StatusConflict, nil)

	var menus []*models.Menu
	s.do(t, http.MethodGet, "/api/menus", "", http.StatusOK, &menus)
	assert.Len(t, menus, 2)

	s.do(t, http.MethodGet, "/api/menus?isActive=false", "", http.StatusOK, &menus)
	require.Len(t, menus, 1)
	assert.Equal(t, "footer", menus[0].Name)
	s.do(t, http.MethodGet, "/api/menus?isActive=maybe", "", http.StatusBadRequest, nil)

	var toggled models.Menu
	s.do(t, http.MethodPatch, "/api/menus/"+footer.ID+"/toggle-active", "", http.StatusOK, &toggled)
	assert.True(t, toggled.IsActive)

	var renamed models.Menu
	s.do(t, http.MethodPatch, "/api/menus/"+footer.ID, `{"name":"bottom"}`, http.StatusOK, &renamed)
	assert.Equal(t, "bottom", renamed.Name)

	s.createItem(t, "Home", nil)
	s.do(t, http.MethodDelete, "/api/menus/"+s.menuID, "", http.StatusConflict, nil)

	s.do(t, http.MethodDelete, "/api/menus/"+footer.ID, "", http.StatusOK, nil)
	s.do(t, http.MethodGet, "/api/menus/"+footer.ID, "", http.StatusNotFound, nil)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err       error
		status    int
		retryable bool
	}{
		{err: fmt.Errorf("x: %w", hierarchy.ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("x: %w", hierarchy.ErrConflict), status: http.StatusConflict},
		{err: fmt.Errorf("x: %w", hierarchy.ErrInvalidArgument), status: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", hierarchy.ErrTransactionAborted), status: http.StatusConflict, retryable: true},
		{err: fmt.Errorf("x: %w", hierarchy.ErrStoreUnavailable), status: http.StatusServiceUnavailable, retryable: true},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFor(tc.err))
			resp := NewErrorResponse(tc.err)
			assert.Equal(t, tc.retryable, resp.Retryable)
		})
	}
	assert.Equal(t, "internal server error", NewErrorResponse(errors.New("secret detail")).Error)
}
