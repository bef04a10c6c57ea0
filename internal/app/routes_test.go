package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/handlers"
	"storefront/internal/storage"
	"storefront/internal/storage/sqlstore"
	"storefront/internal/warmup"
)

type routesEnv struct {
	router *mux.Router
	coord  *cache.Coordinator
	store  *sqlstore.Store
	admin  string
	user   string
}

// newRoutesEnv wires the real routes with a memory-only cache. A nil queue
// makes cache writes and invalidations run inline.
func newRoutesEnv(t *testing.T) *routesEnv {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := cache.NewCoordinator(cache.NewStore(100), nil)
	a, err := auth.New("routes-test-secret", nil)
	require.NoError(t, err)

	h := handlers.New(store, coord, warmup.New(store, coord, nil), nil)
	router := mux.NewRouter()
	SetupRoutes(router, h, coord, nil, a)

	admin, err := a.GenerateJWT("u-1", "root", auth.RoleAdmin)
	require.NoError(t, err)
	user, err := a.GenerateJWT("u-2", "shopper", "user")
	require.NoError(t, err)

	return &routesEnv{router: router, coord: coord, store: store, admin: admin, user: user}
}

func (e *routesEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func product(name string) storage.ProductInput {
	return storage.ProductInput{
		Name:         name,
		Description:  name,
		Brand:        "Lumen",
		CategoryID:   "lighting",
		Price:        20,
		CountInStock: 2,
		ImageURL:     "/img/" + name,
	}
}

func TestRoutes_ProductListCachedUntilWrite(t *testing.T) {
	env := newRoutesEnv(t)

	w := env.do(t, "GET", "/api/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "memory-only", w.Header().Get("X-Cache-Strategy"))

	w = env.do(t, "GET", "/api/products", "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.True(t, env.coord.Local().Has("products:list:page:1|pageSize:10"))

	w = env.do(t, "POST", "/api/products", env.admin, product("lamp"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, env.coord.Local().Has("products:list:page:1|pageSize:10"))

	w = env.do(t, "GET", "/api/products", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var page storage.ProductPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
}

func TestRoutes_ProductUpdateInvalidatesSingle(t *testing.T) {
	env := newRoutesEnv(t)
	created, err := env.store.CreateProduct(context.Background(), product("lamp"))
	require.NoError(t, err)
	other, err := env.store.CreateProduct(context.Background(), product("chair"))
	require.NoError(t, err)

	env.do(t, "GET", "/api/products/"+created.ID, "", nil)
	env.do(t, "GET", "/api/products/"+other.ID, "", nil)
	require.True(t, env.coord.Local().Has("products:single:"+created.ID))

	w := env.do(t, "PUT", "/api/products/"+created.ID, env.admin, product("desk lamp"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.coord.Local().Has("products:single:"+created.ID))
	assert.True(t, env.coord.Local().Has("products:single:"+other.ID))

	w = env.do(t, "GET", "/api/products/"+created.ID, "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "desk lamp")
}

func TestRoutes_FailedWriteKeepsCache(t *testing.T) {
	env := newRoutesEnv(t)

	env.do(t, "GET", "/api/categories", "", nil)
	require.True(t, env.coord.Local().Has("categories:all"))

	w := env.do(t, "POST", "/api/categories", env.admin, map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.coord.Local().Has("categories:all"))
}

func TestRoutes_AdminOnly(t *testing.T) {
	env := newRoutesEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/products"},
		{"DELETE", "/api/products/p-1"},
		{"POST", "/api/categories"},
		{"GET", "/api/stats/dashboard"},
		{"GET", "/api/cache/stats"},
		{"DELETE", "/api/cache/clear"},
		{"POST", "/api/cache/warmup"},
		{"GET", "/api/cache/keys"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, env.do(t, tt.method, tt.path, "", nil).Code)
			assert.Equal(t, http.StatusForbidden, env.do(t, tt.method, tt.path, env.user, nil).Code)
		})
	}
}

func TestRoutes_ReviewRequiresToken(t *testing.T) {
	env := newRoutesEnv(t)
	created, err := env.store.CreateProduct(context.Background(), product("lamp"))
	require.NoError(t, err)
	review := storage.ReviewInput{Name: "Ana", Rating: 5, Comment: "Bright"}

	env.do(t, "GET", "/api/products/"+created.ID, "", nil)
	require.True(t, env.coord.Local().Has("products:single:"+created.ID))

	w := env.do(t, "POST", "/api/products/"+created.ID+"/reviews", "", review)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, env.coord.Local().Has("products:single:"+created.ID))

	w = env.do(t, "POST", "/api/products/"+created.ID+"/reviews", env.user, review)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, env.coord.Local().Has("products:single:"+created.ID))
}

func TestRoutes_CacheAdministration(t *testing.T) {
	env := newRoutesEnv(t)
	_, err := env.store.CreateProduct(context.Background(), product("lamp"))
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/cache/warmup", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.coord.Local().Has("products:popular"))

	w = env.do(t, "GET", "/api/stats/dashboard?period=week", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.coord.Local().Has("stats:week"))

	w = env.do(t, "DELETE", "/api/cache/clear", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.coord.Local().Len())
}

func TestRoutes_Health(t *testing.T) {
	env := newRoutesEnv(t)

	w := env.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutes_LogoutWithoutTokenStore(t *testing.T) {
	env := newRoutesEnv(t)

	w := env.do(t, "POST", "/api/auth/logout", env.user, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, "GET", "/api/products", env.user, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
