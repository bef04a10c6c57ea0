package app

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
)

// Cached response lifetimes per route.
const (
	productListTTL = 1800 * time.Second
	productTTL     = 3600 * time.Second
	categoriesTTL  = 7200 * time.Second
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, coord *cache.Coordinator, queue *cache.TaskQueue, authz *auth.Auth) {
	router.Use(middleware.LoggingMiddleware)

	cached := func(category cache.Category, ttl time.Duration, key middleware.KeyGenerator, fn http.HandlerFunc) http.Handler {
		return middleware.CacheResponse(coord, queue, category, ttl, key)(fn)
	}
	invalidates := func(fn http.HandlerFunc, patterns ...middleware.Pattern) http.Handler {
		return middleware.InvalidateCache(coord, queue, patterns...)(fn)
	}
	admin := authz.RequireAdmin

	productList := middleware.Prefix(cache.GenerateKey(cache.CategoryProducts, "list", nil))
	productSingle := middleware.RoutePrefix(cache.GenerateKey(cache.CategoryProducts, "single:{id}", nil))
	stats := middleware.Prefix(string(cache.CategoryStats))
	categories := middleware.Prefix(string(cache.CategoryCategories))

	// Health check (no auth required)
	router.HandleFunc("/health", h.Health).Methods("GET")

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := router.PathPrefix("/api").Subrouter()

	// Token revocation (any valid token)
	api.HandleFunc("/auth/logout", authz.Logout).Methods("POST")

	// Products
	api.Handle("/products", cached(cache.CategoryProducts, productListTTL, middleware.ProductListKey, h.ListProducts)).Methods("GET")
	api.Handle("/products", admin(invalidates(h.CreateProduct, productList, stats))).Methods("POST")
	api.Handle("/products/{id}", cached(cache.CategoryProducts, productTTL, middleware.ProductKey, h.GetProduct)).Methods("GET")
	api.Handle("/products/{id}", admin(invalidates(h.UpdateProduct, productSingle, productList, stats))).Methods("PUT")
	api.Handle("/products/{id}", admin(invalidates(h.DeleteProduct, productSingle, productList, stats))).Methods("DELETE")
	api.Handle("/products/{id}/reviews", authz.RequireUser(invalidates(h.CreateReview, productSingle, productList))).Methods("POST")

	// Categories
	api.Handle("/categories", cached(cache.CategoryCategories, categoriesTTL, middleware.CategoriesKey, h.ListCategories)).Methods("GET")
	api.Handle("/categories", admin(invalidates(h.CreateCategory, categories))).Methods("POST")
	api.Handle("/categories/{id}", admin(invalidates(h.UpdateCategory, categories, productList))).Methods("PUT")
	api.Handle("/categories/{id}", admin(invalidates(h.DeleteCategory, categories, productList))).Methods("DELETE")

	// Statistics (admin)
	api.Handle("/stats/dashboard", admin(cached(cache.CategoryStats, 0, middleware.StatsKey, h.GetDashboardStats))).Methods("GET")

	// Cache administration (admin)
	cacheAPI := api.PathPrefix("/cache").Subrouter()
	cacheAPI.Use(authz.RequireAdmin)
	cacheAPI.HandleFunc("/stats", h.GetCacheStats).Methods("GET")
	cacheAPI.HandleFunc("/clear", h.ClearCache).Methods("DELETE")
	cacheAPI.HandleFunc("/clear/{type}", h.ClearCacheByType).Methods("DELETE")
	cacheAPI.HandleFunc("/warmup", h.WarmupCache).Methods("POST")
	cacheAPI.HandleFunc("/product/{id}", h.InvalidateProductCache).Methods("DELETE")
	cacheAPI.HandleFunc("/keys", h.GetCacheKeys).Methods("GET")
}
