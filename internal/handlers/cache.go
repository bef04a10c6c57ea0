package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"storefront/internal/cache"
	"storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

// Cache administration handlers

// GetCacheStats returns both tiers' statistics
// @Summary Get cache statistics
// @Description Returns the remote server's memory report and the local tier's keys and counters
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} cache.Stats
// @Failure 503 {object} ErrorResponse "Remote tier unavailable"
// @Router /api/cache/stats [get]
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats(r.Context())
	if stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Cache statistics unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearCache drops every cached entry
// @Summary Clear cache
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /api/cache/clear [delete]
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear(r.Context())
	logging.WithContext(r.Context()).Info("Cache cleared")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
}

// ClearCacheByType drops one category
// @Summary Clear cache category
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Param type path string true "products, categories, stats, user or search"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse "Unknown category"
// @Router /api/cache/clear/{type} [delete]
func (h *Handlers) ClearCacheByType(w http.ResponseWriter, r *http.Request) {
	category, ok := cache.ParseCategory(mux.Vars(r)["type"])
	if !ok {
		writeError(w, r, errors.ValidationError("invalid cache type"))
		return
	}

	h.cache.InvalidateByPattern(r.Context(), string(category))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Cache cleared for " + string(category),
		"type":    string(category),
	})
}

// WarmupCache preloads popular catalog reads
// @Summary Warm up cache
// @Description Caches categories plus top-rated, recent and best-selling products
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} warmup.Result
// @Failure 500 {object} ErrorResponse
// @Router /api/cache/warmup [post]
func (h *Handlers) WarmupCache(w http.ResponseWriter, r *http.Request) {
	result, err := h.warmer.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// InvalidateProductCache drops one product and every product listing
// @Summary Invalidate product cache
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]string
// @Router /api/cache/product/{id} [delete]
func (h *Handlers) InvalidateProductCache(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	h.cache.Invalidate(ctx, cache.GenerateKey(cache.CategoryProducts, "single:"+cache.EscapeKeyPart(id), nil))
	h.cache.InvalidateByPattern(ctx, cache.GenerateKey(cache.CategoryProducts, "list", nil))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product cache invalidated", "id": id})
}

// GetCacheKeys lists cached keys per tier
// @Summary List cache keys
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Param pattern query string false "Key prefix (remote) or substring (local)"
// @Success 200 {object} cache.KeyListing
// @Router /api/cache/keys [get]
func (h *Handlers) GetCacheKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Keys(r.Context(), r.URL.Query().Get("pattern")))
}
