package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"storefront/internal/storage"
)

// ListCategories returns every category
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} storage.Category
// @Router /api/categories [get]
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.storage.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// CreateCategory adds a category
// @Summary Create category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category body storage.CategoryInput true "Category"
// @Success 201 {object} storage.Category
// @Failure 400 {object} ErrorResponse "Invalid payload or duplicate name"
// @Router /api/categories [post]
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input storage.CategoryInput
	if !h.decode(w, r, &input) {
		return
	}

	category, err := h.storage.CreateCategory(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// UpdateCategory renames a category
// @Summary Update category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param category body storage.CategoryInput true "Category"
// @Success 200 {object} storage.Category
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/categories/{id} [put]
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var input storage.CategoryInput
	if !h.decode(w, r, &input) {
		return
	}

	category, err := h.storage.UpdateCategory(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// DeleteCategory removes a category
// @Summary Delete category
// @Tags categories
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/categories/{id} [delete]
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.storage.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category removed", "id": id})
}
