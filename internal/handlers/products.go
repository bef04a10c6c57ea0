package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"storefront/internal/common/errors"
	"storefront/internal/storage"
)

// ListProducts returns a filtered page of products
// @Summary List products
// @Description Returns one page of products, newest first. Responses are cached per filter combination.
// @Tags products
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param pageSize query int false "Page size (default 10, max 100)"
// @Param keyword query string false "Name substring"
// @Param brand query string false "Brand substring"
// @Param category query string false "Category id or name"
// @Param type query string false "Product type"
// @Param minPrice query number false "Minimum price"
// @Param maxPrice query number false "Maximum price"
// @Param isNew query bool false "Only new products"
// @Param isBestSeller query bool false "Only best sellers"
// @Success 200 {object} storage.ProductPage
// @Failure 400 {object} ErrorResponse
// @Router /api/products [get]
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.storage.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseProductFilter(q url.Values) (storage.ProductFilter, error) {
	filter := storage.ProductFilter{
		Keyword:  q.Get("keyword"),
		Brand:    q.Get("brand"),
		Category: q.Get("category"),
		Type:     q.Get("type"),
	}

	var err error
	if filter.Page, err = intParam(q, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intParam(q, "pageSize"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = floatParam(q, "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = floatParam(q, "maxPrice"); err != nil {
		return filter, err
	}
	if filter.IsNew, err = boolParam(q, "isNew"); err != nil {
		return filter, err
	}
	if filter.IsBestSeller, err = boolParam(q, "isBestSeller"); err != nil {
		return filter, err
	}
	return filter.Normalize(), nil
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.ValidationError("invalid " + name)
	}
	return n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.ValidationError("invalid " + name)
	}
	return &f, nil
}

func boolParam(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, errors.ValidationError("invalid " + name)
	}
	return &b, nil
}

// GetProduct returns one product with its reviews
// @Summary Get product
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} storage.Product
// @Failure 404 {object} ErrorResponse
// @Router /api/products/{id} [get]
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.storage.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// CreateProduct adds a product
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product body storage.ProductInput true "Product"
// @Success 201 {object} storage.Product
// @Failure 400 {object} ErrorResponse
// @Router /api/products [post]
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input storage.ProductInput
	if !h.decode(w, r, &input) {
		return
	}

	product, err := h.storage.CreateProduct(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a product's writable fields
// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Param product body storage.ProductInput true "Product"
// @Success 200 {object} storage.Product
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/products/{id} [put]
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var input storage.ProductInput
	if !h.decode(w, r, &input) {
		return
	}

	product, err := h.storage.UpdateProduct(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product and its reviews
// @Summary Delete product
// @Tags products
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/products/{id} [delete]
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.storage.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed", "id": id})
}

// CreateReview adds a review to a product
// @Summary Review product
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param review body storage.ReviewInput true "Review"
// @Security BearerAuth
// @Success 201 {object} storage.Review
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/products/{id}/reviews [post]
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	var input storage.ReviewInput
	if !h.decode(w, r, &input) {
		return
	}

	review, err := h.storage.AddReview(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
