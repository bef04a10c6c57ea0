// Package storage defines the catalog persistence contract and its models.
// Implementations live in subpackages; see sqlstore.
package storage

import (
	"context"
	"time"
)

type Storage interface {
	Close() error
	Health(ctx context.Context) error

	// ListProducts returns one page of products matching filter, newest first.
	ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error)
	// GetProduct returns the product with its reviews, or a not_found AppError.
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// AddReview stores a review and recomputes the product's rating and review count.
	AddReview(ctx context.Context, productID string, input ReviewInput) (*Review, error)

	// Warmup selections
	TopRatedProducts(ctx context.Context, limit int) ([]*Product, error)
	RecentProducts(ctx context.Context, limit int) ([]*Product, error)
	BestSellerProducts(ctx context.Context, limit int) ([]*Product, error)

	ListCategories(ctx context.Context) ([]*Category, error)
	// CreateCategory rejects a duplicate name with a validation AppError.
	CreateCategory(ctx context.Context, input CategoryInput) (*Category, error)
	UpdateCategory(ctx context.Context, id string, input CategoryInput) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// DashboardStats aggregates the catalog; "new" counts are relative to since.
	DashboardStats(ctx context.Context, period string, since time.Time) (*DashboardStats, error)
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Brand         string    `json:"brand"`
	CategoryID    string    `json:"category"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	CountInStock  int       `json:"countInStock"`
	ImageURL      string    `json:"imageUrl"`
	Rating        float64   `json:"rating"`
	NumReviews    int       `json:"numReviews"`
	IsNew         bool      `json:"isNewProduct"`
	IsBestSeller  bool      `json:"isBestSeller"`
	Type          string    `json:"type,omitempty"`
	Size          string    `json:"size,omitempty"`
	Reviews       []Review  `json:"reviews,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProductInput is the writable part of a Product.
type ProductInput struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description" validate:"required"`
	Brand         string   `json:"brand" validate:"required,max=100"`
	CategoryID    string   `json:"category" validate:"required"`
	Price         float64  `json:"price" validate:"gte=0"`
	OriginalPrice *float64 `json:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	CountInStock  int      `json:"countInStock" validate:"gte=0"`
	ImageURL      string   `json:"imageUrl" validate:"required"`
	IsNew         bool     `json:"isNewProduct"`
	IsBestSeller  bool     `json:"isBestSeller"`
	Type          string   `json:"type,omitempty" validate:"max=50"`
	Size          string   `json:"size,omitempty" validate:"max=50"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// ProductFilter selects a page of products. Nil pointers and empty strings
// do not filter. Category matches a category id or, case-insensitively, a
// category name.
type ProductFilter struct {
	Page         int
	PageSize     int
	Keyword      string
	Brand        string
	Category     string
	Type         string
	MinPrice     *float64
	MaxPrice     *float64
	IsNew        *bool
	IsBestSeller *bool
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps paging to sane values.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

type ProductPage struct {
	Products []*Product `json:"products"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
	Total    int        `json:"total"`
}

type DashboardStats struct {
	Period          string    `json:"period"`
	ProductsCount   int       `json:"productsCount"`
	CategoriesCount int       `json:"categoriesCount"`
	ReviewsCount    int       `json:"reviewsCount"`
	OutOfStockCount int       `json:"outOfStockCount"`
	NewProducts     int       `json:"newProducts"`
	NewReviews      int       `json:"newReviews"`
	AverageRating   float64   `json:"averageRating"`
	InventoryValue  float64   `json:"inventoryValue"`
	GeneratedAt     time.Time `json:"generatedAt"`
}
