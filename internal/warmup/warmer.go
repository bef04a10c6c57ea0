// Package warmup preloads the cache with the catalog reads most likely to
// be requested: popular, recent and best-selling products plus categories.
package warmup

import (
	"context"
	"time"

	"storefront/internal/cache"
	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
	"storefront/internal/storage"
)

const (
	PopularLimit    = 20
	RecentLimit     = 10
	BestSellerLimit = 10

	// LockKey serialises scheduled warmups across instances.
	LockKey = "cache-warmup"
)

// TTLs written by a warmup run.
const (
	CategoriesTTL  = 7200 * time.Second
	ProductTTL     = 3600 * time.Second
	PopularTTL     = 1800 * time.Second
	RecentTTL      = 1800 * time.Second
	BestSellersTTL = 3600 * time.Second
)

// Result summarises one warmup run.
type Result struct {
	Categories  int       `json:"categories"`
	Popular     int       `json:"popular"`
	Recent      int       `json:"recent"`
	BestSellers int       `json:"bestSellers"`
	Keys        []string  `json:"keys"`
	Duration    string    `json:"duration"`
	CompletedAt time.Time `json:"completedAt"`
}

type Warmer struct {
	store  storage.Storage
	coord  *cache.Coordinator
	logger logging.Logger
}

func New(store storage.Storage, coord *cache.Coordinator, logger logging.Logger) *Warmer {
	if logger == nil {
		logger = logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "cache_warmup"})
	}
	return &Warmer{store: store, coord: coord, logger: logger}
}

// Run loads the warmup selections and writes them through the coordinator.
// A storage error aborts the run; keys already written stay cached.
func (w *Warmer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Keys: []string{}}

	put := func(key string, value interface{}, ttl time.Duration) {
		if w.coord.Set(ctx, key, value, ttl) {
			result.Keys = append(result.Keys, key)
		}
	}

	categories, err := w.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	put(cache.GenerateKey(cache.CategoryCategories, "all", nil), categories, CategoriesTTL)
	result.Categories = len(categories)

	popular, err := w.store.TopRatedProducts(ctx, PopularLimit)
	if err != nil {
		return nil, err
	}
	// Single-product entries must match what GET /api/products/{id} caches,
	// reviews included, so they are loaded the same way.
	for _, p := range popular {
		product, err := w.store.GetProduct(ctx, p.ID)
		if apperrors.IsType(err, apperrors.ErrTypeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		put(cache.GenerateKey(cache.CategoryProducts, "single:"+cache.EscapeKeyPart(p.ID), nil), product, ProductTTL)
	}
	put(cache.GenerateKey(cache.CategoryProducts, "popular", nil), popular, PopularTTL)
	result.Popular = len(popular)

	recent, err := w.store.RecentProducts(ctx, RecentLimit)
	if err != nil {
		return nil, err
	}
	put(cache.GenerateKey(cache.CategoryProducts, "recent", nil), recent, RecentTTL)
	result.Recent = len(recent)

	bestSellers, err := w.store.BestSellerProducts(ctx, BestSellerLimit)
	if err != nil {
		return nil, err
	}
	put(cache.GenerateKey(cache.CategoryProducts, "bestsellers", nil), bestSellers, BestSellersTTL)
	result.BestSellers = len(bestSellers)

	result.CompletedAt = time.Now().UTC()
	result.Duration = time.Since(start).String()

	w.logger.Info("Cache warmup completed",
		logging.Int("keys", len(result.Keys)),
		logging.Int("popular", result.Popular),
		logging.Int("categories", result.Categories),
		logging.String("duration", result.Duration),
	)
	return result, nil
}
