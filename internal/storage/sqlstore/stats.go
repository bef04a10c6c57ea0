package sqlstore

import (
	"context"
	"time"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/storage"
)

func (s *Store) DashboardStats(ctx context.Context, period string, since time.Time) (*storage.DashboardStats, error) {
	stats := &storage.DashboardStats{Period: period, GeneratedAt: time.Now().UTC()}

	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN count_in_stock = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(rating), 0),
			COALESCE(SUM(price * count_in_stock), 0)
		FROM products`), since.UTC()).
		Scan(&stats.ProductsCount, &stats.OutOfStockCount, &stats.NewProducts, &stats.AverageRating, &stats.InventoryValue)
	if err != nil {
		return nil, apperrors.InternalError("failed to aggregate products", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&stats.CategoriesCount); err != nil {
		return nil, apperrors.InternalError("failed to count categories", err)
	}

	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) FROM reviews`), since.UTC()).
		Scan(&stats.ReviewsCount, &stats.NewReviews)
	if err != nil {
		return nil, apperrors.InternalError("failed to count reviews", err)
	}

	return stats, nil
}
