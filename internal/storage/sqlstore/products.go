package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/storage"
)

const productColumns = `id, name, description, brand, category_id, price, original_price, count_in_stock,
	image_url, rating, num_reviews, is_new, is_best_seller, type, size, created_at, updated_at`

func scanProduct(row rowScanner) (*storage.Product, error) {
	var (
		p        storage.Product
		original sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.CategoryID, &p.Price, &original,
		&p.CountInStock, &p.ImageURL, &p.Rating, &p.NumReviews, &p.IsNew, &p.IsBestSeller,
		&p.Type, &p.Size, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if original.Valid {
		p.OriginalPrice = &original.Float64
	}
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*storage.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, apperrors.InternalError("failed to query products", err)
	}
	defer rows.Close()

	products := []*storage.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.InternalError("failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.InternalError("failed to iterate products", err)
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context, filter storage.ProductFilter) (*storage.ProductPage, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []interface{}
	)
	contains := func(column, value string) {
		where = append(where, "LOWER("+column+") LIKE ?")
		args = append(args, "%"+strings.ToLower(value)+"%")
	}

	if filter.Keyword != "" {
		contains("name", filter.Keyword)
	}
	if filter.Brand != "" {
		contains("brand", filter.Brand)
	}
	if filter.Type != "" {
		contains("type", filter.Type)
	}
	if filter.Category != "" {
		where = append(where, "(category_id = ? OR category_id IN (SELECT id FROM categories WHERE LOWER(name) LIKE ?))")
		args = append(args, filter.Category, "%"+strings.ToLower(filter.Category)+"%")
	}
	if filter.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.IsNew != nil {
		where = append(where, "is_new = ?")
		args = append(args, *filter.IsNew)
	}
	if filter.IsBestSeller != nil {
		where = append(where, "is_best_seller = ?")
		args = append(args, *filter.IsBestSeller)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM products"+clause), args...).Scan(&total); err != nil {
		return nil, apperrors.InternalError("failed to count products", err)
	}

	pageArgs := append(append([]interface{}{}, args...), filter.PageSize, (filter.Page-1)*filter.PageSize)
	products, err := s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products"+clause+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		pageArgs...)
	if err != nil {
		return nil, err
	}

	return &storage.ProductPage{
		Products: products,
		Page:     filter.Page,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
		Total:    total,
	}, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*storage.Product, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundError("product")
	}
	if err != nil {
		return nil, apperrors.InternalError("failed to get product", err)
	}

	reviews, err := s.reviews(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Reviews = reviews
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, input storage.ProductInput) (*storage.Product, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := s.exec(ctx, s.db, `INSERT INTO products (id, name, description, brand, category_id, price, original_price,
		count_in_stock, image_url, rating, num_reviews, is_new, is_best_seller, type, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?, ?)`,
		id, input.Name, input.Description, input.Brand, input.CategoryID, input.Price, nullFloat(input.OriginalPrice),
		input.CountInStock, input.ImageURL, input.IsNew, input.IsBestSeller, input.Type, input.Size, now, now)
	if err != nil {
		return nil, apperrors.InternalError("failed to create product", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) UpdateProduct(ctx context.Context, id string, input storage.ProductInput) (*storage.Product, error) {
	res, err := s.exec(ctx, s.db, `UPDATE products SET name = ?, description = ?, brand = ?, category_id = ?, price = ?,
		original_price = ?, count_in_stock = ?, image_url = ?, is_new = ?, is_best_seller = ?, type = ?, size = ?,
		updated_at = ? WHERE id = ?`,
		input.Name, input.Description, input.Brand, input.CategoryID, input.Price, nullFloat(input.OriginalPrice),
		input.CountInStock, input.ImageURL, input.IsNew, input.IsBestSeller, input.Type, input.Size,
		time.Now().UTC(), id)
	if err != nil {
		return nil, apperrors.InternalError("failed to update product", err)
	}
	if err := requireAffected(res, "product"); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.InternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := s.exec(ctx, tx, "DELETE FROM reviews WHERE product_id = ?", id); err != nil {
		return apperrors.InternalError("failed to delete reviews", err)
	}
	res, err := s.exec(ctx, tx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return apperrors.InternalError("failed to delete product", err)
	}
	if err := requireAffected(res, "product"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.InternalError("failed to commit product deletion", err)
	}
	return nil
}

func (s *Store) AddReview(ctx context.Context, productID string, input storage.ReviewInput) (*storage.Review, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM products WHERE id = ?"), productID).Scan(&exists)
	if err != nil {
		return nil, apperrors.InternalError("failed to look up product", err)
	}
	if exists == 0 {
		return nil, apperrors.NotFoundError("product")
	}

	review := &storage.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		Name:      input.Name,
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.exec(ctx, tx, "INSERT INTO reviews (id, product_id, name, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		review.ID, review.ProductID, review.Name, review.Rating, review.Comment, review.CreatedAt); err != nil {
		return nil, apperrors.InternalError("failed to create review", err)
	}

	var (
		count int
		avg   float64
	)
	err = tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*), COALESCE(AVG(rating * 1.0), 0) FROM reviews WHERE product_id = ?"), productID).
		Scan(&count, &avg)
	if err != nil {
		return nil, apperrors.InternalError("failed to aggregate reviews", err)
	}
	if _, err := s.exec(ctx, tx, "UPDATE products SET rating = ?, num_reviews = ?, updated_at = ? WHERE id = ?",
		avg, count, time.Now().UTC(), productID); err != nil {
		return nil, apperrors.InternalError("failed to update product rating", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.InternalError("failed to commit review", err)
	}
	return review, nil
}

func (s *Store) reviews(ctx context.Context, productID string) ([]storage.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT id, product_id, name, rating, comment, created_at FROM reviews WHERE product_id = ? ORDER BY created_at, id"),
		productID)
	if err != nil {
		return nil, apperrors.InternalError("failed to query reviews", err)
	}
	defer rows.Close()

	reviews := []storage.Review{}
	for rows.Next() {
		var r storage.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Name, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, apperrors.InternalError("failed to scan review", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *Store) TopRatedProducts(ctx context.Context, limit int) ([]*storage.Product, error) {
	return s.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY rating DESC, num_reviews DESC, id LIMIT ?", limit)
}

func (s *Store) RecentProducts(ctx context.Context, limit int) ([]*storage.Product, error) {
	return s.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at DESC, id LIMIT ?", limit)
}

func (s *Store) BestSellerProducts(ctx context.Context, limit int) ([]*storage.Product, error) {
	return s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_best_seller = ? ORDER BY rating DESC, id LIMIT ?", true, limit)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.InternalError("failed to read affected rows", err)
	}
	if n == 0 {
		return apperrors.NotFoundError(resource)
	}
	return nil
}
