package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/storage"
)

func (s *Store) ListCategories(ctx context.Context) ([]*storage.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM categories ORDER BY name")
	if err != nil {
		return nil, apperrors.InternalError("failed to query categories", err)
	}
	defer rows.Close()

	categories := []*storage.Category{}
	for rows.Next() {
		var c storage.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperrors.InternalError("failed to scan category", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.InternalError("failed to iterate categories", err)
	}
	return categories, nil
}

func (s *Store) getCategory(ctx context.Context, id string) (*storage.Category, error) {
	var c storage.Category
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT id, name, created_at, updated_at FROM categories WHERE id = ?"), id).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundError("category")
	}
	if err != nil {
		return nil, apperrors.InternalError("failed to get category", err)
	}
	return &c, nil
}

func (s *Store) categoryNameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM categories WHERE name = ? AND id <> ?"), name, exceptID).Scan(&n)
	if err != nil {
		return false, apperrors.InternalError("failed to check category name", err)
	}
	return n > 0, nil
}

func (s *Store) CreateCategory(ctx context.Context, input storage.CategoryInput) (*storage.Category, error) {
	taken, err := s.categoryNameTaken(ctx, input.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ValidationError("category already exists")
	}

	now := time.Now().UTC()
	c := &storage.Category{ID: uuid.NewString(), Name: input.Name, CreatedAt: now, UpdatedAt: now}
	if _, err := s.exec(ctx, s.db, "INSERT INTO categories (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, apperrors.InternalError("failed to create category", err)
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, input storage.CategoryInput) (*storage.Category, error) {
	taken, err := s.categoryNameTaken(ctx, input.Name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ValidationError("category already exists")
	}

	res, err := s.exec(ctx, s.db, "UPDATE categories SET name = ?, updated_at = ? WHERE id = ?", input.Name, time.Now().UTC(), id)
	if err != nil {
		return nil, apperrors.InternalError("failed to update category", err)
	}
	if err := requireAffected(res, "category"); err != nil {
		return nil, err
	}
	return s.getCategory(ctx, id)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return apperrors.InternalError("failed to delete category", err)
	}
	return requireAffected(res, "category")
}
