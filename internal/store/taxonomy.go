package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/lifenippon/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	const query = `
		INSERT INTO categories (name, slug)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, category.Name, category.Slug).Scan(&category.ID); err != nil {
		return types.Category{}, translateConstraint(err)
	}
	return category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	const query = `SELECT id, name, slug FROM categories ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		var category types.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (types.Category, error) {
	const query = `SELECT id, name, slug FROM categories WHERE slug = $1`
	var category types.Category
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&category.ID, &category.Name, &category.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return category, nil
}

// GetBySlugs resolves a set of category slugs to rows; slugs with no
// matching row are silently absent from the result.
func (r *CategoryRepository) GetBySlugs(ctx context.Context, slugs []string) ([]types.Category, error) {
	const query = `SELECT id, name, slug FROM categories WHERE slug = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(slugs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []types.Category
	for rows.Next() {
		var category types.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Delete(ctx context.Context, slug string) error {
	const query = `DELETE FROM categories WHERE slug = $1`
	result, err := r.db.ExecContext(ctx, query, slug)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TagRepository handles persistence for tags.
type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Create(ctx context.Context, tag types.Tag) (types.Tag, error) {
	const query = `
		INSERT INTO tags (name, slug)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, tag.Name, tag.Slug).Scan(&tag.ID); err != nil {
		return types.Tag{}, translateConstraint(err)
	}
	return tag, nil
}

func (r *TagRepository) List(ctx context.Context) ([]types.Tag, error) {
	const query = `SELECT id, name, slug FROM tags ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []types.Tag{}
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *TagRepository) GetBySlug(ctx context.Context, slug string) (types.Tag, error) {
	const query = `SELECT id, name, slug FROM tags WHERE slug = $1`
	var tag types.Tag
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tag{}, ErrNotFound
		}
		return types.Tag{}, err
	}
	return tag, nil
}

// GetBySlugs resolves a set of tag slugs to rows; slugs with no
// matching row are silently absent from the result.
func (r *TagRepository) GetBySlugs(ctx context.Context, slugs []string) ([]types.Tag, error) {
	const query = `SELECT id, name, slug FROM tags WHERE slug = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(slugs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []types.Tag
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *TagRepository) Delete(ctx context.Context, slug string) error {
	const query = `DELETE FROM tags WHERE slug = $1`
	result, err := r.db.ExecContext(ctx, query, slug)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
