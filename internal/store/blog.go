package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/lifenippon/apiserver/types"
)

const blogColumns = `b.id, b.title, b.slug, b.body, b.excerpt, b.mtitle, b.mdesc,
		b.photo_key, b.photo_content_type, b.created_at, b.updated_at,
		u.id, u.username, u.name, u.profile`

const blogSummaryColumns = `b.id, b.title, b.slug, '', b.excerpt, b.mtitle, b.mdesc,
		b.photo_key, b.photo_content_type, b.created_at, b.updated_at,
		u.id, u.username, u.name, u.profile`

// BlogRepository handles persistence for blog posts and their
// category/tag associations.
type BlogRepository struct {
	db *sql.DB
}

func NewBlogRepository(db *sql.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (types.Blog, error) {
	const query = `
		SELECT ` + blogColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		WHERE b.slug = $1`
	blog, err := r.scanOne(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		return types.Blog{}, err
	}
	if err := r.attachTaxonomy(ctx, []*types.Blog{&blog}); err != nil {
		return types.Blog{}, err
	}
	return blog, nil
}

func (r *BlogRepository) Create(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
	now := time.Now()
	blog.CreatedAt = now
	blog.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Blog{}, err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO blogs (title, slug, body, excerpt, mtitle, mdesc, photo_key, photo_content_type,
			posted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		blog.Title,
		blog.Slug,
		blog.Body,
		blog.Excerpt,
		blog.MetaTitle,
		blog.MetaDesc,
		blog.Photo.ObjectKey,
		blog.Photo.ContentType,
		blog.PostedBy.ID,
		blog.CreatedAt,
		blog.UpdatedAt,
	).Scan(&blog.ID); err != nil {
		return types.Blog{}, translateConstraint(err)
	}

	if err := replaceJoins(ctx, tx, "blog_categories", "category_id", blog.ID, categoryIDs); err != nil {
		return types.Blog{}, err
	}
	if err := replaceJoins(ctx, tx, "blog_tags", "tag_id", blog.ID, tagIDs); err != nil {
		return types.Blog{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Blog{}, err
	}
	return r.GetBySlug(ctx, blog.Slug)
}

// Update rewrites the post content in place. The slug never changes.
// Nil category/tag slices leave the existing associations untouched.
func (r *BlogRepository) Update(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
	blog.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Blog{}, err
	}
	defer tx.Rollback()

	const query = `
		UPDATE blogs
		SET title = $1,
			body = $2,
			excerpt = $3,
			mtitle = $4,
			mdesc = $5,
			photo_key = $6,
			photo_content_type = $7,
			updated_at = $8
		WHERE slug = $9
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		blog.Title,
		blog.Body,
		blog.Excerpt,
		blog.MetaTitle,
		blog.MetaDesc,
		blog.Photo.ObjectKey,
		blog.Photo.ContentType,
		blog.UpdatedAt,
		blog.Slug,
	).Scan(&blog.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, translateConstraint(err)
	}

	if categoryIDs != nil {
		if err := replaceJoins(ctx, tx, "blog_categories", "category_id", blog.ID, categoryIDs); err != nil {
			return types.Blog{}, err
		}
	}
	if tagIDs != nil {
		if err := replaceJoins(ctx, tx, "blog_tags", "tag_id", blog.ID, tagIDs); err != nil {
			return types.Blog{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Blog{}, err
	}
	return r.GetBySlug(ctx, blog.Slug)
}

func (r *BlogRepository) Delete(ctx context.Context, slug string) error {
	const query = `DELETE FROM blogs WHERE slug = $1`
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

// List returns post summaries (no body), newest first.
func (r *BlogRepository) List(ctx context.Context, offset, limit int) ([]types.Blog, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	const countQuery = `SELECT COUNT(1) FROM blogs`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		ORDER BY b.created_at DESC
		OFFSET $1 LIMIT $2`
	blogs, err := r.queryMany(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return blogs, total, nil
}

// ListRelated returns summaries of other posts sharing at least one
// of the given categories.
func (r *BlogRepository) ListRelated(ctx context.Context, blogID int, categoryIDs []int, limit int) ([]types.Blog, error) {
	if limit < 1 {
		limit = 3
	}
	const query = `
		SELECT DISTINCT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		JOIN blog_categories bc ON bc.blog_id = b.id
		WHERE b.id <> $1 AND bc.category_id = ANY($2)
		LIMIT $3`
	return r.queryMany(ctx, query, blogID, pq.Array(categoryIDs), limit)
}

// Search matches the query string case-insensitively against title
// and body.
func (r *BlogRepository) Search(ctx context.Context, search string) ([]types.Blog, error) {
	const query = `
		SELECT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		WHERE b.title ILIKE $1 OR b.body ILIKE $1
		ORDER BY b.created_at DESC`
	return r.queryMany(ctx, query, "%"+search+"%")
}

func (r *BlogRepository) ListByAuthor(ctx context.Context, userID int, limit int) ([]types.Blog, error) {
	if limit < 1 {
		limit = 10
	}
	const query = `
		SELECT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		WHERE b.posted_by = $1
		ORDER BY b.created_at DESC
		LIMIT $2`
	return r.queryMany(ctx, query, userID, limit)
}

func (r *BlogRepository) ListByCategory(ctx context.Context, categoryID int) ([]types.Blog, error) {
	const query = `
		SELECT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		JOIN blog_categories bc ON bc.blog_id = b.id
		WHERE bc.category_id = $1
		ORDER BY b.created_at DESC`
	return r.queryMany(ctx, query, categoryID)
}

func (r *BlogRepository) ListByTag(ctx context.Context, tagID int) ([]types.Blog, error) {
	const query = `
		SELECT ` + blogSummaryColumns + `
		FROM blogs b
		JOIN users u ON u.id = b.posted_by
		JOIN blog_tags bt ON bt.blog_id = b.id
		WHERE bt.tag_id = $1
		ORDER BY b.created_at DESC`
	return r.queryMany(ctx, query, tagID)
}

func (r *BlogRepository) queryMany(ctx context.Context, query string, args ...any) ([]types.Blog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []types.Blog
	for rows.Next() {
		blog, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*types.Blog, len(blogs))
	for i := range blogs {
		refs[i] = &blogs[i]
	}
	if err := r.attachTaxonomy(ctx, refs); err != nil {
		return nil, err
	}
	return blogs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BlogRepository) scanOne(row rowScanner) (types.Blog, error) {
	var blog types.Blog
	err := row.Scan(
		&blog.ID,
		&blog.Title,
		&blog.Slug,
		&blog.Body,
		&blog.Excerpt,
		&blog.MetaTitle,
		&blog.MetaDesc,
		&blog.Photo.ObjectKey,
		&blog.Photo.ContentType,
		&blog.CreatedAt,
		&blog.UpdatedAt,
		&blog.PostedBy.ID,
		&blog.PostedBy.Username,
		&blog.PostedBy.Name,
		&blog.PostedBy.Profile,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, err
	}
	return blog, nil
}

// attachTaxonomy loads categories and tags for the given posts in two
// batched queries.
func (r *BlogRepository) attachTaxonomy(ctx context.Context, blogs []*types.Blog) error {
	if len(blogs) == 0 {
		return nil
	}

	ids := make([]int, len(blogs))
	byID := make(map[int]*types.Blog, len(blogs))
	for i, blog := range blogs {
		ids[i] = blog.ID
		byID[blog.ID] = blog
		blog.Categories = []types.Category{}
		blog.Tags = []types.Tag{}
	}

	const categoriesQuery = `
		SELECT bc.blog_id, c.id, c.name, c.slug
		FROM blog_categories bc
		JOIN categories c ON c.id = bc.category_id
		WHERE bc.blog_id = ANY($1)
		ORDER BY c.name`
	rows, err := r.db.QueryContext(ctx, categoriesQuery, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var blogID int
		var category types.Category
		if err := rows.Scan(&blogID, &category.ID, &category.Name, &category.Slug); err != nil {
			rows.Close()
			return err
		}
		if blog := byID[blogID]; blog != nil {
			blog.Categories = append(blog.Categories, category)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	const tagsQuery = `
		SELECT bt.blog_id, t.id, t.name, t.slug
		FROM blog_tags bt
		JOIN tags t ON t.id = bt.tag_id
		WHERE bt.blog_id = ANY($1)
		ORDER BY t.name`
	rows, err = r.db.QueryContext(ctx, tagsQuery, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var blogID int
		var tag types.Tag
		if err := rows.Scan(&blogID, &tag.ID, &tag.Name, &tag.Slug); err != nil {
			return err
		}
		if blog := byID[blogID]; blog != nil {
			blog.Tags = append(blog.Tags, tag)
		}
	}
	return rows.Err()
}

func replaceJoins(ctx context.Context, tx *sql.Tx, table, column string, blogID int, ids []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE blog_id = $1`, blogID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO `+table+` (blog_id, `+column+`) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			blogID,
			id,
		); err != nil {
			return err
		}
	}
	return nil
}
