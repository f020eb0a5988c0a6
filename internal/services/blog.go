package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosimple/slug"
	"github.com/lifenippon/apiserver/internal/storage"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
	"github.com/microcosm-cc/bluemonday"
)

// ErrInvalidInput marks business validation failures; handlers map it
// to a 400 with the wrapped message.
var ErrInvalidInput = errors.New("invalid input")

const (
	minBodyChars  = 100
	excerptLength = 320
	metaDescChars = 160
	maxPhotoBytes = 1 << 20
)

// BlogRepository defines persistence operations for blog posts.
type BlogRepository interface {
	GetBySlug(ctx context.Context, slug string) (types.Blog, error)
	Create(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error)
	Update(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error)
	Delete(ctx context.Context, slug string) error
	List(ctx context.Context, offset, limit int) ([]types.Blog, int, error)
	ListRelated(ctx context.Context, blogID int, categoryIDs []int, limit int) ([]types.Blog, error)
	Search(ctx context.Context, search string) ([]types.Blog, error)
	ListByAuthor(ctx context.Context, userID int, limit int) ([]types.Blog, error)
	ListByCategory(ctx context.Context, categoryID int) ([]types.Blog, error)
	ListByTag(ctx context.Context, tagID int) ([]types.Blog, error)
}

// CategoryResolver resolves category slugs to rows.
type CategoryResolver interface {
	GetBySlugs(ctx context.Context, slugs []string) ([]types.Category, error)
}

// TagResolver resolves tag slugs to rows.
type TagResolver interface {
	GetBySlugs(ctx context.Context, slugs []string) ([]types.Tag, error)
}

// PhotoUpload is an image accepted from a multipart form.
type PhotoUpload struct {
	Data        []byte
	ContentType string
}

// BlogInput is the writable surface of a post.
type BlogInput struct {
	Title         string
	Body          string
	CategorySlugs []string
	TagSlugs      []string
	Photo         *PhotoUpload
}

// BlogService encapsulates blog post use-cases: slug and SEO metadata
// derivation, category/tag association, and cover photo storage.
type BlogService struct {
	blogs      BlogRepository
	users      UserRepository
	categories CategoryResolver
	tags       TagResolver
	photos     *storage.PhotoStore
	appName    string
	sanitizer  *bluemonday.Policy
}

func NewBlogService(
	blogs BlogRepository,
	users UserRepository,
	categories CategoryResolver,
	tags TagResolver,
	photos *storage.PhotoStore,
	appName string,
) *BlogService {
	return &BlogService{
		blogs:      blogs,
		users:      users,
		categories: categories,
		tags:       tags,
		photos:     photos,
		appName:    appName,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Create validates the input, derives slug, excerpt and SEO metadata,
// stores the cover photo, and persists the post.
func (s *BlogService) Create(ctx context.Context, input BlogInput, authorID int) (types.Blog, error) {
	if err := validateBlogInput(input); err != nil {
		return types.Blog{}, err
	}

	categoryIDs, tagIDs, err := s.resolveTaxonomy(ctx, input.CategorySlugs, input.TagSlugs)
	if err != nil {
		return types.Blog{}, err
	}

	blogSlug := slug.Make(input.Title)
	plain := s.sanitizer.Sanitize(input.Body)

	blog := types.Blog{
		Title:     input.Title,
		Slug:      blogSlug,
		Body:      input.Body,
		Excerpt:   smartTrim(plain, excerptLength),
		MetaTitle: fmt.Sprintf("%s | %s", input.Title, s.appName),
		MetaDesc:  truncate(plain, metaDescChars),
		PostedBy:  types.Author{ID: authorID},
	}

	if input.Photo != nil {
		key := storage.BlogPhotoKey(blogSlug)
		if err := s.photos.Put(ctx, key, input.Photo.Data, input.Photo.ContentType); err != nil {
			return types.Blog{}, fmt.Errorf("storing photo: %w", err)
		}
		blog.Photo = types.Photo{ObjectKey: key, ContentType: input.Photo.ContentType}
	}

	return s.blogs.Create(ctx, blog, categoryIDs, tagIDs)
}

// Update rewrites an existing post in place. The slug never changes.
// Empty input fields keep their stored values.
func (s *BlogService) Update(ctx context.Context, blogSlug string, input BlogInput) (types.Blog, error) {
	current, err := s.blogs.GetBySlug(ctx, blogSlug)
	if err != nil {
		return types.Blog{}, err
	}

	if input.Title != "" {
		current.Title = input.Title
		current.MetaTitle = fmt.Sprintf("%s | %s", input.Title, s.appName)
	}
	if input.Body != "" {
		if len(input.Body) < minBodyChars {
			return types.Blog{}, fmt.Errorf("%w: content is too short, write at least %d characters", ErrInvalidInput, minBodyChars)
		}
		plain := s.sanitizer.Sanitize(input.Body)
		current.Body = input.Body
		current.Excerpt = smartTrim(plain, excerptLength)
		current.MetaDesc = truncate(plain, metaDescChars)
	}

	var categoryIDs, tagIDs []int
	if len(input.CategorySlugs) > 0 {
		categoryIDs, err = s.resolveCategoryIDs(ctx, input.CategorySlugs)
		if err != nil {
			return types.Blog{}, err
		}
	}
	if len(input.TagSlugs) > 0 {
		tagIDs, err = s.resolveTagIDs(ctx, input.TagSlugs)
		if err != nil {
			return types.Blog{}, err
		}
	}

	if input.Photo != nil {
		if len(input.Photo.Data) > maxPhotoBytes {
			return types.Blog{}, fmt.Errorf("%w: image should be less than 1mb in size", ErrInvalidInput)
		}
		key := storage.BlogPhotoKey(blogSlug)
		if err := s.photos.Put(ctx, key, input.Photo.Data, input.Photo.ContentType); err != nil {
			return types.Blog{}, fmt.Errorf("storing photo: %w", err)
		}
		current.Photo = types.Photo{ObjectKey: key, ContentType: input.Photo.ContentType}
	}

	return s.blogs.Update(ctx, current, categoryIDs, tagIDs)
}

func (s *BlogService) Get(ctx context.Context, slug string) (types.Blog, error) {
	return s.blogs.GetBySlug(ctx, slug)
}

// Delete removes the post and, best effort, its stored photo.
func (s *BlogService) Delete(ctx context.Context, slug string) error {
	blog, err := s.blogs.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.blogs.Delete(ctx, slug); err != nil {
		return err
	}
	if blog.Photo.ObjectKey != "" {
		_ = s.photos.Delete(ctx, blog.Photo.ObjectKey)
	}
	return nil
}

func (s *BlogService) List(ctx context.Context, offset, limit int) ([]types.Blog, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.blogs.List(ctx, offset, limit)
}

// Related returns posts sharing a category with the given post.
func (s *BlogService) Related(ctx context.Context, slug string, limit int) ([]types.Blog, error) {
	blog, err := s.blogs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	categoryIDs := make([]int, len(blog.Categories))
	for i, category := range blog.Categories {
		categoryIDs[i] = category.ID
	}
	return s.blogs.ListRelated(ctx, blog.ID, categoryIDs, limit)
}

func (s *BlogService) Search(ctx context.Context, search string) ([]types.Blog, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return []types.Blog{}, nil
	}
	return s.blogs.Search(ctx, search)
}

// ListByUsername returns the posts authored by the named user.
func (s *BlogService) ListByUsername(ctx context.Context, username string, limit int) ([]types.Blog, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return nil, err
	}
	return s.blogs.ListByAuthor(ctx, user.ID, limit)
}

func (s *BlogService) ListByCategory(ctx context.Context, categoryID int) ([]types.Blog, error) {
	return s.blogs.ListByCategory(ctx, categoryID)
}

func (s *BlogService) ListByTag(ctx context.Context, tagID int) ([]types.Blog, error) {
	return s.blogs.ListByTag(ctx, tagID)
}

// Photo opens the stored cover image of a post.
func (s *BlogService) Photo(ctx context.Context, slug string) (io.ReadCloser, string, error) {
	blog, err := s.blogs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, "", err
	}
	if blog.Photo.ObjectKey == "" {
		return nil, "", store.ErrNotFound
	}
	reader, err := s.photos.Get(ctx, blog.Photo.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return reader, blog.Photo.ContentType, nil
}

func (s *BlogService) resolveTaxonomy(ctx context.Context, categorySlugs, tagSlugs []string) ([]int, []int, error) {
	categoryIDs, err := s.resolveCategoryIDs(ctx, categorySlugs)
	if err != nil {
		return nil, nil, err
	}
	tagIDs, err := s.resolveTagIDs(ctx, tagSlugs)
	if err != nil {
		return nil, nil, err
	}
	return categoryIDs, tagIDs, nil
}

func (s *BlogService) resolveCategoryIDs(ctx context.Context, slugs []string) ([]int, error) {
	categories, err := s.categories.GetBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: at least one valid category is required", ErrInvalidInput)
	}
	ids := make([]int, len(categories))
	for i, category := range categories {
		ids[i] = category.ID
	}
	return ids, nil
}

func (s *BlogService) resolveTagIDs(ctx context.Context, slugs []string) ([]int, error) {
	tags, err := s.tags.GetBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: at least one valid tag is required", ErrInvalidInput)
	}
	ids := make([]int, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids, nil
}

func validateBlogInput(input BlogInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(input.Body) < minBodyChars {
		return fmt.Errorf("%w: content is too short, write at least %d characters", ErrInvalidInput, minBodyChars)
	}
	if len(input.CategorySlugs) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
	}
	if len(input.TagSlugs) == 0 {
		return fmt.Errorf("%w: at least one tag is required", ErrInvalidInput)
	}
	if input.Photo != nil && len(input.Photo.Data) > maxPhotoBytes {
		return fmt.Errorf("%w: image should be less than 1mb in size", ErrInvalidInput)
	}
	return nil
}

// smartTrim cuts plain text to at most limit characters, backing up
// to the last word boundary, and appends an ellipsis when trimmed.
// The limit counts runes, not bytes, so multibyte text is never cut
// mid-character.
func smartTrim(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	trimmed := runes[:limit]
	for i := len(trimmed) - 1; i > 0; i-- {
		if trimmed[i] == ' ' {
			trimmed = trimmed[:i]
			break
		}
	}
	return string(trimmed) + "..."
}

func truncate(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
