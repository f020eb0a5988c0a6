package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/lifenippon/apiserver/types"
)

// CategoryRepository defines persistence for categories.
type CategoryRepository interface {
	Create(ctx context.Context, category types.Category) (types.Category, error)
	List(ctx context.Context) ([]types.Category, error)
	GetBySlug(ctx context.Context, slug string) (types.Category, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]types.Category, error)
	Delete(ctx context.Context, slug string) error
}

// TagRepository defines persistence for tags.
type TagRepository interface {
	Create(ctx context.Context, tag types.Tag) (types.Tag, error)
	List(ctx context.Context) ([]types.Tag, error)
	GetBySlug(ctx context.Context, slug string) (types.Tag, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]types.Tag, error)
	Delete(ctx context.Context, slug string) error
}

// TaxonomyService manages the category and tag vocabularies and the
// "taxonomy page" reads that pair a term with its posts.
type TaxonomyService struct {
	categories CategoryRepository
	tags       TagRepository
	blogs      BlogRepository
}

func NewTaxonomyService(categories CategoryRepository, tags TagRepository, blogs BlogRepository) *TaxonomyService {
	return &TaxonomyService{categories: categories, tags: tags, blogs: blogs}
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, name string) (types.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Category{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.categories.Create(ctx, types.Category{Name: name, Slug: slug.Make(name)})
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]types.Category, error) {
	return s.categories.List(ctx)
}

// ReadCategory returns the category together with the posts filed
// under it.
func (s *TaxonomyService) ReadCategory(ctx context.Context, categorySlug string) (types.Category, []types.Blog, error) {
	category, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return types.Category{}, nil, err
	}
	blogs, err := s.blogs.ListByCategory(ctx, category.ID)
	if err != nil {
		return types.Category{}, nil, err
	}
	return category, blogs, nil
}

func (s *TaxonomyService) DeleteCategory(ctx context.Context, categorySlug string) error {
	return s.categories.Delete(ctx, categorySlug)
}

func (s *TaxonomyService) CreateTag(ctx context.Context, name string) (types.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Tag{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.tags.Create(ctx, types.Tag{Name: name, Slug: slug.Make(name)})
}

func (s *TaxonomyService) ListTags(ctx context.Context) ([]types.Tag, error) {
	return s.tags.List(ctx)
}

// ReadTag returns the tag together with the posts carrying it.
func (s *TaxonomyService) ReadTag(ctx context.Context, tagSlug string) (types.Tag, []types.Blog, error) {
	tag, err := s.tags.GetBySlug(ctx, tagSlug)
	if err != nil {
		return types.Tag{}, nil, err
	}
	blogs, err := s.blogs.ListByTag(ctx, tag.ID)
	if err != nil {
		return types.Tag{}, nil, err
	}
	return tag, blogs, nil
}

func (s *TaxonomyService) DeleteTag(ctx context.Context, tagSlug string) error {
	return s.tags.Delete(ctx, tagSlug)
}
