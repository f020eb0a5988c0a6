package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lifenippon/apiserver/internal/storage"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

// --- mocks ---

type mockBlogRepo struct {
	getBySlugFn    func(ctx context.Context, slug string) (types.Blog, error)
	createFn       func(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error)
	updateFn       func(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error)
	deleteFn       func(ctx context.Context, slug string) error
	listFn         func(ctx context.Context, offset, limit int) ([]types.Blog, int, error)
	listRelatedFn  func(ctx context.Context, blogID int, categoryIDs []int, limit int) ([]types.Blog, error)
	searchFn       func(ctx context.Context, search string) ([]types.Blog, error)
	listByAuthorFn func(ctx context.Context, userID int, limit int) ([]types.Blog, error)
}

func (m *mockBlogRepo) GetBySlug(ctx context.Context, slug string) (types.Blog, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return types.Blog{}, store.ErrNotFound
}

func (m *mockBlogRepo) Create(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
	if m.createFn != nil {
		return m.createFn(ctx, blog, categoryIDs, tagIDs)
	}
	blog.ID = 1
	return blog, nil
}

func (m *mockBlogRepo) Update(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, blog, categoryIDs, tagIDs)
	}
	return blog, nil
}

func (m *mockBlogRepo) Delete(ctx context.Context, slug string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, slug)
	}
	return nil
}

func (m *mockBlogRepo) List(ctx context.Context, offset, limit int) ([]types.Blog, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockBlogRepo) ListRelated(ctx context.Context, blogID int, categoryIDs []int, limit int) ([]types.Blog, error) {
	if m.listRelatedFn != nil {
		return m.listRelatedFn(ctx, blogID, categoryIDs, limit)
	}
	return nil, nil
}

func (m *mockBlogRepo) Search(ctx context.Context, search string) ([]types.Blog, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, search)
	}
	return nil, nil
}

func (m *mockBlogRepo) ListByAuthor(ctx context.Context, userID int, limit int) ([]types.Blog, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockBlogRepo) ListByCategory(ctx context.Context, categoryID int) ([]types.Blog, error) {
	return nil, nil
}

func (m *mockBlogRepo) ListByTag(ctx context.Context, tagID int) ([]types.Blog, error) {
	return nil, nil
}

type mockCategoryResolver struct {
	getBySlugsFn func(ctx context.Context, slugs []string) ([]types.Category, error)
}

func (m *mockCategoryResolver) GetBySlugs(ctx context.Context, slugs []string) ([]types.Category, error) {
	if m.getBySlugsFn != nil {
		return m.getBySlugsFn(ctx, slugs)
	}
	out := make([]types.Category, len(slugs))
	for i, s := range slugs {
		out[i] = types.Category{ID: i + 1, Name: s, Slug: s}
	}
	return out, nil
}

type mockTagResolver struct {
	getBySlugsFn func(ctx context.Context, slugs []string) ([]types.Tag, error)
}

func (m *mockTagResolver) GetBySlugs(ctx context.Context, slugs []string) ([]types.Tag, error) {
	if m.getBySlugsFn != nil {
		return m.getBySlugsFn(ctx, slugs)
	}
	out := make([]types.Tag, len(slugs))
	for i, s := range slugs {
		out[i] = types.Tag{ID: i + 1, Name: s, Slug: s}
	}
	return out, nil
}

// memoryBackend is an in-memory object store for tests.
type memoryBackend struct {
	objects map[string][]byte
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: make(map[string][]byte)}
}

func (b *memoryBackend) EnsureBucket(ctx context.Context) error { return nil }

func (b *memoryBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *memoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memoryBackend) Delete(ctx context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

var _ BlogRepository = (*mockBlogRepo)(nil)
var _ CategoryResolver = (*mockCategoryResolver)(nil)
var _ TagResolver = (*mockTagResolver)(nil)
var _ storage.Backend = (*memoryBackend)(nil)

type blogFixture struct {
	repo    *mockBlogRepo
	users   *mockUserRepo
	backend *memoryBackend
	svc     *BlogService
}

func newBlogFixture(t *testing.T) *blogFixture {
	t.Helper()
	f := &blogFixture{
		repo:    &mockBlogRepo{},
		users:   &mockUserRepo{},
		backend: newMemoryBackend(),
	}
	f.svc = NewBlogService(
		f.repo,
		f.users,
		&mockCategoryResolver{},
		&mockTagResolver{},
		storage.NewPhotoStore(f.backend),
		"Lifenippon",
	)
	return f
}

func longBody(prefix string, n int) string {
	return prefix + strings.Repeat("x", n)
}

// --- tests ---

func TestBlogCreate_DerivesSlugAndMetadata(t *testing.T) {
	f := newBlogFixture(t)
	var savedBlog types.Blog
	var savedCategories, savedTags []int
	f.repo.createFn = func(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
		savedBlog, savedCategories, savedTags = blog, categoryIDs, tagIDs
		blog.ID = 1
		return blog, nil
	}

	body := "<p>" + longBody("Opening words of the article. ", 400) + "</p>"
	blog, err := f.svc.Create(context.Background(), BlogInput{
		Title:         "Hello, Tokyo Life!",
		Body:          body,
		CategorySlugs: []string{"life"},
		TagSlugs:      []string{"tokyo"},
	}, 7)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if savedBlog.Slug != "hello-tokyo-life" {
		t.Errorf("slug = %q, want %q", savedBlog.Slug, "hello-tokyo-life")
	}
	if savedBlog.MetaTitle != "Hello, Tokyo Life! | Lifenippon" {
		t.Errorf("meta title = %q", savedBlog.MetaTitle)
	}
	if strings.Contains(savedBlog.Excerpt, "<p>") {
		t.Errorf("excerpt not stripped of markup: %q", savedBlog.Excerpt)
	}
	if !strings.HasSuffix(savedBlog.Excerpt, "...") {
		t.Errorf("long body excerpt missing ellipsis: %q", savedBlog.Excerpt)
	}
	if len(savedBlog.Excerpt) > excerptLength+3 {
		t.Errorf("excerpt length = %d, want <= %d", len(savedBlog.Excerpt), excerptLength+3)
	}
	if len(savedBlog.MetaDesc) > metaDescChars {
		t.Errorf("meta description length = %d, want <= %d", len(savedBlog.MetaDesc), metaDescChars)
	}
	if savedBlog.PostedBy.ID != 7 {
		t.Errorf("author id = %d, want 7", savedBlog.PostedBy.ID)
	}
	if len(savedCategories) != 1 || len(savedTags) != 1 {
		t.Errorf("joins = (%v, %v), want one of each", savedCategories, savedTags)
	}
	if blog.ID != 1 {
		t.Errorf("blog id = %d, want 1", blog.ID)
	}
}

func TestBlogCreate_Validation(t *testing.T) {
	f := newBlogFixture(t)
	body := longBody("content ", 200)

	cases := []struct {
		name  string
		input BlogInput
	}{
		{"missing title", BlogInput{Body: body, CategorySlugs: []string{"life"}, TagSlugs: []string{"tokyo"}}},
		{"short body", BlogInput{Title: "T", Body: "too short", CategorySlugs: []string{"life"}, TagSlugs: []string{"tokyo"}}},
		{"no categories", BlogInput{Title: "T", Body: body, TagSlugs: []string{"tokyo"}}},
		{"no tags", BlogInput{Title: "T", Body: body, CategorySlugs: []string{"life"}}},
		{"oversized photo", BlogInput{
			Title: "T", Body: body,
			CategorySlugs: []string{"life"}, TagSlugs: []string{"tokyo"},
			Photo: &PhotoUpload{Data: make([]byte, maxPhotoBytes+1), ContentType: "image/png"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), tc.input, 7); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestBlogCreate_StoresPhoto(t *testing.T) {
	f := newBlogFixture(t)

	_, err := f.svc.Create(context.Background(), BlogInput{
		Title:         "With Photo",
		Body:          longBody("content ", 200),
		CategorySlugs: []string{"life"},
		TagSlugs:      []string{"tokyo"},
		Photo:         &PhotoUpload{Data: []byte("png-bytes"), ContentType: "image/png"},
	}, 7)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, ok := f.backend.objects[storage.BlogPhotoKey("with-photo")]; !ok {
		t.Error("photo was not stored under the blog key")
	}
}

func TestBlogUpdate_SlugIsImmutable(t *testing.T) {
	f := newBlogFixture(t)
	f.repo.getBySlugFn = func(ctx context.Context, slug string) (types.Blog, error) {
		return types.Blog{ID: 1, Title: "Old Title", Slug: "old-title", Body: longBody("old ", 200)}, nil
	}
	var saved types.Blog
	f.repo.updateFn = func(ctx context.Context, blog types.Blog, categoryIDs, tagIDs []int) (types.Blog, error) {
		saved = blog
		return blog, nil
	}

	_, err := f.svc.Update(context.Background(), "old-title", BlogInput{Title: "Completely New Title"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if saved.Slug != "old-title" {
		t.Errorf("slug changed to %q on update", saved.Slug)
	}
	if saved.Title != "Completely New Title" {
		t.Errorf("title = %q", saved.Title)
	}
	if saved.MetaTitle != "Completely New Title | Lifenippon" {
		t.Errorf("meta title = %q", saved.MetaTitle)
	}
}

func TestBlogDelete_RemovesStoredPhoto(t *testing.T) {
	f := newBlogFixture(t)
	key := storage.BlogPhotoKey("doomed")
	f.backend.objects[key] = []byte("png-bytes")
	f.repo.getBySlugFn = func(ctx context.Context, slug string) (types.Blog, error) {
		return types.Blog{ID: 1, Slug: "doomed", Photo: types.Photo{ObjectKey: key}}, nil
	}

	if err := f.svc.Delete(context.Background(), "doomed"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := f.backend.objects[key]; ok {
		t.Error("photo still stored after delete")
	}
}

func TestSmartTrim(t *testing.T) {
	if got := smartTrim("short text", 320); got != "short text" {
		t.Errorf("smartTrim(short) = %q", got)
	}

	long := strings.Repeat("word ", 100)
	got := smartTrim(long, 320)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("trimmed text missing ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
		t.Errorf("trimmed text ends mid-boundary: %q", got)
	}
	if len(got) > 323 {
		t.Errorf("trimmed length = %d, want <= 323", len(got))
	}
}

func TestSmartTrimMultibyte(t *testing.T) {
	long := strings.Repeat("日本での生活", 60)
	got := smartTrim(long, 320)
	if !utf8.ValidString(got) {
		t.Errorf("trimmed text is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("trimmed text missing ellipsis: %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 320 {
		t.Errorf("trimmed rune count = %d, want 320", n)
	}

	meta := truncate(long, 160)
	if !utf8.ValidString(meta) {
		t.Errorf("truncated text is not valid UTF-8: %q", meta)
	}
	if n := utf8.RuneCountInString(meta); n != 160 {
		t.Errorf("truncated rune count = %d, want 160", n)
	}
}
