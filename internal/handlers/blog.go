package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxPhotoBytes      = 1 << 20
)

// BlogHandler provides blog post endpoints.
type BlogHandler struct {
	blogs    *services.BlogService
	users    *services.UserService
	taxonomy *services.TaxonomyService
}

func NewBlogHandler(blogs *services.BlogService, users *services.UserService, taxonomy *services.TaxonomyService) *BlogHandler {
	return &BlogHandler{blogs: blogs, users: users, taxonomy: taxonomy}
}

// BlogRouter registers blog routes on the given router.
func BlogRouter(
	r chi.Router,
	blogs *services.BlogService,
	users *services.UserService,
	taxonomy *services.TaxonomyService,
	requireSignin func(http.Handler) http.Handler,
) {
	handler := NewBlogHandler(blogs, users, taxonomy)

	r.Get("/", handler.List)
	r.With(requireSignin).Post("/", handler.Create)
	r.Post("/list", handler.ListAll)
	r.Get("/search", handler.Search)
	r.Get("/by-user/{username}", handler.ListByUser)
	r.Route("/{slug}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.With(requireSignin).Put("/", handler.Update)
		r.With(requireSignin).Delete("/", handler.Delete)
		r.Get("/related", handler.Related)
		r.Get("/photo", handler.Photo)
	})
}

func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.blogs.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list blogs")
		return
	}

	writeJSON(w, http.StatusOK, BlogListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

// ListAll returns a page of posts along with the full category and
// tag vocabularies, for rendering listing pages in one round trip.
func (h *BlogHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	var req ListAllRequest
	_ = decodeOptionalJSON(r, &req)
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 10
	}
	if req.Skip < 0 {
		req.Skip = 0
	}

	blogs, total, err := h.blogs.List(r.Context(), req.Skip, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list blogs")
		return
	}
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	tags, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}

	writeJSON(w, http.StatusOK, ListAllResponse{
		Blogs:      blogs,
		Categories: categories,
		Tags:       tags,
		Size:       total,
	})
}

func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	blog, err := h.blogs.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch blog")
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input, err := parseBlogForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogs.Create(r.Context(), input, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "a blog with that title already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create blog")
		}
		return
	}

	writeJSON(w, http.StatusCreated, blog)
}

func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !h.authorize(w, r, slug) {
		return
	}

	input, err := parseBlogForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogs.Update(r.Context(), slug, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "blog not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update blog")
		}
		return
	}

	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !h.authorize(w, r, slug) {
		return
	}

	if err := h.blogs.Delete(r.Context(), slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete blog")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Blog deleted successfully"})
}

func (h *BlogHandler) Related(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.blogs.Related(r.Context(), chi.URLParam(r, "slug"), 3)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list related blogs")
		return
	}
	writeJSON(w, http.StatusOK, blogs)
}

func (h *BlogHandler) Search(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.blogs.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search blogs")
		return
	}
	writeJSON(w, http.StatusOK, blogs)
}

func (h *BlogHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.blogs.ListByUsername(r.Context(), chi.URLParam(r, "username"), 10)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list blogs")
		return
	}
	writeJSON(w, http.StatusOK, blogs)
}

// Photo streams the post's cover image.
func (h *BlogHandler) Photo(w http.ResponseWriter, r *http.Request) {
	reader, contentType, err := h.blogs.Photo(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	_, _ = io.Copy(w, reader)
}

// authorize permits the post's author and admins; everyone else gets
// a 403. A missing post surfaces as 404 downstream.
func (h *BlogHandler) authorize(w http.ResponseWriter, r *http.Request, slug string) bool {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}

	blog, err := h.blogs.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return false
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch blog")
		return false
	}
	if blog.PostedBy.ID == userID {
		return true
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil || !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "you are not allowed to modify this blog")
		return false
	}
	return true
}

func parseBlogForm(r *http.Request) (services.BlogInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.BlogInput{}, errors.New("could not parse form")
	}

	input := services.BlogInput{
		Title:         r.FormValue("title"),
		Body:          r.FormValue("body"),
		CategorySlugs: splitCommaList(r.FormValue("categories")),
		TagSlugs:      splitCommaList(r.FormValue("tags")),
	}

	photo, err := parsePhotoFile(r, "photo")
	if err != nil {
		return services.BlogInput{}, err
	}
	input.Photo = photo
	return input, nil
}

// parsePhotoFile reads an optional uploaded image, enforcing the
// size cap before buffering the whole file.
func parsePhotoFile(r *http.Request, field string) (*services.PhotoUpload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("could not read photo")
	}
	defer file.Close()

	if header.Size > maxPhotoBytes {
		return nil, errors.New("image should be less than 1mb in size")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		return nil, errors.New("could not read photo")
	}
	if len(data) > maxPhotoBytes {
		return nil, errors.New("image should be less than 1mb in size")
	}

	return &services.PhotoUpload{
		Data:        data,
		ContentType: photoContentType(header, data),
	}, nil
}

func photoContentType(header *multipart.FileHeader, data []byte) string {
	if contentType := header.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return http.DetectContentType(data)
}

func splitCommaList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type BlogListResponse struct {
	Items []types.Blog `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

type ListAllRequest struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
}

type ListAllResponse struct {
	Blogs      []types.Blog     `json:"blogs"`
	Categories []types.Category `json:"categories"`
	Tags       []types.Tag      `json:"tags"`
	Size       int              `json:"size"`
}
