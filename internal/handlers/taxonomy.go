package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

// TaxonomyHandler provides category and tag endpoints. Mutations are
// admin-only; reads are public.
type TaxonomyHandler struct {
	taxonomy *services.TaxonomyService
}

func NewTaxonomyHandler(taxonomy *services.TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

// CategoryRouter registers category routes on the given router.
func CategoryRouter(r chi.Router, taxonomy *services.TaxonomyService, requireAdmin func(http.Handler) http.Handler) {
	handler := NewTaxonomyHandler(taxonomy)

	r.Get("/", handler.ListCategories)
	r.With(requireAdmin).Post("/", handler.CreateCategory)
	r.Get("/{slug}", handler.ReadCategory)
	r.With(requireAdmin).Delete("/{slug}", handler.DeleteCategory)
}

// TagRouter registers tag routes on the given router.
func TagRouter(r chi.Router, taxonomy *services.TaxonomyService, requireAdmin func(http.Handler) http.Handler) {
	handler := NewTaxonomyHandler(taxonomy)

	r.Get("/", handler.ListTags)
	r.With(requireAdmin).Post("/", handler.CreateTag)
	r.Get("/{slug}", handler.ReadTag)
	r.With(requireAdmin).Delete("/{slug}", handler.DeleteTag)
}

func (h *TaxonomyHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req TaxonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	category, err := h.taxonomy.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeTaxonomyError(w, err, "category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *TaxonomyHandler) ReadCategory(w http.ResponseWriter, r *http.Request) {
	category, blogs, err := h.taxonomy.ReadCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch category")
		return
	}
	writeJSON(w, http.StatusOK, CategoryResponse{Category: category, Blogs: blogs})
}

func (h *TaxonomyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.taxonomy.DeleteCategory(r.Context(), chi.URLParam(r, "slug")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}

func (h *TaxonomyHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TaxonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	tag, err := h.taxonomy.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeTaxonomyError(w, err, "tag")
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TaxonomyHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *TaxonomyHandler) ReadTag(w http.ResponseWriter, r *http.Request) {
	tag, blogs, err := h.taxonomy.ReadTag(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch tag")
		return
	}
	writeJSON(w, http.StatusOK, TagResponse{Tag: tag, Blogs: blogs})
}

func (h *TaxonomyHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.taxonomy.DeleteTag(r.Context(), chi.URLParam(r, "slug")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Tag deleted successfully"})
}

func writeTaxonomyError(w http.ResponseWriter, err error, kind string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, kind+" already exists")
	default:
		writeError(w, http.StatusInternalServerError, "failed to create "+kind)
	}
}

type TaxonomyRequest struct {
	Name string `json:"name"`
}

type CategoryResponse struct {
	Category types.Category `json:"category"`
	Blogs    []types.Blog   `json:"blogs"`
}

type TagResponse struct {
	Tag   types.Tag    `json:"tag"`
	Blogs []types.Blog `json:"blogs"`
}
