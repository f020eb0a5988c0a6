package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

// UserHandler provides profile endpoints.
type UserHandler struct {
	users *services.UserService
	blogs *services.BlogService
}

func NewUserHandler(users *services.UserService, blogs *services.BlogService) *UserHandler {
	return &UserHandler{users: users, blogs: blogs}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, blogs *services.BlogService, requireSignin func(http.Handler) http.Handler) {
	handler := NewUserHandler(users, blogs)

	r.With(requireSignin).Get("/profile", handler.Profile)
	r.With(requireSignin).Put("/update", handler.Update)
	r.Get("/{username}", handler.PublicProfile)
	r.Get("/photo/{username}", handler.Photo)
}

// Profile returns the signed-in user's own account.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// Update applies a partial profile update from a multipart form.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	update, err := parseProfileForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Update(r.Context(), userID, update)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "email or username already in use")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// PublicProfile returns the public view of a user with their posts.
func (h *UserHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	blogs, err := h.blogs.ListByUsername(r.Context(), username, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load posts")
		return
	}

	writeJSON(w, http.StatusOK, PublicProfileResponse{User: user.Public(), Blogs: blogs})
}

// Photo streams the user's profile picture.
func (h *UserHandler) Photo(w http.ResponseWriter, r *http.Request) {
	reader, contentType, err := h.users.Photo(r.Context(), chi.URLParam(r, "username"))
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

func parseProfileForm(r *http.Request) (services.ProfileUpdate, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.ProfileUpdate{}, errors.New("could not parse form")
	}

	update := services.ProfileUpdate{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		About:    r.FormValue("about"),
		Password: r.FormValue("password"),
	}

	photo, err := parsePhotoFile(r, "photo")
	if err != nil {
		return services.ProfileUpdate{}, err
	}
	update.Photo = photo
	return update, nil
}

type PublicProfileResponse struct {
	User  types.User   `json:"user"`
	Blogs []types.Blog `json:"blogs"`
}
