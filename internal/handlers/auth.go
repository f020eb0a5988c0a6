package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/types"
)

const sessionCookieTTL = 24 * time.Hour

// AuthHandler provides the account lifecycle endpoints: two-step
// email-activated signup, signin, signout, password reset, and
// Google login.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth *services.AuthService) {
	handler := NewAuthHandler(auth)

	r.Post("/pre-signup", handler.PreSignup)
	r.Post("/signup", handler.Signup)
	r.Post("/signin", handler.Signin)
	r.Get("/signout", handler.Signout)
	r.Put("/forgot-password", handler.ForgotPassword)
	r.Put("/reset-password", handler.ResetPassword)
	r.Post("/google-login", handler.GoogleLogin)
}

// PreSignup validates the registration details and emails an
// activation link. No account is created yet.
func (h *AuthHandler) PreSignup(w http.ResponseWriter, r *http.Request) {
	var req PreSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password should be at least 6 characters long")
		return
	}

	if err := h.auth.PreSignup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email is taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start signup")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Email has been sent to " + req.Email + ". Follow the instructions to activate your account.",
	})
}

// Signup redeems an activation token and creates the account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusUnauthorized, "something went wrong, try again")
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrActivationExpired):
			writeError(w, http.StatusUnauthorized, "expired link, signup again")
		case errors.Is(err, services.ErrActivationInvalid):
			writeError(w, http.StatusBadRequest, "invalid activation link")
		case errors.Is(err, services.ErrDuplicateAccount):
			writeError(w, http.StatusConflict, "account already activated, please signin")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{
		Message: "Signup success! Please signin.",
		User:    user,
	})
}

// Signin verifies credentials, sets the session cookie, and returns
// the session token with the public account view.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, user, err := h.auth.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusBadRequest, "user with that email does not exist, please signup")
		case errors.Is(err, services.ErrBadCredentials):
			writeError(w, http.StatusBadRequest, "email and password do not match")
		default:
			writeError(w, http.StatusInternalServerError, "failed to sign in")
		}
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Signout clears the session cookie. The token itself stays valid
// until it expires; signout is a client-side affair.
func (h *AuthHandler) Signout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Signout success"})
}

// ForgotPassword emails a reset link. Unknown addresses are reported
// explicitly; a new request overwrites any outstanding reset link.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusBadRequest, "user with that email does not exist")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send reset email")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Email has been sent to " + req.Email + ". Follow the instructions to reset your password. Link expires in 10 minutes.",
	})
}

// ResetPassword redeems a reset link and sets the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.ResetPasswordLink == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "reset link and new password are required")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "password should be at least 6 characters long")
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.ResetPasswordLink, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrResetExpired):
			writeError(w, http.StatusUnauthorized, "expired link, try again")
		case errors.Is(err, services.ErrResetLinkStale):
			writeError(w, http.StatusUnauthorized, "reset link is no longer valid, request a new one")
		case errors.Is(err, services.ErrResetInvalid):
			writeError(w, http.StatusBadRequest, "invalid reset link")
		default:
			writeError(w, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Great! Now you can login with your new password.",
	})
}

// GoogleLogin signs in (or signs up) with a Google identity token.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id token is required")
		return
	}

	token, user, err := h.auth.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIdentityInvalid):
			writeError(w, http.StatusUnauthorized, "google login failed, try again")
		case errors.Is(err, services.ErrIdentityNotVerified):
			writeError(w, http.StatusForbidden, "google account email is not verified")
		default:
			writeError(w, http.StatusInternalServerError, "failed to sign in")
		}
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type PreSignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Token string `json:"token"`
}

type SignupResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	ResetPasswordLink string `json:"resetPasswordLink"`
	NewPassword       string `json:"newPassword"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"tokenId"`
}
