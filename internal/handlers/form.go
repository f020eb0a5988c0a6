package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/lifenippon/apiserver/internal/mailer"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/internal/store"
)

const minMessageChars = 20

// FormHandler serves the contact form: messages to the site owners
// and messages relayed to a post's author.
type FormHandler struct {
	mail      mailer.Sender
	users     *services.UserService
	contactTo string
}

func NewFormHandler(mail mailer.Sender, users *services.UserService, contactTo string) *FormHandler {
	return &FormHandler{mail: mail, users: users, contactTo: contactTo}
}

// FormRouter registers contact form routes on the given router.
func FormRouter(r chi.Router, mail mailer.Sender, users *services.UserService, contactTo string) {
	handler := NewFormHandler(mail, users, contactTo)

	r.Post("/contact", handler.Contact)
	r.Post("/contact-blog-author", handler.ContactBlogAuthor)
}

// Contact forwards a visitor message to the site contact address.
func (h *FormHandler) Contact(w http.ResponseWriter, r *http.Request) {
	req, err := parseContactRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.mail.Send(r.Context(), contactEmail(h.contactTo, req)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Thank you for contacting us."})
}

// ContactBlogAuthor relays a visitor message to the named author.
// The author's address is looked up server side and never echoed
// back to the caller.
func (h *FormHandler) ContactBlogAuthor(w http.ResponseWriter, r *http.Request) {
	req, err := parseContactRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.AuthorUsername) == "" {
		writeError(w, http.StatusBadRequest, "author username is required")
		return
	}

	author, err := h.users.GetByUsername(r.Context(), req.AuthorUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "author not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	if err := h.mail.Send(r.Context(), contactEmail(author.Email, req)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Your message has been sent to the author."})
}

func parseContactRequest(r *http.Request) (ContactRequest, error) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ContactRequest{}, errors.New("invalid request")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		return ContactRequest{}, errors.New("name, email and message are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return ContactRequest{}, errors.New("invalid email address")
	}
	if utf8.RuneCountInString(req.Message) < minMessageChars {
		return ContactRequest{}, fmt.Errorf("must be a message of at least %d characters", minMessageChars)
	}
	return req, nil
}

func contactEmail(to string, req ContactRequest) mailer.Email {
	return mailer.Email{
		To:      []string{to},
		Subject: fmt.Sprintf("Contact form message from %s", req.Name),
		Text:    fmt.Sprintf("Sender name: %s\nSender email: %s\n\n%s", req.Name, req.Email, req.Message),
		HTML: fmt.Sprintf(
			"<h4>Message received from the contact form</h4><p>Sender name: %s</p><p>Sender email: %s</p><p>%s</p>",
			html.EscapeString(req.Name), html.EscapeString(req.Email), html.EscapeString(req.Message),
		),
	}
}

type ContactRequest struct {
	AuthorUsername string `json:"authorUsername,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
}
