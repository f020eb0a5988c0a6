package types

import "time"

// Role values assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique, lowercase short identifier generated at
	// signup. It doubles as the public handle in profile URLs.
	Username string `json:"username" db:"username"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique, lowercase email address.
	Email string `json:"email" db:"email"`

	// Profile is the absolute URL of the user's public profile page.
	Profile string `json:"profile" db:"profile"`

	// About is an optional free-form self description.
	About string `json:"about,omitempty" db:"about"`

	// Role indicates the user's authorization level
	// (RoleUser or RoleAdmin).
	Role string `json:"role" db:"role"`

	// Salt is the random per-account value mixed into the password
	// digest. Generated once when the password is set and replaced
	// only on password reset. Never exposed in API responses.
	Salt string `json:"-" db:"salt"`

	// HashedPassword stores the salted digest of the user's password.
	// Never exposed in API responses.
	HashedPassword string `json:"-" db:"hashed_password"`

	// ResetPasswordLink holds the token string of the currently
	// outstanding password-reset request, or "" when there is none.
	// Each new reset request overwrites it, invalidating older links.
	ResetPasswordLink string `json:"-" db:"reset_password_link"`

	// Photo references the user's profile photo in object storage.
	Photo Photo `json:"photo,omitzero" db:"photo"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Photo references an uploaded image held in object storage.
type Photo struct {
	// ObjectKey is the identifier of the image in the photo bucket.
	ObjectKey string `json:"-" db:"photo_key"`

	// ContentType is the MIME type recorded at upload time.
	ContentType string `json:"content_type,omitempty" db:"photo_content_type"`
}

// Public returns a projection of the user that is safe to hand to
// clients: credential material and storage keys are stripped.
func (u User) Public() User {
	u.Salt = ""
	u.HashedPassword = ""
	u.ResetPasswordLink = ""
	u.Photo.ObjectKey = ""
	return u
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
