package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lifenippon/apiserver/internal/storage"
	"github.com/lifenippon/apiserver/internal/store"
	"github.com/lifenippon/apiserver/types"
)

const minPasswordChars = 6

// ProfileUpdate is the writable surface of a user's own profile.
// Empty fields keep their stored values.
type ProfileUpdate struct {
	Name     string
	Email    string
	About    string
	Password string
	Photo    *PhotoUpload
}

// UserService serves profile reads and updates on top of the user
// repository and the photo store.
type UserService struct {
	users  UserRepository
	photos *storage.PhotoStore
}

func NewUserService(users UserRepository, photos *storage.PhotoStore) *UserService {
	return &UserService{users: users, photos: photos}
}

// Get returns the account with the given id.
func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByUsername returns the account behind a public handle.
func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.users.GetByUsername(ctx, strings.ToLower(username))
}

// Update applies a partial profile update for the given account.
// A password change re-salts and re-digests the credential.
func (s *UserService) Update(ctx context.Context, id int, update ProfileUpdate) (types.User, error) {
	if update.Password != "" && len(update.Password) < minPasswordChars {
		return types.User{}, fmt.Errorf("%w: password should be at least %d characters long", ErrInvalidInput, minPasswordChars)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if update.Name != "" {
		user.Name = update.Name
	}
	if update.Email != "" {
		user.Email = normalizeEmail(update.Email)
	}
	if update.About != "" {
		user.About = update.About
	}

	if update.Photo != nil {
		if len(update.Photo.Data) > maxPhotoBytes {
			return types.User{}, fmt.Errorf("%w: image should be less than 1mb in size", ErrInvalidInput)
		}
		key := storage.UserPhotoKey(user.Username)
		if err := s.photos.Put(ctx, key, update.Photo.Data, update.Photo.ContentType); err != nil {
			return types.User{}, fmt.Errorf("storing photo: %w", err)
		}
		user.Photo = types.Photo{ObjectKey: key, ContentType: update.Photo.ContentType}
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	if update.Password != "" {
		salt := MakeSalt()
		if err := s.users.SetPassword(ctx, id, salt, DeriveDigest(update.Password, salt)); err != nil {
			return types.User{}, err
		}
	}

	return updated, nil
}

// Photo opens the stored profile image of the named user.
func (s *UserService) Photo(ctx context.Context, username string) (io.ReadCloser, string, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return nil, "", err
	}
	if user.Photo.ObjectKey == "" {
		return nil, "", store.ErrNotFound
	}
	reader, err := s.photos.Get(ctx, user.Photo.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return reader, user.Photo.ContentType, nil
}
