// Package storage persists uploaded photos in object storage. Rows
// keep only the object key and content type; bytes live in the
// configured bucket (MinIO or Google Cloud Storage).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/lifenippon/apiserver/config"
)

// Backend defines the object operations the photo store needs.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// PhotoStore stores user and blog photos under stable keys.
type PhotoStore struct {
	backend Backend
}

func NewPhotoStore(backend Backend) *PhotoStore {
	return &PhotoStore{backend: backend}
}

// NewBackend constructs the object storage backend named by cfg.Backend.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Photos.Backend {
	case "minio":
		return NewMinioBackend(cfg.Minio)
	case "gcs":
		return NewGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown photo storage backend %q", cfg.Photos.Backend)
	}
}

// UserPhotoKey returns the object key for a user's profile photo.
func UserPhotoKey(username string) string {
	return "users/" + username
}

// BlogPhotoKey returns the object key for a blog post's cover photo.
func BlogPhotoKey(slug string) string {
	return "blogs/" + slug
}

// EnsureBucket ensures the photo bucket exists.
func (s *PhotoStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put stores photo bytes under the given key.
func (s *PhotoStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// Get opens a reader for the photo stored under the given key.
func (s *PhotoStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes the photo stored under the given key.
func (s *PhotoStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}
