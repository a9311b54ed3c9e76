// Package storage defines the blob store abstraction shared by the raw
// document store, the article store and debug capture. Implementations live
// in the local, memory and gcs subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// Content types written by the pipelines.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

var (
	// ErrExists is returned by CreateObject when the path is already taken.
	ErrExists = errors.New("object already exists")
	// ErrNotFound is returned by GetObject for a missing path.
	ErrNotFound = errors.New("object not found")
)

// BlobStore writes and reads whole objects addressed by slash-separated paths.
// Writers never expose partially written objects.
type BlobStore interface {
	// PutObject writes data at path, replacing any previous object, and returns a URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// CreateObject writes data at path only if nothing exists there yet.
	// It returns ErrExists when the path is taken.
	CreateObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// GetObject returns the object's bytes or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// List returns the paths under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
