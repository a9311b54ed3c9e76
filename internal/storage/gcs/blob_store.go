// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	blob "github.com/greg-randall/townnews/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix scopes every object path, e.g. "raw" or "normalized".
	Prefix string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ blob.BlobStore = (*BlobStore)(nil)

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
// GCS only makes an object visible once the writer closes successfully.
func (s *BlobStore) PutObject(ctx context.Context, p string, contentType string, r io.Reader) (string, error) {
	name, err := s.objectName(p)
	if err != nil {
		return "", err
	}
	return s.upload(ctx, s.client.Bucket(s.bucket).Object(name), name, contentType, r)
}

// CreateObject uploads data with a DoesNotExist precondition, so an existing
// object is never replaced.
func (s *BlobStore) CreateObject(ctx context.Context, p string, contentType string, r io.Reader) (string, error) {
	name, err := s.objectName(p)
	if err != nil {
		return "", err
	}
	obj := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	uri, err := s.upload(ctx, obj, name, contentType, r)
	if isPreconditionFailed(err) {
		return "", fmt.Errorf("create %s: %w", p, blob.ErrExists)
	}
	return uri, err
}

// Exists checks the object's attributes.
func (s *BlobStore) Exists(ctx context.Context, p string) (bool, error) {
	name, err := s.objectName(p)
	if err != nil {
		return false, err
	}
	_, err = s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("object attrs %s: %w", name, err)
	}
}

// GetObject downloads the object.
func (s *BlobStore) GetObject(ctx context.Context, p string) ([]byte, error) {
	name, err := s.objectName(p)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("read %s: %w", p, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open reader %s: %w", name, err)
	}
	defer reader.Close() //nolint:errcheck // read-only handle
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// List returns object paths under prefix, relative to the store prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := &storage.Query{Prefix: s.join(prefix)}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		out = append(out, s.relative(attrs.Name))
	}
	sort.Strings(out)
	return out, nil
}

// upload streams r into obj. A failed copy cancels the writer's context
// before Close so that no partial object is committed.
func (s *BlobStore) upload(ctx context.Context, obj *storage.ObjectHandle, name, contentType string, r io.Reader) (string, error) {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := obj.NewWriter(writeCtx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

func (s *BlobStore) objectName(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("path is required")
	}
	return s.join(p), nil
}

func (s *BlobStore) join(p string) string {
	p = strings.TrimLeft(p, "/")
	if s.prefix == "" {
		return p
	}
	if p == "" {
		return s.prefix + "/"
	}
	return path.Join(s.prefix, p)
}

func (s *BlobStore) relative(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, s.prefix+"/")
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
