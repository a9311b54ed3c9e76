// Package dedup persists canonical articles at most once per identity.
package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/normalizer"
	"github.com/greg-randall/townnews/internal/storage"
)

// EventArticleWritten is the publish event for a newly stored article.
const EventArticleWritten = "article.written"

// IdentityDir holds one claim object per identity, whatever the source
// domain. A claim's content is the path of the article that owns it.
const IdentityDir = "_identities"

var (
	// ErrMissingIdentity reports an article without a URL.
	ErrMissingIdentity = errors.New("article has no identity")
	// ErrPersistence reports a storage failure.
	ErrPersistence = errors.New("article persistence failed")
)

// Result says what Write did.
type Result int

// Write results.
const (
	Written Result = iota + 1
	Skipped
)

func (r Result) String() string {
	switch r {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Hasher derives article identities from URLs.
type Hasher interface {
	HashString(s string) string
}

// Publisher announces stored articles.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// ArticleEvent is the payload published for each written article.
type ArticleEvent struct {
	Identity              string `json:"identity"`
	URL                   string `json:"url"`
	SourceDomain          string `json:"source_domain"`
	Location              string `json:"location"`
	FirstSeenTimestampGMT int64  `json:"first_seen_timestamp_gmt"`
}

// Writer stores articles under <source_domain>/<identity>.json after claiming
// the identity under IdentityDir, so a URL seen on two domains is kept once.
type Writer struct {
	store     storage.BlobStore
	hasher    Hasher
	publisher Publisher
	logger    *zap.Logger
}

// NewWriter builds a Writer. publisher may be nil.
func NewWriter(store storage.BlobStore, hasher Hasher, publisher Publisher, logger *zap.Logger) *Writer {
	return &Writer{
		store:     store,
		hasher:    hasher,
		publisher: publisher,
		logger:    logging.OrNop(logger).Named("dedup"),
	}
}

// Identity returns the digest of an article URL.
func (w *Writer) Identity(url string) string {
	return w.hasher.HashString(url)
}

// ObjectPath returns where an article is stored.
func (w *Writer) ObjectPath(article normalizer.Article) string {
	return path.Join(article.SourceDomain, w.Identity(article.URL)+".json")
}

// ClaimPath returns the domain-independent claim object for an identity.
func (w *Writer) ClaimPath(url string) string {
	return path.Join(IdentityDir, w.Identity(url))
}

// Write stores article unless its identity is already claimed or stored.
func (w *Writer) Write(ctx context.Context, article normalizer.Article) (Result, error) {
	if article.URL == "" {
		return 0, fmt.Errorf("%w: empty url", ErrMissingIdentity)
	}
	objectPath := w.ObjectPath(article)

	exists, err := w.store.Exists(ctx, objectPath)
	if err != nil {
		return 0, fmt.Errorf("%w: check %s: %w", ErrPersistence, objectPath, err)
	}
	if exists {
		return Skipped, nil
	}

	owned, err := w.claim(ctx, article.URL, objectPath)
	if err != nil {
		return 0, err
	}
	if !owned {
		return Skipped, nil
	}

	data, err := encode(article)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	uri, err := w.store.CreateObject(ctx, objectPath, storage.ContentTypeJSON, bytes.NewReader(data))
	if errors.Is(err, storage.ErrExists) {
		return Skipped, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrPersistence, objectPath, err)
	}

	w.announce(ctx, article, uri)
	return Written, nil
}

// claim reports whether objectPath owns the identity of url. An existing
// claim naming objectPath is honored so that an article whose write failed
// after its claim can be stored on a later pass.
func (w *Writer) claim(ctx context.Context, url, objectPath string) (bool, error) {
	claimPath := w.ClaimPath(url)
	_, err := w.store.CreateObject(ctx, claimPath, storage.ContentTypeText, strings.NewReader(objectPath))
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrExists) {
		return false, fmt.Errorf("%w: claim %s: %w", ErrPersistence, claimPath, err)
	}
	owner, err := w.store.GetObject(ctx, claimPath)
	if err != nil {
		return false, fmt.Errorf("%w: read claim %s: %w", ErrPersistence, claimPath, err)
	}
	if string(owner) != objectPath {
		w.logger.Debug("identity claimed by another domain",
			zap.String("url", url),
			zap.String("owner", string(owner)),
		)
		return false, nil
	}
	return true, nil
}

func (w *Writer) announce(ctx context.Context, article normalizer.Article, uri string) {
	if w.publisher == nil {
		return
	}
	event := ArticleEvent{
		Identity:              w.Identity(article.URL),
		URL:                   article.URL,
		SourceDomain:          article.SourceDomain,
		Location:              uri,
		FirstSeenTimestampGMT: article.FirstSeenTimestampGMT,
	}
	if _, err := w.publisher.Publish(ctx, EventArticleWritten, event); err != nil {
		w.logger.Warn("publish article event", zap.String("url", article.URL), zap.Error(err))
	}
}

func encode(article normalizer.Article) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(article); err != nil {
		return nil, fmt.Errorf("encode article: %w", err)
	}
	return buf.Bytes(), nil
}
