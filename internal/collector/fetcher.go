package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/metrics"
	"github.com/greg-randall/townnews/internal/storage"
)

// DefaultSelectorTimeout bounds the readiness wait when none is configured.
const DefaultSelectorTimeout = 10 * time.Second

// FetchConfig tunes a single page fetch.
type FetchConfig struct {
	// WaitTime is the fixed settle pause after navigation.
	WaitTime time.Duration
	// Selector marks the page as ready.
	Selector        string
	SelectorTimeout time.Duration
}

// PageFetcher loads one target in its own tab and extracts its JSON.
type PageFetcher struct {
	cfg    FetchConfig
	pauser Pauser
	debug  storage.BlobStore
	logger *zap.Logger
}

// NewPageFetcher builds a PageFetcher. debug may be nil to disable capture
// of failed pages.
func NewPageFetcher(cfg FetchConfig, pauser Pauser, debug storage.BlobStore, logger *zap.Logger) *PageFetcher {
	if cfg.Selector == "" {
		cfg.Selector = "body"
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = DefaultSelectorTimeout
	}
	if pauser == nil {
		pauser = TimerPauser{}
	}
	return &PageFetcher{
		cfg:    cfg,
		pauser: pauser,
		debug:  debug,
		logger: logging.OrNop(logger),
	}
}

// Fetch never returns an error; every failure is folded into the Outcome.
func (f *PageFetcher) Fetch(ctx context.Context, session Session, target Target) Outcome {
	start := time.Now()
	outcome := f.fetch(ctx, session, target)

	status := metrics.StatusSuccess
	if outcome.Err != nil {
		status = metrics.StatusError
		f.logger.Warn("fetch failed",
			zap.String("domain", target.Domain),
			zap.String("url", target.URL),
			zap.Error(outcome.Err),
		)
		f.captureDebug(ctx, outcome)
	}
	metrics.ObserveFetch(target.URL, status, len(outcome.Document.Raw()), time.Since(start))
	return outcome
}

func (f *PageFetcher) fetch(ctx context.Context, session Session, target Target) Outcome {
	outcome := Outcome{Target: target}

	tab, err := session.Open(ctx, target.URL)
	if err != nil {
		outcome.Err = fmt.Errorf("open %s: %w", target.URL, err)
		return outcome
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			f.logger.Debug("close tab", zap.String("domain", target.Domain), zap.Error(cerr))
		}
	}()

	f.pauser.Pause(ctx, f.cfg.WaitTime)

	if err := tab.WaitReady(ctx, f.cfg.Selector, f.cfg.SelectorTimeout); err != nil {
		f.logger.Debug("readiness wait ended without match",
			zap.String("domain", target.Domain),
			zap.String("selector", f.cfg.Selector),
			zap.Error(err),
		)
	}

	content, err := tab.Content(ctx)
	if err != nil {
		outcome.Err = fmt.Errorf("read content: %w", err)
		return outcome
	}

	doc, err := Extract(content)
	if err != nil {
		outcome.Err = err
		outcome.RawContent = content
		return outcome
	}
	outcome.Document = doc
	return outcome
}

func (f *PageFetcher) captureDebug(ctx context.Context, outcome Outcome) {
	if f.debug == nil || outcome.RawContent == "" {
		return
	}
	name := SanitizeDomain(outcome.Target.Domain) + ".html"
	uri, err := f.debug.PutObject(ctx, name, storage.ContentTypeHTML, strings.NewReader(outcome.RawContent))
	if err != nil {
		f.logger.Warn("write debug page", zap.String("domain", outcome.Target.Domain), zap.Error(err))
		return
	}
	f.logger.Info("saved debug page", zap.String("domain", outcome.Target.Domain), zap.String("path", uri))
}
