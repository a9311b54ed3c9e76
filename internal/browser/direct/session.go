// Package direct fetches search pages over plain HTTP with colly, for sites
// whose endpoint answers with bare JSON and needs no script execution.
package direct

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/logging"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Launcher builds sessions sharing one HTTP transport.
type Launcher struct {
	cfg       Config
	transport *http.Transport
	logger    *zap.Logger
}

var _ collector.Launcher = (*Launcher)(nil)

// NewLauncher returns a Launcher for cfg.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Launcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		logger:    logging.OrNop(logger).Named("direct"),
	}
}

// Launch prepares a collector. It does no I/O.
func (l *Launcher) Launch(context.Context) (collector.Session, error) {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(l.transport)
	c.SetRequestTimeout(l.cfg.Timeout)
	if l.cfg.UserAgent != "" {
		c.UserAgent = l.cfg.UserAgent
	}
	return &Session{base: c, transport: l.transport, logger: l.logger}, nil
}

// Session issues one isolated request per Open.
type Session struct {
	base      *colly.Collector
	transport *http.Transport
	logger    *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type response struct {
	status int
	body   []byte
	err    error
}

// Open performs the GET. Error statuses still yield a Tab holding whatever the
// server sent, matching what a browser would render.
func (s *Session) Open(ctx context.Context, url string) (collector.Tab, error) {
	c := s.base.Clone()
	var resp response
	configureHooks(c, &resp)

	if err := runCollector(ctx, c, url); err != nil && resp.status == 0 {
		return nil, err
	}
	if resp.status == 0 && resp.err != nil {
		return nil, fmt.Errorf("colly response failed: %w", resp.err)
	}
	if resp.status >= http.StatusBadRequest {
		s.logger.Debug("error status", zap.String("url", url), zap.Int("status", resp.status))
	}
	return &Tab{status: resp.status, body: resp.body}, nil
}

// Close releases idle connections.
func (s *Session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func configureHooks(hooks collectorHooks, resp *response) {
	hooks.OnResponse(func(r *colly.Response) {
		resp.status = r.StatusCode
		resp.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		resp.err = err
		if r != nil && r.StatusCode != 0 {
			resp.status = r.StatusCode
			resp.body = append([]byte(nil), r.Body...)
		}
	})
}

func runCollector(ctx context.Context, c *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// Tab holds a fetched response body.
type Tab struct {
	status int
	body   []byte
}

// WaitReady checks the static document for selector; nothing renders later,
// so there is nothing to wait for.
func (t *Tab) WaitReady(_ context.Context, selector string, _ time.Duration) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(t.body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("selector %q not found", selector)
	}
	return nil
}

// Content returns the response body.
func (t *Tab) Content(context.Context) (string, error) {
	return string(t.body), nil
}

// Close is a no-op.
func (t *Tab) Close() error { return nil }

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
