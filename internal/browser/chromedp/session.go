// Package chromedp runs collector sessions in headless Chrome.
package chromedp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/logging"
)

const defaultNavigationTimeout = 45 * time.Second

// Config controls the browser process.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Launcher starts Chrome on demand.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

var _ collector.Launcher = (*Launcher)(nil)

// NewLauncher returns a Launcher for cfg.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &Launcher{cfg: cfg, logger: logging.OrNop(logger).Named("chromedp")}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if l.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts the browser and waits for it to accept commands. The browser
// lives until Session.Close, independent of ctx.
func (l *Launcher) Launch(ctx context.Context) (collector.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stopForward := forwardCancel(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stopForward()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	l.logger.Info("browser started", zap.Bool("headless", l.cfg.Headless))
	return &Session{
		cfg:           l.cfg,
		logger:        l.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Session is a running browser.
type Session struct {
	cfg           Config
	logger        *zap.Logger
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
}

// Open creates a new target in its own browser context, so no cookies or
// storage carry over between sites, and navigates it to url. The browser
// context is disposed when the tab closes.
func (s *Session) Open(ctx context.Context, url string) (collector.Tab, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithNewBrowserContext())
	// The first Run binds the target's lifetime to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("create tab: %w", err)
	}

	tab := &Tab{ctx: tabCtx, cancel: tabCancel, meta: newResponseMeta(), logger: s.logger}
	chromedp.ListenTarget(tabCtx, tab.meta.captureEvent)

	err := tab.run(ctx, s.cfg.NavigationTimeout,
		s.networkSetupAction(),
		chromedp.Navigate(url),
	)
	if err != nil {
		_ = tab.Close()
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return tab, nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// Close shuts the browser down.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(s.browserCtx); cerr != nil {
			err = fmt.Errorf("close browser: %w", cerr)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return err
}

// Tab is one browser target.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	meta   *responseMeta
	logger *zap.Logger
}

// WaitReady waits for selector to be ready in the DOM.
func (t *Tab) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if err := t.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// contentScript returns the response text for documents Chrome shows in its
// plain-text viewer (JSON, text/plain), so entities are not introduced, and
// the serialized DOM for everything else.
const contentScript = `(() => {
  const pre = document.querySelector("pre");
  if (pre && /json|text\/plain/i.test(document.contentType)) {
    return pre.textContent;
  }
  return document.documentElement.outerHTML;
})()`

// Content returns the page text: the raw body for JSON and plain-text
// responses, the serialized DOM otherwise.
func (t *Tab) Content(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, 0, chromedp.Evaluate(contentScript, &html)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	status, url := t.meta.snapshot()
	t.logger.Debug("page captured",
		zap.Int("status", status),
		zap.String("url", url),
		zap.Int("bytes", len(html)),
	)
	return html, nil
}

// Close closes the target.
func (t *Tab) Close() error {
	err := chromedp.Cancel(t.ctx)
	t.cancel()
	if err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// run executes actions on the tab, bounded by timeout when positive and by
// the caller's ctx.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(t.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(t.ctx)
	}
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	return chromedp.Run(runCtx, actions...)
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
