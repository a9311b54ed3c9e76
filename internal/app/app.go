// Package app builds the long-lived services shared by the commands and
// releases them when a command finishes.
package app

import (
	"context"
	"fmt"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	chromedpbrowser "github.com/greg-randall/townnews/internal/browser/chromedp"
	"github.com/greg-randall/townnews/internal/browser/direct"
	"github.com/greg-randall/townnews/internal/clock/system"
	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/config"
	"github.com/greg-randall/townnews/internal/dedup"
	"github.com/greg-randall/townnews/internal/hash/sha256"
	"github.com/greg-randall/townnews/internal/id/uuid"
	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/metrics"
	"github.com/greg-randall/townnews/internal/pipeline"
	memorypub "github.com/greg-randall/townnews/internal/publisher/memory"
	"github.com/greg-randall/townnews/internal/publisher/pubsub"
	"github.com/greg-randall/townnews/internal/storage"
	"github.com/greg-randall/townnews/internal/storage/gcs"
	"github.com/greg-randall/townnews/internal/storage/local"
	"github.com/greg-randall/townnews/internal/storage/memory"
	"github.com/greg-randall/townnews/internal/storage/postgres"
	"github.com/greg-randall/townnews/internal/summary"
)

const metricsPushTimeout = 10 * time.Second

// Publisher announces written articles and can be shut down.
type Publisher interface {
	dedup.Publisher
	Close() error
}

// Closer is a service released by App.Close.
type Closer interface {
	Close() error
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// App holds the services shared by the commands. Optional services are nil
// when not configured.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Raw       storage.BlobStore
	Articles  storage.BlobStore
	Debug     storage.BlobStore
	Publisher Publisher
	Ledger    summary.Ledger

	closers map[string]Closer
	order   []string
}

// New builds an App from cfg. It fails fast when a configured service cannot
// be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logging.OrNop(logger),
		closers: make(map[string]Closer),
	}
	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initDebug(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Logger.Info("services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("engine", cfg.Browser.Engine),
		zap.Bool("ledger", a.Ledger != nil),
		zap.Bool("publisher", a.Publisher != nil),
	)
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config.Storage
	switch cfg.Provider {
	case config.ProviderLocal:
		raw, err := local.New(local.Config{BaseDir: cfg.RawDir})
		if err != nil {
			return fmt.Errorf("init raw store: %w", err)
		}
		articles, err := local.New(local.Config{BaseDir: cfg.ArticlesDir})
		if err != nil {
			return fmt.Errorf("init article store: %w", err)
		}
		a.Raw, a.Articles = raw, articles
	case config.ProviderGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.addCloser("gcs client", client)
		raw, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.RawPrefix})
		if err != nil {
			return fmt.Errorf("init raw store: %w", err)
		}
		articles, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.ArticlesPrefix})
		if err != nil {
			return fmt.Errorf("init article store: %w", err)
		}
		a.Raw, a.Articles = raw, articles
	case config.ProviderMemory:
		a.Raw, a.Articles = memory.NewBlobStore(), memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
	return nil
}

func (a *App) initDebug() error {
	dir := a.Config.Collect.DebugDir
	if dir == "" {
		return nil
	}
	if a.Config.Storage.Provider == config.ProviderMemory {
		a.Debug = memory.NewBlobStore()
		return nil
	}
	debug, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		return fmt.Errorf("init debug store: %w", err)
	}
	a.Debug = debug
	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	cfg := a.Config.SummaryStore
	if cfg.DSN == "" {
		return nil
	}
	store, err := postgres.NewSummaryStore(ctx, postgres.SummaryStoreConfig{
		DSN:             cfg.DSN,
		Table:           cfg.Table,
		MaxConns:        cfg.MaxConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("init summary store: %w", err)
	}
	a.addCloser("summary store", closeFunc(func() error {
		store.Close()
		return nil
	}))
	a.Ledger = store
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	cfg := a.Config.PubSub
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		// In-process runs keep the article events for inspection.
		if a.Config.Storage.Provider == config.ProviderMemory {
			a.Publisher = memorypub.New()
		}
		return nil
	}
	pub, err := pubsub.Dial(ctx, cfg.ProjectID, cfg.TopicID)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	a.addCloser("publisher", pub)
	a.Publisher = pub
	return nil
}

func (a *App) addCloser(name string, c Closer) {
	if a.closers == nil {
		a.closers = make(map[string]Closer)
	}
	a.closers[name] = c
	a.order = append(a.order, name)
}

// Launcher returns the browser launcher for the configured engine.
func (a *App) Launcher() collector.Launcher {
	cfg := a.Config.Browser
	if cfg.Engine == config.EngineHTTP {
		return direct.NewLauncher(direct.Config{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.NavigationTimeout,
		}, a.Logger)
	}
	return chromedpbrowser.NewLauncher(chromedpbrowser.Config{
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
	}, a.Logger)
}

// Collector wires the collection pipeline around launcher.
func (a *App) Collector(launcher collector.Launcher) *pipeline.Collector {
	cfg := a.Config.Collect
	fetcher := collector.NewPageFetcher(collector.FetchConfig{
		WaitTime:        cfg.WaitTime,
		Selector:        cfg.Selector,
		SelectorTimeout: cfg.SelectorTimeout,
	}, collector.TimerPauser{}, a.Debug, a.Logger)
	orchestrator := collector.NewOrchestrator(
		launcher,
		fetcher,
		collector.TimerPauser{},
		collector.UniformDelay{Min: cfg.DelayMin, Max: cfg.DelayMax},
		a.Logger,
	)
	return pipeline.NewCollector(orchestrator, a.Raw, a.Ledger, system.New(), uuid.New(), a.Logger)
}

// Normalizer wires the normalization pipeline.
func (a *App) Normalizer() *pipeline.Normalizer {
	var pub dedup.Publisher
	if a.Publisher != nil {
		pub = a.Publisher
	}
	return pipeline.NewNormalizer(pipeline.NormalizerConfig{
		Raw:      a.Raw,
		Articles: a.Articles,
		Writer:   dedup.NewWriter(a.Articles, sha256.New(), pub, a.Logger),
		Ledger:   a.Ledger,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Source:   a.Config.Normalize.Source,
		Logger:   a.Logger,
	})
}

// Close pushes metrics when configured and releases services in reverse
// order of creation. Errors are logged.
func (a *App) Close() {
	if a.Config.Metrics.PushURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
		if err := metrics.Push(ctx, a.Config.Metrics.PushURL, a.Config.Metrics.Job); err != nil {
			a.Logger.Warn("push metrics", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.order) - 1; i >= 0; i-- {
		name := a.order[i]
		if err := a.closers[name].Close(); err != nil {
			a.Logger.Warn("close service", zap.String("service", name), zap.Error(err))
		}
	}
	a.order = nil
	a.closers = nil
}

// GetLogger returns the shared logger.
func (a *App) GetLogger() *zap.Logger { return a.Logger }

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config { return a.Config }

// Collect fetches every target with the configured engine and stores the
// raw documents.
func (a *App) Collect(ctx context.Context, targets []collector.Target) (pipeline.CollectResult, error) {
	return a.Collector(a.Launcher()).Collect(ctx, targets)
}

// Normalize processes batch, or every stored batch when batch is empty.
func (a *App) Normalize(ctx context.Context, batch string) (pipeline.NormalizeResult, error) {
	return a.Normalizer().Run(ctx, batch)
}
