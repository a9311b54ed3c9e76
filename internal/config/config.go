// Package config loads and validates townnews configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Browser engines.
const (
	EngineChromedp = "chromedp"
	EngineHTTP     = "http"
)

// Storage providers.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Collect      CollectConfig      `mapstructure:"collect"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Normalize    NormalizeConfig    `mapstructure:"normalize"`
	Storage      StorageConfig      `mapstructure:"storage"`
	SummaryStore SummaryStoreConfig `mapstructure:"summary_store"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// CollectConfig governs the fetch pass over the domain list.
type CollectConfig struct {
	DomainsFile     string        `mapstructure:"domains_file"`
	WaitTime        time.Duration `mapstructure:"wait_time"`
	Selector        string        `mapstructure:"selector"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
	DelayMin        time.Duration `mapstructure:"delay_min"`
	DelayMax        time.Duration `mapstructure:"delay_max"`
	DebugDir        string        `mapstructure:"debug_dir"`
}

// BrowserConfig selects and tunes the page engine.
type BrowserConfig struct {
	Engine            string        `mapstructure:"engine"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// NormalizeConfig holds normalization settings.
type NormalizeConfig struct {
	Source string `mapstructure:"source"`
}

// StorageConfig sets where raw documents and articles live.
type StorageConfig struct {
	Provider       string `mapstructure:"provider"`
	RawDir         string `mapstructure:"raw_dir"`
	ArticlesDir    string `mapstructure:"articles_dir"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	RawPrefix      string `mapstructure:"raw_prefix"`
	ArticlesPrefix string `mapstructure:"articles_prefix"`
}

// SummaryStoreConfig controls the optional Postgres run ledger.
type SummaryStoreConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for article notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig configures the optional Pushgateway.
type MetricsConfig struct {
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOWNNEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collect.domains_file", "townnews.txt")
	v.SetDefault("collect.wait_time", "3s")
	v.SetDefault("collect.selector", "body")
	v.SetDefault("collect.selector_timeout", "10s")
	v.SetDefault("collect.delay_min", "3s")
	v.SetDefault("collect.delay_max", "15s")
	v.SetDefault("collect.debug_dir", "debug_pages")
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("normalize.source", "townnews")
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.raw_dir", "raw_news_data")
	v.SetDefault("storage.articles_dir", "normalized_news")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.raw_prefix", "raw")
	v.SetDefault("storage.articles_prefix", "normalized")
	v.SetDefault("summary_store.dsn", "")
	v.SetDefault("summary_store.table", "run_summaries")
	v.SetDefault("summary_store.max_conns", 2)
	v.SetDefault("summary_store.max_conn_lifetime", "30m")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("metrics.push_url", "")
	v.SetDefault("metrics.job", "townnews")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Collect.DomainsFile == "" {
		return fmt.Errorf("collect.domains_file is required")
	}
	if c.Collect.WaitTime < 0 {
		return fmt.Errorf("collect.wait_time must be >= 0")
	}
	if c.Collect.SelectorTimeout <= 0 {
		return fmt.Errorf("collect.selector_timeout must be > 0")
	}
	if c.Collect.DelayMin < 0 || c.Collect.DelayMax < 0 {
		return fmt.Errorf("collect.delay_min and collect.delay_max must be >= 0")
	}
	if c.Collect.DelayMin > c.Collect.DelayMax {
		return fmt.Errorf("collect.delay_min must be <= collect.delay_max")
	}
	switch c.Browser.Engine {
	case EngineChromedp, EngineHTTP:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineChromedp, EngineHTTP, c.Browser.Engine)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Storage.RawDir == "" || c.Storage.ArticlesDir == "" {
			return fmt.Errorf("storage.raw_dir and storage.articles_dir are required for the local provider")
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
		if c.Storage.RawPrefix == c.Storage.ArticlesPrefix {
			return fmt.Errorf("storage.raw_prefix and storage.articles_prefix must differ")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set together")
	}
	return nil
}
