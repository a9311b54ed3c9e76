// Package metrics exposes Prometheus collectors for collection and normalization runs.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Fetch statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	fetchTotal           *prometheus.CounterVec
	fetchBytesTotal      *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	articlesTotal        *prometheus.CounterVec
	pacingDelaySeconds   prometheus.Histogram
	lastRunTimestamp     *prometheus.GaugeVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "townnews_fetch_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "townnews_fetch_bytes_total",
				Help: "Total number of bytes of extracted content, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "townnews_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by status.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
			},
			[]string{"status"},
		)

		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "townnews_articles_total",
				Help: "Total number of records seen by the normalizer, labeled by result.",
			},
			[]string{"result"},
		)

		pacingDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "townnews_pacing_delay_seconds",
				Help:    "Histogram of randomized pauses between site fetches.",
				Buckets: []float64{1, 3, 5, 8, 10, 15, 30},
			},
		)

		lastRunTimestamp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "townnews_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run, labeled by kind.",
			},
			[]string{"kind"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch outcome.
func ObserveFetch(site, status string, contentBytes int, duration time.Duration) {
	Init()
	sanitized := SanitizeSite(site)
	fetchTotal.WithLabelValues(sanitized, status).Inc()
	if contentBytes > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(contentBytes))
	}
	fetchDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveArticle increments the article counter for a normalization result
// such as "written", "skipped", "non_article" or "error".
func ObserveArticle(result string) {
	Init()
	articlesTotal.WithLabelValues(result).Inc()
}

// ObservePacingDelay records the duration of an inter-site pause.
func ObservePacingDelay(duration time.Duration) {
	Init()
	pacingDelaySeconds.Observe(duration.Seconds())
}

// MarkRun stores the completion time of a run of the given kind.
func MarkRun(kind string, at time.Time) {
	Init()
	lastRunTimestamp.WithLabelValues(kind).Set(float64(at.Unix()))
}

// Push sends every registered collector to a Pushgateway. An empty url is a no-op.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = "townnews"
	}
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
