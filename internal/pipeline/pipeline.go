// Package pipeline connects the collector and the normalizer to storage.
//
// Collection writes one raw document per site under a run directory
// "<YYYY-MM-DD>/<unix>/" in the raw store, next to a "_collection_summary.json".
// Normalization walks those directories, derives each record's first-seen time
// from the directory name and its source domain from the file name, and writes
// articles plus one summary per batch to the article store.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/dedup"
	"github.com/greg-randall/townnews/internal/normalizer"
)

// CollectionSummaryFile is the per-run summary name in the raw store.
const CollectionSummaryFile = "_collection_summary.json"

// SummaryDir holds normalization summaries in the article store.
const SummaryDir = "_summaries"

var unixSegment = regexp.MustCompile(`^\d{10}$`)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Runner fetches targets.
type Runner interface {
	Run(ctx context.Context, targets []collector.Target) ([]collector.Outcome, error)
}

// ArticleWriter stores canonical articles.
type ArticleWriter interface {
	Write(ctx context.Context, article normalizer.Article) (dedup.Result, error)
}

// BatchPath is the raw store directory for a run started at t.
func BatchPath(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%d", t.Format("2006-01-02"), t.Unix())
}

// RawFileName is the raw document name for domain.
func RawFileName(domain string) string {
	return strings.ReplaceAll(domain, ".", "_") + ".json"
}

// DomainFromFile recovers the domain from a raw document path.
func DomainFromFile(p string) string {
	name := strings.TrimSuffix(path.Base(p), ".json")
	return strings.ReplaceAll(name, "_", ".")
}

// RunTimestamp returns the first 10-digit Unix time segment in p.
func RunTimestamp(p string) (int64, bool) {
	for _, seg := range strings.Split(p, "/") {
		if !unixSegment.MatchString(seg) {
			continue
		}
		ts, err := strconv.ParseInt(seg, 10, 64)
		if err == nil {
			return ts, true
		}
	}
	return 0, false
}

// SummaryKey names the normalization summary for one pass over batch. Batches
// outside the "<date>/<unix>" layout carry their own name so that two of them
// normalized in the same pass do not share a key.
func SummaryKey(batch string, runTS int64, passTime time.Time) string {
	name := fmt.Sprintf("%d_%d", runTS, passTime.Unix())
	if batch != BatchPath(time.Unix(runTS, 0)) {
		name += "_" + collector.SanitizeDomain(batch)
	}
	return path.Join(SummaryDir, name+".json")
}

func isSummaryFile(p string) bool {
	return strings.HasPrefix(path.Base(p), "_")
}
