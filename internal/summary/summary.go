// Package summary tallies per-run outcomes and defines the summary records
// written after every collection run and every normalization pass.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind labels which pipeline produced a summary.
type Kind string

// Summary kinds.
const (
	KindCollection    Kind = "collection"
	KindNormalization Kind = "normalization"
)

// TargetStatus is the per-target result of a collection run.
type TargetStatus string

// Target statuses written to the collection summary.
const (
	StatusSuccess TargetStatus = "success"
	StatusError   TargetStatus = "error"
)

// Stats is the statistics block of a normalization summary.
type Stats struct {
	FilesProcessed            int `json:"files_processed"`
	ArticlesNew               int `json:"articles_new"`
	ArticlesSkipped           int `json:"articles_skipped"`
	ArticlesSkippedNonArticle int `json:"articles_skipped_non_article"`
	Errors                    int `json:"errors"`
}

// Tally accumulates normalization outcomes for one batch pass. It is not
// safe for concurrent use; passes run on a single goroutine.
type Tally struct {
	stats Stats
}

// FileProcessed counts one raw document read to completion.
func (t *Tally) FileProcessed() { t.stats.FilesProcessed++ }

// Written counts one newly persisted article.
func (t *Tally) Written() { t.stats.ArticlesNew++ }

// SkippedDuplicate counts an article whose identity was already stored.
func (t *Tally) SkippedDuplicate() { t.stats.ArticlesSkipped++ }

// SkippedNonArticle counts an image/photo record.
func (t *Tally) SkippedNonArticle() { t.stats.ArticlesSkippedNonArticle++ }

// Error counts a record or file that could not be processed.
func (t *Tally) Error() { t.stats.Errors++ }

// Stats returns a snapshot of the counters.
func (t *Tally) Stats() Stats { return t.stats }

// Add folds other into s.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		FilesProcessed:            s.FilesProcessed + other.FilesProcessed,
		ArticlesNew:               s.ArticlesNew + other.ArticlesNew,
		ArticlesSkipped:           s.ArticlesSkipped + other.ArticlesSkipped,
		ArticlesSkippedNonArticle: s.ArticlesSkippedNonArticle + other.ArticlesSkippedNonArticle,
		Errors:                    s.Errors + other.Errors,
	}
}

// NormalizationSummary is written once per batch pass.
type NormalizationSummary struct {
	RunID      string `json:"run_id"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	Batch      string `json:"batch"`
	Statistics Stats  `json:"statistics"`
}

// TargetResult is one entry of the collection summary.
type TargetResult struct {
	Domain       string       `json:"domain"`
	Status       TargetStatus `json:"status"`
	ArticleCount *int64       `json:"article_count,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	FilePath     string       `json:"file_path,omitempty"`
}

// CollectionStats counts target outcomes for a collection run.
type CollectionStats struct {
	Targets   int `json:"targets"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CollectionSummary is written once per collection run.
type CollectionSummary struct {
	RunID               string          `json:"run_id"`
	CollectionTimestamp string          `json:"collection_timestamp"`
	CollectionDate      string          `json:"collection_date"`
	Statistics          CollectionStats `json:"statistics"`
	Results             []TargetResult  `json:"results"`
}

// NewCollectionSummary starts an empty summary for a run started at runTime.
func NewCollectionSummary(runID string, runTime time.Time) *CollectionSummary {
	return &CollectionSummary{
		RunID:               runID,
		CollectionTimestamp: fmt.Sprintf("%d", runTime.Unix()),
		CollectionDate:      runTime.UTC().Format("2006-01-02"),
		Results:             []TargetResult{},
	}
}

// AddSuccess records a stored document.
func (c *CollectionSummary) AddSuccess(domain string, articleCount int64, filePath string) {
	count := articleCount
	c.Results = append(c.Results, TargetResult{
		Domain:       domain,
		Status:       StatusSuccess,
		ArticleCount: &count,
		FilePath:     filePath,
	})
	c.Statistics.Targets++
	c.Statistics.Succeeded++
}

// AddFailure records a target that produced no stored document.
func (c *CollectionSummary) AddFailure(domain string, message string) {
	c.Results = append(c.Results, TargetResult{
		Domain:       domain,
		Status:       StatusError,
		ErrorMessage: message,
	})
	c.Statistics.Targets++
	c.Statistics.Failed++
}

// Entry is one row of the append-only summary ledger.
type Entry struct {
	RunID      string
	Kind       Kind
	Batch      string
	RecordedAt time.Time
	Payload    []byte
}

// Ledger appends summaries to durable storage beyond the summary files.
type Ledger interface {
	Record(ctx context.Context, entry Entry) error
}

// Encode renders a summary the way it is written to storage.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return data, nil
}
