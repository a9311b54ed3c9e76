package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/dedup"
	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/metrics"
	"github.com/greg-randall/townnews/internal/normalizer"
	"github.com/greg-randall/townnews/internal/storage"
	"github.com/greg-randall/townnews/internal/summary"
)

// Article results reported to metrics.
const (
	resultWritten    = "written"
	resultSkipped    = "skipped"
	resultNonArticle = "non_article"
	resultError      = "error"
)

// NormalizeResult describes a finished normalization pass.
type NormalizeResult struct {
	Summaries []summary.NormalizationSummary
	Totals    summary.Stats
}

// Normalizer turns stored raw documents into articles.
type Normalizer struct {
	raw      storage.BlobStore
	articles storage.BlobStore
	norm     *normalizer.Normalizer
	writer   ArticleWriter
	ledger   summary.Ledger
	clock    Clock
	ids      IDGenerator
	source   string
	logger   *zap.Logger
}

// NormalizerConfig wires a Normalizer. Ledger may be nil.
type NormalizerConfig struct {
	Raw      storage.BlobStore
	Articles storage.BlobStore
	Writer   ArticleWriter
	Ledger   summary.Ledger
	Clock    Clock
	IDs      IDGenerator
	Source   string
	Logger   *zap.Logger
}

// NewNormalizer builds a Normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	source := cfg.Source
	if source == "" {
		source = "townnews"
	}
	return &Normalizer{
		raw:      cfg.Raw,
		articles: cfg.Articles,
		norm:     normalizer.New(),
		writer:   cfg.Writer,
		ledger:   cfg.Ledger,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		source:   source,
		logger:   logging.OrNop(cfg.Logger).Named("normalize"),
	}
}

// Run normalizes one batch directory, or every batch when batch is empty.
// A summary is written per batch. On cancellation the current batch's summary
// is still written and the context error is returned.
func (n *Normalizer) Run(ctx context.Context, batch string) (NormalizeResult, error) {
	batch = strings.Trim(batch, "/")
	prefix := ""
	if batch != "" {
		prefix = batch + "/"
	}
	keys, err := n.raw.List(ctx, prefix)
	if err != nil {
		return NormalizeResult{}, fmt.Errorf("list raw documents: %w", err)
	}

	groups := groupByBatch(keys)
	if batch != "" {
		if _, ok := groups[batch]; !ok {
			groups[batch] = nil
		}
	}
	batches := make([]string, 0, len(groups))
	for b := range groups {
		batches = append(batches, b)
	}
	sort.Strings(batches)

	var result NormalizeResult
	for _, b := range batches {
		stats, err := n.runBatch(ctx, b, groups[b])
		result.Totals = result.Totals.Add(stats.Statistics)
		if stats.RunID != "" {
			result.Summaries = append(result.Summaries, stats)
		}
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func groupByBatch(keys []string) map[string][]string {
	groups := make(map[string][]string)
	for _, key := range keys {
		if isSummaryFile(key) || !strings.HasSuffix(key, ".json") {
			continue
		}
		dir := path.Dir(key)
		groups[dir] = append(groups[dir], key)
	}
	return groups
}

func (n *Normalizer) runBatch(ctx context.Context, batch string, files []string) (summary.NormalizationSummary, error) {
	passTime := n.clock.Now().UTC()
	runID, err := n.ids.NewID()
	if err != nil {
		return summary.NormalizationSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	runTS, ok := RunTimestamp(batch)
	if !ok {
		runTS = passTime.Unix()
		n.logger.Warn("batch has no unix time segment, using pass time", zap.String("batch", batch))
	}

	var (
		tally    summary.Tally
		runErr   error
		canceled bool
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("normalize %s: %w", batch, err)
			canceled = true
			break
		}
		n.processFile(ctx, file, runTS, &tally)
	}

	out := summary.NormalizationSummary{
		RunID:      runID,
		Timestamp:  passTime.Format(time.RFC3339),
		Source:     n.source,
		Batch:      batch,
		Statistics: tally.Stats(),
	}
	if err := n.writeSummary(context.WithoutCancel(ctx), out, runTS, passTime); err != nil {
		return out, err
	}
	n.logger.Info("batch normalized",
		zap.String("batch", batch),
		zap.Int("files", out.Statistics.FilesProcessed),
		zap.Int("new", out.Statistics.ArticlesNew),
		zap.Int("skipped", out.Statistics.ArticlesSkipped),
		zap.Int("non_article", out.Statistics.ArticlesSkippedNonArticle),
		zap.Int("errors", out.Statistics.Errors),
		zap.Bool("canceled", canceled),
	)
	return out, runErr
}

func (n *Normalizer) processFile(ctx context.Context, file string, runTS int64, tally *summary.Tally) {
	data, err := n.raw.GetObject(ctx, file)
	if err != nil {
		n.logger.Error("read raw document", zap.String("path", file), zap.Error(err))
		tally.Error()
		return
	}
	if !gjson.ValidBytes(data) {
		n.logger.Error("raw document is not valid JSON", zap.String("path", file))
		tally.Error()
		return
	}
	doc := gjson.ParseBytes(data)
	domain := DomainFromFile(file)
	tally.FileProcessed()

	rows := doc.Get("rows")
	if !rows.IsArray() {
		return
	}
	rows.ForEach(func(_, record gjson.Result) bool {
		n.processRecord(ctx, record, domain, runTS, tally)
		return true
	})
}

func (n *Normalizer) processRecord(ctx context.Context, record gjson.Result, domain string, runTS int64, tally *summary.Tally) {
	if normalizer.IsNonArticle(record) {
		tally.SkippedNonArticle()
		metrics.ObserveArticle(resultNonArticle)
		return
	}
	article, err := n.norm.Normalize(record, domain, runTS)
	if err != nil {
		n.logger.Warn("normalize record", zap.String("domain", domain), zap.Error(err))
		tally.Error()
		metrics.ObserveArticle(resultError)
		return
	}
	res, err := n.writer.Write(ctx, article)
	switch {
	case err != nil:
		level := n.logger.Error
		if errors.Is(err, dedup.ErrMissingIdentity) {
			level = n.logger.Warn
		}
		level("write article", zap.String("domain", domain), zap.String("url", article.URL), zap.Error(err))
		tally.Error()
		metrics.ObserveArticle(resultError)
	case res == dedup.Written:
		tally.Written()
		metrics.ObserveArticle(resultWritten)
	default:
		tally.SkippedDuplicate()
		metrics.ObserveArticle(resultSkipped)
	}
}

func (n *Normalizer) writeSummary(ctx context.Context, out summary.NormalizationSummary, runTS int64, passTime time.Time) error {
	payload, err := summary.Encode(out)
	if err != nil {
		return err
	}
	key := SummaryKey(out.Batch, runTS, passTime)
	if _, err := n.articles.PutObject(ctx, key, storage.ContentTypeJSON, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write normalization summary: %w", err)
	}
	recordLedger(ctx, n.ledger, n.logger, summary.Entry{
		RunID:      out.RunID,
		Kind:       summary.KindNormalization,
		Batch:      out.Batch,
		RecordedAt: passTime,
		Payload:    payload,
	})
	metrics.MarkRun(string(summary.KindNormalization), passTime)
	return nil
}
