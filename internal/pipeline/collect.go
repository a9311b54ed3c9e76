package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/logging"
	"github.com/greg-randall/townnews/internal/metrics"
	"github.com/greg-randall/townnews/internal/storage"
	"github.com/greg-randall/townnews/internal/summary"
)

// CollectResult describes a finished collection run.
type CollectResult struct {
	Batch       string
	SummaryPath string
	Summary     *summary.CollectionSummary
}

// Collector runs the fetch pass and stores its output.
type Collector struct {
	runner Runner
	raw    storage.BlobStore
	ledger summary.Ledger
	clock  Clock
	ids    IDGenerator
	logger *zap.Logger
}

// NewCollector wires a Collector. ledger may be nil.
func NewCollector(runner Runner, raw storage.BlobStore, ledger summary.Ledger, clock Clock, ids IDGenerator, logger *zap.Logger) *Collector {
	return &Collector{
		runner: runner,
		raw:    raw,
		ledger: ledger,
		clock:  clock,
		ids:    ids,
		logger: logging.OrNop(logger).Named("collect"),
	}
}

// Collect fetches every target and writes the raw documents and the run
// summary. Output is persisted even when ctx is canceled mid-run.
func (c *Collector) Collect(ctx context.Context, targets []collector.Target) (CollectResult, error) {
	runTime := c.clock.Now().UTC()
	runID, err := c.ids.NewID()
	if err != nil {
		return CollectResult{}, fmt.Errorf("generate run id: %w", err)
	}
	batch := BatchPath(runTime)
	c.logger.Info("collection started",
		zap.String("run_id", runID),
		zap.String("batch", batch),
		zap.Int("targets", len(targets)),
	)

	outcomes, err := c.runner.Run(ctx, targets)
	if err != nil {
		return CollectResult{}, err
	}

	persistCtx := context.WithoutCancel(ctx)
	sum := summary.NewCollectionSummary(runID, runTime)
	for _, outcome := range outcomes {
		domain := outcome.Target.Domain
		if !outcome.Success() {
			sum.AddFailure(domain, outcome.ErrorDescription())
			continue
		}
		key := path.Join(batch, RawFileName(domain))
		data := pretty.Pretty([]byte(outcome.Document.Raw()))
		if _, err := c.raw.PutObject(persistCtx, key, storage.ContentTypeJSON, bytes.NewReader(data)); err != nil {
			c.logger.Error("write raw document", zap.String("domain", domain), zap.Error(err))
			sum.AddFailure(domain, fmt.Sprintf("write raw document: %v", err))
			continue
		}
		sum.AddSuccess(domain, outcome.Document.Get("total").Int(), key)
	}

	payload, err := summary.Encode(sum)
	if err != nil {
		return CollectResult{}, err
	}
	summaryPath := path.Join(batch, CollectionSummaryFile)
	if _, err := c.raw.PutObject(persistCtx, summaryPath, storage.ContentTypeJSON, bytes.NewReader(payload)); err != nil {
		return CollectResult{}, fmt.Errorf("write collection summary: %w", err)
	}
	recordLedger(persistCtx, c.ledger, c.logger, summary.Entry{
		RunID:      runID,
		Kind:       summary.KindCollection,
		Batch:      batch,
		RecordedAt: runTime,
		Payload:    payload,
	})
	metrics.MarkRun(string(summary.KindCollection), c.clock.Now())

	c.logger.Info("collection complete",
		zap.String("batch", batch),
		zap.Int("succeeded", sum.Statistics.Succeeded),
		zap.Int("failed", sum.Statistics.Failed),
		zap.String("path", summaryPath),
	)
	return CollectResult{Batch: batch, SummaryPath: summaryPath, Summary: sum}, nil
}

func recordLedger(ctx context.Context, ledger summary.Ledger, logger *zap.Logger, entry summary.Entry) {
	if ledger == nil {
		return
	}
	if err := ledger.Record(ctx, entry); err != nil {
		logger.Warn("record run summary", zap.String("batch", entry.Batch), zap.Error(err))
	}
}
