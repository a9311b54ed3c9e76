package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/storage/memory"
	"github.com/greg-randall/townnews/internal/summary"
)

func TestCollectWritesDocumentsAndSummary(t *testing.T) {
	t.Parallel()

	raw := memory.NewBlobStore()
	ledger := &recordingLedger{}
	clock := &fixedClock{now: time.Unix(1704067200, 0)}
	runner := stubRunner{outcomes: []collector.Outcome{
		success("a.example", `{"total":42,"rows":[{"z":1,"a":2}]}`),
		failure("b.example", "content extraction failed: no JSON object in page"),
		success("c.example", `{"rows":[]}`),
	}}

	c := NewCollector(runner, raw, ledger, clock, &seqIDs{}, nil)
	res, err := c.Collect(context.Background(), collector.NewTargets([]string{"a.example", "b.example", "c.example"}))
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01/1704067200", res.Batch)
	assert.Equal(t, "2024-01-01/1704067200/_collection_summary.json", res.SummaryPath)

	doc, err := raw.GetObject(context.Background(), "2024-01-01/1704067200/a_example.json")
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(doc), `"z"`), strings.Index(string(doc), `"a"`))
	assert.Contains(t, string(doc), "\n  ")

	_, err = raw.GetObject(context.Background(), "2024-01-01/1704067200/b_example.json")
	require.Error(t, err)

	data, err := raw.GetObject(context.Background(), res.SummaryPath)
	require.NoError(t, err)
	var sum summary.CollectionSummary
	require.NoError(t, json.Unmarshal(data, &sum))

	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, "1704067200", sum.CollectionTimestamp)
	assert.Equal(t, "2024-01-01", sum.CollectionDate)
	assert.Equal(t, summary.CollectionStats{Targets: 3, Succeeded: 2, Failed: 1}, sum.Statistics)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, "a.example", sum.Results[0].Domain)
	require.NotNil(t, sum.Results[0].ArticleCount)
	assert.Equal(t, int64(42), *sum.Results[0].ArticleCount)
	assert.Equal(t, "2024-01-01/1704067200/a_example.json", sum.Results[0].FilePath)
	assert.Equal(t, summary.StatusError, sum.Results[1].Status)
	assert.Contains(t, sum.Results[1].ErrorMessage, "no JSON object")
	require.NotNil(t, sum.Results[2].ArticleCount)
	assert.Equal(t, int64(0), *sum.Results[2].ArticleCount)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, summary.KindCollection, ledger.entries[0].Kind)
	assert.Equal(t, res.Batch, ledger.entries[0].Batch)
	assert.JSONEq(t, string(data), string(ledger.entries[0].Payload))
}

func TestCollectAllFailedStillWritesSummary(t *testing.T) {
	t.Parallel()

	raw := memory.NewBlobStore()
	runner := stubRunner{outcomes: []collector.Outcome{failure("a.example", "boom")}}
	c := NewCollector(runner, raw, nil, &fixedClock{now: time.Unix(1704067200, 0)}, &seqIDs{}, nil)

	res, err := c.Collect(context.Background(), collector.NewTargets([]string{"a.example"}))
	require.NoError(t, err)
	assert.Equal(t, 1, raw.Len())
	assert.Equal(t, 1, res.Summary.Statistics.Failed)
}

func TestCollectLaunchFailureAborts(t *testing.T) {
	t.Parallel()

	raw := memory.NewBlobStore()
	runner := stubRunner{err: collector.ErrAcquisition}
	c := NewCollector(runner, raw, nil, &fixedClock{now: time.Unix(1704067200, 0)}, &seqIDs{}, nil)

	_, err := c.Collect(context.Background(), collector.NewTargets([]string{"a.example"}))
	require.ErrorIs(t, err, collector.ErrAcquisition)
	assert.Equal(t, 0, raw.Len())
}

func TestCollectLedgerFailureIsLoggedOnly(t *testing.T) {
	t.Parallel()

	ledger := &recordingLedger{err: errors.New("connection refused")}
	runner := stubRunner{outcomes: []collector.Outcome{success("a.example", `{"total":1}`)}}
	c := NewCollector(runner, memory.NewBlobStore(), ledger, &fixedClock{now: time.Unix(1704067200, 0)}, &seqIDs{}, nil)

	_, err := c.Collect(context.Background(), collector.NewTargets([]string{"a.example"}))
	require.NoError(t, err)
	assert.Len(t, ledger.entries, 1)
}

func TestCollectPersistsAfterCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := memory.NewBlobStore()
	runner := stubRunner{outcomes: []collector.Outcome{
		success("a.example", `{"total":1}`),
		{Target: collector.NewTarget("b.example"), Err: context.Canceled},
	}}
	c := NewCollector(runner, raw, nil, &fixedClock{now: time.Unix(1704067200, 0)}, &seqIDs{}, nil)

	res, err := c.Collect(ctx, collector.NewTargets([]string{"a.example", "b.example"}))
	require.NoError(t, err)
	assert.Equal(t, 2, raw.Len())
	assert.Equal(t, 1, res.Summary.Statistics.Failed)
}
