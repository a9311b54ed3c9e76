package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyCounts(t *testing.T) {
	t.Parallel()

	var tally Tally
	tally.FileProcessed()
	tally.Written()
	tally.Written()
	tally.SkippedDuplicate()
	tally.SkippedNonArticle()
	tally.Error()

	assert.Equal(t, Stats{
		FilesProcessed:            1,
		ArticlesNew:               2,
		ArticlesSkipped:           1,
		ArticlesSkippedNonArticle: 1,
		Errors:                    1,
	}, tally.Stats())
}

func TestStatsAdd(t *testing.T) {
	t.Parallel()

	a := Stats{FilesProcessed: 1, ArticlesNew: 2, Errors: 1}
	b := Stats{FilesProcessed: 2, ArticlesSkipped: 3, ArticlesSkippedNonArticle: 4}
	assert.Equal(t, Stats{
		FilesProcessed:            3,
		ArticlesNew:               2,
		ArticlesSkipped:           3,
		ArticlesSkippedNonArticle: 4,
		Errors:                    1,
	}, a.Add(b))
}

func TestCollectionSummaryEncoding(t *testing.T) {
	t.Parallel()

	runTime := time.Date(2025, 11, 20, 16, 59, 17, 0, time.UTC)
	s := NewCollectionSummary("run-1", runTime)
	s.AddSuccess("athensreview.com", 100, "file:///raw/athensreview_com.json")
	s.AddFailure("broken.example", "extract structured payload: no JSON object found")

	data, err := Encode(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "1763657957", decoded["collection_timestamp"])
	assert.Equal(t, "2025-11-20", decoded["collection_date"])

	results := decoded["results"].([]any)
	require.Len(t, results, 2)
	ok := results[0].(map[string]any)
	assert.Equal(t, "success", ok["status"])
	assert.EqualValues(t, 100, ok["article_count"])
	assert.NotContains(t, ok, "error_message")

	failed := results[1].(map[string]any)
	assert.Equal(t, "error", failed["status"])
	assert.NotContains(t, failed, "article_count")
	assert.NotContains(t, failed, "file_path")

	assert.Equal(t, CollectionStats{Targets: 2, Succeeded: 1, Failed: 1}, s.Statistics)
}

func TestEmptyCollectionSummaryHasResultsArray(t *testing.T) {
	t.Parallel()

	data, err := Encode(NewCollectionSummary("run", time.Unix(0, 0)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"results": []`)
}
