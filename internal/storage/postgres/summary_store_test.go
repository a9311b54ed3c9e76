package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/greg-randall/townnews/internal/summary"
)

func TestRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSummaryStoreWithPool(mock, "run_summaries")
	require.NoError(t, err)

	entry := summary.Entry{
		RunID:      "0192f0c0-0000-7000-8000-000000000000",
		Kind:       summary.KindNormalization,
		Batch:      "2024-01-01/1704067200",
		RecordedAt: time.Unix(1704067200, 0).UTC(),
		Payload:    []byte(`{"statistics":{"articles_new":3}}`),
	}

	mock.ExpectExec("INSERT INTO run_summaries").
		WithArgs(entry.RunID, "normalization", entry.Batch, entry.RecordedAt, entry.Payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Record(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSummaryStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO run_summaries").
		WillReturnError(errors.New("connection reset"))

	err = store.Record(context.Background(), summary.Entry{
		RunID:   "run",
		Kind:    summary.KindCollection,
		Payload: []byte(`{}`),
	})
	require.ErrorContains(t, err, "insert summary")
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSummaryStoreWithPool(mock, "ledger")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSummaryStoreWithPool(nil, "x")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSummaryStoreWithPool(mock, "bad-name;")
	require.Error(t, err)

	store, err := NewSummaryStoreWithPool(mock, "ok")
	require.NoError(t, err)
	require.Error(t, store.Record(context.Background(), summary.Entry{Payload: []byte(`{}`)}))
	require.Error(t, store.Record(context.Background(), summary.Entry{RunID: "r"}))

	var nilStore *SummaryStore
	require.Error(t, nilStore.Record(context.Background(), summary.Entry{}))
}

func TestNewSummaryStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewSummaryStore(context.Background(), SummaryStoreConfig{})
	require.Error(t, err)
}
