// Package postgres provides the Postgres-backed run summary ledger.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greg-randall/townnews/internal/summary"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SummaryStoreConfig controls the Postgres connection pool used for summary rows.
type SummaryStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// SummaryStore appends run summaries to a Postgres table. Rows are only ever
// inserted.
type SummaryStore struct {
	pool  execCloser
	table string
}

var _ summary.Ledger = (*SummaryStore)(nil)

// NewSummaryStore connects a pool and ensures the ledger table exists.
func NewSummaryStore(ctx context.Context, cfg SummaryStoreConfig) (*SummaryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("summary_store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &SummaryStore{pool: pool, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewSummaryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSummaryStoreWithPool(pool execCloser, table string) (*SummaryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &SummaryStore{pool: pool, table: name}, nil
}

// EnsureSchema creates the ledger table if needed.
func (s *SummaryStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	batch       TEXT        NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	payload     JSONB       NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create summary table: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SummaryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record inserts one summary row.
func (s *SummaryStore) Record(ctx context.Context, entry summary.Entry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("summary store is not configured")
	}
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(entry.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	kind,
	batch,
	recorded_at,
	payload
) VALUES (
	$1,$2,$3,$4,$5
)`, s.table)

	args := []any{
		entry.RunID,
		string(entry.Kind),
		entry.Batch,
		entry.RecordedAt,
		entry.Payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "run_summaries"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}
