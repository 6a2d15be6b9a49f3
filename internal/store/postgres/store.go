// Package postgres provides a Postgres-backed record store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkarlsen/biorxiv-harvester/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store buffers harvest records and inserts them at Flush.
type Store struct {
	mu      sync.Mutex
	pool    execCloser
	table   string
	pending []harvest.Record
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append buffers a record for the next Flush.
func (s *Store) Append(_ context.Context, rec harvest.Record) error {
	if rec.IdentifierID == "" {
		return fmt.Errorf("record identifier is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	return nil
}

// Flush inserts all buffered records and clears the buffer.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	keyword,
	title,
	authors,
	identifier_date,
	identifier_id,
	detail_url,
	posted_time_raw,
	posted_time,
	publication_text,
	source_page,
	run_id,
	inserted_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.table)

	for _, rec := range s.pending {
		args := []any{
			rec.Keyword,
			rec.Title,
			rec.Authors,
			nullableTime(rec.IdentifierDate),
			rec.IdentifierID,
			rec.DetailURL,
			rec.PostedRaw,
			nullableTime(rec.PostedAt),
			rec.PublicationText,
			rec.SourcePage,
			rec.RunID,
			rec.InsertedAt,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.IdentifierID, err)
		}
	}
	s.pending = nil
	return nil
}

// Pending reports how many records are buffered.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
