// Package sqlitestore persists harvest records in a local SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkarlsen/biorxiv-harvester/internal/harvest"
)

// Store buffers records in memory and inserts them in one transaction at
// Flush.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	pending []harvest.Record
}

// New opens or creates the database at path and ensures the schema exists.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			identifier_date TEXT,
			identifier_id TEXT NOT NULL,
			detail_url TEXT,
			posted_time_raw TEXT,
			posted_time TEXT,
			publication_text TEXT,
			source_page TEXT,
			run_id TEXT NOT NULL,
			inserted_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_keyword ON records(keyword)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Append buffers a record for the next Flush.
func (s *Store) Append(_ context.Context, rec harvest.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	return nil
}

// Flush inserts all buffered records in a single transaction and clears the
// buffer. Flushing an empty buffer is a no-op.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (keyword, title, authors, identifier_date, identifier_id,
			detail_url, posted_time_raw, posted_time, publication_text, source_page,
			run_id, inserted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range s.pending {
		_, err := stmt.ExecContext(ctx,
			rec.Keyword, rec.Title, rec.Authors,
			timeText(rec.IdentifierDate, "2006.01.02"),
			rec.IdentifierID, rec.DetailURL, rec.PostedRaw,
			timeText(rec.PostedAt, "2006-01-02"),
			rec.PublicationText, rec.SourcePage, rec.RunID,
			rec.InsertedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.IdentifierID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
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

func timeText(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
