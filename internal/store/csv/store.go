// Package csvstore persists harvest records as dated CSV files.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mkarlsen/biorxiv-harvester/internal/harvest"
)

var header = []string{
	"keyword",
	"title",
	"authors",
	"identifier_date",
	"identifier_id",
	"detail_url",
	"posted_time_raw",
	"posted_time",
	"publication_text",
	"source_page",
	"run_id",
	"inserted_at",
}

// Store buffers records in memory and writes one CSV file per run at Flush.
type Store struct {
	mu      sync.Mutex
	dir     string
	clock   harvest.Clock
	pending []harvest.Record
}

// New builds a Store writing under dir.
func New(dir string, clock harvest.Clock) *Store {
	return &Store{dir: dir, clock: clock}
}

// Append buffers a record for the next Flush.
func (s *Store) Append(_ context.Context, rec harvest.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)
	return nil
}

// Flush writes all buffered records to a dated file and clears the buffer.
// Flushing an empty buffer is a no-op.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("biorxiv_records_%s.csv", s.clock.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range s.pending {
		if err := w.Write(row(rec)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
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

func row(rec harvest.Record) []string {
	return []string{
		rec.Keyword,
		rec.Title,
		rec.Authors,
		formatTime(rec.IdentifierDate, "2006.01.02"),
		rec.IdentifierID,
		rec.DetailURL,
		rec.PostedRaw,
		formatTime(rec.PostedAt, "2006-01-02"),
		rec.PublicationText,
		rec.SourcePage,
		rec.RunID,
		formatTime(rec.InsertedAt, time.RFC3339),
	}
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
