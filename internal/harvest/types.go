package harvest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one extracted bibliographic entry. Records are immutable once
// built; construction goes through RecordBuilder so a half-populated value
// never escapes the enrichment step.
type Record struct {
	Keyword         string
	Title           string
	Authors         string
	IdentifierDate  time.Time // zero when the listing metadata carried no date
	IdentifierID    string
	DetailURL       string
	PostedRaw       string
	PostedAt        time.Time // zero unless PostedRaw parsed cleanly
	PublicationText string
	SourcePage      string
	RunID           string
	InsertedAt      time.Time
}

// HasPostedDate reports whether the posted time parsed to a canonical date.
func (r Record) HasPostedDate() bool {
	return !r.PostedAt.IsZero()
}

// PublicationSentinel is the publication-status text used when no venue
// status is resolvable.
const PublicationSentinel = "None"

// RecordBuilder populates a Record field by field and returns an immutable
// value once enrichment completes.
type RecordBuilder struct {
	rec Record
}

// NewRecordBuilder starts a record for one search result.
func NewRecordBuilder(keyword, runID string) *RecordBuilder {
	return &RecordBuilder{
		rec: Record{
			Keyword:         keyword,
			RunID:           runID,
			PublicationText: PublicationSentinel,
		},
	}
}

// Title sets the article title.
func (b *RecordBuilder) Title(title string) *RecordBuilder {
	b.rec.Title = title
	return b
}

// Authors sets the author list text.
func (b *RecordBuilder) Authors(authors string) *RecordBuilder {
	b.rec.Authors = authors
	return b
}

// Identifier sets the identifier id and its optional calendar date.
func (b *RecordBuilder) Identifier(id string, date time.Time) *RecordBuilder {
	b.rec.IdentifierID = id
	b.rec.IdentifierDate = date
	return b
}

// DetailURL sets the article detail-page URL.
func (b *RecordBuilder) DetailURL(rawURL string) *RecordBuilder {
	b.rec.DetailURL = rawURL
	return b
}

// Posted sets the raw posted-time string and its canonical parse. A zero
// canonical time means the raw string did not match an accepted layout.
func (b *RecordBuilder) Posted(raw string, at time.Time) *RecordBuilder {
	b.rec.PostedRaw = raw
	b.rec.PostedAt = at
	return b
}

// PublicationText sets the resolved publication-status text.
func (b *RecordBuilder) PublicationText(text string) *RecordBuilder {
	if text == "" {
		text = PublicationSentinel
	}
	b.rec.PublicationText = text
	return b
}

// SourcePage sets the listing URL the record was extracted from.
func (b *RecordBuilder) SourcePage(rawURL string) *RecordBuilder {
	b.rec.SourcePage = rawURL
	return b
}

// Build validates the invariants and stamps the insertion time. A record
// without an identifier id is rejected.
func (b *RecordBuilder) Build(clock Clock) (Record, error) {
	if b.rec.IdentifierID == "" {
		return Record{}, fmt.Errorf("record has no identifier id")
	}
	rec := b.rec
	rec.InsertedAt = clock.Now()
	return rec, nil
}

// PageCursor is the per-keyword pagination state. TotalPages starts at 1 and
// is revised after the first successful page parse.
type PageCursor struct {
	Keyword    string
	PageIndex  int
	TotalPages int
	Emitted    int
}

// RunContext carries run-scoped identity and counters. It is owned by the
// orchestrator and threaded through the loop instead of living in
// instance-wide mutable fields.
type RunContext struct {
	UUID      string
	RunID     string
	StartedAt time.Time

	records int
	pages   int
}

// NewRunContext stamps a fresh run identity.
func NewRunContext(clock Clock) *RunContext {
	now := clock.Now()
	return &RunContext{
		UUID:      uuid.NewString(),
		RunID:     now.Format("20060102_150405"),
		StartedAt: now,
	}
}

// Records returns the number of records emitted so far.
func (r *RunContext) Records() int { return r.records }

// Pages returns the number of listing pages processed so far.
func (r *RunContext) Pages() int { return r.pages }

func (r *RunContext) noteRecord() { r.records++ }
func (r *RunContext) notePage()   { r.pages++ }

// capReached reports whether the global record cap is met. A cap of zero
// means unlimited.
func (r *RunContext) capReached(maxRecords int) bool {
	return maxRecords > 0 && r.records >= maxRecords
}

// RunSummary is returned by the orchestrator and published at end of run.
type RunSummary struct {
	RunUUID    string    `json:"run_uuid"`
	RunID      string    `json:"run_id"`
	Keywords   []string  `json:"keywords"`
	Records    int       `json:"records"`
	Pages      int       `json:"pages"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
