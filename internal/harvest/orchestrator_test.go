package harvest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(keywords ...string) Config {
	return Config{
		Keywords:       keywords,
		MaxPageRetries: 3,
	}
}

type pipeline struct {
	docs  *fakeDocFetcher
	texts *fakeTextFetcher
	store *memStore
	sink  *memSink
	orch  *Orchestrator
}

func newTestPipeline(t *testing.T, cfg Config) *pipeline {
	t.Helper()
	docs := newFakeDocFetcher()
	texts := newFakeTextFetcher()
	store := &memStore{}
	sink := &memSink{}

	logger := zap.NewNop()
	pacer := NewPacer(0)
	status := NewStatusResolver(texts, logger)
	listings := NewListingParser(docs, logger)
	enricher := NewEnricher(docs, status, pacer, logger, nil)
	clock := fixedClock{t: time.Unix(1700000000, 0).UTC()}

	return &pipeline{
		docs:  docs,
		texts: texts,
		store: store,
		sink:  sink,
		orch:  NewOrchestrator(cfg, listings, enricher, status, store, sink, pacer, clock, logger),
	}
}

// listingHTML renders a minimal listing page. Each entry is a "date.id" meta
// string; an empty entry renders an item with no identifier.
func listingHTML(total, pager int, metas ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<div class="highwire-search-summary">%d Results</div>`, total)
	b.WriteString(`<ul class="highwire-search-results-list">`)
	for i, meta := range metas {
		b.WriteString("<li>")
		fmt.Fprintf(&b, `<a class="highwire-cite-linked-title"><span class="highwire-cite-title">Paper %d</span></a>`, i+1)
		fmt.Fprintf(&b, `<div class="highwire-cite-authors">Author %d</div>`, i+1)
		if meta != "" {
			fmt.Fprintf(&b, `<span class="highwire-cite-metadata-pages">%s; </span>`, meta)
			fmt.Fprintf(&b, `<span class="doi_label">doi:</span> 10.1101/%s`, meta)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	if pager > 0 {
		fmt.Fprintf(&b, `<li class="pager-current">%d</li>`, pager)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailHTML(posted string) string {
	return fmt.Sprintf(`<html><body><div class="pane-1"><div class="pane-content">Posted %s.</div></div></body></html>`, posted)
}

func TestRunExtractsRecords(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, testConfig("visium"))

	meta := "2024.01.15.575123"
	p.docs.pages[SearchURL("visium", 0)] = listingHTML(2, 1, meta, "")
	p.docs.pages[DetailURL("10.1101/"+meta)] = detailHTML("January 15, 2024")
	p.texts.bodies[statusEndpoint+"10.1101/"+meta] = `({"pub":[]})`

	summary, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.Records)
	require.Equal(t, 1, summary.Pages)
	require.Equal(t, 1, p.store.flushes)
	require.Len(t, p.store.records, 1)

	rec := p.store.records[0]
	require.Equal(t, "visium", rec.Keyword)
	require.Equal(t, "Paper 1", rec.Title)
	require.Equal(t, "Author 1", rec.Authors)
	require.Equal(t, "575123", rec.IdentifierID)
	require.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), rec.IdentifierDate)
	require.Equal(t, DetailURL("10.1101/"+meta), rec.DetailURL)
	require.Equal(t, "January 15, 2024", rec.PostedRaw)
	require.True(t, rec.HasPostedDate())
	require.Equal(t, PublicationSentinel, rec.PublicationText)
	require.Equal(t, SearchURL("visium", 0), rec.SourcePage)
	require.Equal(t, summary.RunID, rec.RunID)
	require.False(t, rec.InsertedAt.IsZero())
}

func TestRunStopsAtRecordCapMidPage(t *testing.T) {
	t.Parallel()

	cfg := testConfig("visium", "chromium")
	cfg.MaxRecords = 1
	p := newTestPipeline(t, cfg)

	m1, m2 := "2024.01.15.111111", "2024.02.20.222222"
	p.docs.pages[SearchURL("visium", 0)] = listingHTML(2, 1, m1, m2)
	for _, m := range []string{m1, m2} {
		p.docs.pages[DetailURL("10.1101/"+m)] = detailHTML("March 1, 2024")
		p.texts.bodies[statusEndpoint+"10.1101/"+m] = `({"pub":[]})`
	}

	summary, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	// The cap terminates the run mid-page; the second keyword is never fetched.
	require.Equal(t, 1, summary.Records)
	require.Len(t, p.store.records, 1)
	for _, u := range p.docs.fetched {
		require.NotContains(t, u, "chromium")
	}
	require.Equal(t, 1, p.store.flushes)
}

func TestRunSkipsMissingListingPage(t *testing.T) {
	t.Parallel()

	cfg := testConfig("visium")
	cfg.Debug = true
	p := newTestPipeline(t, cfg)

	p.docs.pages[SearchURL("visium", 0)] = "<html><body>blocked</body></html>"

	summary, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, summary.Records)
	require.Zero(t, summary.Pages)
	// No records means no flush.
	require.Zero(t, p.store.flushes)
	// Debug mode dumps the unparseable page.
	require.Len(t, p.sink.paths, 1)
	require.Contains(t, p.sink.paths[0], "visium_page_0")
}

func TestRunBoundsPaginationRetries(t *testing.T) {
	t.Parallel()

	cfg := testConfig("visium")
	cfg.MaxPageRetries = 2
	p := newTestPipeline(t, cfg)

	// The rendered pager always claims page 5; the first page never settles.
	p.docs.pages[SearchURL("visium", 0)] = listingHTML(0, 5)

	summary, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, summary.Pages)
	// Initial attempt plus one retry, then the page is skipped.
	fetches := 0
	for _, u := range p.docs.fetched {
		if u == SearchURL("visium", 0) {
			fetches++
		}
	}
	require.Equal(t, 2, fetches)
}

func TestRunHonorsPageCap(t *testing.T) {
	t.Parallel()

	cfg := testConfig("visium")
	cfg.MaxPagesPerKeyword = 2
	p := newTestPipeline(t, cfg)

	// 1,000 declared results would be 14 pages uncapped.
	for i := 0; i < 3; i++ {
		meta := fmt.Sprintf("2024.01.0%d.00000%d", i+1, i+1)
		p.docs.pages[SearchURL("visium", i)] = listingHTML(1000, i+1, meta)
		p.docs.pages[DetailURL("10.1101/"+meta)] = detailHTML("April 2, 2024")
		p.texts.bodies[statusEndpoint+"10.1101/"+meta] = `({"pub":[]})`
	}

	summary, err := p.orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, summary.Pages)
	require.Equal(t, 2, summary.Records)
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, testConfig("visium"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.orch.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, summary.Records)
}
