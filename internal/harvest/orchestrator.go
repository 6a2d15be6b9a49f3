package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/mkarlsen/biorxiv-harvester/internal/metrics"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Orchestrator drives pagination across keywords, invokes the listing parser
// and enricher, enforces the page and record caps, retries transient page
// failures, and accumulates records into the store.
type Orchestrator struct {
	cfg       Config
	listings  *ListingParser
	enricher  *Enricher
	status    *StatusResolver
	store     RecordStore
	snapshots BlobSink // optional; failed-page diagnostics when Debug is set
	pacer     *Pacer
	clock     Clock
	logger    *zap.Logger
}

// NewOrchestrator assembles the pipeline.
func NewOrchestrator(
	cfg Config,
	listings *ListingParser,
	enricher *Enricher,
	status *StatusResolver,
	store RecordStore,
	snapshots BlobSink,
	pacer *Pacer,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		listings:  listings,
		enricher:  enricher,
		status:    status,
		store:     store,
		snapshots: snapshots,
		pacer:     pacer,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes a full harvest. Partial results are always flushed if at least
// one record was extracted before termination.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	run := NewRunContext(o.clock)
	logger := o.logger.With(zap.String("run_uuid", run.UUID), zap.String("run_id", run.RunID))
	logger.Info("harvest started", zap.Strings("keywords", o.cfg.Keywords))

	templates := o.status.LoadTemplates(ctx)

	var runErr error
	for _, keyword := range o.cfg.Keywords {
		if run.capReached(o.cfg.MaxRecords) {
			break
		}
		err := o.harvestKeyword(ctx, run, keyword, templates)
		if errors.Is(err, errRecordCapReached) {
			logger.Info("limit-reached", zap.Int("records", run.Records()))
			break
		}
		if err != nil && ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		if err != nil {
			// Remaining pages of this keyword are abandoned; prior results
			// are still persisted.
			logger.Error("keyword abandoned", zap.String("keyword", keyword), zap.Error(err))
		}
	}

	if run.Records() > 0 {
		if err := o.store.Flush(ctx); err != nil {
			return o.summarize(run), fmt.Errorf("flush records: %w", err)
		}
	}

	summary := o.summarize(run)
	logger.Info("harvest finished",
		zap.Int("records", summary.Records),
		zap.Int("pages", summary.Pages),
	)
	return summary, runErr
}

func (o *Orchestrator) summarize(run *RunContext) RunSummary {
	return RunSummary{
		RunUUID:    run.UUID,
		RunID:      run.RunID,
		Keywords:   o.cfg.Keywords,
		Records:    run.Records(),
		Pages:      run.Pages(),
		StartedAt:  run.StartedAt,
		FinishedAt: o.clock.Now(),
	}
}

// harvestKeyword walks one keyword's page range. It returns
// errRecordCapReached the instant the global cap is met, terminating the
// entire run mid-page and mid-keyword.
func (o *Orchestrator) harvestKeyword(ctx context.Context, run *RunContext, keyword string, templates TemplateMap) error {
	logger := o.logger.With(zap.String("keyword", keyword))
	cursor := PageCursor{Keyword: keyword, TotalPages: 1}
	stuck := 0

	for cursor.PageIndex < cursor.TotalPages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if run.capReached(o.cfg.MaxRecords) {
			return errRecordCapReached
		}

		page, err := o.listings.FetchPage(ctx, keyword, cursor.PageIndex)
		switch {
		case errors.Is(err, ErrListingNotFound):
			metrics.ObserveListingFailure(keyword)
			o.dumpSnapshot(ctx, run, keyword, cursor.PageIndex, page)
			logger.Warn("listing container missing; skipping page", zap.Int("page_index", cursor.PageIndex))
			cursor.PageIndex++
			if _, werr := o.pacer.Wait(ctx, o.cfg.ExtendedDelay, o.cfg.PageDelayJitter); werr != nil {
				return werr
			}
			continue
		case err != nil:
			// Best-effort forward progress on unexpected failures.
			logger.Error("page processing failed; advancing",
				zap.Int("page_index", cursor.PageIndex), zap.Error(err))
			cursor.PageIndex++
			if _, werr := o.pacer.Wait(ctx, o.cfg.ExtendedDelay, o.cfg.PageDelayJitter); werr != nil {
				return werr
			}
			continue
		}

		if page.TotalResults >= 0 {
			cursor.TotalPages = ComputeTotalPages(page.TotalResults, o.cfg.MaxPagesPerKeyword)
		}

		if err := o.emitItems(ctx, run, &cursor, page, templates); err != nil {
			return err
		}

		// Pagination consistency: the rendered indicator must agree with the
		// cursor, otherwise the fetcher served a stale or redirected page.
		if page.PagerNumber > 0 && page.PagerNumber != cursor.PageIndex+1 {
			stuck++
			metrics.ObservePaginationRetry(keyword)
			if stuck >= o.cfg.MaxPageRetries {
				stuckErr := &PageStuckError{Keyword: keyword, PageIndex: cursor.PageIndex, Attempts: stuck}
				logger.Error("page stuck; skipping", zap.Error(stuckErr))
				stuck = 0
				cursor.PageIndex++
			} else {
				logger.Warn("pagination mismatch; retrying page",
					zap.Int("expected", cursor.PageIndex+1),
					zap.Int("rendered", page.PagerNumber),
					zap.Int("attempt", stuck),
				)
			}
			if _, werr := o.pacer.Wait(ctx, o.cfg.ExtendedDelay, o.cfg.PageDelayJitter); werr != nil {
				return werr
			}
			continue
		}

		stuck = 0
		run.notePage()
		metrics.ObservePage(keyword, "ok")
		logger.Info("page-processed",
			zap.Int("page_index", cursor.PageIndex),
			zap.Int("total_pages", cursor.TotalPages),
			zap.Int("emitted", cursor.Emitted),
		)
		cursor.PageIndex++

		base, jitter := o.cfg.PageDelay, o.cfg.PageDelayJitter
		if o.cfg.LongPauseEvery > 0 && cursor.PageIndex%o.cfg.LongPauseEvery == 0 {
			base, jitter = o.cfg.LongPause, o.cfg.LongPauseJitter
		}
		if _, werr := o.pacer.Wait(ctx, base, jitter); werr != nil {
			return werr
		}
	}
	return nil
}

func (o *Orchestrator) emitItems(ctx context.Context, run *RunContext, cursor *PageCursor, page *ListingPage, templates TemplateMap) error {
	for _, item := range page.Items {
		if run.capReached(o.cfg.MaxRecords) {
			return errRecordCapReached
		}
		rec, err := o.buildRecord(ctx, run, cursor.Keyword, page, item, templates)
		if err != nil {
			o.logger.Warn("item skipped",
				zap.String("keyword", cursor.Keyword),
				zap.String("meta", item.Meta),
				zap.Error(err),
			)
			continue
		}
		if err := o.store.Append(ctx, rec); err != nil {
			o.logger.Error("record append failed", zap.String("id", rec.IdentifierID), zap.Error(err))
			continue
		}
		run.noteRecord()
		cursor.Emitted++
		metrics.ObserveRecord(cursor.Keyword)
		o.logger.Info("record-extracted",
			zap.String("keyword", cursor.Keyword),
			zap.String("id", rec.IdentifierID),
			zap.Int("total", run.Records()),
		)
	}
	return nil
}

// buildRecord runs field extraction and enrichment for one raw item. Partial
// success is allowed: a record missing title or authors is still emitted, but
// one without an identifier id is not.
func (o *Orchestrator) buildRecord(ctx context.Context, run *RunContext, keyword string, page *ListingPage, item RawItem, templates TemplateMap) (Record, error) {
	id, date, _ := SplitIdentifierMeta(item.Meta)
	b := NewRecordBuilder(keyword, run.RunID).
		Title(item.Title).
		Authors(item.Authors).
		Identifier(id, date).
		DetailURL(DetailURL(item.DOI)).
		SourcePage(page.URL)

	o.enricher.Enrich(ctx, b, item.DOI, templates)
	return b.Build(o.clock)
}

// dumpSnapshot writes the raw page content for diagnostics. Debug-gated and
// best effort.
func (o *Orchestrator) dumpSnapshot(ctx context.Context, run *RunContext, keyword string, pageIndex int, page *ListingPage) {
	if !o.cfg.Debug || o.snapshots == nil || page == nil || page.Raw == "" {
		return
	}
	name := fmt.Sprintf("snapshots/%s/%s_page_%d.html",
		run.UUID, unsafeNameChars.ReplaceAllString(keyword, "_"), pageIndex)
	uri, err := o.snapshots.PutObject(ctx, name, "text/html; charset=utf-8", bytes.NewReader([]byte(page.Raw)))
	if err != nil {
		o.logger.Warn("snapshot dump failed", zap.String("path", name), zap.Error(err))
		return
	}
	o.logger.Debug("snapshot saved", zap.String("uri", uri))
}
