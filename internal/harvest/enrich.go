package harvest

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkarlsen/biorxiv-harvester/internal/metrics"
)

const (
	postedPaneSelector  = "div.pane-1 div.pane-content"
	contentPaneSelector = "div.pane-content"
)

var postedDateRE = regexp.MustCompile(`Posted\s+([A-Z][a-z]+\s+\d{1,2},\s+\d{4})`)

// Enricher fills the posting date and publication-status fields of one record
// from the article detail page and the status endpoint.
type Enricher struct {
	docs   DocumentFetcher
	status *StatusResolver
	pacer  *Pacer
	logger *zap.Logger

	lookupDelay func(ctx context.Context) // applied between the two lookups
}

// NewEnricher wires an enricher. base and variation space out the lightweight
// lookups per fetch.
func NewEnricher(docs DocumentFetcher, status *StatusResolver, pacer *Pacer, logger *zap.Logger, lookupDelay func(ctx context.Context)) *Enricher {
	if lookupDelay == nil {
		lookupDelay = func(context.Context) {}
	}
	return &Enricher{
		docs:        docs,
		status:      status,
		pacer:       pacer,
		logger:      logger,
		lookupDelay: lookupDelay,
	}
}

// FetchPostedTime reads the official posting date from the article detail
// page. It returns the normalized "Month Day, Year" string, the general pane
// text as a fallback, or "" when the page is unusable. This call never
// propagates errors.
func (e *Enricher) FetchPostedTime(ctx context.Context, id string) string {
	detailURL := DetailURL(id)
	if err := e.pacer.WaitHost(ctx, detailURL); err != nil {
		return ""
	}
	doc, err := e.docs.Fetch(ctx, detailURL, FetchOptions{
		WaitSelector: postedPaneSelector,
		WaitTimeout:  listingWait,
	})
	if err != nil {
		e.logger.Debug("detail page fetch failed", zap.String("id", id), zap.Error(err))
		return ""
	}

	// The pane renders non-breaking spaces, which \s does not match.
	pane := strings.ReplaceAll(doc.Find(postedPaneSelector).First().Text(), " ", " ")
	if m := postedDateRE.FindStringSubmatch(pane); m != nil {
		return normalizeSpaces(m[1])
	}

	fallback := strings.TrimSpace(doc.Find(contentPaneSelector).First().Text())
	if isAccessDenied(fallback) {
		return ""
	}
	return fallback
}

// Enrich populates the builder with posted time and publication status. The
// lookups are independent; a failure in one never blocks the other.
func (e *Enricher) Enrich(ctx context.Context, b *RecordBuilder, id string, templates TemplateMap) {
	raw := e.FetchPostedTime(ctx, id)
	if raw != "" && !isAccessDenied(raw) {
		norm := NormalizePostedText(raw)
		if t, ok := ParsePostedDate(norm); ok {
			b.Posted(raw, t)
		} else {
			metrics.ObserveEnrichmentFailure("posted_time_parse")
			e.logger.Warn("posted time matched no accepted layout",
				zap.String("id", id),
				zap.String("raw", raw),
			)
			b.Posted(raw, time.Time{})
		}
	}

	e.lookupDelay(ctx)

	text := e.status.Resolve(ctx, id, templates)
	if text == PublicationSentinel {
		metrics.ObserveEnrichmentFailure("publication_status")
	}
	b.PublicationText(text)
}

// isAccessDenied detects the block page by the known denial phrase, compared
// with all whitespace stripped.
func isAccessDenied(text string) bool {
	stripped := strings.ToLower(strings.Join(strings.Fields(text), ""))
	return strings.Contains(stripped, "accessdenied")
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
