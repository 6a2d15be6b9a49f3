package harvest

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	searchHost = "https://www.biorxiv.org"

	// PageSize is the fixed numresults qualifier on listing URLs.
	PageSize = 75

	listingSelector = ".highwire-search-results-list"
	listingWait     = 10 * time.Second
)

var (
	resultsCountRE = regexp.MustCompile(`([\d,]+)\s*Results`)
	digitsRE       = regexp.MustCompile(`\d+`)
)

// RawItem is one search result before enrichment.
type RawItem struct {
	Title   string
	Authors string
	Meta    string // compound "date.ID" metadata, e.g. "2024.01.15.575123; ..."
	DOI     string // identifier fragment following the DOI label
}

// ListingPage is the parsed form of one listing page.
type ListingPage struct {
	URL          string
	Items        []RawItem
	TotalResults int // -1 when the summary element was absent
	PagerNumber  int // rendered pager value, -1 when unknown
	Raw          string
}

// ListingParser fetches and parses listing pages.
type ListingParser struct {
	fetcher DocumentFetcher
	logger  *zap.Logger
}

// NewListingParser wires a parser to a document fetcher.
func NewListingParser(fetcher DocumentFetcher, logger *zap.Logger) *ListingParser {
	return &ListingParser{fetcher: fetcher, logger: logger}
}

// SearchURL builds the listing URL for a keyword and zero-based page index.
func SearchURL(keyword string, pageIndex int) string {
	return fmt.Sprintf("%s/search/%s%%20numresults%%3A%d%%20sort%%3Arelevance-rank?page=%d",
		searchHost, url.PathEscape(keyword), PageSize, pageIndex)
}

// DetailURL builds the article detail-page URL for an identifier fragment.
func DetailURL(id string) string {
	return fmt.Sprintf("%s/content/%sv1", searchHost, id)
}

// FetchPage fetches one listing page and extracts its raw items and declared
// total result count. When the results-list container never appears, the page
// (with its raw HTML, for diagnostics) is returned alongside
// ErrListingNotFound.
func (p *ListingParser) FetchPage(ctx context.Context, keyword string, pageIndex int) (*ListingPage, error) {
	pageURL := SearchURL(keyword, pageIndex)
	doc, err := p.fetcher.Fetch(ctx, pageURL, FetchOptions{
		WaitSelector: listingSelector,
		WaitTimeout:  listingWait,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", pageURL, err)
	}

	page := &ListingPage{
		URL:          pageURL,
		TotalResults: -1,
		PagerNumber:  -1,
		Raw:          doc.Raw(),
	}

	if doc.Find(listingSelector).Length() == 0 {
		return page, ErrListingNotFound
	}

	if summary := strings.TrimSpace(doc.Find("div.highwire-search-summary").First().Text()); summary != "" {
		if m := resultsCountRE.FindStringSubmatch(summary); m != nil {
			if n, convErr := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); convErr == nil {
				page.TotalResults = n
			}
		}
	}

	doc.Find(listingSelector + " > li").Each(func(_ int, item *goquery.Selection) {
		doi := doiAfterLabel(item)
		if doi == "" {
			// An item without a DOI link contributes no record.
			return
		}
		page.Items = append(page.Items, RawItem{
			Title:   strings.TrimSpace(item.Find(".highwire-cite-linked-title .highwire-cite-title").First().Text()),
			Authors: strings.TrimSpace(item.Find(".highwire-cite-authors").First().Text()),
			Meta:    strings.TrimSpace(item.Find(".highwire-cite-metadata-pages").First().Text()),
			DOI:     doi,
		})
	})

	if pager := strings.TrimSpace(doc.Find("li.pager-current").First().Text()); pager != "" {
		if m := digitsRE.FindString(pager); m != "" {
			if n, convErr := strconv.Atoi(m); convErr == nil {
				page.PagerNumber = n
			}
		}
	}

	p.logger.Debug("listing page parsed",
		zap.String("keyword", keyword),
		zap.Int("page_index", pageIndex),
		zap.Int("items", len(page.Items)),
		zap.Int("total_results", page.TotalResults),
	)
	return page, nil
}

// doiAfterLabel reads the identifier text node that immediately follows the
// DOI-label marker inside one result item. The label is an element; the
// identifier itself is the bare text sibling after it.
func doiAfterLabel(item *goquery.Selection) string {
	label := item.Find(".doi_label").First()
	if label.Length() == 0 {
		return ""
	}
	for node := label.Get(0).NextSibling; node != nil; node = node.NextSibling {
		if node.Type == html.TextNode {
			if doi := strings.ReplaceAll(strings.TrimSpace(node.Data), " ", ""); doi != "" {
				return doi
			}
			continue
		}
		if node.Type == html.ElementNode {
			break
		}
	}
	return ""
}

// SplitIdentifierMeta splits a compound "date.ID" metadata string. The string
// is split on ';' taking the first segment; everything after the last '.' is
// the identifier id and everything before is a YYYY.MM.DD date. A segment
// with no '.' is the id alone, with no date.
func SplitIdentifierMeta(meta string) (id string, date time.Time, hasDate bool) {
	first := strings.TrimSpace(strings.SplitN(meta, ";", 2)[0])
	if first == "" {
		return "", time.Time{}, false
	}
	dot := strings.LastIndex(first, ".")
	if dot < 0 {
		return first, time.Time{}, false
	}
	id = strings.TrimSpace(first[dot+1:])
	if t, err := time.Parse("2006.01.02", strings.TrimSpace(first[:dot])); err == nil {
		return id, t, true
	}
	return id, time.Time{}, false
}

// ComputeTotalPages derives the page count from the declared result total,
// clamped to pageCap when a cap is configured.
func ComputeTotalPages(totalResults, pageCap int) int {
	if totalResults <= 0 {
		return 1
	}
	pages := (totalResults + PageSize - 1) / PageSize
	if pageCap > 0 && pages > pageCap {
		pages = pageCap
	}
	return pages
}
