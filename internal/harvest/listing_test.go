package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingFixture = `<html><body>
<div class="highwire-search-summary">Displaying 1,234 Results for visium</div>
<ul class="highwire-search-results-list">
  <li>
    <a class="highwire-cite-linked-title" href="/content/x"><span class="highwire-cite-title">Spatial profiling of tissue</span></a>
    <div class="highwire-cite-authors">Smith, Jones</div>
    <span class="highwire-cite-metadata-pages">2024.01.15.575123; </span>
    <span class="doi_label">doi:</span> 10.1101/2024.01.15.575123
  </li>
  <li>
    <a class="highwire-cite-linked-title" href="/content/y"><span class="highwire-cite-title">Item without identifier</span></a>
    <div class="highwire-cite-authors">Doe</div>
  </li>
</ul>
<li class="pager-current">1</li>
</body></html>`

func TestSearchURL(t *testing.T) {
	t.Parallel()

	got := SearchURL("10x chromium", 2)
	require.Equal(t,
		"https://www.biorxiv.org/search/10x%20chromium%20numresults%3A75%20sort%3Arelevance-rank?page=2",
		got)
}

func TestDetailURL(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://www.biorxiv.org/content/10.1101/2024.01.15.575123v1",
		DetailURL("10.1101/2024.01.15.575123"))
}

func TestFetchPageParsesItems(t *testing.T) {
	t.Parallel()

	docs := newFakeDocFetcher()
	docs.pages[SearchURL("visium", 0)] = listingFixture

	parser := NewListingParser(docs, zap.NewNop())
	page, err := parser.FetchPage(context.Background(), "visium", 0)
	require.NoError(t, err)

	require.Equal(t, 1234, page.TotalResults)
	require.Equal(t, 1, page.PagerNumber)

	// The identifier-less item contributes nothing.
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	require.Equal(t, "Spatial profiling of tissue", item.Title)
	require.Equal(t, "Smith, Jones", item.Authors)
	require.Equal(t, "2024.01.15.575123;", item.Meta)
	require.Equal(t, "10.1101/2024.01.15.575123", item.DOI)
}

func TestFetchPageMissingContainer(t *testing.T) {
	t.Parallel()

	docs := newFakeDocFetcher()
	docs.pages[SearchURL("visium", 0)] = "<html><body><p>maintenance page</p></body></html>"

	parser := NewListingParser(docs, zap.NewNop())
	page, err := parser.FetchPage(context.Background(), "visium", 0)
	require.ErrorIs(t, err, ErrListingNotFound)
	require.NotNil(t, page)
	require.NotEmpty(t, page.Raw)
	require.Equal(t, -1, page.TotalResults)
}

func TestSplitIdentifierMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		meta    string
		wantID  string
		wantDay time.Time
		hasDate bool
	}{
		{
			name:    "date and id",
			meta:    "2024.01.15.575123; ",
			wantID:  "575123",
			wantDay: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			hasDate: true,
		},
		{
			name:   "id only",
			meta:   "575123",
			wantID: "575123",
		},
		{
			name:   "unparseable date part",
			meta:   "notadate.575123",
			wantID: "575123",
		},
		{name: "empty", meta: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, date, hasDate := SplitIdentifierMeta(tc.meta)
			require.Equal(t, tc.wantID, id)
			require.Equal(t, tc.hasDate, hasDate)
			if tc.hasDate {
				require.Equal(t, tc.wantDay, date)
			} else {
				require.True(t, date.IsZero())
			}
		})
	}
}

func TestComputeTotalPages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, ComputeTotalPages(0, 0))
	require.Equal(t, 1, ComputeTotalPages(-1, 0))
	require.Equal(t, 1, ComputeTotalPages(75, 0))
	require.Equal(t, 2, ComputeTotalPages(76, 0))
	require.Equal(t, 17, ComputeTotalPages(1234, 0))
	require.Equal(t, 5, ComputeTotalPages(1234, 5))
}
