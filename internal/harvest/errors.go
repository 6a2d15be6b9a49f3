package harvest

import (
	"errors"
	"fmt"
)

// ErrListingNotFound signals that the results-list container never appeared on
// a listing page. Recoverable: the orchestrator skips the page.
var ErrListingNotFound = errors.New("listing container not found")

// ErrPaginationMismatch signals that the rendered page indicator disagrees
// with the expected page number, usually a stale or redirected page.
var ErrPaginationMismatch = errors.New("pagination mismatch")

// PageStuckError is surfaced after the bounded pagination-mismatch retries are
// exhausted. The orchestrator skips to the next page.
type PageStuckError struct {
	Keyword   string
	PageIndex int
	Attempts  int
}

func (e *PageStuckError) Error() string {
	return fmt.Sprintf("page %d stuck for keyword %q after %d attempts", e.PageIndex, e.Keyword, e.Attempts)
}

func (e *PageStuckError) Unwrap() error { return ErrPaginationMismatch }

// errRecordCapReached terminates the run the instant the global record cap is
// met; it never escapes Run.
var errRecordCapReached = errors.New("record cap reached")
