package harvest

import (
	"context"
	"io"
	"time"
)

// DocumentFetcher renders a URL and returns a queryable Document. The fetcher
// waits up to FetchOptions.WaitTimeout for WaitSelector to appear; a wait that
// times out is not an error, the caller decides what an absent element means.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Document, error)
}

// FetchOptions controls how a document fetch waits for dynamic content.
type FetchOptions struct {
	WaitSelector string
	WaitTimeout  time.Duration
}

// TextFetcher retrieves a raw response body. Used for the lightweight status
// endpoint and template script, which need no JavaScript rendering.
type TextFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// RecordStore accumulates records during a run and writes the dataset once at
// the end of the run.
type RecordStore interface {
	Append(ctx context.Context, rec Record) error
	Flush(ctx context.Context) error
}

// BlobSink writes diagnostic artifacts (failed-page snapshots) and returns a URI.
type BlobSink interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
