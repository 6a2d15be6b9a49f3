package harvest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// fakeDocFetcher serves canned HTML keyed by URL.
type fakeDocFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func newFakeDocFetcher() *fakeDocFetcher {
	return &fakeDocFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (f *fakeDocFetcher) Fetch(_ context.Context, rawURL string, _ FetchOptions) (*Document, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("no canned page for %s", rawURL)
	}
	return NewDocument(rawURL, html)
}

// fakeTextFetcher serves canned bodies keyed by URL.
type fakeTextFetcher struct {
	bodies map[string]string
	errs   map[string]error
}

func newFakeTextFetcher() *fakeTextFetcher {
	return &fakeTextFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
	}
}

func (f *fakeTextFetcher) FetchText(_ context.Context, rawURL string) (string, error) {
	if err, ok := f.errs[rawURL]; ok {
		return "", err
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return "", fmt.Errorf("no canned body for %s", rawURL)
	}
	return body, nil
}

// memStore records appended records in memory.
type memStore struct {
	mu      sync.Mutex
	records []Record
	flushes int
}

func (s *memStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// memSink records PutObject calls.
type memSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *memSink) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return "mem://" + path, nil
}

// fixedClock always reports the same instant.
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }
