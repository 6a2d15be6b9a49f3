package harvest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a queryable snapshot of a rendered page. Selector queries
// return goquery selections; a selector with no match yields an empty
// selection, never nil, so callers can chain without guarding.
type Document struct {
	URL string

	raw string
	doc *goquery.Document
}

// NewDocument parses raw HTML into a Document.
func NewDocument(rawURL, rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", rawURL, err)
	}
	return &Document{URL: rawURL, raw: rawHTML, doc: doc}, nil
}

// Raw returns the page HTML as fetched.
func (d *Document) Raw() string { return d.raw }

// Text returns the full visible text of the page.
func (d *Document) Text() string { return d.doc.Text() }

// Find runs a CSS selector query over the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}
