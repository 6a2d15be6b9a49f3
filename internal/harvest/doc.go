// Package harvest implements the bioRxiv extraction pipeline: listing-page
// parsing, per-record enrichment, publication-status resolution, and the
// orchestration loop that drives pagination across keywords.
package harvest
