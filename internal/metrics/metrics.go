// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal              *prometheus.CounterVec
	recordsTotal            *prometheus.CounterVec
	listingFailuresTotal    *prometheus.CounterVec
	paginationRetriesTotal  *prometheus.CounterVec
	enrichmentFailuresTotal *prometheus.CounterVec
	paceDelaySeconds        prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Listing pages processed, labeled by keyword and status.",
			},
			[]string{"keyword", "status"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Records extracted and appended, labeled by keyword.",
			},
			[]string{"keyword"},
		)

		listingFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_listing_failures_total",
				Help: "Listing pages whose results container never appeared.",
			},
			[]string{"keyword"},
		)

		paginationRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pagination_retries_total",
				Help: "Retries triggered by a pagination consistency mismatch.",
			},
			[]string{"keyword"},
		)

		enrichmentFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_enrichment_failures_total",
				Help: "Enrichment lookups that left a field unset, labeled by kind.",
			},
			[]string{"kind"},
		)

		paceDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_pace_delay_seconds",
				Help:    "Histogram of rate-limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// ObservePage increments the processed-page counter.
func ObservePage(keyword, status string) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(keyword, status).Inc()
}

// ObserveRecord increments the extracted-record counter.
func ObserveRecord(keyword string) {
	if recordsTotal == nil {
		return
	}
	recordsTotal.WithLabelValues(keyword).Inc()
}

// ObserveListingFailure increments the missing-container counter.
func ObserveListingFailure(keyword string) {
	if listingFailuresTotal == nil {
		return
	}
	listingFailuresTotal.WithLabelValues(keyword).Inc()
}

// ObservePaginationRetry increments the consistency-retry counter.
func ObservePaginationRetry(keyword string) {
	if paginationRetriesTotal == nil {
		return
	}
	paginationRetriesTotal.WithLabelValues(keyword).Inc()
}

// ObserveEnrichmentFailure increments the enrichment-failure counter.
func ObserveEnrichmentFailure(kind string) {
	if enrichmentFailuresTotal == nil {
		return
	}
	enrichmentFailuresTotal.WithLabelValues(kind).Inc()
}

// ObservePaceDelay records one rate-limit wait.
func ObservePaceDelay(d time.Duration) {
	if paceDelaySeconds == nil {
		return
	}
	paceDelaySeconds.Observe(d.Seconds())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds an HTTP server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	router := chi.NewRouter()
	router.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
