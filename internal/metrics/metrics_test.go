package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveBeforeInitIsSafe(t *testing.T) {
	// Must not panic when collectors are not yet registered.
	ObservePage("visium", "ok")
	ObserveRecord("visium")
	ObserveListingFailure("visium")
	ObservePaginationRetry("visium")
	ObserveEnrichmentFailure("posted_time_parse")
	ObservePaceDelay(time.Second)
}

func TestMetricsEndpoint(t *testing.T) {
	Init()
	Init() // idempotent

	ObservePage("visium", "ok")
	ObserveRecord("visium")

	srv := httptest.NewServer(NewServer(":0").Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}
