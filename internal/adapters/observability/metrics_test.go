package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"review_board/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so counters are non-zero
	observability.ObserveHTTP("/api/reviews", "POST", 201, 12*time.Millisecond)
	observability.ObserveExternal("github", "put_contents", 200, 80*time.Millisecond)
	observability.ObserveConflict()
	observability.ObserveThrottle("allowed")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, metric := range []string{
		"reviews_http_requests_total",
		"reviews_external_requests_total",
		"reviews_write_conflicts_total",
		"reviews_throttle_events_total",
	} {
		if !strings.Contains(out, metric) {
			t.Fatalf("expected %s in output", metric)
		}
	}
}
