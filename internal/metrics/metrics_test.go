package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(WebhookEvents.WithLabelValues("applied"))
	WebhookEvents.WithLabelValues("applied").Inc()
	if got := testutil.ToFloat64(WebhookEvents.WithLabelValues("applied")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestObserveHTTPLabelsUnmatchedRoutes(t *testing.T) {
	ObserveHTTP("GET", "", "404", time.Millisecond)
	if count := testutil.CollectAndCount(HTTPRequestDuration); count == 0 {
		t.Fatalf("expected at least one histogram series")
	}
}
