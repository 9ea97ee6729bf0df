package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"rentalyzer/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	observability.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestHandlerExposesServiceMetrics(t *testing.T) {
	observability.ObserveHTTP("/v2/property/analysis", "POST", 200, 12*time.Millisecond)
	observability.ObserveExternal("airdna", "/rentalizer/estimate", 503, time.Second)
	observability.ObserveCache("mysql", observability.CacheHit)
	observability.ObserveAnalysis("cache", "success")
	observability.ObserveAnalysis("", "invalid_input")
	observability.ObserveRevenue(54850)
	observability.ObserveAlert("cache_check_failed", false)

	out := scrape(t)
	for _, want := range []string{
		`rentalyzer_http_requests_total{method="POST",route="/v2/property/analysis",status="200"}`,
		`rentalyzer_provider_requests_total{endpoint="/rentalizer/estimate",service="airdna",status="503"}`,
		`rentalyzer_cache_events_total{event="hit",tier="mysql"}`,
		`rentalyzer_analysis_results_total{outcome="success",source="cache"}`,
		`rentalyzer_analysis_results_total{outcome="invalid_input",source="none"}`,
		`rentalyzer_analysis_typical_revenue_dollars_count`,
		`rentalyzer_alerts_total{delivered="false",kind="cache_check_failed"}`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}

func revenueCount(t *testing.T) float64 {
	t.Helper()
	const prefix = "rentalyzer_analysis_typical_revenue_dollars_count "
	for _, line := range strings.Split(scrape(t), "\n") {
		if strings.HasPrefix(line, prefix) {
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, prefix), 64)
			if err != nil {
				t.Fatalf("parse %q: %v", line, err)
			}
			return v
		}
	}
	t.Fatalf("revenue histogram not exposed")
	return 0
}

func TestObserveRevenueSkipsNonPositive(t *testing.T) {
	before := revenueCount(t)
	observability.ObserveRevenue(0)
	observability.ObserveRevenue(-10)
	if got := revenueCount(t); got != before {
		t.Fatalf("count changed: %v -> %v", before, got)
	}
	observability.ObserveRevenue(1100)
	if got := revenueCount(t); got != before+1 {
		t.Fatalf("count = %v, want %v", got, before+1)
	}
}
