package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "rentalyzer"

// Cache event labels.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheSet   = "set"
	CacheError = "error"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "provider", Name: "requests_total",
		Help: "Provider calls by endpoint and status; status 0 means no response.",
	}, []string{"service", "endpoint", "status"})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "provider", Name: "request_duration_seconds",
		Help:    "Provider call latency.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"service", "endpoint"})

	cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "events_total",
		Help: "Cache tier events (hit, miss, set, error).",
	}, []string{"tier", "event"})

	analysisResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "analysis", Name: "results_total",
		Help: "Analysis outcomes by payload source.",
	}, []string{"source", "outcome"})

	typicalRevenue = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "analysis", Name: "typical_revenue_dollars",
		Help:    "Projected typical annual revenue of successful analyses.",
		Buckets: prometheus.ExponentialBuckets(5000, 2, 8),
	})

	alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "alerts", Name: "total",
		Help: "Operator alerts by kind and delivery result.",
	}, []string{"kind", "delivered"})
)

// Registry holds every collector this service exports.
var Registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpLatency,
		providerRequests, providerLatency,
		cacheEvents,
		analysisResults, typicalRevenue,
		alerts,
	)
	return reg
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler on its own listener; an empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	providerRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	providerLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(tier, event string) {
	cacheEvents.WithLabelValues(tier, event).Inc()
}

// ObserveAnalysis counts one analysis; an empty source means none was resolved.
func ObserveAnalysis(source, outcome string) {
	if source == "" {
		source = "none"
	}
	analysisResults.WithLabelValues(source, outcome).Inc()
}

func ObserveRevenue(typical float64) {
	if typical > 0 {
		typicalRevenue.Observe(typical)
	}
}

func ObserveAlert(kind string, delivered bool) {
	alerts.WithLabelValues(kind, strconv.FormatBool(delivered)).Inc()
}
