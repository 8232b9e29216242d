package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/glancecast/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (dashboard reload storms).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Model-backed routes are expected to sit in the seconds range.
	HTTPRequestDuration *prometheus.HistogramVec

	HTTPRequestsInFlight prometheus.Gauge

	// Feed results by outcome (success, fallback, error). Fallbacks are news-only.
	FeedRequestsTotal *prometheus.CounterVec

	// Per-location feed lookups (allow-list; others go to "other").
	FeedRequestsByLocationTotal *prometheus.CounterVec

	// Completion model calls. Watch for: error ratio per provider, malformed replies per prompt.
	CompletionCallsTotal *prometheus.CounterVec

	// Completion latency. Watch for: p95 creeping toward request.timeout.
	CompletionDuration *prometheus.HistogramVec

	// RSS converter calls by status.
	NewsConverterCallsTotal *prometheus.CounterVec

	NewsConverterDuration *prometheus.HistogramVec

	// Cache hits per feed. Only populated when cache.ttl > 0.
	CacheHitsTotal *prometheus.CounterVec

	CacheErrorsTotal *prometheus.CounterVec

	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Callers that joined an identical in-flight fetch instead of starting their own.
	RequestCoalescingHitsTotal *prometheus.CounterVec

	RequestCoalescingWaitSeconds prometheus.Histogram

	// Circuit breaker state: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: a client polling too aggressively.
	RateLimitDeniedTotal prometheus.Counter

	// Brief compositions by outcome (success, error, missing_data).
	BriefsComposedTotal *prometheus.CounterVec

	// Preference writes per key.
	PreferenceWritesTotal *prometheus.CounterVec

	PrefetchRunsTotal prometheus.Counter

	PrefetchErrorsTotal prometheus.Counter

	PrefetchDurationSeconds prometheus.Histogram

	// In-flight requests observed when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	FeedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedRequestsTotal",
			Help: "Feed results by feed and outcome (success, fallback, error)",
		},
		[]string{"feed", "outcome"},
	)
	FeedRequestsByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedRequestsByLocationTotal",
			Help: "Feed lookups by location (allow-list; others use location=other)",
		},
		[]string{"feed", "location"},
	)
	CompletionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completionCallsTotal",
			Help: "Completion model calls by provider, prompt and status",
		},
		[]string{"provider", "prompt", "status"},
	)
	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completionDurationSeconds",
			Help:    "Completion model latency in seconds",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider", "prompt"},
	)
	NewsConverterCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsConverterCallsTotal",
			Help: "RSS-to-JSON converter calls by status",
		},
		[]string{"status"},
	)
	NewsConverterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsConverterDurationSeconds",
			Help:    "RSS-to-JSON converter latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits per feed",
		},
		[]string{"feed"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"op", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op", "status"},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Requests served by joining an in-flight fetch",
		},
		[]string{"feed"},
	)
	RequestCoalescingWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "requestCoalescingWaitSeconds",
			Help:    "Time spent waiting on a coalesced fetch",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10},
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	BriefsComposedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "briefsComposedTotal",
			Help: "Daily brief requests by outcome",
		},
		[]string{"outcome"},
	)
	PreferenceWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preferenceWritesTotal",
			Help: "Preference writes by key",
		},
		[]string{"key"},
	)
	PrefetchRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prefetchRunsTotal",
			Help: "Feed prefetch runs",
		},
	)
	PrefetchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prefetchErrorsTotal",
			Help: "Feed prefetch runs that had at least one failure",
		},
	)
	PrefetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prefetchDurationSeconds",
			Help:    "Feed prefetch run duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests when graceful shutdown started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		FeedRequestsTotal, FeedRequestsByLocationTotal,
		CompletionCallsTotal, CompletionDuration,
		NewsConverterCallsTotal, NewsConverterDuration,
		CacheHitsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		RequestCoalescingHitsTotal, RequestCoalescingWaitSeconds,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal,
		BriefsComposedTotal, PreferenceWritesTotal,
		PrefetchRunsTotal, PrefetchErrorsTotal, PrefetchDurationSeconds,
		ShutdownInFlightRequests,
	)
}

// RegisterRateLimitGauges registers load and reject gauges for the rate-limited path over window.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting the rate-limited path in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// MetricLocationLabel returns the location label for metrics: the normalized location if tracked, else "other".
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

// RecordFeedResult counts one feed result and its location.
func RecordFeedResult(feed, location, outcome string) {
	FeedRequestsTotal.WithLabelValues(feed, outcome).Inc()
	if location != "" {
		FeedRequestsByLocationTotal.WithLabelValues(feed, MetricLocationLabel(location)).Inc()
	}
}

// RecordCompletion counts and times one completion model call.
func RecordCompletion(provider, prompt, status string, d time.Duration) {
	CompletionCallsTotal.WithLabelValues(provider, prompt, status).Inc()
	CompletionDuration.WithLabelValues(provider, prompt).Observe(d.Seconds())
}

// CircuitBreakerStateValue maps a breaker state ordinal to the gauge value.
func CircuitBreakerStateValue(state int) float64 {
	return float64(state)
}

func SetCircuitBreakerStateGauge(component string, v float64) {
	CircuitBreakerState.WithLabelValues(component).Set(v)
}

func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// RecordShutdownInFlight records the in-flight count seen at shutdown.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
