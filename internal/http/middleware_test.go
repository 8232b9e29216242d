package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/traffic"
)

// blockingDashboard waits for the request context to end, then reports failure.
type blockingDashboard struct {
	mockDashboard
}

func (b *blockingDashboard) FetchWeather(ctx context.Context, location string) models.Result[models.WeatherReading] {
	<-ctx.Done()
	return models.Failure[models.WeatherReading]("Failed to get weather data. Please try again.")
}

// TestMiddleware_CorrelationID verifies IDs are generated when absent and echoed when supplied.
func TestMiddleware_CorrelationID(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationIDFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := w.Header().Get(CorrelationIDHeader); got == "" || got != seen {
		t.Errorf("generated id: header %q, context %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationIDHeader, "client-provided-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(CorrelationIDHeader); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if seen != "client-provided-id" {
		t.Errorf("context id = %q, want client-provided-id", seen)
	}
}

// TestMiddleware_RequestLogger verifies handlers log with the correlation ID attached.
func TestMiddleware_RequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context()).Info("handled")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationIDHeader, "abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("handled").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["correlation_id"]; got != "abc" {
		t.Errorf("correlation_id = %v, want abc", got)
	}
}

// TestMiddleware_MetricsUsesRouteTemplate verifies request metrics are labelled by route template.
func TestMiddleware_MetricsUsesRouteTemplate(t *testing.T) {
	dash := &mockDashboard{weather: models.Success(models.WeatherReading{Location: "Oslo"})}
	_, router := newTestRouter(t, dash, nil, nil)

	do(t, router, http.MethodGet, "/api/weather/Oslo", "")
	w := do(t, router, http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `route="/api/weather/{location}"`) {
		t.Error("httpRequestsTotal missing templated route label")
	}
	if strings.Contains(body, `route="/api/weather/Oslo"`) {
		t.Error("raw path leaked into route label")
	}
}

// TestMiddleware_InFlightReturnsToZero verifies the drain counter is released after each request.
func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if during < 1 {
		t.Errorf("in-flight during request = %d, want >= 1", during)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("in-flight after request = %d, want 0", got)
	}
}

// TestTimeoutMiddleware_CancelsContextAfterTimeout verifies the deadline reaches the dashboard.
func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	h, _ := newTestRouter(t, &blockingDashboard{}, nil, nil)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	h.Routes(router, TimeoutMiddleware(50*time.Millisecond))

	start := time.Now()
	w := do(t, router, http.MethodGet, "/api/weather/Seattle", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request took %v, want about 50ms", elapsed)
	}
}

// TestRateLimitMiddleware_Returns429WhenExceeded verifies denials are answered, counted and
// scoped to /api.
func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	dash := &mockDashboard{weather: models.Success(models.WeatherReading{Location: "Seattle"})}
	h, _ := newTestRouter(t, dash, nil, nil)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	h.Routes(router, RateLimitMiddleware(rate.NewLimiter(0, 2)))

	for i := 0; i < 3; i++ {
		w := do(t, router, http.MethodGet, "/api/weather/Seattle", "")
		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		assertError(t, w, http.StatusTooManyRequests, "RATE_LIMITED")
	}

	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
	if w := do(t, router, http.MethodGet, "/health", ""); w.Code == http.StatusTooManyRequests {
		t.Error("/health should not be rate limited")
	}
}

// TestRateLimitMiddleware_NilLimiterPassesThrough verifies a nil limiter disables limiting.
func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	dash := &mockDashboard{weather: models.Success(models.WeatherReading{Location: "Seattle"})}
	h, _ := newTestRouter(t, dash, nil, nil)
	router := mux.NewRouter()
	h.Routes(router, RateLimitMiddleware(nil))

	for i := 0; i < 5; i++ {
		if w := do(t, router, http.MethodGet, "/api/weather/Seattle", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}
