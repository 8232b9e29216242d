package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kjstillabower/glancecast/internal/lifecycle"
	"github.com/kjstillabower/glancecast/internal/preferences"
	"github.com/kjstillabower/glancecast/internal/traffic"
)

type healthBody struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func getHealth(t *testing.T, hc *HealthConfig, storeDown bool) (int, healthBody) {
	t.Helper()
	var store preferences.Store
	if storeDown {
		store = failingStore{}
	}
	_, router := newTestRouter(t, &mockDashboard{}, store, hc)
	w := do(t, router, http.MethodGet, "/health", "")
	var body healthBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return w.Code, body
}

func resetHealthState(t *testing.T) {
	t.Helper()
	traffic.Reset()
	lifecycle.SetDraining(false)
	t.Cleanup(func() {
		traffic.Reset()
		lifecycle.SetDraining(false)
	})
}

// TestHealth_Statuses verifies the status and code for each condition in priority order.
func TestHealth_Statuses(t *testing.T) {
	hc := func() *HealthConfig {
		return &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50, Version: "1.2.3"}
	}
	tests := []struct {
		name       string
		setup      func(hc *HealthConfig)
		storeDown  bool
		wantCode   int
		wantStatus string
	}{
		{name: "healthy", wantCode: http.StatusOK, wantStatus: "healthy"},
		{
			name:       "draining wins",
			setup:      func(*HealthConfig) { lifecycle.SetDraining(true) },
			storeDown:  true,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "shutting-down",
		},
		{name: "preferences down", storeDown: true, wantCode: http.StatusServiceUnavailable, wantStatus: "degraded"},
		{
			name:       "breaker open",
			setup:      func(hc *HealthConfig) { hc.BreakerOpen = func() bool { return true } },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name: "error rate breach",
			setup: func(*HealthConfig) {
				traffic.Record("weather", traffic.Failure)
				traffic.Record("news", traffic.Fallback)
				traffic.Record("stocks", traffic.Success)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
		{
			name: "error rate below threshold",
			setup: func(*HealthConfig) {
				traffic.Record("weather", traffic.Failure)
				traffic.Record("news", traffic.Success)
				traffic.Record("stocks", traffic.Success)
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "cache down is advisory",
			setup:      func(hc *HealthConfig) { hc.CachePing = func() error { return errors.New("dial tcp") } },
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealthState(t)
			cfg := hc()
			if tt.setup != nil {
				tt.setup(cfg)
			}
			code, body := getHealth(t, cfg, tt.storeDown)
			if code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("health = %d %q, want %d %q", code, body.Status, tt.wantCode, tt.wantStatus)
			}
			if body.Service != "glancecast" || body.Version != "1.2.3" {
				t.Errorf("service/version = %q/%q", body.Service, body.Version)
			}
		})
	}
}

// TestHealth_Checks verifies per-dependency and per-feed check values.
func TestHealth_Checks(t *testing.T) {
	resetHealthState(t)
	traffic.Record("weather", traffic.Failure)
	traffic.Record("weather", traffic.Failure)
	traffic.Record("news", traffic.Success)
	traffic.RecordDenied()

	cfg := &HealthConfig{
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 90,
		BreakerOpen:      func() bool { return false },
		CachePing:        func() error { return errors.New("timeout") },
	}
	_, body := getHealth(t, cfg, false)

	want := map[string]string{
		"preferences": "healthy",
		"cache":       "unhealthy",
		"completion":  "healthy",
		"weather":     "degraded",
		"news":        "healthy",
		"stocks":      "healthy",
		"brief":       "healthy",
	}
	for k, v := range want {
		if body.Checks[k] != v {
			t.Errorf("checks[%q] = %q, want %q", k, body.Checks[k], v)
		}
	}
}

// TestHealth_NoConfig verifies a bare handler reports healthy with only the preferences check.
func TestHealth_NoConfig(t *testing.T) {
	resetHealthState(t)
	code, body := getHealth(t, nil, false)
	if code != http.StatusOK || body.Status != "healthy" {
		t.Errorf("health = %d %q, want 200 healthy", code, body.Status)
	}
	if body.Version != "dev" {
		t.Errorf("version = %q, want dev", body.Version)
	}
	if len(body.Checks) != 1 || body.Checks["preferences"] != "healthy" {
		t.Errorf("checks = %v", body.Checks)
	}
}

// TestTestMode_Actions verifies /test actions drive the health state.
func TestTestMode_Actions(t *testing.T) {
	resetHealthState(t)
	h, router := newTestRouter(t, &mockDashboard{}, nil, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50})
	h.TestRoutes(router)

	w := do(t, router, http.MethodPost, "/test/error", `{"feed":"stocks","count":2}`)
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["state"] != "degraded" {
		t.Errorf("state after errors = %v, want degraded", resp["state"])
	}
	if f, _ := traffic.FeedErrorRate("stocks", time.Minute); f != 2 {
		t.Errorf("stocks failures = %d, want 2", f)
	}

	do(t, router, http.MethodPost, "/test/shutdown", "")
	if !lifecycle.IsDraining() {
		t.Error("shutdown action did not set draining")
	}

	do(t, router, http.MethodPost, "/test/reset", "")
	if lifecycle.IsDraining() || traffic.RequestCount(time.Minute) != 0 {
		t.Error("reset did not clear state")
	}

	w = do(t, router, http.MethodPost, "/test/explode", "")
	assertError(t, w, http.StatusNotFound, "UNKNOWN_ACTION")
}
