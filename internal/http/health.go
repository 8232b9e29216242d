package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/lifecycle"
	"github.com/kjstillabower/glancecast/internal/traffic"
)

// healthFeeds are the feeds whose error rate is reported under checks.
var healthFeeds = []string{"weather", "news", "stocks", "brief"}

// HealthConfig holds the thresholds and probes used by the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// BreakerOpen reports whether the completion circuit breaker is open.
	BreakerOpen func() bool
	// CachePing, when set, checks cache reachability. Used when backend is memcached.
	CachePing func() error
	Version   string
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := h.runChecks(ctx)
	result := h.computeHealthStatus(checks)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	now := time.Now()
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "glancecast",
		"version":   version,
		"uptime":    lifecycle.Uptime(now).String(),
		"checks":    checks,
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// runChecks probes dependencies and per-feed error rates. Values are "healthy",
// "unhealthy" (probe failed) or "degraded" (error rate at or above threshold).
func (h *Handler) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)
	if h.prefs != nil {
		checks["preferences"] = healthy(h.prefs.Ping(ctx) == nil)
	}
	if h.healthConfig == nil {
		return checks
	}
	if h.healthConfig.CachePing != nil {
		checks["cache"] = healthy(h.healthConfig.CachePing() == nil)
	}
	if h.healthConfig.BreakerOpen != nil {
		checks["completion"] = healthy(!h.healthConfig.BreakerOpen())
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		for _, feed := range healthFeeds {
			failures, total := traffic.FeedErrorRate(feed, h.healthConfig.DegradedWindow)
			if total > 0 && failures*100 >= h.healthConfig.DegradedErrorPct*total {
				checks[feed] = "degraded"
			} else {
				checks[feed] = "healthy"
			}
		}
	}
	return checks
}

func healthy(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > dependency down > breaker open > error rate > healthy.
// The cache is advisory; a cache outage alone does not degrade the service.
func (h *Handler) computeHealthStatus(checks map[string]string) healthResult {
	if lifecycle.IsDraining() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if checks["preferences"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "preferences_unavailable"}
	}
	if checks["completion"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		failures, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && failures*100 >= h.healthConfig.DegradedErrorPct*total {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}
