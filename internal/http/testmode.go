package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/glancecast/internal/lifecycle"
	"github.com/kjstillabower/glancecast/internal/traffic"
)

// TestRoutes registers the /test endpoints used to drive health states by hand.
// Only mounted when testing_mode is on.
func (h *Handler) TestRoutes(router *mux.Router) {
	router.HandleFunc("/test", h.GetTestStatus).Methods(http.MethodGet)
	router.HandleFunc("/test/{action}", h.PostTestAction).Methods(http.MethodPost)
}

func (h *Handler) window() time.Duration {
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		return h.healthConfig.DegradedWindow
	}
	return 60 * time.Second
}

// GetTestStatus handles GET /test. Returns the sliding-window counters.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := h.window()
	failures, total := traffic.ErrorRate(window)
	perFeed := make(map[string]map[string]int, len(healthFeeds))
	for _, feed := range healthFeeds {
		f, t := traffic.FeedErrorRate(feed, window)
		perFeed[feed] = map[string]int{"failures": f, "total": t}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests_in_window":  traffic.RequestCount(window),
		"denied_requests_in_window": traffic.DenialCount(window),
		"errors_in_window":          failures,
		"results_in_window":         total,
		"feeds":                     perFeed,
		"window_length":             window.String(),
		"draining":                  lifecycle.IsDraining(),
	})
}

// PostTestAction handles POST /test/{action} for error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	switch action := pathVar(r, "action"); action {
	case "error":
		h.postTestError(w, r)
	case "reset":
		traffic.Reset()
		lifecycle.SetDraining(false)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "action": "reset", "message": "All simulated state cleared"})
	case "shutdown":
		lifecycle.SetDraining(true)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "action": "shutdown", "message": "Shutting-down flag set"})
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

// postTestError records failed results for one feed ({"feed": "weather", "count": 3}).
func (h *Handler) postTestError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Feed  string `json:"feed"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 1
	}
	if body.Feed == "" {
		body.Feed = "weather"
	}
	for i := 0; i < body.Count; i++ {
		traffic.Record(body.Feed, traffic.Failure)
	}
	checks := h.runChecks(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"action":  "error",
		"message": "Recorded " + strconv.Itoa(body.Count) + " " + body.Feed + " errors",
		"state":   h.computeHealthStatus(checks).status,
	})
}
