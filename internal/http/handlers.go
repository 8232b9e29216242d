package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/playlist"
	"github.com/kjstillabower/glancecast/internal/preferences"
	"github.com/kjstillabower/glancecast/internal/validation"
)

// maxBodyBytes bounds request bodies; a brief input carries three serialised feeds.
const maxBodyBytes = 256 << 10

// Dashboard is the orchestration surface served over HTTP.
type Dashboard interface {
	FetchWeather(ctx context.Context, location string) models.Result[models.WeatherReading]
	FetchNews(ctx context.Context, location string) models.Result[[]models.NewsItem]
	FetchStocks(ctx context.Context, symbols []string, location string) models.Result[models.StocksReport]
	ComposeBrief(ctx context.Context, in models.BriefInput) models.Result[models.Brief]
}

// Limits bounds user input accepted by the handlers.
type Limits = validation.Limits

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard    Dashboard
	prefs        *preferences.Repository
	healthConfig *HealthConfig
	logger       *zap.Logger
	limits       Limits

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(
	dashboard Dashboard,
	prefs *preferences.Repository,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	limits Limits,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dashboard:    dashboard,
		prefs:        prefs,
		healthConfig: healthConfig,
		logger:       logger,
		limits:       limits.WithDefaults(),
	}
}

// Routes registers the API, health and metrics routes on router. The /api
// subrouter gets the extra middleware (rate limit, timeout) in order.
// Routes match on the escaped path so a location may contain "/" as %2F;
// handlers read path variables through pathVar.
func (h *Handler) Routes(router *mux.Router, apiMiddleware ...mux.MiddlewareFunc) {
	router.UseEncodedPath()
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(apiMiddleware...)
	api.HandleFunc("/weather/{location}", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/news/{location}", h.GetNews).Methods(http.MethodGet)
	api.HandleFunc("/stocks", h.GetStocks).Methods(http.MethodGet)
	api.HandleFunc("/brief", h.PostBrief).Methods(http.MethodPost)
	api.HandleFunc("/preferences", h.GetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences/{key}", h.GetPreference).Methods(http.MethodGet)
	api.HandleFunc("/preferences/{key}", h.PutPreference).Methods(http.MethodPut)
	api.HandleFunc("/playlist/embed", h.GetPlaylistEmbed).Methods(http.MethodGet)
}

// GetWeather handles GET /api/weather/{location}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r, pathVar(r, "location"))
	if !ok {
		return
	}
	writeResult(w, r, h.dashboard.FetchWeather(r.Context(), location))
}

// GetNews handles GET /api/news/{location}.
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r, pathVar(r, "location"))
	if !ok {
		return
	}
	writeResult(w, r, h.dashboard.FetchNews(r.Context(), location))
}

// GetStocks handles GET /api/stocks?symbols=AAPL,TSLA&location=London. Without a
// location the saved one is used; an empty symbol list yields an empty category.
func (h *Handler) GetStocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbols := preferences.ParseSymbols(q.Get("symbols"))
	if err := h.limits.Symbols(symbols); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SYMBOLS", err.Error())
		return
	}

	raw := q.Get("location")
	if raw == "" {
		saved, err := h.prefs.Location(r.Context())
		if err != nil {
			writePreferencesError(w, r, err)
			return
		}
		raw = saved
	}
	location, ok := h.location(w, r, raw)
	if !ok {
		return
	}
	writeResult(w, r, h.dashboard.FetchStocks(r.Context(), symbols, location))
}

// PostBrief handles POST /api/brief with a BriefInput body.
func (h *Handler) PostBrief(w http.ResponseWriter, r *http.Request) {
	var in models.BriefInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "body must be a JSON object with weather, news and stocks")
		return
	}
	res := h.dashboard.ComposeBrief(r.Context(), in)
	if res.MissingData {
		writeError(w, r, http.StatusConflict, "MISSING_DATA", res.Error)
		return
	}
	writeResult(w, r, res)
}

// preferencesResponse is the typed preferences view plus the resolved player URL.
type preferencesResponse struct {
	models.Preferences
	EmbedURL string `json:"embedUrl"`
}

// GetPreferences handles GET /api/preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.prefs.Load(r.Context())
	if err != nil {
		writePreferencesError(w, r, err)
		return
	}
	embed, _ := playlist.EmbedURL(p.SpotifyURL)
	writeJSON(w, http.StatusOK, preferencesResponse{Preferences: p, EmbedURL: embed})
}

type preferenceValue struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// GetPreference handles GET /api/preferences/{key}. The value is returned in its
// stored encoding (stocks is a JSON array).
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	key := pathVar(r, "key")
	v, err := h.prefs.GetRaw(r.Context(), key)
	if err != nil {
		writePreferencesError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preferenceValue{Key: key, Value: v})
}

// PutPreference handles PUT /api/preferences/{key} with {"value": "..."}.
func (h *Handler) PutPreference(w http.ResponseWriter, r *http.Request) {
	key := pathVar(r, "key")
	var body preferenceValue
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", `body must be {"value": "..."}`)
		return
	}

	value := body.Value
	switch key {
	case preferences.LocationKey.Name():
		loc, ok := h.location(w, r, value)
		if !ok {
			return
		}
		value = loc
	case preferences.StocksKey.Name():
		var symbols []string
		if err := json.Unmarshal([]byte(value), &symbols); err == nil {
			if err := h.limits.Symbols(symbols); err != nil {
				writeError(w, r, http.StatusBadRequest, "INVALID_SYMBOLS", err.Error())
				return
			}
		}
	}

	if err := h.prefs.SetRaw(r.Context(), key, value); err != nil {
		writePreferencesError(w, r, err)
		return
	}
	observability.LoggerFromContext(r.Context()).Info("preference saved", zap.String("key", key))
	writeJSON(w, http.StatusOK, preferenceValue{Key: key, Value: value})
}

type embedResponse struct {
	EmbedURL string `json:"embedUrl"`
	Loaded   bool   `json:"loaded"`
}

// GetPlaylistEmbed handles GET /api/playlist/embed?url=.
func (h *Handler) GetPlaylistEmbed(w http.ResponseWriter, r *http.Request) {
	embed, ok := playlist.EmbedURL(r.URL.Query().Get("url"))
	writeJSON(w, http.StatusOK, embedResponse{EmbedURL: embed, Loaded: ok})
}

// location validates raw and writes a 400 when it is rejected.
func (h *Handler) location(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	loc, err := h.limits.Location(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return "", false
	}
	return loc, true
}

// pathVar returns the unescaped route variable. An undecodable value is passed
// through as sent.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeResult writes Data with 200, or the Result's user-facing message as a 503.
func writeResult[T any](w http.ResponseWriter, r *http.Request, res models.Result[T]) {
	if !res.OK() {
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", res.Error)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

// writePreferencesError maps repository errors to 404, 400 or 503. Store
// details are logged at debug, never returned.
func writePreferencesError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, preferences.ErrUnknownKey):
		writeError(w, r, http.StatusNotFound, "UNKNOWN_KEY", err.Error())
	case errors.Is(err, preferences.ErrInvalidValue):
		writeError(w, r, http.StatusBadRequest, "INVALID_VALUE", err.Error())
	default:
		observability.LoggerFromContext(r.Context()).Debug("preferences store error", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "PREFERENCES_UNAVAILABLE", "Preferences are unavailable. Please try again.")
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the error envelope returned by every failing route.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: observability.CorrelationIDFromContext(r.Context()),
	}})
}
