// Package apiclient talks to the glancecast server. Client implements the
// dashboard's Actions; Store implements preferences.Store against the
// /api/preferences routes.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
)

// UnreachableMsg is the Result message when the server cannot be reached.
const UnreachableMsg = "Could not reach the glancecast server. Please try again."

var (
	ErrUnreachable = errors.New("server unreachable")
	ErrBadResponse = errors.New("unexpected response")
)

// APIError is a decoded error envelope.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Client calls the glancecast HTTP API. GET requests are retried when the
// connection could not be made or the server answers 429, 502 or 504. Other
// methods and timed-out requests are sent once.
type Client struct {
	baseURL        *url.URL
	client         *http.Client
	logger         *zap.Logger
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

type Option func(*Client)

// WithRetry sets the attempt count (minimum 1) and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = max(attempts, 1)
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New returns a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: want http(s)://host[:port]", baseURL)
	}
	c := &Client{
		baseURL:        u,
		client:         &http.Client{Timeout: timeout},
		logger:         zap.NewNop(),
		retryAttempts:  3,
		retryBaseDelay: 200 * time.Millisecond,
		retryMaxDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchWeather calls GET /api/weather/{location}.
func (c *Client) FetchWeather(ctx context.Context, location string) models.Result[models.WeatherReading] {
	var out models.WeatherReading
	err := c.do(ctx, http.MethodGet, "/api/weather/"+url.PathEscape(location), nil, nil, &out)
	return resultOf(c, "weather", err, out)
}

// FetchNews calls GET /api/news/{location}.
func (c *Client) FetchNews(ctx context.Context, location string) models.Result[[]models.NewsItem] {
	var out []models.NewsItem
	err := c.do(ctx, http.MethodGet, "/api/news/"+url.PathEscape(location), nil, nil, &out)
	return resultOf(c, "news", err, out)
}

// FetchStocks calls GET /api/stocks.
func (c *Client) FetchStocks(ctx context.Context, symbols []string, location string) models.Result[models.StocksReport] {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("location", location)
	var out models.StocksReport
	err := c.do(ctx, http.MethodGet, "/api/stocks", q, nil, &out)
	return resultOf(c, "stocks", err, out)
}

// ComposeBrief calls POST /api/brief. A 409 comes back flagged MissingData.
func (c *Client) ComposeBrief(ctx context.Context, in models.BriefInput) models.Result[models.Brief] {
	var out models.Brief
	err := c.do(ctx, http.MethodPost, "/api/brief", nil, in, &out)
	return resultOf(c, "brief", err, out)
}

// EmbedURL resolves a playlist link through GET /api/playlist/embed.
func (c *Client) EmbedURL(ctx context.Context, link string) (string, bool, error) {
	var out struct {
		EmbedURL string `json:"embedUrl"`
		Loaded   bool   `json:"loaded"`
	}
	q := url.Values{}
	q.Set("url", link)
	if err := c.do(ctx, http.MethodGet, "/api/playlist/embed", q, nil, &out); err != nil {
		return "", false, err
	}
	return out.EmbedURL, out.Loaded, nil
}

// resultOf turns a call outcome into a Result. Server messages are already
// user-facing; transport failures get UnreachableMsg.
func resultOf[T any](c *Client, feed string, err error, v T) models.Result[T] {
	if err == nil {
		return models.Success(v)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		res := models.Failure[T](apiErr.Message)
		res.MissingData = apiErr.Code == "MISSING_DATA"
		return res
	}
	c.logger.Warn("request failed", zap.String("feed", feed), zap.Error(err))
	return models.Failure[T](UnreachableMsg)
}

// do sends one logical request, retrying idempotent ones with backoff.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}
		err := c.call(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(ctx, method, err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	start := time.Now()
	// path arrives escaped; keep RawPath so "%2C" or "%20" survive as sent.
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("build path: %w", err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	corrID := observability.CorrelationIDFromContext(ctx)
	if corrID == "" {
		corrID = uuid.New().String()
	}
	req.Header.Set("X-Correlation-ID", corrID)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("correlation_id", corrID))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var env struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Code == "" {
		return &APIError{Status: status, Code: "HTTP_ERROR", Message: http.StatusText(status)}
	}
	return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message, RequestID: env.Error.RequestID}
}

// isRetryable reports whether another attempt may succeed. Only GET is retried,
// and only when the request never reached the server or the server asked for a
// retry (rate limiting, gateway errors). A timeout may mean the server is still
// working, so it is final. Upstream model failures (503) are not retried.
func isRetryable(ctx context.Context, method string, err error) bool {
	if ctx.Err() != nil || method != http.MethodGet {
		return false
	}
	if errors.Is(err, ErrUnreachable) {
		return dialFailed(err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// dialFailed reports whether err is a connection that was never established.
func dialFailed(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}
