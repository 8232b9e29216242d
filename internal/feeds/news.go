package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/schema"
)

const (
	DefaultConverterURL = "https://api.rss2json.com/v1/api.json"
	// DefaultFeedURL is the Google News search feed; {location} is replaced with the escaped location.
	DefaultFeedURL = "https://news.google.com/rss/search?q={location}&hl=en-US&gl=US&ceid=US:en"

	defaultNewsSource = "Google News"
)

// NewsFallbackItem is the single headline served when live news cannot be fetched.
var NewsFallbackItem = models.NewsItem{
	Title:  "Could not fetch live news.",
	Source: "System",
	Time:   "now",
	Link:   "#",
}

// NewsConfig configures the RSS converter client.
type NewsConfig struct {
	ConverterURL string
	FeedURL      string
	APIKey       string // optional converter key
	Timeout      time.Duration
	MaxItems     int
}

// News fetches headlines through an RSS-to-JSON converter. It never returns an
// error: every failure becomes the one-item fallback list.
type News struct {
	cfg    NewsConfig
	client *http.Client
}

func NewNews(cfg NewsConfig) *News {
	if cfg.ConverterURL == "" {
		cfg.ConverterURL = DefaultConverterURL
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxItems <= 0 || cfg.MaxItems > models.MaxNewsItems {
		cfg.MaxItems = models.MaxNewsItems
	}
	return &News{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type converterResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Items   []converterItem `json:"items"`
}

type converterItem struct {
	Title   string `json:"title"`
	PubDate string `json:"pubDate"`
	Link    string `json:"link"`
	Author  string `json:"author"`
}

// Fetch returns at most MaxItems headlines for location, in upstream order.
func (n *News) Fetch(ctx context.Context, location string) Outcome[[]models.NewsItem] {
	items, err := n.fetch(ctx, location)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("live news unavailable, serving fallback",
			zap.String("location", location),
			zap.String("category", string(CategorizeError(err))),
			zap.Error(err))
		return fallback([]models.NewsItem{NewsFallbackItem})
	}
	return fresh(items)
}

func (n *News) fetch(ctx context.Context, location string) ([]models.NewsItem, error) {
	start := time.Now()

	req, err := n.buildRequest(ctx, location)
	if err != nil {
		observability.NewsConverterCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		observability.NewsConverterCallsTotal.WithLabelValues("error").Inc()
		observability.NewsConverterDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.NewsConverterCallsTotal.WithLabelValues(status).Inc()
	observability.NewsConverterDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstreamUnavailable, err)
	}
	var payload converterResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrUpstreamMalformed, err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("%w: converter status %q: %s", ErrUpstreamUnavailable, payload.Status, payload.Message)
	}

	items := n.mapResponse(payload)
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: encode items: %w", ErrUpstreamMalformed, err)
	}
	if err := schema.News().Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamMalformed, err)
	}
	return items, nil
}

func (n *News) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	base, err := url.Parse(n.cfg.ConverterURL)
	if err != nil {
		return nil, fmt.Errorf("invalid converter URL: %w", err)
	}
	params := base.Query()
	params.Set("rss_url", feedURL(n.cfg.FeedURL, location))
	if n.cfg.APIKey != "" {
		params.Set("api_key", n.cfg.APIKey)
	}
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// feedURL substitutes the escaped location into the feed template. Spaces become %20.
func feedURL(template, location string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(location), "+", "%20")
	return strings.ReplaceAll(template, "{location}", escaped)
}

func (n *News) mapResponse(payload converterResponse) []models.NewsItem {
	items := make([]models.NewsItem, 0, min(len(payload.Items), n.cfg.MaxItems))
	for _, it := range payload.Items {
		if len(items) == n.cfg.MaxItems {
			break
		}
		source := it.Author
		if source == "" {
			source = defaultNewsSource
		}
		items = append(items, models.NewsItem{
			Title:  it.Title,
			Source: source,
			Time:   displayDate(it.PubDate),
			Link:   it.Link,
		})
	}
	return items
}

var pubDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// displayDate renders a publication date as M/D/YYYY, or returns it unchanged if unparseable.
func displayDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return s
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
