// Package service is the orchestration layer. Each entry point calls one feed
// adapter (or the brief composer) and turns every failure into a tagged Result,
// so callers never see raw errors or panics.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/brief"
	"github.com/kjstillabower/glancecast/internal/cache"
	"github.com/kjstillabower/glancecast/internal/feeds"
	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/traffic"
)

// Feed names used as metric labels, cache key prefixes and traffic keys.
const (
	FeedWeather = "weather"
	FeedNews    = "news"
	FeedStocks  = "stocks"
	FeedBrief   = "brief"
)

// Messages returned when the underlying error carries no user-facing text.
const (
	WeatherFailedMsg = "Failed to get weather data. Please try again."
	NewsFailedMsg    = "Failed to get news data. Please try again."
	StocksFailedMsg  = "Failed to get stock data. Please try again."
	BriefFailedMsg   = "Failed to generate daily brief. Please try again."
	MissingDataMsg   = "Cannot generate brief without weather, news, and stock data."
)

type WeatherSource interface {
	Fetch(ctx context.Context, location string) (feeds.Outcome[models.WeatherReading], error)
}

type NewsSource interface {
	Fetch(ctx context.Context, location string) feeds.Outcome[[]models.NewsItem]
}

type StocksSource interface {
	Fetch(ctx context.Context, symbols []string, location string) (feeds.Outcome[models.StocksReport], error)
}

type BriefComposer interface {
	Compose(ctx context.Context, in models.BriefInput) (string, error)
}

// Options configures the optional cache-aside and request coalescing layers.
// A nil Cache or zero TTL disables caching, so every call reaches upstream.
type Options struct {
	Cache           cache.Cache
	TTL             time.Duration
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
}

// Dashboard exposes the four orchestration entry points.
type Dashboard struct {
	weather  WeatherSource
	news     NewsSource
	stocks   StocksSource
	composer BriefComposer

	cache cache.Cache
	ttl   time.Duration

	weatherCoalescer *requestCoalescer[feeds.Outcome[models.WeatherReading]]
	newsCoalescer    *requestCoalescer[feeds.Outcome[[]models.NewsItem]]
	stocksCoalescer  *requestCoalescer[feeds.Outcome[models.StocksReport]]
}

func New(weather WeatherSource, news NewsSource, stocks StocksSource, composer BriefComposer, opts Options) *Dashboard {
	d := &Dashboard{
		weather:  weather,
		news:     news,
		stocks:   stocks,
		composer: composer,
	}
	if opts.Cache != nil && opts.TTL > 0 {
		d.cache = opts.Cache
		d.ttl = opts.TTL
	}
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		d.weatherCoalescer = newRequestCoalescer[feeds.Outcome[models.WeatherReading]](opts.CoalesceTimeout)
		d.newsCoalescer = newRequestCoalescer[feeds.Outcome[[]models.NewsItem]](opts.CoalesceTimeout)
		d.stocksCoalescer = newRequestCoalescer[feeds.Outcome[models.StocksReport]](opts.CoalesceTimeout)
	}
	return d
}

// FetchWeather returns the current reading for location.
func (d *Dashboard) FetchWeather(ctx context.Context, location string) (res models.Result[models.WeatherReading]) {
	defer recoverInto(ctx, FeedWeather, &res, WeatherFailedMsg)

	key := normalizeLocation(location)
	out, err := fetchCached(ctx, d, FeedWeather, key, d.weatherCoalescer, func(ctx context.Context) (feeds.Outcome[models.WeatherReading], error) {
		return d.weather.Fetch(ctx, location)
	})
	if err != nil {
		record(ctx, FeedWeather, location, traffic.Failure, err)
		return models.Failure[models.WeatherReading](userMessage(err, WeatherFailedMsg))
	}
	record(ctx, FeedWeather, location, outcomeOf(out.Fallback), nil)
	return models.Success(out.Value)
}

// FetchNews returns up to ten headlines for location. The adapter never fails,
// so the result is always a success, possibly carrying the fallback item.
func (d *Dashboard) FetchNews(ctx context.Context, location string) (res models.Result[[]models.NewsItem]) {
	defer recoverInto(ctx, FeedNews, &res, NewsFailedMsg)

	key := normalizeLocation(location)
	out, err := fetchCached(ctx, d, FeedNews, key, d.newsCoalescer, func(ctx context.Context) (feeds.Outcome[[]models.NewsItem], error) {
		return d.news.Fetch(ctx, location), nil
	})
	if err != nil {
		record(ctx, FeedNews, location, traffic.Failure, err)
		return models.Failure[[]models.NewsItem](userMessage(err, NewsFailedMsg))
	}
	record(ctx, FeedNews, location, outcomeOf(out.Fallback), nil)
	return models.Success(out.Value)
}

// FetchStocks returns quotes for symbols priced for location.
func (d *Dashboard) FetchStocks(ctx context.Context, symbols []string, location string) (res models.Result[models.StocksReport]) {
	defer recoverInto(ctx, FeedStocks, &res, StocksFailedMsg)

	key := normalizeLocation(location) + "|" + strings.Join(symbols, ",")
	out, err := fetchCached(ctx, d, FeedStocks, key, d.stocksCoalescer, func(ctx context.Context) (feeds.Outcome[models.StocksReport], error) {
		return d.stocks.Fetch(ctx, symbols, location)
	})
	if err != nil {
		record(ctx, FeedStocks, location, traffic.Failure, err)
		return models.Failure[models.StocksReport](userMessage(err, StocksFailedMsg))
	}
	record(ctx, FeedStocks, location, outcomeOf(out.Fallback), nil)
	return models.Success(out.Value)
}

// ComposeBrief returns the daily brief. Incomplete input is rejected as missing
// data without reaching the composer. Briefs are never cached.
func (d *Dashboard) ComposeBrief(ctx context.Context, in models.BriefInput) (res models.Result[models.Brief]) {
	defer recoverInto(ctx, FeedBrief, &res, BriefFailedMsg)

	if !in.Complete() {
		observability.BriefsComposedTotal.WithLabelValues("missing_data").Inc()
		return models.Result[models.Brief]{Error: MissingDataMsg, MissingData: true}
	}
	text, err := d.composer.Compose(ctx, in)
	if err != nil {
		if errors.Is(err, brief.ErrMissingData) {
			return models.Result[models.Brief]{Error: MissingDataMsg, MissingData: true}
		}
		record(ctx, FeedBrief, "", traffic.Failure, err)
		return models.Failure[models.Brief](userMessage(err, BriefFailedMsg))
	}
	record(ctx, FeedBrief, "", traffic.Success, nil)
	return models.Success(models.Brief{Brief: text})
}

// Prefetch loads the location-scoped feeds into the cache. It implements cache.Fetcher.
func (d *Dashboard) Prefetch(ctx context.Context, location string) error {
	var errs []error
	if res := d.FetchWeather(ctx, location); !res.OK() {
		errs = append(errs, fmt.Errorf("%s: %s", FeedWeather, res.Error))
	}
	if res := d.FetchNews(ctx, location); !res.OK() {
		errs = append(errs, fmt.Errorf("%s: %s", FeedNews, res.Error))
	}
	return errors.Join(errs...)
}

// fetchCached runs fetch behind the optional cache and coalescer. Fallback
// outcomes are returned but never stored.
func fetchCached[T any](
	ctx context.Context,
	d *Dashboard,
	feed, key string,
	co *requestCoalescer[feeds.Outcome[T]],
	fetch func(context.Context) (feeds.Outcome[T], error),
) (feeds.Outcome[T], error) {
	logger := observability.LoggerFromContext(ctx)
	cacheKey := feed + ":" + key

	if d.cache != nil {
		getStart := time.Now()
		raw, ok, err := d.cache.Get(ctx, cacheKey)
		getDuration := time.Since(getStart).Seconds()
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
			observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
			logger.Warn("cache get failed", zap.String("feed", feed), zap.Error(err))
		} else if ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
				observability.CacheHitsTotal.WithLabelValues(feed).Inc()
				logger.Debug("cache hit", zap.String("feed", feed), zap.String("key", key))
				return feeds.Outcome[T]{Value: v}, nil
			}
			observability.CacheErrorsTotal.WithLabelValues("get", "decode").Inc()
		}
	}

	var (
		out feeds.Outcome[T]
		err error
	)
	if co != nil {
		coalesceStart := time.Now()
		var shared bool
		out, shared, err = co.GetOrDo(ctx, key, func() (feeds.Outcome[T], error) {
			// The result is shared with every waiter, so the first caller
			// cancelling must not abort it.
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), co.timeout)
			defer cancel()
			return fetch(fetchCtx)
		})
		if shared {
			observability.RequestCoalescingHitsTotal.WithLabelValues(feed).Inc()
			observability.RequestCoalescingWaitSeconds.Observe(time.Since(coalesceStart).Seconds())
		}
	} else {
		out, err = fetch(ctx)
	}
	if err != nil {
		return out, err
	}

	if d.cache != nil && !out.Fallback {
		setStart := time.Now()
		raw, mErr := json.Marshal(out.Value)
		if mErr == nil {
			mErr = d.cache.Set(ctx, cacheKey, raw, d.ttl)
		}
		if mErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(mErr)).Inc()
			observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
			logger.Warn("cache set failed", zap.String("feed", feed), zap.Error(mErr))
		} else {
			observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
		}
	}
	return out, nil
}

func record(ctx context.Context, feed, location string, o traffic.Outcome, err error) {
	traffic.Record(feed, o)
	observability.RecordFeedResult(feed, location, outcomeLabel(o))
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("feed failed",
			zap.String("feed", feed),
			zap.String("location", location),
			zap.String("category", string(feeds.CategorizeError(err))),
			zap.Error(err))
	}
}

// recoverInto converts a panic in an entry point into a failed Result.
func recoverInto[T any](ctx context.Context, feed string, res *models.Result[T], msg string) {
	if r := recover(); r != nil {
		observability.LoggerFromContext(ctx).Error("feed panicked",
			zap.String("feed", feed),
			zap.Any("panic", r))
		traffic.Record(feed, traffic.Failure)
		observability.RecordFeedResult(feed, "", outcomeLabel(traffic.Failure))
		*res = models.Failure[T](msg)
	}
}

// userMessage prefers the message carried by err over the generic fallback.
func userMessage(err error, generic string) string {
	if msg, ok := feeds.PublicMessage(err); ok {
		return msg
	}
	return generic
}

func outcomeOf(fallback bool) traffic.Outcome {
	if fallback {
		return traffic.Fallback
	}
	return traffic.Success
}

func outcomeLabel(o traffic.Outcome) string {
	switch o {
	case traffic.Success:
		return "success"
	case traffic.Fallback:
		return "fallback"
	default:
		return "failure"
	}
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// normalizeLocation trims and lower-cases location so cache keys match regardless of input casing.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
