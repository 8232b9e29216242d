package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/glancecast/internal/brief"
	"github.com/kjstillabower/glancecast/internal/cache"
	"github.com/kjstillabower/glancecast/internal/circuitbreaker"
	"github.com/kjstillabower/glancecast/internal/completion"
	"github.com/kjstillabower/glancecast/internal/config"
	"github.com/kjstillabower/glancecast/internal/feeds"
	httphandler "github.com/kjstillabower/glancecast/internal/http"
	"github.com/kjstillabower/glancecast/internal/lifecycle"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/preferences"
	"github.com/kjstillabower/glancecast/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	lifecycle.MarkStarted(time.Now())

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	model, err := completion.New(context.Background(), completion.Config{
		Provider:  cfg.CompletionProvider,
		Model:     cfg.CompletionModel,
		APIKey:    cfg.CompletionAPIKey,
		BaseURL:   cfg.CompletionBaseURL,
		Timeout:   cfg.CompletionTimeout,
		MaxTokens: cfg.CompletionMaxTokens,
	})
	if err != nil {
		logger.Fatal("completion model", zap.Error(err))
	}

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.BreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
			Component:        "completion",
			IsFailure:        completion.IsUpstreamFailure,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("completion", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("completion", observability.CircuitBreakerStateValue(int(to)))
			},
		})
		observability.SetCircuitBreakerStateGauge("completion", 0)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.BreakerFailureThreshold), zap.Duration("timeout", cfg.BreakerTimeout))
	}
	guarded := completion.Guard(model, breaker)
	logger.Info("completion provider", zap.String("provider", guarded.Name()))

	var cacheSvc cache.Cache
	var memcached *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		memcached = cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		cacheSvc = memcached
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	dashboard := service.New(
		feeds.NewWeather(guarded),
		feeds.NewNews(feeds.NewsConfig{
			ConverterURL: cfg.NewsConverterURL,
			FeedURL:      cfg.NewsFeedURL,
			APIKey:       cfg.NewsAPIKey,
			Timeout:      cfg.NewsTimeout,
			MaxItems:     cfg.NewsMaxItems,
		}),
		feeds.NewStocks(guarded),
		brief.NewComposer(guarded),
		service.Options{
			Cache:           cacheSvc,
			TTL:             cfg.CacheTTL,
			CoalesceEnabled: cfg.CoalesceEnabled,
			CoalesceTimeout: cfg.CoalesceTimeout,
		},
	)

	store, closeStore, err := openPreferences(cfg)
	if err != nil {
		logger.Fatal("preferences store", zap.Error(err))
	}
	logger.Info("preferences backend", zap.String("backend", cfg.PreferencesBackend))

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		BreakerOpen:      guarded.BreakerOpen,
		Version:          version,
	}
	if memcached != nil {
		healthConfig.CachePing = memcached.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(dashboard, preferences.NewRepository(store), healthConfig, logger, httphandler.Limits{
		LocationMinLength: cfg.LocationMinLength,
		LocationMaxLength: cfg.LocationMaxLength,
		MaxSymbols:        cfg.MaxSymbols,
	})

	observability.RegisterRateLimitGauges(cfg.DegradedWindow)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	if len(cfg.PrefetchLocations) > 0 && cfg.CacheTTL > 0 {
		prefetcher := cache.NewPrefetcher(dashboard, logger)
		warmCtx, warmCancel := context.WithTimeout(rootCtx, 30*time.Second)
		if err := prefetcher.Warm(warmCtx, cfg.PrefetchLocations); err != nil {
			logger.Warn("prefetch failed", zap.Error(err))
		}
		warmCancel()
		if cfg.PrefetchInterval > 0 {
			go func() {
				if err := prefetcher.WarmPeriodic(rootCtx, cfg.PrefetchLocations, cfg.PrefetchInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic prefetch stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		handler.TestRoutes(router)
	}
	handler.Routes(router,
		httphandler.RateLimitMiddleware(limiter),
		httphandler.TimeoutMiddleware(cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetDraining(true)
	cancelRoot()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := closeStore(); err != nil {
		logger.Error("preferences close", zap.Error(err))
	}
	if memcached != nil {
		if err := memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// openPreferences builds the configured store and its closer.
func openPreferences(cfg *config.Config) (preferences.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.PreferencesBackend {
	case "redis":
		s := preferences.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		return s, s.Close, nil
	case "sqlite":
		s, err := preferences.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return preferences.NewMemoryStore(), noop, nil
	}
}
