package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/glancecast/internal/observability"
)

// Fetcher is implemented by the service layer to load every location-scoped feed
// into the cache. Keeps this package free of a service dependency.
type Fetcher interface {
	Prefetch(ctx context.Context, location string) error
}

// Prefetcher fills the cache for a fixed list of locations.
type Prefetcher struct {
	fetcher     Fetcher
	logger      *zap.Logger
	concurrency int
}

// NewPrefetcher creates a Prefetcher. logger may be nil.
func NewPrefetcher(fetcher Fetcher, logger *zap.Logger) *Prefetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prefetcher{fetcher: fetcher, logger: logger, concurrency: 4}
}

// Warm prefetches each location concurrently and returns every failure joined.
func (p *Prefetcher) Warm(ctx context.Context, locations []string) error {
	start := time.Now()
	observability.PrefetchRunsTotal.Inc()
	p.logger.Info("prefetching feeds", zap.Int("locations", len(locations)))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(p.concurrency)
	for _, loc := range locations {
		g.Go(func() error {
			if err := p.fetcher.Prefetch(ctx, loc); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("prefetch %s: %w", loc, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start).Seconds()
	observability.PrefetchDurationSeconds.Observe(duration)
	p.logger.Info("prefetch complete",
		zap.Int("locations", len(locations)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.PrefetchErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at interval until ctx is done.
func (p *Prefetcher) WarmPeriodic(ctx context.Context, locations []string, interval time.Duration) error {
	if err := p.Warm(ctx, locations); err != nil {
		p.logger.Warn("initial prefetch failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Warm(ctx, locations); err != nil {
				p.logger.Warn("periodic prefetch failed", zap.Error(err))
			}
		}
	}
}
