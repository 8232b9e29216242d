package completion

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/circuitbreaker"
	"github.com/kjstillabower/glancecast/internal/observability"
)

// Guarded adds metrics, logging and an optional circuit breaker around a Model.
type Guarded struct {
	next    Model
	breaker *circuitbreaker.CircuitBreaker
}

// Guard wraps m. breaker may be nil.
func Guard(m Model, breaker *circuitbreaker.CircuitBreaker) *Guarded {
	return &Guarded{next: m, breaker: breaker}
}

func (g *Guarded) Name() string { return g.next.Name() }

// BreakerOpen reports whether the breaker is currently rejecting calls.
func (g *Guarded) BreakerOpen() bool {
	return g.breaker != nil && g.breaker.State() == circuitbreaker.StateOpen
}

func (g *Guarded) Generate(ctx context.Context, req Request) ([]byte, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	var out []byte
	call := func(ctx context.Context) error {
		var err error
		out, err = g.next.Generate(ctx, req)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}

	status := statusLabel(err)
	observability.RecordCompletion(g.next.Name(), req.Name, status, time.Since(start))
	if err != nil {
		logger.Warn("completion failed",
			zap.String("provider", g.next.Name()),
			zap.String("prompt", req.Name),
			zap.String("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	logger.Debug("completion served",
		zap.String("provider", g.next.Name()),
		zap.String("prompt", req.Name),
		zap.Int("bytes", len(out)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "circuit_open"
	case errors.Is(err, ErrEmptyOutput):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// IsUpstreamFailure reports whether err should count against the provider's
// circuit breaker. Empty replies and caller cancellation do not.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) && !errors.Is(err, context.Canceled)
}
