package service

import (
	"context"
	"sync"
	"time"
)

// inFlightRequest tracks a single upstream request that multiple callers may wait for.
type inFlightRequest[T any] struct {
	mu      sync.Mutex
	result  T
	err     error
	done    bool
	waiters []chan struct{}
}

// requestCoalescer collapses concurrent fetches for the same key into one upstream call.
type requestCoalescer[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest[T]
	timeout  time.Duration
}

func newRequestCoalescer[T any](timeout time.Duration) *requestCoalescer[T] {
	return &requestCoalescer[T]{
		inFlight: make(map[string]*inFlightRequest[T]),
		timeout:  timeout,
	}
}

// GetOrDo runs fn for key unless a call for key is already in flight, in which case
// it waits for that call's result. shared reports whether the result came from
// another caller's request. Waiting is bounded by ctx and the coalescer timeout.
func (rc *requestCoalescer[T]) GetOrDo(ctx context.Context, key string, fn func() (T, error)) (result T, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest[T]{}
		rc.inFlight[key] = req
		rc.mu.Unlock()

		go func() {
			result, err := fn()

			req.mu.Lock()
			req.result = result
			req.err = err
			req.done = true
			waiters := req.waiters
			req.waiters = nil
			req.mu.Unlock()

			for _, notify := range waiters {
				close(notify)
			}
			rc.cleanup(key)
		}()
	} else {
		rc.mu.Unlock()
	}

	result, err = rc.wait(ctx, req)
	return result, exists, err
}

func (rc *requestCoalescer[T]) wait(ctx context.Context, req *inFlightRequest[T]) (T, error) {
	req.mu.Lock()
	if req.done {
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	}
	notify := make(chan struct{})
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-notify:
		req.mu.Lock()
		defer req.mu.Unlock()
		return req.result, req.err
	case <-waitCtx.Done():
		var zero T
		return zero, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key once it has completed.
func (rc *requestCoalescer[T]) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
