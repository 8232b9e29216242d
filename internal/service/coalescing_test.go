package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/glancecast/internal/models"
)

// TestRequestCoalescer_GetOrDo_ConcurrentRequests verifies that concurrent callers for one
// key share a single call and that followers are reported as shared.
func TestRequestCoalescer_GetOrDo_ConcurrentRequests(t *testing.T) {
	coalescer := newRequestCoalescer[models.WeatherReading](5 * time.Second)
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func() (models.WeatherReading, error) {
		calls.Add(1)
		<-release
		return models.WeatherReading{Location: "London", Temperature: 10}, nil
	}

	var wg sync.WaitGroup
	results := make([]models.WeatherReading, 10)
	shared := make([]bool, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], shared[idx], errs[idx] = coalescer.GetOrDo(context.Background(), "london", fn)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	sharedCount := 0
	for i := range results {
		if errs[i] != nil {
			t.Errorf("request %d error = %v, want nil", i, errs[i])
		}
		if results[i].Location != "London" {
			t.Errorf("request %d location = %q, want London", i, results[i].Location)
		}
		if shared[i] {
			sharedCount++
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn call count = %d, want 1", got)
	}
	if sharedCount != 9 {
		t.Errorf("shared count = %d, want 9", sharedCount)
	}
}

// TestRequestCoalescer_GetOrDo_ErrorPropagation verifies that every waiter receives the leader's error.
func TestRequestCoalescer_GetOrDo_ErrorPropagation(t *testing.T) {
	coalescer := newRequestCoalescer[models.StocksReport](5 * time.Second)
	wantErr := errors.New("api failure")

	fn := func() (models.StocksReport, error) {
		time.Sleep(20 * time.Millisecond)
		return models.StocksReport{}, wantErr
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, _, errs[idx] = coalescer.GetOrDo(context.Background(), "aapl", fn)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("request %d error = %v, want %v", i, err, wantErr)
		}
	}
}

// TestRequestCoalescer_GetOrDo_Timeout verifies that a waiter gives up when its context ends.
func TestRequestCoalescer_GetOrDo_Timeout(t *testing.T) {
	coalescer := newRequestCoalescer[models.WeatherReading](100 * time.Millisecond)

	fn := func() (models.WeatherReading, error) {
		time.Sleep(200 * time.Millisecond)
		return models.WeatherReading{Location: "London"}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := coalescer.GetOrDo(ctx, "london", fn)
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrDo() error = %v, want context deadline exceeded or canceled", err)
	}
}

// TestRequestCoalescer_GetOrDo_DifferentKeys verifies that distinct keys never coalesce.
func TestRequestCoalescer_GetOrDo_DifferentKeys(t *testing.T) {
	coalescer := newRequestCoalescer[models.WeatherReading](5 * time.Second)
	var calls atomic.Int32

	fn := func() (models.WeatherReading, error) {
		calls.Add(1)
		return models.WeatherReading{Location: "test"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, _ = coalescer.GetOrDo(context.Background(), key, fn)
		}(fmt.Sprintf("key%d", i))
	}
	wg.Wait()

	if got := calls.Load(); got != 5 {
		t.Errorf("fn call count = %d, want 5", got)
	}
}
