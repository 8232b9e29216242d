package cache

import (
	"context"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get returns them.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "weather:london", []byte(`{"location":"London"}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "weather:london")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != `{"location":"London"}` {
		t.Errorf("Get() = %s", got)
	}
}

// TestInMemoryCache_Set_CopiesValue verifies that later mutation of the caller's
// slice does not change the stored entry.
func TestInMemoryCache_Set_CopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get() = %s, want abc", got)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false for unknown keys.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	_, ok, err := NewInMemoryCache().Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that expired entries miss and are removed on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"), time.Second)
	now = now.Add(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expiry", c.Len())
	}
}

// TestMemcachedKey verifies that keys are prefixed and whitespace is replaced.
func TestMemcachedKey(t *testing.T) {
	c := NewMemcachedCache("", 0, 0)
	if got := c.key("news:new york"); got != "glancecast:news:new_york" {
		t.Errorf("key() = %q", got)
	}
}

// TestExpirationSeconds verifies TTL clamping for memcached.
func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{time.Minute, 60},
		{0, 3600},
		{500 * time.Millisecond, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.ttl); got != tt.want {
			t.Errorf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}
