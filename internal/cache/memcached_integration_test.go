//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedCache_GetSet_Integration verifies round-tripping against a local memcached.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "weather:new york", []byte(`{"location":"New York"}`), time.Minute); err != nil {
		t.Skipf("Set failed (memcached may not be running): %v", err)
	}
	got, ok, err := c.Get(ctx, "weather:new york")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(got) != `{"location":"New York"}` {
		t.Errorf("Get() = %s, %v", got, ok)
	}
}

// TestMemcachedCache_Get_Miss_Integration verifies ok=false for an unknown key.
func TestMemcachedCache_Get_Miss_Integration(t *testing.T) {
	c := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Skipf("Get failed (memcached may not be running): %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}
