// internal/kv/memory_test.go
//
// Tests for the in-memory Store: lazy TTL eviction and Redis-style
// pattern deletion.
//
// Run: go test ./internal/kv -v

package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemory_TTLExpiresLazily(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.Clock = func() time.Time { return now }

	ctx := context.Background()
	if err := m.PutBytes(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, ok, _ := m.GetBytes(ctx, "k"); !ok {
		t.Fatalf("live key reported missing")
	}

	now = now.Add(61 * time.Second)
	if _, ok, _ := m.GetBytes(ctx, "k"); ok {
		t.Fatalf("expired key still readable")
	}
	if m.Len() != 0 {
		t.Fatalf("expired key not evicted on read")
	}
}

func TestMemory_DeletePattern(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, k := range []string{
		"broker-data-US-v2",
		"broker-data-DE-v2",
		"page-/brokers-US",
		"page-/best-brokers/forex-US",
		"page-/brokers-DE",
		"metrics:daily",
	} {
		_ = m.PutBytes(ctx, k, []byte("x"), 0)
	}

	cases := []struct {
		pattern string
		want    int
	}{
		// `*` must span slashes, matching Redis KEYS semantics.
		{"page-*-US", 2},
		{"broker-data-?E-v2", 1},
		{"broker-data-*", 1}, // DE was removed by the previous case
		{"nope-*", 0},
	}
	for _, c := range cases {
		n, err := m.DeletePattern(ctx, c.pattern)
		if err != nil {
			t.Fatalf("DeletePattern(%q): %v", c.pattern, err)
		}
		if n != c.want {
			t.Errorf("DeletePattern(%q) = %d, want %d", c.pattern, n, c.want)
		}
	}
	if m.Len() != 2 {
		t.Fatalf("remaining = %d, want page-DE and metrics:daily only", m.Len())
	}
}
