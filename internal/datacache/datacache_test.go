// internal/datacache/datacache_test.go
//
// Unit-tests for the double-expiry read path.
//
// Context
// -------
// The freshness window must govern hits independently of the backend
// TTL.  The tests pin both clocks – the cache's injected clock and the
// memory store's – to the same movable instant, then slide it to cross
// the freshness boundary while the backend entry is still alive.
//
// Run: go test ./internal/datacache -v

package datacache

import (
	"context"
	"testing"
	"time"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/kv"
)

func fixture(t *testing.T, freshness time.Duration) (*Cache, *kv.Memory, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := kv.NewMemory()
	store.Clock = clock

	// Backend TTL deliberately much longer than the freshness window so
	// the two expiry layers can be told apart.
	c := New(store, 24*time.Hour, freshness, clock)
	return c, store, &now
}

func sample() []broker.Broker {
	return []broker.Broker{
		{ID: 1, Name: "Interactive Brokers", SortOrder: 1},
		{ID: 2, Name: "eToro", SortOrder: 2},
	}
}

func TestGet_FreshWithinWindow(t *testing.T) {
	c, _, now := fixture(t, 30*time.Minute)
	ctx := context.Background()

	c.Put(ctx, "GB", sample(), nil)

	*now = now.Add(29 * time.Minute)
	p := c.Get(ctx, "GB")
	if p == nil {
		t.Fatalf("expected hit at 29m with 30m window")
	}
	if len(p.Brokers) != 2 || p.Brokers[0].Name != "Interactive Brokers" {
		t.Fatalf("payload mangled: %+v", p)
	}
}

func TestGet_StaleBeyondWindow_DespiteLiveBackendKey(t *testing.T) {
	c, store, now := fixture(t, 30*time.Minute)
	ctx := context.Background()

	c.Put(ctx, "GB", sample(), nil)

	*now = now.Add(31 * time.Minute)
	if p := c.Get(ctx, "GB"); p != nil {
		t.Fatalf("expected miss at 31m with 30m window, got %+v", p)
	}

	// The backend still holds the key; only the freshness layer expired.
	var raw Payload
	ok, err := store.GetJSON(ctx, Key("GB"), &raw)
	if err != nil || !ok {
		t.Fatalf("backend key should still be live, ok=%v err=%v", ok, err)
	}
}

func TestGet_ExactWindowBoundaryIsMiss(t *testing.T) {
	c, _, now := fixture(t, 30*time.Minute)
	ctx := context.Background()

	c.Put(ctx, "US", sample(), nil)

	*now = now.Add(30 * time.Minute)
	if p := c.Get(ctx, "US"); p != nil {
		t.Fatalf("age == window must be a miss")
	}
}

func TestGet_MissOnAbsentKey(t *testing.T) {
	c, _, _ := fixture(t, 30*time.Minute)
	if p := c.Get(context.Background(), "FR"); p != nil {
		t.Fatalf("expected miss on absent key")
	}
}

func TestKey_Deterministic(t *testing.T) {
	if Key("US") != "broker-data-US-v2" {
		t.Fatalf("key = %q", Key("US"))
	}
}
