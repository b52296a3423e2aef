// internal/pagecache/pagecache_test.go
//
// Tests for the background write queue: a stalled backend must never
// block a request, and overflow drops are counted.
//
// Run: go test ./internal/pagecache -v

package pagecache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/metrics"
)

// gatedStore stalls PutBytes until released, signalling each entry so the
// test knows exactly when the drain goroutine is wedged.
type gatedStore struct {
	*kv.Memory
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Memory:  kv.NewMemory(),
		entered: make(chan struct{}, writeQueueDepth*2),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) PutBytes(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	g.entered <- struct{}{}
	<-g.release
	return g.Memory.PutBytes(ctx, key, b, ttl)
}

func TestPutAsync_OverflowDropsWithoutBlocking(t *testing.T) {
	store := newGatedStore()
	c := New(store, time.Minute)
	defer func() {
		close(store.release)
		c.Close()
	}()

	before := testutil.ToFloat64(metrics.PageWriteDropsTotal)
	body := []byte("<html></html>")

	// First write wedges the drain goroutine inside the backend.
	c.PutAsync("/p-head", "US", body)
	<-store.entered

	// The queue is now empty again; fill it to capacity.
	for i := 0; i < writeQueueDepth; i++ {
		c.PutAsync("/p", "US", body)
	}

	// Everything beyond capacity must return immediately and be counted
	// as dropped.  A blocking enqueue would hang the test here.
	for i := 0; i < 3; i++ {
		c.PutAsync("/p-extra", "US", body)
	}

	if got := testutil.ToFloat64(metrics.PageWriteDropsTotal) - before; got != 3 {
		t.Fatalf("drop counter moved by %v, want 3", got)
	}
}

func TestClose_DrainsPendingWrites(t *testing.T) {
	store := newGatedStore()
	close(store.release) // backend healthy from the start

	c := New(store, time.Minute)
	c.PutAsync("/brokers", "DE", []byte("cached"))
	c.Close()

	b, ok, err := store.GetBytes(context.Background(), Key("/brokers", "DE"))
	if err != nil || !ok {
		t.Fatalf("queued write lost across Close, ok=%v err=%v", ok, err)
	}
	if string(b) != "cached" {
		t.Fatalf("body = %q", b)
	}
}

func TestKey_Deterministic(t *testing.T) {
	if Key("/brokers", "US") != "page-/brokers-US" {
		t.Fatalf("key = %q", Key("/brokers", "US"))
	}
}
