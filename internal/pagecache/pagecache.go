// internal/pagecache/pagecache.go
//
// Page cache for raw origin HTML.
//
// Context
// -------
// The *unmodified* origin body is cached per (path, country) under
// `page-{path}-{country}` so repeat requests skip the origin fetch while
// personalization is still re-applied fresh every time.  Only the backend
// TTL applies; there is no secondary freshness check, because the origin
// page itself changes rarely and a deploy purges these keys.
//
// Writes happen off the request path through a bounded background queue;
// see Writer.  Dropping a write on queue overflow is acceptable, the next
// miss simply refetches.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package pagecache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/metrics"
)

// Cache reads and schedules writes of raw origin pages.
type Cache struct {
	store  kv.Store
	ttl    time.Duration
	writer *Writer
}

// New builds a Cache and starts its background write queue.
func New(store kv.Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl, writer: newWriter(store)}
}

// Key returns the deterministic backend key for one (path, country).
func Key(path, country string) string {
	return fmt.Sprintf("page-%s-%s", path, country)
}

// Get returns the cached origin body, or nil on a miss.  Backend errors
// degrade to a miss.
func (c *Cache) Get(ctx context.Context, path, country string) []byte {
	b, ok, err := c.store.GetBytes(ctx, Key(path, country))
	if err != nil {
		zap.S().Warnw("page cache read failed", "path", path, "country", country, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return b
}

// PutAsync enqueues a fire-and-forget write and returns immediately.  The
// request that triggered the write never waits on the backend.
func (c *Cache) PutAsync(path, country string, body []byte) {
	c.writer.enqueue(task{key: Key(path, country), body: body, ttl: c.ttl})
}

// Close drains the write queue.  Call on shutdown.
func (c *Cache) Close() { c.writer.close() }

//
// Background writer
//

const writeQueueDepth = 256

type task struct {
	key  string
	body []byte
	ttl  time.Duration
}

// Writer drains a bounded channel of cache writes on a single goroutine.
// Enqueue never blocks; overflow drops the task and logs it.
type Writer struct {
	store kv.Store
	ch    chan task
	done  chan struct{}
}

func newWriter(store kv.Store) *Writer {
	w := &Writer{
		store: store,
		ch:    make(chan task, writeQueueDepth),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Writer) enqueue(t task) {
	select {
	case w.ch <- t:
	default:
		metrics.PageWriteDropsTotal.Inc()
		zap.S().Warnw("page cache write queue full, dropping", "key", t.key)
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	for t := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.store.PutBytes(ctx, t.key, t.body, t.ttl); err != nil {
			zap.S().Warnw("page cache write failed", "key", t.key, "err", err)
		}
		cancel()
	}
}

func (w *Writer) close() {
	close(w.ch)
	<-w.done
}
