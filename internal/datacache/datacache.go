// internal/datacache/datacache.go
//
// Query-result cache (cache-aside, double expiry).
//
/*
Context
--------
Broker listings and restrictions are cached per country as one JSON blob
under `broker-data-{country}-v2`.  Two independent expiry layers apply:

  1. The backend TTL set at write time (default 30 minutes).
  2. A freshness window checked against the payload's embedded write
     timestamp on every read.

The second layer defends against a misconfigured backend TTL; effective
freshness is min(backend TTL, freshness window).  The same injected clock
stamps writes and checks reads, so ages can never go negative in tests or
across host clock weirdness.

Failure policy: backend errors are logged and degrade to a miss on read
and a no-op on write.  This cache is strictly an optimization.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package datacache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/kv"
)

// Payload is the cached unit: one country's listing plus restrictions,
// stamped at write time.
type Payload struct {
	Brokers      []broker.Broker      `json:"brokerData"`
	Restrictions []broker.Restriction `json:"unsupportedBrokers"`
	Timestamp    int64                `json:"timestamp"` // unix millis, write time
}

// Cache wraps the KV backend with the double-expiry read path.
type Cache struct {
	store     kv.Store
	ttl       time.Duration
	freshness time.Duration
	now       func() time.Time
}

// New builds a Cache.  now may be nil, in which case time.Now is used.
func New(store kv.Store, ttl, freshness time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{store: store, ttl: ttl, freshness: freshness, now: now}
}

// Key returns the deterministic backend key for one country.
func Key(country string) string {
	return fmt.Sprintf("broker-data-%s-v2", country)
}

// Get returns the cached payload for country, or nil on a miss.  A stored
// payload older than the freshness window counts as a miss even when the
// backend has not expired it yet.
func (c *Cache) Get(ctx context.Context, country string) *Payload {
	var p Payload
	ok, err := c.store.GetJSON(ctx, Key(country), &p)
	if err != nil {
		zap.S().Warnw("query cache read failed", "country", country, "err", err)
		return nil
	}
	if !ok {
		return nil
	}

	age := c.now().UnixMilli() - p.Timestamp
	if age >= c.freshness.Milliseconds() {
		zap.S().Debugw("query cache stale", "country", country, "age_ms", age)
		return nil
	}
	return &p
}

// Put stamps and stores the payload for country.  Errors are logged and
// swallowed.
func (c *Cache) Put(ctx context.Context, country string, brokers []broker.Broker, restrictions []broker.Restriction) {
	p := Payload{
		Brokers:      brokers,
		Restrictions: restrictions,
		Timestamp:    c.now().UnixMilli(),
	}
	if err := c.store.PutJSON(ctx, Key(country), p, c.ttl); err != nil {
		zap.S().Warnw("query cache write failed", "country", country, "err", err)
	}
}
