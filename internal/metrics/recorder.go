// internal/metrics/recorder.go
//
// KV-persisted request telemetry.
//
/*
Context
--------
Alongside the Prometheus instruments (for ops dashboards) the service
keeps a coarse JSON snapshot in the cache backend under `metrics:daily`
so the health and snapshot endpoints work without a Prometheus stack.
Counters are mutex-guarded in memory and flushed at most once per flush
interval; the flush merges over whatever was last written with
last-writer-wins semantics.  This is advisory telemetry, not an audit
log – lost updates between replicas are acceptable.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/kv"
)

// SnapshotKey is the backend key holding the persisted counters.
const SnapshotKey = "metrics:daily"

const (
	snapshotTTL   = 24 * time.Hour
	flushInterval = time.Minute
)

// Snapshot is the persisted counter set.
type Snapshot struct {
	Hits      int64            `json:"hits"`
	Misses    int64            `json:"misses"`
	Errors    int64            `json:"errors"`
	ByCountry map[string]int64 `json:"byCountry"`
	ByRoute   map[string]int64 `json:"byRoute"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Report is the derived health view.
type Report struct {
	Status          string   `json:"status"` // healthy | warning | critical
	HitRatePercent  float64  `json:"hitRatePercent"`
	Hits            int64    `json:"hits"`
	Misses          int64    `json:"misses"`
	Errors          int64    `json:"errors"`
	Recommendations []string `json:"recommendations"`
}

// Recorder accumulates counters and persists them periodically.
type Recorder struct {
	store kv.Store

	mu        sync.Mutex
	snap      Snapshot
	lastFlush time.Time
}

// NewRecorder builds a Recorder over the KV backend.
func NewRecorder(store kv.Store) *Recorder {
	return &Recorder{
		store: store,
		snap: Snapshot{
			ByCountry: make(map[string]int64),
			ByRoute:   make(map[string]int64),
		},
	}
}

// RecordHit notes a query-cache hit for country/route.
func (r *Recorder) RecordHit(ctx context.Context, country, route string) {
	CacheHitsTotal.WithLabelValues("hit").Inc()
	r.record(ctx, country, route, func(s *Snapshot) { s.Hits++ })
}

// RecordMiss notes a query-cache miss for country/route.
func (r *Recorder) RecordMiss(ctx context.Context, country, route string) {
	CacheHitsTotal.WithLabelValues("miss").Inc()
	r.record(ctx, country, route, func(s *Snapshot) { s.Misses++ })
}

// RecordError notes a pipeline error for country/route.
func (r *Recorder) RecordError(ctx context.Context, country, route string) {
	r.record(ctx, country, route, func(s *Snapshot) { s.Errors++ })
}

func (r *Recorder) record(ctx context.Context, country, route string, bump func(*Snapshot)) {
	r.mu.Lock()
	bump(&r.snap)
	r.snap.ByCountry[country]++
	r.snap.ByRoute[route]++
	due := time.Since(r.lastFlush) >= flushInterval
	var copySnap Snapshot
	if due {
		r.lastFlush = time.Now()
		copySnap = r.cloneLocked()
	}
	r.mu.Unlock()

	if due {
		r.flush(ctx, copySnap)
	}
}

func (r *Recorder) cloneLocked() Snapshot {
	out := r.snap
	out.ByCountry = make(map[string]int64, len(r.snap.ByCountry))
	for k, v := range r.snap.ByCountry {
		out.ByCountry[k] = v
	}
	out.ByRoute = make(map[string]int64, len(r.snap.ByRoute))
	for k, v := range r.snap.ByRoute {
		out.ByRoute[k] = v
	}
	return out
}

// flush persists a snapshot.  Best effort, last writer wins.
func (r *Recorder) flush(ctx context.Context, s Snapshot) {
	s.UpdatedAt = time.Now().UTC()
	if err := r.store.PutJSON(ctx, SnapshotKey, s, snapshotTTL); err != nil {
		zap.S().Warnw("metrics snapshot write failed", "err", err)
	}
}

// Flush forces a persist of the current counters.  Called on shutdown.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	s := r.cloneLocked()
	r.lastFlush = time.Now()
	r.mu.Unlock()
	r.flush(ctx, s)
}

// Current returns the in-memory snapshot merged over the persisted one,
// preferring in-memory values (last writer wins either way).
func (r *Recorder) Current(ctx context.Context) Snapshot {
	var stored Snapshot
	if ok, err := r.store.GetJSON(ctx, SnapshotKey, &stored); err != nil || !ok {
		stored = Snapshot{}
	}

	r.mu.Lock()
	mem := r.cloneLocked()
	r.mu.Unlock()

	if mem.Hits+mem.Misses+mem.Errors == 0 {
		return stored
	}
	return mem
}

// Health derives the tri-state report from current counters.
func (r *Recorder) Health(ctx context.Context) Report {
	s := r.Current(ctx)

	total := s.Hits + s.Misses
	rate := 0.0
	if total > 0 {
		rate = float64(s.Hits) / float64(total) * 100
	}

	rep := Report{
		HitRatePercent: rate,
		Hits:           s.Hits,
		Misses:         s.Misses,
		Errors:         s.Errors,
	}

	switch {
	case total == 0:
		rep.Status = "healthy"
		rep.Recommendations = append(rep.Recommendations,
			"no traffic recorded yet")
	case rate >= 70:
		rep.Status = "healthy"
	case rate >= 50:
		rep.Status = "warning"
		rep.Recommendations = append(rep.Recommendations,
			"hit rate below 70%: consider widening the warm matrix or raising the query TTL")
	default:
		rep.Status = "critical"
		rep.Recommendations = append(rep.Recommendations,
			"hit rate below 50%: verify the cache backend is reachable and the warmer is running")
	}

	if s.Errors > 0 && s.Errors*10 > total {
		rep.Recommendations = append(rep.Recommendations,
			fmt.Sprintf("error count is high (%d): check database connectivity", s.Errors))
	}
	return rep
}
