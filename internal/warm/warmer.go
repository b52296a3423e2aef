// internal/warm/warmer.go
//
// Proactive query-cache warming.
//
/*
Context
--------
Cold caches mean the first visitor from each country eats the database
round trip.  The warmer walks a fixed countries × routes matrix and
populates the query-result cache for every pair that is not already
fresh.  Pairs are warmed concurrently under a bounded errgroup; one
failing pair never aborts the batch, it only bumps the failure count.

Two triggers exist: a cron loop (gronx expression from config, default
every 30 minutes) and the authenticated admin endpoint.  Each run writes
a timestamped report to the cache backend – `warming:last-run` for
manual triggers, `warming:last-cron` for the scheduler – so operators
can see at a glance when warming last happened and how it went.

Notes
-----
  • The route dimension only scopes the report; broker data is keyed by
    country alone, so each country is fetched once per run.
  • Oxford commas, two spaces after periods.
*/
package warm

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/datacache"
	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/metrics"
)

// Backend keys for the run reports.
const (
	KeyLastRun  = "warming:last-run"
	KeyLastCron = "warming:last-cron"

	reportTTL = 24 * time.Hour
)

// Report summarizes one warming run.
type Report struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Warmed    int       `json:"warmed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Countries []string  `json:"countries"`
	Routes    []string  `json:"routes"`
}

// Warmer populates the query-result cache for the configured matrix.
type Warmer struct {
	repo        *broker.Repository
	data        *datacache.Cache
	store       kv.Store
	countries   []string
	routes      []string
	concurrency int
	cron        string
}

// New builds a Warmer.
func New(repo *broker.Repository, data *datacache.Cache, store kv.Store,
	countries, routes []string, concurrency int, cron string) *Warmer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Warmer{
		repo:        repo,
		data:        data,
		store:       store,
		countries:   countries,
		routes:      routes,
		concurrency: concurrency,
		cron:        cron,
	}
}

// Run warms every country in the matrix and records the report under
// reportKey.  Individual failures are collected, never propagated.
func (w *Warmer) Run(ctx context.Context, reportKey string) Report {
	start := time.Now()
	rep := Report{
		StartedAt: start.UTC(),
		Countries: w.countries,
		Routes:    w.routes,
	}

	type outcome int
	const (
		warmed outcome = iota
		skipped
		failed
	)
	results := make(chan outcome, len(w.countries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, country := range w.countries {
		g.Go(func() error {
			if w.data.Get(gctx, country) != nil {
				results <- skipped
				return nil
			}

			brokers := w.repo.Brokers(gctx, country)
			restrictions := w.repo.Restrictions(gctx, country)
			if len(brokers) == 0 {
				// Brokers never returns empty today; guard stays in
				// case the fallback list is ever emptied by mistake.
				results <- failed
				return nil
			}
			w.data.Put(gctx, country, brokers, restrictions)
			results <- warmed
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for o := range results {
		switch o {
		case warmed:
			rep.Warmed++
			metrics.WarmPairsTotal.WithLabelValues("warmed").Inc()
		case skipped:
			rep.Skipped++
			metrics.WarmPairsTotal.WithLabelValues("skipped").Inc()
		case failed:
			rep.Failed++
			metrics.WarmPairsTotal.WithLabelValues("failed").Inc()
		}
	}

	rep.Duration = time.Since(start).Round(time.Millisecond).String()
	if err := w.store.PutJSON(ctx, reportKey, rep, reportTTL); err != nil {
		zap.S().Warnw("warming report write failed", "key", reportKey, "err", err)
	}

	zap.S().Infow("warming run complete",
		"warmed", rep.Warmed, "skipped", rep.Skipped,
		"failed", rep.Failed, "duration", rep.Duration)
	return rep
}

// Schedule blocks, running the warmer at each cron tick until ctx is
// canceled.  Failures are logged; there is no caller to propagate to.
func (w *Warmer) Schedule(ctx context.Context) {
	if ok := gronx.New().IsValid(w.cron); !ok {
		zap.S().Errorw("invalid warm cron expression, scheduler disabled", "cron", w.cron)
		return
	}

	for {
		next, err := gronx.NextTick(w.cron, false)
		if err != nil {
			zap.S().Errorw("cron next tick failed, scheduler stopped", "err", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			w.Run(ctx, KeyLastCron)
		}
	}
}
