// cmd/edge/main.go
//
// TradeRanked edge personalization service – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (server-wide file → conf/.env fallback via loader).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load and validate config; resolve `vault:` secret references.
//
//  4. Open the MySQL pool and the Redis cache backend.
//
//  5. Wire the pipeline: classifier → repository → caches → injector →
//     orchestrator, plus the admin surface and Prometheus /metrics.
//
//  6. Start the warmer cron loop, then serve until SIGINT/SIGTERM, and
//     shut down gracefully (drain HTTP, flush metrics, drain the page
//     write queue).
//
// Large comment blocks are framed by blank “//” lines; inline comments
// use a single “//”.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/config"
	"github.com/traderanked/edge/internal/database"
	"github.com/traderanked/edge/internal/datacache"
	"github.com/traderanked/edge/internal/edgeserver"
	"github.com/traderanked/edge/internal/geo"
	"github.com/traderanked/edge/internal/inject"
	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/logger"
	"github.com/traderanked/edge/internal/metrics"
	"github.com/traderanked/edge/internal/origin"
	"github.com/traderanked/edge/internal/pagecache"
	"github.com/traderanked/edge/internal/routeclass"
	"github.com/traderanked/edge/internal/server"
	"github.com/traderanked/edge/internal/vault"
	"github.com/traderanked/edge/internal/warm"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	dbPassword, adminToken := cfg.Database.Password, cfg.Admin.Token
	if strings.HasPrefix(dbPassword, vault.RefPrefix) || strings.HasPrefix(adminToken, vault.RefPrefix) {
		vcli, err := vault.New(ctx)
		if err != nil {
			logOut.Fatalf("vault init: %v", err)
		}
		if dbPassword, err = vcli.Resolve(ctx, dbPassword); err != nil {
			logOut.Fatalf("resolve db password: %v", err)
		}
		if adminToken, err = vcli.Resolve(ctx, adminToken); err != nil {
			logOut.Fatalf("resolve admin token: %v", err)
		}
	}

	//
	// ── 2.  Database and cache backend ──────────────────────────────────
	//
	logOut.Infow("connecting to database")
	db, err := database.OpenWithOptions(ctx, fmt.Sprintf(cfg.Database.DSN, dbPassword), database.Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Retries:         2,
		RetryBackoff:    500 * time.Millisecond,
	})
	if err != nil {
		logOut.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	// Log active-broker count as an early sanity check.
	var active int
	_ = db.GetContext(ctx, &active, `SELECT COUNT(*) FROM brokers WHERE is_active = TRUE`)
	logOut.Infow("database online", "active_brokers", active)

	store, err := kv.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logOut.Fatalf("connect redis: %v", err)
	}
	defer store.Close()
	logOut.Infow("cache backend online", "addr", cfg.Redis.Addr)

	//
	// ── 3.  Pipeline wiring ─────────────────────────────────────────────
	//
	resolver, err := geo.NewResolver(cfg.Geo.MMDBPath, cfg.Geo.DefaultCountry)
	if err != nil {
		logOut.Fatalf("open geoip database: %v", err)
	}
	defer resolver.Close()

	injector, err := inject.New()
	if err != nil {
		logOut.Fatalf("injector: %v", err)
	}

	repo := broker.NewRepository(db)
	data := datacache.New(store, cfg.Cache.QueryTTL, cfg.Cache.FreshnessWindow, nil)
	pages := pagecache.New(store, cfg.Cache.PageTTL)
	defer pages.Close()

	recorder := metrics.NewRecorder(store)
	warmer := warm.New(repo, data, store,
		cfg.Warm.Countries, cfg.Warm.Routes, cfg.Warm.Concurrency, cfg.Warm.Cron)

	handler, err := edgeserver.NewHandler(
		routeclass.New(db), repo, data, pages,
		origin.New(cfg.Origin.BaseURL, cfg.Origin.Timeout),
		injector, resolver, recorder, cfg.Origin.BaseURL,
	)
	if err != nil {
		logOut.Fatalf("handler: %v", err)
	}

	admin := edgeserver.NewAdmin(store, db, recorder, warmer, adminToken)

	//
	// ── 4.  Warmer cron loop ────────────────────────────────────────────
	//
	go warmer.Schedule(ctx)

	//
	// ── 5.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, edgeserver.NewRouter(handler, admin))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr, "origin", cfg.Origin.BaseURL)

	select {
	case err := <-errCh:
		logOut.Fatalf("http server: %v", err)
	case <-ctx.Done():
	}

	//
	// ── 6.  Graceful shutdown ───────────────────────────────────────────
	//
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logOut.Warnw("http shutdown", "err", err)
	}
	recorder.Flush(shutCtx)
	logOut.Infow("edge service stopped")
}
