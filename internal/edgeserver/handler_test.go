// internal/edgeserver/handler_test.go
//
// End-to-end tests for the orchestrated pipeline.
//
// Context
// -------
// Each scenario builds the full stack – sqlmock database, in-memory KV
// store, httptest origin – and fires requests through the real router.
// The scenarios mirror the operational contract: cold-cache personalize,
// warm-cache repeat with no database traffic, database-down fallback,
// origin-error verbatim pass-through, and admin auth.
//
// Run: go test ./internal/edgeserver -v

package edgeserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/datacache"
	"github.com/traderanked/edge/internal/geo"
	"github.com/traderanked/edge/internal/inject"
	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/metrics"
	"github.com/traderanked/edge/internal/origin"
	"github.com/traderanked/edge/internal/pagecache"
	"github.com/traderanked/edge/internal/routeclass"
	"github.com/traderanked/edge/internal/warm"
)

const testAdminToken = "test-admin-token"

const originPage = `<html><head><title>Brokers</title></head>
<body><!-- BROKER_GRID --><!-- BROKER_TABLE_BEGINNER --></body></html>`

var brokerCols = []string{
	"id", "name", "slug", "logo", "rating", "min_deposit",
	"description", "website_url", "sort_order", "is_featured",
	"investor_base", "founded_year",
}

var restrictionCols = []string{
	"broker_id", "broker_name", "country_code",
	"restriction_type", "reason", "alternative_id", "alternative_name",
}

type stack struct {
	router  http.Handler
	handler *Handler
	mock    sqlmock.Sqlmock
	store   *kv.Memory
	pages   *pagecache.Cache
}

// newStack wires the full pipeline against a test origin.
func newStack(t *testing.T, originSrv *httptest.Server) *stack {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")

	store := kv.NewMemory()
	data := datacache.New(store, 30*time.Minute, 30*time.Minute, nil)
	pages := pagecache.New(store, time.Hour)
	t.Cleanup(pages.Close)

	injector, err := inject.New()
	if err != nil {
		t.Fatalf("injector: %v", err)
	}
	resolver, err := geo.NewResolver("", "US")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	repo := broker.NewRepository(sdb)
	recorder := metrics.NewRecorder(store)

	h, err := NewHandler(
		routeclass.New(sdb), repo, data, pages,
		origin.New(originSrv.URL, 5*time.Second),
		injector, resolver, recorder, originSrv.URL,
	)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	warmer := warm.New(repo, data, store, []string{"US"}, []string{"/brokers"}, 2, "*/30 * * * *")
	admin := NewAdmin(store, sdb, recorder, warmer, testAdminToken)

	return &stack{
		router:  NewRouter(h, admin),
		handler: h,
		mock:    mock,
		store:   store,
		pages:   pages,
	}
}

func htmlOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, originPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func expectFourBrokers(mock sqlmock.Sqlmock, country string) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM   brokers b")).
		WithArgs(country, broker.MaxListing).
		WillReturnRows(sqlmock.NewRows(brokerCols).
			AddRow(11, "Nordic Markets", "nordic-markets", "", 4.7, 0, "d", "https://nm.example", 1, true, "", 0).
			AddRow(12, "Alpine Trade", "alpine-trade", "", 4.5, 100, "d", "https://at.example", 2, false, "", 0).
			AddRow(13, "Baltic Invest", "baltic-invest", "", 4.3, 50, "d", "https://bi.example", 3, false, "", 0).
			AddRow(14, "Iberia Broker", "iberia-broker", "", 4.1, 200, "d", "https://ib2.example", 4, false, "", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM   unsupported_countries uc")).
		WithArgs(country).
		WillReturnRows(sqlmock.NewRows(restrictionCols))
}

func get(t *testing.T, router http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

//
// Scenario A: cold caches, four country-sorted brokers.
//

func TestPersonalize_ColdCache(t *testing.T) {
	s := newStack(t, htmlOrigin(t))
	expectFourBrokers(s.mock, "US")

	rr := get(t, s.router, "/brokers", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Broker-Count"); got != "4" {
		t.Fatalf("X-Broker-Count = %q, want 4", got)
	}
	if got := rr.Header().Get("X-Cache-Hit"); got != "false" {
		t.Fatalf("X-Cache-Hit = %q, want false", got)
	}
	if got := rr.Header().Get("X-Country"); got != "US" {
		t.Fatalf("X-Country = %q, want US", got)
	}
	if got := rr.Header().Get("Vary"); got != "CF-IPCountry" {
		t.Fatalf("Vary = %q", got)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "stale-while-revalidate=300") {
		t.Fatalf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	body := rr.Body.String()
	if n := strings.Count(body, "broker-card__name"); n != 4 {
		t.Fatalf("card count = %d, want 4", n)
	}
	order := []string{"Nordic Markets", "Alpine Trade", "Baltic Invest", "Iberia Broker"}
	last := -1
	for _, name := range order {
		at := strings.Index(body, name)
		if at == -1 || at < last {
			t.Fatalf("broker order wrong, %q at %d (prev %d)", name, at, last)
		}
		last = at
	}

	if err := s.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

//
// Scenario B: repeat within the freshness window: cache hit, no DB call.
//

func TestPersonalize_WarmCache_NoDatabaseCall(t *testing.T) {
	s := newStack(t, htmlOrigin(t))
	expectFourBrokers(s.mock, "US")

	first := get(t, s.router, "/brokers", nil)
	if first.Header().Get("X-Cache-Hit") != "false" {
		t.Fatalf("first request should be a miss")
	}

	// No further expectations are armed: a second database call would
	// error inside the repository and surface the fallback set, whose
	// names differ from the seeded rows.
	second := get(t, s.router, "/brokers", nil)
	if second.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", second.Code)
	}
	if second.Header().Get("X-Cache-Hit") != "true" {
		t.Fatalf("X-Cache-Hit = %q, want true", second.Header().Get("X-Cache-Hit"))
	}
	if !strings.Contains(second.Body.String(), "Nordic Markets") {
		t.Fatalf("warm response lost the cached ranking")
	}
	if err := s.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

//
// Scenario C: database down: 200 with the hardcoded fallback set.
//

func TestPersonalize_DatabaseDown_ServesFallback(t *testing.T) {
	s := newStack(t, htmlOrigin(t))
	// No expectations: every query errors.

	rr := get(t, s.router, "/brokers", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	wantCount := len(broker.Fallback())
	if got := rr.Header().Get("X-Broker-Count"); got != strconv.Itoa(wantCount) {
		t.Fatalf("X-Broker-Count = %q, want %d", got, wantCount)
	}
	if !strings.Contains(rr.Body.String(), broker.Fallback()[0].Name) {
		t.Fatalf("fallback brokers missing from body")
	}
}

//
// Scenario D: origin 404: verbatim pass-through, no injection, no write.
//

func TestPersonalize_OriginNotFound_PassesThroughVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html><body>origin 404</body></html>")
	}))
	defer srv.Close()

	s := newStack(t, srv)
	expectFourBrokers(s.mock, "US")

	rr := get(t, s.router, "/brokers", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want origin's 404", rr.Code)
	}
	if body := rr.Body.String(); body != "<html><body>origin 404</body></html>" {
		t.Fatalf("origin body not verbatim: %q", body)
	}
	if strings.Contains(rr.Body.String(), "window.__EDGE_GEO__") {
		t.Fatalf("injection attempted on an origin error")
	}
	if _, ok, _ := s.store.GetBytes(context.Background(), pagecache.Key("/brokers", "US")); ok {
		t.Fatalf("page cache written for an origin error")
	}
}

//
// Origin unreachable: branded degraded response, never a raw error.
//

func TestPersonalize_OriginUnreachable_Degrades(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // connection refused from here on

	s := newStack(t, dead)
	expectFourBrokers(s.mock, "US")

	rr := get(t, s.router, "/brokers", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "right back") {
		t.Fatalf("HTML client did not receive the apology page")
	}

	// Non-HTML clients negotiate JSON.
	req := httptest.NewRequest(http.MethodGet, "/brokers", nil)
	req.Header.Set("Accept", "application/json")
	jr := httptest.NewRecorder()
	s.router.ServeHTTP(jr, req)
	if jr.Code != http.StatusServiceUnavailable ||
		!strings.Contains(jr.Body.String(), `"error"`) {
		t.Fatalf("JSON degraded response wrong: %d %s", jr.Code, jr.Body.String())
	}

	// Both degraded responses were counted as pipeline errors.
	if got := snapshotErrors(t, s.router); got != 2 {
		t.Fatalf("snapshot errors = %d, want 2", got)
	}
}

// snapshotErrors reads the errors counter through the admin surface.
func snapshotErrors(t *testing.T, router http.Handler) int64 {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/edge-admin/metrics-snapshot", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics-snapshot = %d", rr.Code)
	}
	var snap struct {
		Errors int64 `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap.Errors
}

//
// Panics are degraded, counted, and never leak a stack trace.
//

func TestRecover_PanicDegradesAndCounts(t *testing.T) {
	s := newStack(t, htmlOrigin(t))

	boom := s.handler.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/brokers", nil)
	req.Header.Set("Accept", "text/html")
	rr := httptest.NewRecorder()
	boom.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "template exploded") {
		t.Fatalf("panic detail leaked to the client")
	}
	if got := snapshotErrors(t, s.router); got != 1 {
		t.Fatalf("snapshot errors = %d, want 1", got)
	}
}

//
// Pass-through: static assets and crawlers skip personalization.
//

func TestPassthrough_StaticAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = io.WriteString(w, "body{}")
	}))
	defer srv.Close()

	s := newStack(t, srv)
	rr := get(t, s.router, "/styles/site.css", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "body{}" {
		t.Fatalf("asset not proxied verbatim: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Country") != "" {
		t.Fatalf("asset response carries personalization headers")
	}
}

func TestPassthrough_Crawler(t *testing.T) {
	s := newStack(t, htmlOrigin(t))

	rr := get(t, s.router, "/brokers", map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Country") != "" {
		t.Fatalf("crawler received a personalized response")
	}
	if strings.Contains(rr.Body.String(), "window.__EDGE_GEO__") {
		t.Fatalf("crawler received injected state")
	}
}

//
// Conditional requests: hour-granularity ETag honors If-None-Match.
//

func TestPersonalize_ETagRoundTrip(t *testing.T) {
	s := newStack(t, htmlOrigin(t))
	expectFourBrokers(s.mock, "US")

	first := get(t, s.router, "/brokers", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("no ETag on personalized response")
	}

	second := get(t, s.router, "/brokers", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.Code)
	}
}
