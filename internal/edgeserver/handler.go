// internal/edgeserver/handler.go
//
// Request orchestrator.
//
/*
Context
--------
One Handler instance serves every page request.  The life of a request:

  CLASSIFY → PASSTHROUGH | PERSONALIZE

Pass-through requests (static assets, non-dynamic routes, crawlers) are
reverse-proxied to the origin untouched.  Personalized requests run the
pipeline in personalize():

  query-cache check ∥ page-cache check
      → on query miss: brokers ∥ restrictions → repopulate
      → on page miss:  origin fetch → enqueue page-cache write
  → inject → respond

Terminal failures short-circuit: a non-2xx or non-HTML origin response is
returned verbatim with no injection and no cache write; an unreachable
origin yields the branded degraded response.  A panic anywhere in the
pipeline is caught by Recover (router.go); the client never sees a raw
stack trace.

Notes
-----
  • Metrics recording is fired on a detached goroutine so a slow backend
    can never stretch a page render.
  • Oxford commas, two spaces after periods.
*/
package edgeserver

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/traderanked/edge/internal/broker"
	"github.com/traderanked/edge/internal/datacache"
	"github.com/traderanked/edge/internal/geo"
	"github.com/traderanked/edge/internal/inject"
	"github.com/traderanked/edge/internal/metrics"
	"github.com/traderanked/edge/internal/origin"
	"github.com/traderanked/edge/internal/pagecache"
	"github.com/traderanked/edge/internal/routeclass"
	"github.com/traderanked/edge/internal/ua"
)

// Handler orchestrates classification, caching, and injection.
type Handler struct {
	classifier *routeclass.Classifier
	repo       *broker.Repository
	data       *datacache.Cache
	pages      *pagecache.Cache
	origin     *origin.Client
	injector   *inject.Injector
	resolver   *geo.Resolver
	recorder   *metrics.Recorder
	proxy      *httputil.ReverseProxy
}

// NewHandler wires the orchestrator.  originBase must parse; it was
// validated at config load.
func NewHandler(
	classifier *routeclass.Classifier,
	repo *broker.Repository,
	data *datacache.Cache,
	pages *pagecache.Cache,
	originClient *origin.Client,
	injector *inject.Injector,
	resolver *geo.Resolver,
	recorder *metrics.Recorder,
	originBase string,
) (*Handler, error) {
	target, err := url.Parse(originBase)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		classifier: classifier,
		repo:       repo,
		data:       data,
		pages:      pages,
		origin:     originClient,
		injector:   injector,
		resolver:   resolver,
		recorder:   recorder,
	}

	h.proxy = httputil.NewSingleHostReverseProxy(target)
	h.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		zap.S().Errorw("origin proxy error", "path", r.URL.Path, "err", err)
		h.recordError(h.resolver.Country(r), r.URL.Path)
		writeDegraded(w, r)
	}

	return h, nil
}

// ServeHTTP classifies and dispatches.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.classifier.IsDynamic(r.Context(), r.URL.Path) {
		metrics.RequestsTotal.WithLabelValues("passthrough").Inc()
		h.proxy.ServeHTTP(w, r)
		return
	}

	// Crawlers index the country-neutral page.
	client := ua.Parse(r.UserAgent())
	if client.IsBot {
		metrics.RequestsTotal.WithLabelValues("passthrough").Inc()
		h.proxy.ServeHTTP(w, r)
		return
	}

	metrics.DeviceRequestsTotal.WithLabelValues(client.Device).Inc()
	h.personalize(w, r)
}

// personalize runs the full pipeline for one dynamic request.
func (h *Handler) personalize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	country := h.resolver.Country(r)
	route := r.URL.Path

	//
	// Cache checks, issued concurrently.
	//
	var (
		payload  *datacache.Payload
		pageBody []byte
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		payload = h.data.Get(gctx, country)
		return nil
	})
	g.Go(func() error {
		pageBody = h.pages.Get(gctx, route, country)
		return nil
	})
	_ = g.Wait()

	//
	// Query-result miss: parallel fetch, then repopulate.
	//
	cacheHit := payload != nil
	if !cacheHit {
		payload = h.fetchData(r.Context(), country)
		h.data.Put(r.Context(), country, payload.Brokers, payload.Restrictions)
	}
	go h.recordLookup(country, route, cacheHit)

	//
	// Page miss: fetch origin, enqueue the cache write.
	//
	if pageBody == nil {
		resp, err := h.origin.Fetch(r.Context(), requestURI(r))
		if err != nil {
			zap.S().Errorw("origin unreachable", "path", route, "err", err)
			metrics.RequestsTotal.WithLabelValues("degraded").Inc()
			h.recordError(country, route)
			writeDegraded(w, r)
			return
		}
		metrics.OriginFetchSeconds.Observe(resp.Elapsed.Seconds())

		if !resp.OK() || !resp.IsHTML {
			// Deliberate pass-through of the origin's own answer; no
			// injection, no cache write.
			metrics.RequestsTotal.WithLabelValues("passthrough").Inc()
			writeOrigin(w, resp)
			return
		}

		pageBody = resp.Body
		h.pages.PutAsync(route, country, resp.Body)
	}

	//
	// Inject and respond.
	//
	html := h.injector.Inject(pageBody, payload.Brokers, country, payload.Restrictions)

	metrics.RequestsTotal.WithLabelValues("personalized").Inc()
	writePersonalized(w, r, personalizedPage{
		HTML:         html,
		Country:      country,
		BrokerCount:  len(payload.Brokers),
		Restrictions: len(payload.Restrictions),
		CacheHit:     cacheHit,
		ETag:         pageETag(payload.Brokers, country, time.Now()),
		Elapsed:      time.Since(start),
	})
}

// fetchData loads brokers and restrictions in parallel.  Both sides are
// total (fallbacks inside the repository), so this never fails.
func (h *Handler) fetchData(ctx context.Context, country string) *datacache.Payload {
	var p datacache.Payload
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.Brokers = h.repo.Brokers(gctx, country)
		return nil
	})
	g.Go(func() error {
		p.Restrictions = h.repo.Restrictions(gctx, country)
		return nil
	})
	_ = g.Wait()
	return &p
}

// recordLookup bumps the telemetry counters off the request path.
func (h *Handler) recordLookup(country, route string, hit bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if hit {
		h.recorder.RecordHit(ctx, country, route)
	} else {
		h.recorder.RecordMiss(ctx, country, route)
	}
}

// recordError counts a degraded response.  Runs inline: the page has
// already failed, so a slow backend cannot make it worse.
func (h *Handler) recordError(country, route string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.recorder.RecordError(ctx, country, route)
}

// requestURI returns path plus raw query for the origin fetch.
func requestURI(r *http.Request) string {
	uri := r.URL.Path
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return uri
}
