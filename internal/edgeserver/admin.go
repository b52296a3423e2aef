// internal/edgeserver/admin.go
//
// Administrative and diagnostic surface.
//
/*
Context
--------
Mounted under /edge-admin:

  POST /purge             bearer   – drop cache keys by pattern or country
  POST /warm              bearer   – run the cache warmer now
  GET  /health            public   – derived health report (JSON)
  GET  /metrics-snapshot  public   – raw counter snapshot (JSON)
  GET  /debug/cache       public   – cache backend connectivity probe
  GET  /debug/db          public   – database connectivity probe

Mutating endpoints sit behind a constant-time bearer check; a missing or
wrong token is answered with `401 {"error":"Unauthorized"}` before any
state is touched.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package edgeserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/traderanked/edge/internal/kv"
	"github.com/traderanked/edge/internal/metrics"
	"github.com/traderanked/edge/internal/warm"
)

// Admin bundles the dependencies of the administrative surface.
type Admin struct {
	store    kv.Store
	db       *sqlx.DB
	recorder *metrics.Recorder
	warmer   *warm.Warmer
	token    string
}

// NewAdmin wires the admin handlers.
func NewAdmin(store kv.Store, db *sqlx.DB, recorder *metrics.Recorder, warmer *warm.Warmer, token string) *Admin {
	return &Admin{store: store, db: db, recorder: recorder, warmer: warmer, token: token}
}

// Routes mounts the admin endpoints on a chi router.
func (a *Admin) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(a.requireBearer)
		r.Post("/purge", a.handlePurge)
		r.Post("/warm", a.handleWarm)
	})

	r.Get("/health", a.handleHealth)
	r.Get("/metrics-snapshot", a.handleSnapshot)
	r.Get("/debug/cache", a.handleDebugCache)
	r.Get("/debug/db", a.handleDebugDB)

	return r
}

//
// Auth
//

// requireBearer gates mutating endpoints on the admin token.
func (a *Admin) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r.Header.Get("Authorization"))
		if tok == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(a.token)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

//
// Mutating endpoints
//

type purgeRequest struct {
	Pattern string `json:"pattern"`
	Country string `json:"country"`
}

// handlePurge drops cache keys.  With a country it removes that
// country's query blob and pages; with a pattern it removes matching
// keys; with neither it clears both cache tiers.  An empty body means
// "all"; a malformed one is rejected before anything is touched.
func (a *Admin) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "malformed purge request: "+err.Error())
			return
		}
	}

	patterns := []string{"broker-data-*", "page-*"}
	switch {
	case req.Pattern != "":
		patterns = []string{req.Pattern}
	case req.Country != "":
		patterns = []string{
			fmt.Sprintf("broker-data-%s-v2", req.Country),
			fmt.Sprintf("page-*-%s", req.Country),
		}
	}

	removed := 0
	for _, p := range patterns {
		n, err := a.store.DeletePattern(r.Context(), p)
		removed += n
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "purge incomplete: "+err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"purged":   removed,
		"patterns": patterns,
	})
}

// handleWarm runs the warmer synchronously and returns its report.
func (a *Admin) handleWarm(w http.ResponseWriter, r *http.Request) {
	rep := a.warmer.Run(r.Context(), warm.KeyLastRun)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

//
// Read-only endpoints
//

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := a.recorder.Health(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

func (a *Admin) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := a.recorder.Current(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (a *Admin) handleDebugCache(w http.ResponseWriter, r *http.Request) {
	a.writeProbe(w, a.store.Ping(r.Context()))
}

func (a *Admin) handleDebugDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	a.writeProbe(w, a.db.PingContext(ctx))
}

func (a *Admin) writeProbe(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "unreachable", "error": err.Error(),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
