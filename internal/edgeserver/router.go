// internal/edgeserver/router.go
//
// Top-level router and panic boundary.
//
// The chi router mounts three surfaces: Prometheus /metrics, the admin
// API under /edge-admin, and the catch-all page orchestrator.  Recover
// is the outermost middleware; nothing below it may leak a panic into
// the response path.
package edgeserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/middleware"
)

// NewRouter assembles the full HTTP surface.
func NewRouter(h *Handler, admin *Admin) http.Handler {
	r := chi.NewRouter()

	r.Use(h.Recover)
	r.Use(middleware.Security)

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/edge-admin", admin.Routes())
	r.Handle("/*", h)

	return r
}

// Recover converts any escaped panic into the degraded response and
// counts it as a pipeline error.  The full detail is logged server-side
// only.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.S().Errorw("panic in request pipeline",
					"path", r.URL.Path, "panic", rec)
				h.recordError(h.resolver.Country(r), r.URL.Path)
				writeDegraded(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
