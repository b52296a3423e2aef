// internal/edgeserver/respond.go
//
// Response assembly.
//
// Context
// -------
// Every header on a personalized response is set explicitly here; nothing
// is blindly copied from upstream objects.  Pass-through responses copy
// only the origin client's allow-listed header view.  The degraded
// response is content-negotiated on Accept: HTML clients get a minimal
// branded apology page with a retry affordance, everything else gets a
// JSON error body.  Both carry 503.
//
// Notes
// -----
//   - Diagnostic headers (X-Country, X-Broker-Count, …) are stable
//     contract for the synthetic monitors; rename with care.
//   - Oxford commas, two spaces after periods.
package edgeserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/traderanked/edge/internal/origin"
)

const cacheControl = "public, max-age=1800, s-maxage=3600, stale-while-revalidate=300"

type personalizedPage struct {
	HTML         []byte
	Country      string
	BrokerCount  int
	Restrictions int
	CacheHit     bool
	ETag         string
	Elapsed      time.Duration
}

// writePersonalized emits the final 200 with diagnostic headers, honoring
// If-None-Match against the content-derived ETag.
func writePersonalized(w http.ResponseWriter, r *http.Request, p personalizedPage) {
	hdr := w.Header()
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Cache-Control", cacheControl)
	hdr.Set("Vary", "CF-IPCountry")
	hdr.Set("ETag", p.ETag)
	hdr.Set("X-Country", p.Country)
	hdr.Set("X-Broker-Count", strconv.Itoa(p.BrokerCount))
	hdr.Set("X-Restriction-Count", strconv.Itoa(p.Restrictions))
	hdr.Set("X-Cache-Hit", strconv.FormatBool(p.CacheHit))
	hdr.Set("X-Processing-Time", fmt.Sprintf("%dms", p.Elapsed.Milliseconds()))

	if match := r.Header.Get("If-None-Match"); match != "" && match == p.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.HTML)
}

// writeOrigin passes an origin response through verbatim: its status, the
// allow-listed headers, and its body.
func writeOrigin(w http.ResponseWriter, resp *origin.Response) {
	for name, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

const degradedHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Be right back — TradeRanked</title></head>
<body style="font-family:system-ui;max-width:32rem;margin:4rem auto;text-align:center">
  <h1>We&rsquo;ll be right back</h1>
  <p>Our broker rankings are taking a short break.  Please try again in a
  few seconds.</p>
  <p><a href="javascript:location.reload()">Retry now</a></p>
</body>
</html>`

// writeDegraded emits the 503 apology, content-negotiated on Accept.
func writeDegraded(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(degradedHTML))
		return
	}
	writeJSONError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
}

// writeJSONError emits {"error": msg} at the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
