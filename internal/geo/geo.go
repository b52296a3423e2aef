// internal/geo/geo.go
//
// Visitor country resolution.
//
/*
Context
--------
Behind Cloudflare the country arrives pre-computed in the `CF-IPCountry`
header and resolution is a header read.  Self-hosted deployments sit
behind plain nginx, so the resolver falls back to a GeoLite2 lookup of
the client IP, and finally to the configured default country.  Lookups
are memoized in a small LRU because the same client hits the service in
bursts.

The resolved code is threaded as an explicit argument through the whole
pipeline; nothing downstream re-derives it.

Notes
-----
  • `XX` (Cloudflare's "unknown") and `T1` (Tor) fall through to the
    MaxMind path rather than being trusted.
  • Oxford commas, two spaces after periods.
*/
package geo

import (
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/cache"
)

// HeaderCountry is the CDN-provided country header.
const HeaderCountry = "CF-IPCountry"

// Resolver turns a request into an ISO-3166 alpha-2 country code.
type Resolver struct {
	mmdb       *geoip2.Reader // nil when no database is configured
	defaultISO string
	lru        *cache.LRU[string, string]
}

// NewResolver opens the optional GeoLite2 database at mmdbPath.  An empty
// path skips MaxMind entirely; resolution then uses only the header and
// the default.
func NewResolver(mmdbPath, defaultISO string) (*Resolver, error) {
	r := &Resolver{
		defaultISO: strings.ToUpper(defaultISO),
		lru:        cache.New[string, string](4096),
	}
	if mmdbPath != "" {
		db, err := geoip2.Open(mmdbPath)
		if err != nil {
			return nil, err
		}
		r.mmdb = db
	}
	return r, nil
}

// Close releases the MaxMind reader.
func (r *Resolver) Close() error {
	if r.mmdb != nil {
		return r.mmdb.Close()
	}
	return nil
}

// Country resolves the visitor country for req.
func (r *Resolver) Country(req *http.Request) string {
	if code := strings.ToUpper(req.Header.Get(HeaderCountry)); code != "" {
		if len(code) == 2 && code != "XX" && code != "T1" {
			return code
		}
	}

	ip := clientIP(req)
	if ip == nil || r.mmdb == nil {
		return r.defaultISO
	}

	key := ip.String()
	if code, ok := r.lru.Get(key); ok {
		return code
	}

	rec, err := r.mmdb.Country(ip)
	if err != nil || rec.Country.IsoCode == "" {
		if err != nil {
			zap.S().Debugw("geoip lookup failed", "ip", key, "err", err)
		}
		return r.defaultISO
	}

	code := strings.ToUpper(rec.Country.IsoCode)
	r.lru.Add(key, code)
	return code
}

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
