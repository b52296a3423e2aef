// internal/routeclass/classifier.go
//
// Dynamic-route classification.
//
/*
Context
--------
Every request is classified before any other work happens: only "dynamic"
paths get the personalization pipeline; everything else passes through to
the origin untouched.  Classification is a three-tier short-circuit:

  1. Static exclusion – known asset extensions and path prefixes never
     reach the database, case-insensitively.
  2. Hardcoded fragments – a small list of high-traffic route fragments
     classifies common pages with zero external calls.
  3. Database lookup – percent-decode the path, try an exact
     `route_pattern` match, then bidirectional substring containment.

Pattern semantics (canonical contract): a path is dynamic iff the decoded
path contains `route_pattern` OR `route_pattern` contains the decoded
path.  Expressed as two LIKE clauses so the database does the matching.

Failure policy: a database error never escapes IsDynamic.  The classifier
falls back to a keyword heuristic over the decoded path and returns a
boolean either way.  A misclassification costs at most one unpersonalized
page or one unnecessary origin fetch; a thrown error would cost the page.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package routeclass

import (
	"context"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//
// Tier data
//

var staticExtensions = []string{
	".js", ".css", ".map", ".json", ".xml", ".txt", ".ico",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif",
	".woff", ".woff2", ".ttf", ".eot",
}

var staticPrefixes = []string{
	"/_next/", "/static/", "/assets/", "/images/", "/fonts/",
	"/favicon", "/robots", "/sitemap",
}

// commonFragments classifies the highest-traffic routes without touching
// the database.
var commonFragments = []string{
	"/brokers",
	"/best-brokers",
	"/compare",
	"/reviews/",
}

// heuristicKeywords backstop classification when the database is down.
var heuristicKeywords = []string{"broker", "trading", "invest", "compare"}

//
// Classifier
//

// Classifier decides personalization eligibility for request paths.
type Classifier struct {
	db *sqlx.DB
}

// New wires a Classifier to the routes database.
func New(db *sqlx.DB) *Classifier {
	return &Classifier{db: db}
}

// IsDynamic reports whether path should be personalized.  Never errors.
func (c *Classifier) IsDynamic(ctx context.Context, path string) bool {
	if isStaticAsset(path) {
		return false
	}

	decoded := decodePath(path)

	for _, frag := range commonFragments {
		if strings.Contains(decoded, frag) {
			return true
		}
	}

	dynamic, err := c.lookup(ctx, decoded)
	if err != nil {
		zap.S().Warnw("route lookup failed, using keyword heuristic",
			"path", decoded, "err", err)
		return heuristic(decoded)
	}
	return dynamic
}

const exactRouteQuery = `
    SELECT COUNT(*) FROM dynamic_routes
    WHERE  route_pattern = ? AND is_active = TRUE;`

const containsRouteQuery = `
    SELECT COUNT(*) FROM dynamic_routes
    WHERE  is_active = TRUE
      AND  (? LIKE CONCAT('%', route_pattern, '%')
            OR route_pattern LIKE CONCAT('%', ?, '%'));`

// lookup runs tier 3: exact match first, containment second.
func (c *Classifier) lookup(ctx context.Context, decoded string) (bool, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, exactRouteQuery, decoded); err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := c.db.GetContext(ctx, &n, containsRouteQuery, decoded, decoded); err != nil {
		return false, err
	}
	return n > 0, nil
}

//
// Helpers
//

func isStaticAsset(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// decodePath percent-decodes the path, falling back to the raw value on
// malformed escapes.
func decodePath(path string) string {
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

func heuristic(decoded string) bool {
	lower := strings.ToLower(decoded)
	for _, kw := range heuristicKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
