// internal/broker/repository.go
//
// Read-side queries for per-country broker listings.
//
// Context
// -------
// Two queries feed the personalization pipeline, and the orchestrator
// issues them in parallel:
//
//   - Brokers       – active brokers ranked for one country.
//   - Restrictions  – availability restrictions, with alternatives.
//
// Both wrap their statement in a short context timeout; a slow database
// must never hold a page render hostage.  Brokers can NEVER fail from
// the caller's point of view: a query error or an empty result both
// yield the hardcoded fallback set.  The two conditions are deliberately
// indistinguishable here; the site would rather show a slightly stale
// curated list than an empty grid.
//
// Notes
// -----
//   - Ordering is a total order: effective sort key ascending, then id.
//   - Oxford commas, two spaces after periods.
package broker

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/metrics"
)

const (
	// MaxListing caps how many brokers one response may carry.
	MaxListing = 6

	// queryTimeout bounds each statement.  On expiry the in-flight
	// request is abandoned and the fallback path is taken.
	queryTimeout = 900 * time.Millisecond
)

// Repository reads broker data through one sqlx pool.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wires a Repository to an open pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const brokersQuery = `
    SELECT b.id, b.name, b.slug,
           COALESCE(b.logo, '')                               AS logo,
           b.rating, b.min_deposit,
           COALESCE(cs.custom_description, b.description, '') AS description,
           b.website_url,
           COALESCE(cs.sort_order, b.default_sort_order)      AS sort_order,
           COALESCE(cs.is_featured, FALSE)                    AS is_featured,
           COALESCE(b.investor_base, '')                      AS investor_base,
           COALESCE(b.founded_year, 0)                        AS founded_year
    FROM   brokers b
    LEFT JOIN country_sorting cs
           ON cs.broker_id = b.id AND cs.country_code = ?
    WHERE  b.is_active = TRUE
    ORDER  BY sort_order ASC, b.id ASC
    LIMIT  ?;`

// Brokers returns the ranked listing for country.  Never errors, never
// returns an empty slice; see package comment.
func (r *Repository) Brokers(ctx context.Context, country string) []Broker {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []Broker
	if err := r.db.SelectContext(ctx, &rows, brokersQuery, country, MaxListing); err != nil {
		zap.S().Warnw("broker query failed, serving fallback",
			"country", country, "err", err)
		metrics.FallbackServedTotal.Inc()
		return Fallback()
	}
	if len(rows) == 0 {
		zap.S().Warnw("broker query returned no active rows, serving fallback",
			"country", country)
		metrics.FallbackServedTotal.Inc()
		return Fallback()
	}
	return rows
}

const restrictionsQuery = `
    SELECT uc.broker_id, rb.name AS broker_name, uc.country_code,
           uc.restriction_type,
           COALESCE(uc.reason, '') AS reason,
           uc.alternative_broker_id AS alternative_id,
           ab.name                  AS alternative_name
    FROM   unsupported_countries uc
    JOIN   brokers rb ON rb.id = uc.broker_id AND rb.is_active = TRUE
    LEFT JOIN brokers ab ON ab.id = uc.alternative_broker_id
    WHERE  uc.country_code = ?
      AND  uc.is_active = TRUE;`

// Restrictions returns availability restrictions for country.  Errors and
// empty results both yield an empty slice; restrictions are additive, so
// "none" is always a safe answer.
func (r *Repository) Restrictions(ctx context.Context, country string) []Restriction {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []Restriction
	if err := r.db.SelectContext(ctx, &rows, restrictionsQuery, country); err != nil {
		zap.S().Warnw("restriction query failed, treating as none",
			"country", country, "err", err)
		return nil
	}
	return rows
}
