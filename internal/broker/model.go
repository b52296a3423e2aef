// internal/broker/model.go
//
// Broker-domain records.
//
// Context
// -------
// These structs mirror rows in the `brokers`, `country_sorting`, and
// `unsupported_countries` tables.  All three tables are written by an
// external admin process; this service only ever reads them, so the
// structs carry no lifecycle helpers.
//
// Notes
// -----
//   - SortOrder on Broker is the *effective* rank for the country the row
//     was fetched for: COALESCE(country_sorting.sort_order,
//     brokers.default_sort_order).  The repository computes it in SQL so
//     callers never re-derive ranks.
//   - Oxford commas, two spaces after periods.
package broker

// Broker is one tradable-service provider, ranked for a given country.
type Broker struct {
	ID           int64   `db:"id"            json:"id"`
	Name         string  `db:"name"          json:"name"`
	Slug         string  `db:"slug"          json:"slug"`
	Logo         string  `db:"logo"          json:"logo,omitempty"`
	Rating       float64 `db:"rating"        json:"rating"`
	MinDeposit   int64   `db:"min_deposit"   json:"minDeposit"`
	Description  string  `db:"description"   json:"description,omitempty"`
	WebsiteURL   string  `db:"website_url"   json:"websiteUrl"`
	SortOrder    int     `db:"sort_order"    json:"sortOrder"`
	IsFeatured   bool    `db:"is_featured"   json:"isFeatured"`
	InvestorBase string  `db:"investor_base" json:"investorBase,omitempty"`
	FoundedYear  int     `db:"founded_year"  json:"foundedYear,omitempty"`
}

// Restriction records that a broker is unavailable in a country, with an
// optional suggested substitute.
type Restriction struct {
	BrokerID        int64   `db:"broker_id"        json:"brokerId"`
	BrokerName      string  `db:"broker_name"      json:"brokerName"`
	CountryCode     string  `db:"country_code"     json:"countryCode"`
	RestrictionType string  `db:"restriction_type" json:"restrictionType"`
	Reason          string  `db:"reason"           json:"reason"`
	AlternativeID   *int64  `db:"alternative_id"   json:"alternativeId,omitempty"`
	AlternativeName *string `db:"alternative_name" json:"alternativeName,omitempty"`
}
