// internal/inject/viewmodel.go
//
// Typed view-models for the injected fragments.
//
// Every template in this package renders from one of these structs; the
// injector never feeds raw database rows or ad hoc maps into templates.
// Escaping lives at the boundary: html/template contextual escaping for
// markup, and JSON encoding for the data script block.
package inject

import "github.com/traderanked/edge/internal/broker"

// CardView backs one broker card in the primary grid.
type CardView struct {
	Rank       int
	Name       string
	Slug       string
	Logo       string
	LogoColor  string
	Initial    string
	Stars      string
	Rating     float64
	MinDeposit int64
	Blurb      string
	WebsiteURL string
	Featured   bool
}

// RowView backs one row in the beginner and popular tables.
type RowView struct {
	Rank         int
	Name         string
	Slug         string
	Stars        string
	Rating       float64
	MinDeposit   int64
	WebsiteURL   string
	InvestorBase string
	FoundedYear  int
}

// GridView backs the full broker grid fragment.
type GridView struct {
	Country string
	Cards   []CardView
}

// TableView backs the condensed table fragments.
type TableView struct {
	Country string
	Rows    []RowView
	Popular bool
}

// geoState is the JSON payload exposed to the page's scripts.  Encoded
// with encoding/json, whose default HTML-safe escaping keeps broker
// names and country codes from breaking out of the script context.
type geoState struct {
	CountryCode  string               `json:"countryCode"`
	CountryName  string               `json:"countryName"`
	Restrictions []broker.Restriction `json:"restrictions"`
}
