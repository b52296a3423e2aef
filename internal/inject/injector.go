// internal/inject/injector.go
//
// Country-specific content injection.
//
/*
Context
--------
The origin serves pre-rendered HTML carrying placeholder markers.  The
injector splices country-specific fragments over them:

  1. A data <script> exposing {country code, display name, restrictions}
     before `</head>`, or after the opening `<body>` tag when the page
     has no head-close marker.
  2. `<!-- BROKER_GRID -->`            → up to 6 full broker cards.
  3. `<!-- BROKER_TABLE_BEGINNER -->`  (or the legacy shortcode
     `[broker_table_beginner]`)        → top-4 condensed table.
  4. `<!-- BROKER_TABLE_POPULAR -->`   → top-4 table with investor-count
     and founding-year columns.

Replacements are independent; a missing marker is a no-op, never an
error.  Any panic or template failure returns the ORIGINAL html – a
broken injection must never surface as a broken page.

Notes
-----
  • Oxford commas, two spaces after periods.
*/
package inject

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/traderanked/edge/internal/broker"
)

//
// Markers
//

const (
	markerHeadClose      = "</head>"
	markerBodyOpen       = "<body"
	markerGrid           = "<!-- BROKER_GRID -->"
	markerTableBeginner  = "<!-- BROKER_TABLE_BEGINNER -->"
	markerTableBeginner2 = "[broker_table_beginner]"
	markerTablePopular   = "<!-- BROKER_TABLE_POPULAR -->"
)

// tableSize caps the condensed tables at the top four brokers.
const tableSize = 4

// Injector renders and splices the country fragments.  Construct once;
// safe for concurrent use.
type Injector struct {
	tmpl *template.Template
}

// New parses the fragment templates.
func New() (*Injector, error) {
	t, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse fragment templates: %w", err)
	}
	return &Injector{tmpl: t}, nil
}

// Inject merges brokers and restrictions into html for country.  On any
// internal failure the original html is returned unchanged.
func (i *Injector) Inject(html []byte, brokers []broker.Broker, country string, restrictions []broker.Restriction) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("injection panic, serving original page",
				"country", country, "panic", r)
			out = html
		}
	}()

	page := string(html)

	page = i.insertDataScript(page, country, restrictions)
	page = i.replaceGrid(page, brokers, country)
	page = i.replaceTable(page, brokers, country, false)
	page = i.replaceTable(page, brokers, country, true)

	return []byte(page)
}

//
// Data script
//

// insertDataScript always runs; pages without markers still get the geo
// state appended so client scripts can hydrate.
func (i *Injector) insertDataScript(page, country string, restrictions []broker.Restriction) string {
	state := geoState{
		CountryCode:  country,
		CountryName:  countryName(country),
		Restrictions: restrictions,
	}
	if state.Restrictions == nil {
		state.Restrictions = []broker.Restriction{}
	}

	// encoding/json escapes <, >, and & as < and friends, so the
	// blob can never contain a literal </script>.
	blob, err := json.Marshal(state)
	if err != nil {
		zap.S().Errorw("geo state encode failed", "country", country, "err", err)
		return page
	}
	script := "<script>window.__EDGE_GEO__ = " + string(blob) + ";</script>"

	if idx := strings.Index(page, markerHeadClose); idx != -1 {
		return page[:idx] + script + "\n" + page[idx:]
	}
	if idx := strings.Index(page, markerBodyOpen); idx != -1 {
		if end := strings.Index(page[idx:], ">"); end != -1 {
			at := idx + end + 1
			return page[:at] + "\n" + script + page[at:]
		}
	}
	// Fragment without head or body; append.
	return page + script
}

//
// Grid
//

func (i *Injector) replaceGrid(page string, brokers []broker.Broker, country string) string {
	if !strings.Contains(page, markerGrid) {
		return page
	}

	view := GridView{Country: country}
	for n, b := range brokers {
		if n == broker.MaxListing {
			break
		}
		view.Cards = append(view.Cards, CardView{
			Rank:       n + 1,
			Name:       b.Name,
			Slug:       b.Slug,
			Logo:       b.Logo,
			LogoColor:  logoColor(b.Name),
			Initial:    initial(b.Name),
			Stars:      stars(b.Rating),
			Rating:     b.Rating,
			MinDeposit: b.MinDeposit,
			Blurb:      b.Description,
			WebsiteURL: b.WebsiteURL,
			Featured:   b.IsFeatured,
		})
	}

	frag, err := i.render("grid", view)
	if err != nil {
		zap.S().Errorw("grid render failed", "country", country, "err", err)
		return page
	}
	return strings.ReplaceAll(page, markerGrid, frag)
}

//
// Tables
//

func (i *Injector) replaceTable(page string, brokers []broker.Broker, country string, popular bool) string {
	marker := markerTableBeginner
	if popular {
		marker = markerTablePopular
	}

	hasLegacy := !popular && strings.Contains(page, markerTableBeginner2)
	if !strings.Contains(page, marker) && !hasLegacy {
		return page
	}

	view := TableView{Country: country, Popular: popular}
	for n, b := range brokers {
		if n == tableSize {
			break
		}
		view.Rows = append(view.Rows, RowView{
			Rank:         n + 1,
			Name:         b.Name,
			Slug:         b.Slug,
			Stars:        stars(b.Rating),
			Rating:       b.Rating,
			MinDeposit:   b.MinDeposit,
			WebsiteURL:   b.WebsiteURL,
			InvestorBase: b.InvestorBase,
			FoundedYear:  b.FoundedYear,
		})
	}

	frag, err := i.render("table", view)
	if err != nil {
		zap.S().Errorw("table render failed",
			"country", country, "popular", popular, "err", err)
		return page
	}

	page = strings.ReplaceAll(page, marker, frag)
	if hasLegacy {
		page = strings.ReplaceAll(page, markerTableBeginner2, frag)
	}
	return page
}

//
// Helpers
//

func (i *Injector) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := i.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// stars renders a five-slot bar, rounding the 0–5 rating to the nearest
// whole star.
func stars(rating float64) string {
	full := int(rating + 0.5)
	if full < 0 {
		full = 0
	}
	if full > 5 {
		full = 5
	}
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}

func initial(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(trimmed)[0]))
}
