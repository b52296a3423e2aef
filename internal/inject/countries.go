// internal/inject/countries.go
//
// Display names for the country codes the site actually targets.  Codes
// outside the table fall back to the code itself; the data script is
// still valid, it just reads "visitors from NZ" instead of a prose name.
package inject

import "strings"

var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"CA": "Canada",
	"AU": "Australia",
	"DE": "Germany",
	"FR": "France",
	"ES": "Spain",
	"IT": "Italy",
	"NL": "Netherlands",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"PL": "Poland",
	"PT": "Portugal",
	"IE": "Ireland",
	"CH": "Switzerland",
	"AT": "Austria",
	"BE": "Belgium",
	"SG": "Singapore",
	"HK": "Hong Kong",
	"JP": "Japan",
	"IN": "India",
	"BR": "Brazil",
	"MX": "Mexico",
	"ZA": "South Africa",
	"AE": "United Arab Emirates",
}

// countryName resolves an ISO code to a display name.
func countryName(code string) string {
	if n, ok := countryNames[strings.ToUpper(code)]; ok {
		return n
	}
	return code
}
