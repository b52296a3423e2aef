// internal/inject/colors.go
//
// Brand color lookup for broker logo placeholders.  When a broker has no
// uploaded logo the card shows its initial on a brand-colored tile.
package inject

import "strings"

const defaultLogoColor = "#2563eb"

var logoColors = map[string]string{
	"interactive brokers": "#d81222",
	"etoro":               "#13c636",
	"xtb":                 "#d32f2f",
	"plus500":             "#0033a0",
	"degiro":              "#009fdf",
	"trading 212":         "#00a7e1",
	"saxo bank":           "#0f2341",
	"ig":                  "#e4002b",
	"avatrade":            "#0c5ca8",
	"pepperstone":         "#0d1b3f",
}

// logoColor returns the brand color for name, or the default blue.
func logoColor(name string) string {
	if c, ok := logoColors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return defaultLogoColor
}
