// internal/ua/ua.go
//
// User-Agent parsing helpers.
//
// This wrapper isolates the third-party `github.com/avct/uasurfer` API so
// the rest of the codebase never sees its enums or structs.  The edge
// service only cares about two facts: is the client a crawler (crawlers
// get the country-neutral origin page), and what device class it is (the
// `edge_device_requests_total` breakdown).
package ua

import (
	surfer "github.com/avct/uasurfer"
)

// Info carries the UA attributes the orchestrator and metrics use.
type Info struct {
	Device string // "Desktop", "Mobile", "Tablet", or "Other"
	IsBot  bool
}

// Parse converts a raw User-Agent header into an Info struct.
func Parse(raw string) Info {
	parsed := surfer.Parse(raw)

	info := Info{IsBot: parsed.IsBot()}

	switch parsed.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DevicePhone:
		info.Device = "Mobile"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	default:
		info.Device = "Other"
	}
	return info
}
