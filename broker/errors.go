package broker

import "strings"

// unavailableMarkers are fragments of venue responses that mean the request
// was refused for operational or regional reasons rather than on its merits.
var unavailableMarkers = []string{
	"not available",
	"region",
	"restricted",
	"blocked",
	"forbidden",
	"service unavailable",
	"status 403",
	"status 451",
	"status 503",
}

// IsUnavailable reports whether err looks like the venue refusing service
// (geo block, maintenance, outage). Such failures are eligible for a paper fill.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range unavailableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
