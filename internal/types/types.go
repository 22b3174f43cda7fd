// README: Shared identifier and coordinate value types.
package types

import (
	"strconv"
	"time"
)

type ID string

// Point is a WGS84 coordinate. It is a plain value and is compared with ==.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lon"`
}

// String renders the point as "lat,lng", the form map providers accept as a waypoint.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

// Notice is a recoverable, user-visible problem (a failed lookup, a missing route).
type Notice struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
