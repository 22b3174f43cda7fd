// Package maps holds the geocoding and routing collaborators used by the
// booking engine, together with their provider implementations.
package maps

import (
	"context"
	"errors"

	"myride/internal/types"
)

// ModeDrive is the only travel mode the booking flow requests.
const ModeDrive = "drive"

var (
	// ErrLookupFailed wraps every provider failure (unreachable, bad status, malformed body).
	ErrLookupFailed = errors.New("lookup failed")
	// ErrNoRoute is returned when the provider answers but has no path between the waypoints.
	ErrNoRoute = errors.New("no route found")
)

type GeocodeRequest struct {
	Text  string
	Limit int
	Lang  string
}

// Place is one geocoding hit.
type Place struct {
	Label string      `json:"label"`
	Point types.Point `json:"point"`
}

type RouteRequest struct {
	Waypoints [2]types.Point
	Mode      string
}

// Geocoder resolves free text into an ordered list of candidate places.
type Geocoder interface {
	Lookup(ctx context.Context, req GeocodeRequest) ([]Place, error)
}

// Router returns the ordered polyline from the first waypoint to the second.
type Router interface {
	Route(ctx context.Context, req RouteRequest) ([]types.Point, error)
}

func truncate(places []Place, limit int) []Place {
	if limit > 0 && len(places) > limit {
		return places[:limit]
	}
	return places
}
