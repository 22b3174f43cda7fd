package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"myride/internal/observability"
	"myride/internal/types"
)

// RouteService handles interactions with the Google Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey string, ratePerSecond int) (*RouteService, error) {
	client, err := newGoogleClient(apiKey, ratePerSecond)
	if err != nil {
		return nil, err
	}
	return &RouteService{client: client}, nil
}

// Route returns the decoded overview polyline of the first driving route.
func (s *RouteService) Route(ctx context.Context, req RouteRequest) ([]types.Point, error) {
	start := time.Now()
	defer func() {
		observability.LookupLatency.WithLabelValues("route", providerGoogle).Observe(time.Since(start).Seconds())
	}()

	r := &maps.DirectionsRequest{
		Origin:      req.Waypoints[0].String(),
		Destination: req.Waypoints[1].String(),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: directions api error: %v", ErrLookupFailed, err)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}

	path, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding polyline: %v", ErrLookupFailed, err)
	}
	points := make([]types.Point, 0, len(path))
	for _, ll := range path {
		points = append(points, types.Point{Lat: ll.Lat, Lng: ll.Lng})
	}
	if len(points) == 0 {
		return nil, ErrNoRoute
	}
	return points, nil
}
