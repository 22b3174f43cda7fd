package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"myride/internal/observability"
	"myride/internal/types"
)

const providerGoogle = "google"

// PlacesService geocodes free text with the Google Geocoding API.
type PlacesService struct {
	client *maps.Client
}

// NewPlacesService creates a new PlacesService with the given API key.
// ratePerSecond <= 0 leaves the client's default limit in place.
func NewPlacesService(apiKey string, ratePerSecond int) (*PlacesService, error) {
	client, err := newGoogleClient(apiKey, ratePerSecond)
	if err != nil {
		return nil, err
	}
	return &PlacesService{client: client}, nil
}

func newGoogleClient(apiKey string, ratePerSecond int) (*maps.Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if ratePerSecond > 0 {
		opts = append(opts, maps.WithRateLimit(ratePerSecond))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

// Lookup returns up to req.Limit geocoded places for req.Text.
func (s *PlacesService) Lookup(ctx context.Context, req GeocodeRequest) ([]Place, error) {
	start := time.Now()
	defer func() {
		observability.LookupLatency.WithLabelValues("geocode", providerGoogle).Observe(time.Since(start).Seconds())
	}()

	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  req.Text,
		Language: req.Lang,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: geocoding api error: %v", ErrLookupFailed, err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		places = append(places, Place{
			Label: r.FormattedAddress,
			Point: types.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		})
	}
	return truncate(places, req.Limit), nil
}
