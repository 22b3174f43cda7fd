package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"myride/internal/observability"
	"myride/internal/types"
)

const providerGeoapify = "geoapify"

// GeoapifyClient talks to the Geoapify autocomplete and routing endpoints.
// Both endpoints share one token-bucket limiter.
type GeoapifyClient struct {
	baseURL         string
	autocompleteKey string
	routingKey      string
	httpClient      *http.Client
	limiter         *rate.Limiter
}

type GeoapifyOptions struct {
	BaseURL         string
	AutocompleteKey string
	RoutingKey      string
	RatePerSecond   float64
	Burst           int
	HTTPClient      *http.Client
}

func NewGeoapifyClient(opts GeoapifyOptions) *GeoapifyClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &GeoapifyClient{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		autocompleteKey: opts.AutocompleteKey,
		routingKey:      opts.RoutingKey,
		httpClient:      hc,
		limiter:         rate.NewLimiter(limit, burst),
	}
}

type geoapifyAutocomplete struct {
	Features []struct {
		Properties struct {
			Formatted string  `json:"formatted"`
			Lat       float64 `json:"lat"`
			Lon       float64 `json:"lon"`
		} `json:"properties"`
	} `json:"features"`
}

type geoapifyRouting struct {
	Features []struct {
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Lookup queries /v1/geocode/autocomplete and returns at most req.Limit places.
func (c *GeoapifyClient) Lookup(ctx context.Context, req GeocodeRequest) ([]Place, error) {
	q := url.Values{}
	q.Set("text", req.Text)
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Lang != "" {
		q.Set("lang", req.Lang)
	}
	q.Set("apiKey", c.autocompleteKey)

	var out geoapifyAutocomplete
	if err := c.get(ctx, "geocode", "/v1/geocode/autocomplete", q, &out); err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(out.Features))
	for _, f := range out.Features {
		places = append(places, Place{
			Label: f.Properties.Formatted,
			Point: types.Point{Lat: f.Properties.Lat, Lng: f.Properties.Lon},
		})
	}
	return truncate(places, req.Limit), nil
}

// Route queries /v1/routing. Geoapify answers in GeoJSON, so positions come
// back as [lon, lat] and are swapped here.
func (c *GeoapifyClient) Route(ctx context.Context, req RouteRequest) ([]types.Point, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeDrive
	}
	a, b := req.Waypoints[0], req.Waypoints[1]
	q := url.Values{}
	q.Set("waypoints", fmt.Sprintf("%s|%s", a.String(), b.String()))
	q.Set("mode", mode)
	q.Set("apiKey", c.routingKey)

	var out geoapifyRouting
	if err := c.get(ctx, "route", "/v1/routing", q, &out); err != nil {
		return nil, err
	}
	if len(out.Features) == 0 {
		return nil, ErrNoRoute
	}
	geom := out.Features[0].Geometry
	points, err := decodeGeoJSONLine(geom.Type, geom.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding route geometry: %v", ErrLookupFailed, err)
	}
	if len(points) == 0 {
		return nil, ErrNoRoute
	}
	return points, nil
}

func (c *GeoapifyClient) get(ctx context.Context, kind, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrLookupFailed, err)
	}
	start := time.Now()
	defer func() {
		observability.LookupLatency.WithLabelValues(kind, providerGeoapify).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: geoapify %s returned %d", ErrLookupFailed, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrLookupFailed, path, err)
	}
	return nil
}

func decodeGeoJSONLine(kind string, raw json.RawMessage) ([]types.Point, error) {
	var lines [][][2]float64
	switch kind {
	case "MultiLineString":
		if err := json.Unmarshal(raw, &lines); err != nil {
			return nil, err
		}
	case "LineString", "":
		var line [][2]float64
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, err
		}
		lines = [][][2]float64{line}
	default:
		return nil, fmt.Errorf("unsupported geometry %q", kind)
	}
	var points []types.Point
	for _, line := range lines {
		for _, pos := range line {
			points = append(points, types.Point{Lat: pos[1], Lng: pos[0]})
		}
	}
	return points, nil
}
