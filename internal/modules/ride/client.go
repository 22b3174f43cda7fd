// README: REST client for the ride backend (accept, status updates, dashboard listings).
package ride

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"myride/internal/types"
)

// Client implements API over the backend's JSON endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// wireRide is the row shape the backend returns.
type wireRide struct {
	ID        flexID    `json:"id"`
	UserID    flexID    `json:"user_id"`
	DriverID  flexID    `json:"driver_id"`
	Pickup    string    `json:"pickup"`
	Drop      string    `json:"drop"`
	PickupLat *float64  `json:"pickup_lat"`
	PickupLng *float64  `json:"pickup_lng"`
	DropLat   *float64  `json:"drop_lat"`
	DropLng   *float64  `json:"drop_lng"`
	Status    string    `json:"status"`
	Fare      float64   `json:"fare"`
	CreatedAt time.Time `json:"created_at"`
}

// flexID accepts a JSON string, number or null. The backend uses serial ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("ride id %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

func (w wireRide) toRide() (Ride, error) {
	st, err := ParseStatus(w.Status)
	if err != nil {
		return Ride{}, err
	}
	r := Ride{
		ID:          types.ID(w.ID.String()),
		RiderID:     types.ID(w.UserID.String()),
		PickupLabel: w.Pickup,
		DropLabel:   w.Drop,
		Status:      st,
		Fare:        w.Fare,
		CreatedAt:   w.CreatedAt,
	}
	if d := w.DriverID.String(); d != "" {
		id := types.ID(d)
		r.DriverID = &id
	}
	if w.PickupLat != nil && w.PickupLng != nil {
		r.Pickup = &types.Point{Lat: *w.PickupLat, Lng: *w.PickupLng}
	}
	if w.DropLat != nil && w.DropLng != nil {
		r.Drop = &types.Point{Lat: *w.DropLat, Lng: *w.DropLng}
	}
	return r, nil
}

// wireStatus is the spelling the backend stores.
func wireStatus(s Status) string {
	if s == StatusInProgress {
		return "progress"
	}
	return string(s)
}

type rideEnvelope struct {
	Ride  *wireRide  `json:"ride"`
	Rides []wireRide `json:"rides"`
	Error string     `json:"error"`
}

func (c *Client) Accept(ctx context.Context, rideID, driverID types.ID) (Ride, error) {
	body := map[string]string{"ride_id": string(rideID), "driver_id": string(driverID)}
	return c.putRide(ctx, "/rides/accept", body)
}

func (c *Client) UpdateStatus(ctx context.Context, rideID types.ID, status Status) (Ride, error) {
	body := map[string]string{"ride_id": string(rideID), "status": wireStatus(status)}
	return c.putRide(ctx, "/rides/status", body)
}

func (c *Client) DriverRides(ctx context.Context, driverID types.ID) ([]Ride, error) {
	return c.listRides(ctx, "/rides/driver/"+url.PathEscape(string(driverID)))
}

func (c *Client) RiderRides(ctx context.Context, riderID types.ID) ([]Ride, error) {
	return c.listRides(ctx, "/rides/user/"+url.PathEscape(string(riderID)))
}

func (c *Client) putRide(ctx context.Context, path string, body any) (Ride, error) {
	var env rideEnvelope
	if err := c.do(ctx, http.MethodPut, path, body, &env); err != nil {
		return Ride{}, err
	}
	if env.Ride == nil {
		return Ride{}, nil
	}
	return env.Ride.toRide()
}

func (c *Client) listRides(ctx context.Context, path string) ([]Ride, error) {
	var env rideEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	out := make([]Ride, 0, len(env.Rides))
	for _, w := range env.Rides {
		r, err := w.toRide()
		if err != nil {
			return nil, fmt.Errorf("ride %s: %w", w.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ride api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ride api %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{StatusCode: resp.StatusCode, Message: backendMessage(raw, resp.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ride api %s %s: decode: %w", method, path, err)
	}
	return nil
}

func backendMessage(raw []byte, fallback string) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fallback
}
