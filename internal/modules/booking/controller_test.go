package booking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"myride/internal/config"
	"myride/internal/maps"
	"myride/internal/modules/location"
	"myride/internal/modules/matching"
	"myride/internal/modules/payment"
	"myride/internal/modules/pricing"
	"myride/internal/types"
)

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) location.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) flush() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type staticGeocoder map[string][]maps.Place

func (g staticGeocoder) Lookup(_ context.Context, req maps.GeocodeRequest) ([]maps.Place, error) {
	return g[req.Text], nil
}

type straightRouter struct {
	err error
}

func (r straightRouter) Route(_ context.Context, req maps.RouteRequest) ([]types.Point, error) {
	if r.err != nil {
		return nil, r.err
	}
	a, b := req.Waypoints[0], req.Waypoints[1]
	mid := types.Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
	return []types.Point{a, mid, b}, nil
}

type recordingGateway struct {
	mu   sync.Mutex
	reqs []payment.Request
	err  error
}

func (g *recordingGateway) CreateCheckout(_ context.Context, req payment.Request) (payment.Handoff, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return payment.Handoff{}, g.err
	}
	return payment.Handoff{URL: "https://pay.example/cs_1", SessionID: "cs_1"}, nil
}

var (
	parkStreet = types.Point{Lat: 22.50, Lng: 88.30}
	saltLake   = types.Point{Lat: 22.60, Lng: 88.40}
)

type bookingFixture struct {
	clock   *manualClock
	gateway *recordingGateway
	ctrl    *Controller
}

func newBookingFixture(t *testing.T, router maps.Router) *bookingFixture {
	t.Helper()
	f := &bookingFixture{clock: &manualClock{}, gateway: &recordingGateway{}}
	geo := staticGeocoder{
		"Park Street": {{Label: "Park Street, Kolkata", Point: parkStreet}},
		"Salt Lake":   {{Label: "Salt Lake Sector V", Point: saltLake}},
	}
	f.ctrl = NewController("s-1", Deps{
		Geocoder:  geo,
		Router:    router,
		Matcher:   matching.NewMatcher(pricing.DefaultCatalog(), config.DefaultMatching()),
		Gateway:   f.gateway,
		Search:    config.SearchConfig{Debounce: 300 * time.Millisecond, Limit: 6, Lang: "en"},
		AfterFunc: f.clock.AfterFunc,
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *bookingFixture) resolve(t *testing.T, role location.Role, text string) {
	t.Helper()
	if err := f.ctrl.TextChanged(role, text); err != nil {
		t.Fatalf("TextChanged(%s) error = %v", role, err)
	}
	f.clock.flush()
	eventually(t, func() bool { return len(f.ctrl.Suggestions(role)) > 0 })
	if _, err := f.ctrl.Select(role, 0); err != nil {
		t.Fatalf("Select(%s) error = %v", role, err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func offerNames(offers []Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.Tier.Name
	}
	return out
}

func TestController_DefaultOffersBeforeRoute(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	offers := f.ctrl.EligibleOffers()
	want := []string{"MyRide AutoRickshaw", "MyRide Taxi (4-Seater)", "MyRide Taxi (6-Seater)", "MyRide Reservation Car"}
	got := offerNames(offers)
	if len(got) != len(want) {
		t.Fatalf("offers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("offers = %v, want %v", got, want)
		}
		// no distance yet: every fare sits on its floor
		if offers[i].Fare != pricing.RuleFor(want[i]).Floor {
			t.Errorf("%s fare = %v, want floor", want[i], offers[i].Fare)
		}
	}
}

func TestController_EndToEndBooking(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.resolve(t, location.RolePickup, "Park Street")
	f.resolve(t, location.RoleDrop, "Salt Lake")
	f.ctrl.WaitRoute()

	snap := f.ctrl.Snapshot()
	if snap.RouteLoading {
		t.Fatal("route still loading after WaitRoute")
	}
	if len(snap.Layer.Polyline) != 3 || len(snap.Layer.Markers) != 2 {
		t.Fatalf("layer = %+v", snap.Layer)
	}
	if math.Abs(snap.DistanceKm-15.136) > 0.01 {
		t.Fatalf("distance = %v, want ~15.136", snap.DistanceKm)
	}

	want := []string{
		"MyRide Taxi (4-Seater)",
		"MyRide Taxi (6-Seater)",
		"MyRide Reservation Car",
		"MyRide Assist (Handicap Accessible)",
		"MyRide Share",
		"MyRide Traveller (14-16 Seater)",
	}
	got := offerNames(snap.Offers)
	if len(got) != len(want) {
		t.Fatalf("offers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("offers = %v, want %v", got, want)
		}
	}

	o, err := f.ctrl.SelectTier("MyRide Taxi (4-Seater)")
	if err != nil {
		t.Fatalf("SelectTier() error = %v", err)
	}
	if math.Abs(o.Fare-snap.DistanceKm*45) > 1e-9 {
		t.Fatalf("fare = %v, want %v", o.Fare, snap.DistanceKm*45)
	}

	h, err := f.ctrl.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if h.URL == "" {
		t.Fatal("empty handoff url")
	}
	if len(f.gateway.reqs) != 1 {
		t.Fatalf("gateway calls = %d", len(f.gateway.reqs))
	}
	req := f.gateway.reqs[0]
	if req.Service != "MyRide Taxi (4-Seater)" || req.Amount.Amount != int64(math.Round(o.Fare*100)) || req.Amount.Currency != "inr" {
		t.Fatalf("checkout request = %+v", req)
	}

	after := f.ctrl.Snapshot()
	if after.Pickup.Point != nil || after.Drop.Point != nil || after.Selected != nil || after.Pickup.Text != "" {
		t.Fatalf("session not reset after confirm: %+v", after)
	}
}

func TestController_ConfirmRequiresSelectionAndLocations(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	if _, err := f.ctrl.Confirm(context.Background()); !errors.Is(err, ErrNoOfferSelected) {
		t.Fatalf("Confirm() error = %v, want ErrNoOfferSelected", err)
	}
	if _, err := f.ctrl.SelectTier("MyRide Bike"); err != nil {
		t.Fatalf("SelectTier() error = %v", err)
	}
	if _, err := f.ctrl.Confirm(context.Background()); !errors.Is(err, ErrLocationsRequired) {
		t.Fatalf("Confirm() error = %v, want ErrLocationsRequired", err)
	}
	if len(f.gateway.reqs) != 0 {
		t.Fatalf("gateway called %d times", len(f.gateway.reqs))
	}
}

func TestController_RejectedCheckoutKeepsSession(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.gateway.err = &payment.RejectedError{Provider: "stripe", Message: "card declined"}
	f.resolve(t, location.RolePickup, "Park Street")
	f.resolve(t, location.RoleDrop, "Salt Lake")
	f.ctrl.WaitRoute()
	if _, err := f.ctrl.SelectTier("MyRide Share"); err != nil {
		t.Fatal(err)
	}

	_, err := f.ctrl.Confirm(context.Background())
	var rejected *payment.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Confirm() error = %v, want RejectedError", err)
	}
	snap := f.ctrl.Snapshot()
	if snap.Selected == nil || snap.Pickup.Point == nil || snap.Drop.Point == nil {
		t.Fatalf("session changed after rejection: %+v", snap)
	}
}

func TestController_SelectTierUnknown(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	if _, err := f.ctrl.SelectTier("Hovercraft"); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("SelectTier() error = %v, want ErrUnknownTier", err)
	}
}

func TestController_SelectAnyCatalogTier(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.resolve(t, location.RolePickup, "Park Street")
	f.resolve(t, location.RoleDrop, "Salt Lake")
	f.ctrl.WaitRoute()

	// Bike is outside the trip window but still selectable from the catalog.
	o, err := f.ctrl.SelectTier("MyRide Bike")
	if err != nil {
		t.Fatalf("SelectTier() error = %v", err)
	}
	if math.Abs(o.Fare-o.DistanceKm*12) > 1e-9 {
		t.Fatalf("bike fare = %v", o.Fare)
	}
	if n := len(f.ctrl.CatalogOffers()); n != len(pricing.DefaultTiers()) {
		t.Fatalf("catalog offers = %d", n)
	}
}

func TestController_EditingResolvedEndpointClearsRoute(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.resolve(t, location.RolePickup, "Park Street")
	f.resolve(t, location.RoleDrop, "Salt Lake")
	f.ctrl.WaitRoute()

	if err := f.ctrl.TextChanged(location.RoleDrop, "Salt Lak"); err != nil {
		t.Fatal(err)
	}
	snap := f.ctrl.Snapshot()
	if snap.Drop.Point != nil {
		t.Fatal("drop still resolved after edit")
	}
	if len(snap.Layer.Polyline) != 0 || len(snap.Layer.Markers) != 0 {
		t.Fatalf("layer not cleared: %+v", snap.Layer)
	}
	if len(snap.Offers) != 4 {
		t.Fatalf("offers = %v, want default subset", offerNames(snap.Offers))
	}
}

func TestController_RouteFailureAddsNotice(t *testing.T) {
	f := newBookingFixture(t, straightRouter{err: maps.ErrNoRoute})
	f.resolve(t, location.RolePickup, "Park Street")
	f.resolve(t, location.RoleDrop, "Salt Lake")
	f.ctrl.WaitRoute()

	snap := f.ctrl.Snapshot()
	if len(snap.Notices) != 1 || snap.Notices[0].Source != "route" {
		t.Fatalf("notices = %+v", snap.Notices)
	}
	if len(snap.Layer.Polyline) != 0 {
		t.Fatal("polyline drawn after failure")
	}
}

func TestController_UnknownRole(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	if err := f.ctrl.TextChanged("via", "x"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("TextChanged() error = %v, want ErrUnknownRole", err)
	}
}

func TestController_ClosedRejectsMutations(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.ctrl.Close()
	if err := f.ctrl.TextChanged(location.RolePickup, "Park"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("TextChanged() error = %v, want ErrSessionClosed", err)
	}
}

func TestController_NoticesAreBounded(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})
	f.ctrl.mu.Lock()
	for i := 0; i < maxNotices+5; i++ {
		f.ctrl.addNotice(types.Notice{Source: "route", Message: "x"})
	}
	f.ctrl.mu.Unlock()
	if n := len(f.ctrl.Snapshot().Notices); n != maxNotices {
		t.Fatalf("notices = %d, want %d", n, maxNotices)
	}
}

func TestController_IDStableAcrossConcurrentReset(t *testing.T) {
	f := newBookingFixture(t, straightRouter{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			f.ctrl.Reset()
		}
	}()
	for i := 0; i < 100; i++ {
		if id := f.ctrl.ID(); id != "s-1" {
			t.Fatalf("ID() = %q during reset", id)
		}
	}
	wg.Wait()
	if snap := f.ctrl.Snapshot(); snap.ID != "s-1" {
		t.Fatalf("snapshot id = %q after reset", snap.ID)
	}
}
