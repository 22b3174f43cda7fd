// README: Booking controller composes search, route sync, matching and pricing for one session.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"myride/internal/config"
	"myride/internal/logging"
	"myride/internal/maps"
	"myride/internal/modules/location"
	"myride/internal/modules/matching"
	"myride/internal/modules/payment"
	"myride/internal/modules/pricing"
	"myride/internal/modules/route"
	"myride/internal/types"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Geocoder      maps.Geocoder
	Router        maps.Router
	Matcher       *matching.Matcher
	Gateway       payment.Gateway
	Search        config.SearchConfig
	LookupTimeout time.Duration
	Currency      string
	// AfterFunc overrides the debounce scheduler; nil uses time.AfterFunc.
	AfterFunc location.AfterFunc
	Logger    *slog.Logger
	Now       func() time.Time
}

// Controller owns one booking session. Every mutation, including the async
// completions of the searcher and the route syncer, runs under mu; network
// I/O runs outside it.
type Controller struct {
	id       types.ID
	mu       sync.Mutex
	session  Session
	closed   bool
	searcher *location.Searcher
	syncer   *route.Syncer
	layer    *route.Layer
	matcher  *matching.Matcher
	gateway  payment.Gateway
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

func NewController(id types.ID, deps Deps) *Controller {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	matcher := deps.Matcher
	if matcher == nil {
		matcher = matching.NewMatcher(nil, config.DefaultMatching())
	}
	c := &Controller{
		id:       id,
		session:  Session{ID: id, UpdatedAt: now()},
		layer:    &route.Layer{},
		matcher:  matcher,
		gateway:  deps.Gateway,
		currency: deps.Currency,
		logger:   logging.OrDefault(deps.Logger).With("session_id", id),
		now:      now,
	}
	if c.currency == "" {
		c.currency = types.DefaultCurrency
	}
	c.searcher = location.NewSearcher(deps.Geocoder, location.SearchOptions{
		Debounce:      deps.Search.Debounce,
		Limit:         deps.Search.Limit,
		Lang:          deps.Search.Lang,
		LookupTimeout: deps.LookupTimeout,
		Lock:          &c.mu,
		AfterFunc:     deps.AfterFunc,
		Logger:        c.logger,
	}, location.Hooks{
		OnResolved:      c.onResolved,
		OnClearResolved: c.onClearResolved,
		OnNotice:        c.addNotice,
	})
	c.syncer = route.NewSyncer(deps.Router, matcher, c.layer, route.Options{
		Lock:          &c.mu,
		LookupTimeout: deps.LookupTimeout,
		Logger:        c.logger,
	}, route.Hooks{
		OnTiers:  c.onTiers,
		OnNotice: c.addNotice,
	})
	return c
}

// ID never changes, so it is safe to read without the lock.
func (c *Controller) ID() types.ID {
	return c.id
}

// hooks below run with c.mu held

func (c *Controller) onResolved(role location.Role, p types.Point) {
	pt := p
	if role == location.RolePickup {
		c.session.Pickup = &pt
	} else {
		c.session.Drop = &pt
	}
	c.syncer.Sync(c.session.Pickup, c.session.Drop)
}

func (c *Controller) onClearResolved(role location.Role) {
	if role == location.RolePickup {
		c.session.Pickup = nil
	} else {
		c.session.Drop = nil
	}
	c.syncer.Sync(c.session.Pickup, c.session.Drop)
}

func (c *Controller) onTiers(tiers []pricing.Tier, km float64) {
	c.session.EligibleTiers = tiers
	c.session.DistanceKm = km
	c.session.Route = c.layer.Snapshot().Polyline
	c.session.UpdatedAt = c.now()
}

func (c *Controller) addNotice(n types.Notice) {
	c.session.Notices = append(c.session.Notices, n)
	if len(c.session.Notices) > maxNotices {
		c.session.Notices = c.session.Notices[len(c.session.Notices)-maxNotices:]
	}
}

func (c *Controller) lock() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.session.UpdatedAt = c.now()
	return nil
}

// TextChanged forwards a keystroke for role.
func (c *Controller) TextChanged(role location.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.searcher.TextChanged(role, text)
	c.syncTexts()
	return nil
}

// Select resolves role to the index-th current suggestion.
func (c *Controller) Select(role location.Role, index int) (location.Suggestion, error) {
	if !role.Valid() {
		return location.Suggestion{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := c.lock(); err != nil {
		return location.Suggestion{}, err
	}
	defer c.mu.Unlock()
	sg, err := c.searcher.SelectIndex(role, index)
	c.syncTexts()
	return sg, err
}

// Dismiss hides the suggestion list for role.
func (c *Controller) Dismiss(role location.Role) {
	if c.lock() != nil {
		return
	}
	defer c.mu.Unlock()
	c.searcher.Dismiss(role)
}

func (c *Controller) syncTexts() {
	c.session.PickupText = c.searcher.Text(location.RolePickup)
	c.session.DropText = c.searcher.Text(location.RoleDrop)
}

func (c *Controller) Suggestions(role location.Role) []location.Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searcher.Suggestions(role)
}

func (c *Controller) distance() float64 {
	return location.DistanceKm(c.session.Pickup, c.session.Drop)
}

func (c *Controller) price(tiers []pricing.Tier) []Offer {
	km := c.distance()
	eta := location.EtaMinutes(km, location.DefaultSpeedKmh)
	out := make([]Offer, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, c.offer(t, km, eta))
	}
	return out
}

func (c *Controller) offer(t pricing.Tier, km, eta float64) Offer {
	fare := pricing.Price(t, km)
	return Offer{
		Tier:       t,
		Fare:       fare,
		Amount:     types.FromMajor(fare, c.currency),
		DistanceKm: km,
		EtaMinutes: eta,
	}
}

func (c *Controller) eligibleOffers() []Offer {
	tiers := c.session.EligibleTiers
	if len(tiers) == 0 {
		tiers = c.matcher.Defaults()
	}
	return c.price(tiers)
}

// EligibleOffers prices the eligible tiers, or the default subset while no
// route has produced any.
func (c *Controller) EligibleOffers() []Offer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eligibleOffers()
}

// CatalogOffers prices every tier for manual browsing.
func (c *Controller) CatalogOffers() []Offer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.price(c.matcher.Catalog())
}

// SelectTier chooses a tier by name from the catalog.
func (c *Controller) SelectTier(name string) (Offer, error) {
	if err := c.lock(); err != nil {
		return Offer{}, err
	}
	defer c.mu.Unlock()
	for _, t := range c.matcher.Catalog() {
		if t.Name == name {
			tier := t
			c.session.SelectedTier = &tier
			km := c.distance()
			return c.offer(tier, km, location.EtaMinutes(km, location.DefaultSpeedKmh)), nil
		}
	}
	return Offer{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
}

func (c *Controller) selectedOffer() (Offer, bool) {
	if c.session.SelectedTier == nil {
		return Offer{}, false
	}
	km := c.distance()
	return c.offer(*c.session.SelectedTier, km, location.EtaMinutes(km, location.DefaultSpeedKmh)), true
}

func (c *Controller) SelectedOffer() (Offer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedOffer()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		ID: c.id,
		Pickup: EndpointView{
			Text:        c.searcher.Text(location.RolePickup),
			Point:       c.session.Pickup,
			Suggestions: c.searcher.Suggestions(location.RolePickup),
		},
		Drop: EndpointView{
			Text:        c.searcher.Text(location.RoleDrop),
			Point:       c.session.Drop,
			Suggestions: c.searcher.Suggestions(location.RoleDrop),
		},
		Layer:        c.layer.Snapshot(),
		RouteLoading: c.syncer.Loading(),
		DistanceKm:   c.distance(),
		Offers:       c.eligibleOffers(),
		Notices:      append([]types.Notice(nil), c.session.Notices...),
		UpdatedAt:    c.session.UpdatedAt,
	}
	if o, ok := c.selectedOffer(); ok {
		snap.Selected = &o
	}
	return snap
}

// Confirm hands the selected offer to the payment gateway and resets the
// session on success. A rejection leaves the session as it was.
func (c *Controller) Confirm(ctx context.Context) (payment.Handoff, error) {
	if err := c.lock(); err != nil {
		return payment.Handoff{}, err
	}
	o, ok := c.selectedOffer()
	both := c.session.Pickup != nil && c.session.Drop != nil
	c.mu.Unlock()

	if !ok {
		return payment.Handoff{}, ErrNoOfferSelected
	}
	if !both {
		return payment.Handoff{}, ErrLocationsRequired
	}
	if c.gateway == nil {
		return payment.Handoff{}, fmt.Errorf("booking: no payment gateway configured")
	}

	h, err := c.gateway.CreateCheckout(ctx, payment.Request{Service: o.Tier.Name, Amount: o.Amount})
	if err != nil {
		c.logger.Warn("checkout failed", "tier", o.Tier.Name, "amount", o.Amount.Amount, "error", err)
		return payment.Handoff{}, err
	}
	c.logger.Info("checkout created", "tier", o.Tier.Name, "fare", o.Amount.Major(), "currency", o.Amount.Currency, "checkout_session", h.SessionID)
	c.Reset()
	return h, nil
}

// Reset returns the session to its initial state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searcher.Reset()
	c.syncer.Reset()
	c.session = Session{ID: c.id, UpdatedAt: c.now()}
}

// LastActive is the time of the last mutation.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.UpdatedAt
}

// Close stops timers and abandons in-flight lookups.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.searcher.Close()
	c.syncer.Close()
	c.mu.Unlock()
	c.syncer.Wait()
}

// WaitRoute blocks until every issued route request has been applied or
// dropped.
func (c *Controller) WaitRoute() {
	c.syncer.Wait()
}
