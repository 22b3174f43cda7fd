// README: Booking session state, priced offers and the snapshot served to the planning screen.
package booking

import (
	"errors"
	"time"

	"myride/internal/modules/location"
	"myride/internal/modules/pricing"
	"myride/internal/modules/route"
	"myride/internal/types"
)

var (
	ErrNoOfferSelected   = errors.New("no offer selected")
	ErrLocationsRequired = errors.New("pickup and drop must both be resolved")
	ErrUnknownTier       = errors.New("unknown vehicle tier")
	ErrUnknownRole       = errors.New("unknown location role")
	ErrSessionNotFound   = errors.New("booking session not found")
	ErrSessionClosed     = errors.New("booking session closed")
)

const maxNotices = 10

// Offer is a tier priced for the current trip.
type Offer struct {
	Tier       pricing.Tier `json:"tier"`
	Fare       float64      `json:"fare"`
	Amount     types.Money  `json:"amount"`
	DistanceKm float64      `json:"distance_km"`
	EtaMinutes float64      `json:"eta_minutes"`
}

// Session is the state of one trip-planning screen. It is owned by a
// Controller and only touched under its lock.
type Session struct {
	ID            types.ID
	PickupText    string
	DropText      string
	Pickup        *types.Point
	Drop          *types.Point
	Route         []types.Point
	DistanceKm    float64
	EligibleTiers []pricing.Tier
	SelectedTier  *pricing.Tier
	Notices       []types.Notice
	UpdatedAt     time.Time
}

type EndpointView struct {
	Text        string                `json:"text"`
	Point       *types.Point          `json:"point,omitempty"`
	Suggestions []location.Suggestion `json:"suggestions"`
}

// Snapshot is a consistent copy of the session for presentation.
type Snapshot struct {
	ID           types.ID            `json:"id"`
	Pickup       EndpointView        `json:"pickup"`
	Drop         EndpointView        `json:"drop"`
	Layer        route.LayerSnapshot `json:"layer"`
	RouteLoading bool                `json:"route_loading"`
	DistanceKm   float64             `json:"distance_km"`
	Offers       []Offer             `json:"offers"`
	Selected     *Offer              `json:"selected,omitempty"`
	Notices      []types.Notice      `json:"notices"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
