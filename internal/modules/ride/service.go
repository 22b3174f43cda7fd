// README: Ride service guards lifecycle transitions locally before calling the ride API.
package ride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"myride/internal/logging"
	"myride/internal/observability"
	"myride/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid ride transition")
	ErrNotFound          = errors.New("ride not found")
	ErrForbiddenActor    = errors.New("actor may not perform this transition")
	ErrActiveRide        = errors.New("driver already has an active ride")
	ErrBadRequest        = errors.New("bad request")
)

// BackendError is a rejection from the ride API. Message is shown to the user as-is.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ride api rejected request (%d): %s", e.StatusCode, e.Message)
}

// API is the ride backend.
type API interface {
	Accept(ctx context.Context, rideID, driverID types.ID) (Ride, error)
	UpdateStatus(ctx context.Context, rideID types.ID, status Status) (Ride, error)
	DriverRides(ctx context.Context, driverID types.ID) ([]Ride, error)
	RiderRides(ctx context.Context, riderID types.ID) ([]Ride, error)
}

// Service drives rides on behalf of one party (a rider or a driver).
// Transitions from the same party are serialized.
type Service struct {
	api     API
	book    *Book
	actor   Actor
	partyID types.ID
	logger  *slog.Logger

	txMu sync.Mutex
}

func NewService(api API, book *Book, actor Actor, partyID types.ID, logger *slog.Logger) *Service {
	if book == nil {
		book = NewBook()
	}
	return &Service{
		api:     api,
		book:    book,
		actor:   actor,
		partyID: partyID,
		logger:  logging.OrDefault(logger).With("actor", actor, "party_id", partyID),
	}
}

func (s *Service) Book() *Book       { return s.book }
func (s *Service) Actor() Actor      { return s.actor }
func (s *Service) PartyID() types.ID { return s.partyID }

func (s *Service) Accept(ctx context.Context, rideID types.ID) (Ride, error) {
	return s.Transition(ctx, rideID, EventAccept)
}

func (s *Service) Start(ctx context.Context, rideID types.ID) (Ride, error) {
	return s.Transition(ctx, rideID, EventStart)
}

func (s *Service) Complete(ctx context.Context, rideID types.ID) (Ride, error) {
	return s.Transition(ctx, rideID, EventComplete)
}

func (s *Service) Cancel(ctx context.Context, rideID types.ID) (Ride, error) {
	return s.Transition(ctx, rideID, EventCancel)
}

// Transition fires ev on the ride. The local guard runs first and an illegal
// request never reaches the network. On success the echoed ride is folded
// into the book.
func (s *Service) Transition(ctx context.Context, rideID types.ID, ev Event) (Ride, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	to, err := s.guard(rideID, ev)
	if err != nil {
		observability.RideTransitions.WithLabelValues(string(ev), "rejected").Inc()
		return Ride{}, err
	}

	var echoed Ride
	if ev == EventAccept {
		echoed, err = s.api.Accept(ctx, rideID, s.partyID)
	} else {
		echoed, err = s.api.UpdateStatus(ctx, rideID, to)
	}
	if err != nil {
		observability.RideTransitions.WithLabelValues(string(ev), "backend_error").Inc()
		s.logger.Warn("ride transition failed", "ride_id", rideID, "event", ev, "error", err)
		return Ride{}, err
	}

	if echoed.Status == "" {
		// nothing echoed: the listing is the backend's word on the status
		return s.reload(ctx, rideID, ev)
	}
	if echoed.ID == "" {
		echoed.ID = rideID
	}
	if ev == EventAccept && echoed.DriverID == nil {
		d := s.partyID
		echoed.DriverID = &d
	}
	r, out := s.book.Apply(echoed)
	observability.RideTransitions.WithLabelValues(string(ev), string(out)).Inc()
	s.logger.Info("ride transition", "ride_id", rideID, "event", ev, "status", r.Status, "outcome", out)
	return r, nil
}

func (s *Service) reload(ctx context.Context, rideID types.ID, ev Event) (Ride, error) {
	if _, err := s.Refresh(ctx); err != nil {
		observability.RideTransitions.WithLabelValues(string(ev), "backend_error").Inc()
		return Ride{}, fmt.Errorf("reload after %s: %w", ev, err)
	}
	r, ok := s.book.Get(rideID)
	if !ok {
		return Ride{}, ErrNotFound
	}
	observability.RideTransitions.WithLabelValues(string(ev), "reloaded").Inc()
	s.logger.Info("ride transition without echo, reloaded", "ride_id", rideID, "event", ev, "status", r.Status)
	return r, nil
}

func (s *Service) guard(rideID types.ID, ev Event) (Status, error) {
	to, ok := Target(ev)
	if !ok {
		return "", fmt.Errorf("%w: unknown event %q", ErrBadRequest, ev)
	}
	r, ok := s.book.Get(rideID)
	if !ok {
		return "", ErrNotFound
	}
	if !Permits(ev, s.actor) || !s.owns(r, ev) {
		return "", ErrForbiddenActor
	}
	if !CanTransition(r.Status, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	if ev == EventAccept {
		if active, busy := s.book.ActiveFor(s.partyID, rideID); busy {
			return "", fmt.Errorf("%w: %s", ErrActiveRide, active.ID)
		}
	}
	return to, nil
}

func (s *Service) owns(r Ride, ev Event) bool {
	switch s.actor {
	case ActorRider:
		return r.RiderID == s.partyID
	case ActorDriver:
		if ev == EventAccept {
			return r.DriverID == nil || *r.DriverID == s.partyID
		}
		return r.DriverID != nil && *r.DriverID == s.partyID
	}
	return false
}

// Refresh reloads the party's rides from the ride API into the book.
func (s *Service) Refresh(ctx context.Context) ([]Ride, error) {
	var (
		rides []Ride
		err   error
	)
	if s.actor == ActorDriver {
		rides, err = s.api.DriverRides(ctx, s.partyID)
	} else {
		rides, err = s.api.RiderRides(ctx, s.partyID)
	}
	if err != nil {
		return nil, err
	}
	s.book.Load(rides)
	return s.book.List(), nil
}
