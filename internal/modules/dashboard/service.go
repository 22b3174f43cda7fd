// README: Ride dashboards per rider or driver: initial load, live status feed and toast notices.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"myride/internal/logging"
	"myride/internal/modules/realtime"
	"myride/internal/modules/ride"
	"myride/internal/types"
)

var ErrNotMounted = errors.New("dashboard not mounted")

const maxNotices = 20

// Key identifies one party's dashboard.
type Key struct {
	Actor ride.Actor
	Party types.ID
}

// View is what a dashboard shows.
type View struct {
	Rides   []ride.Ride    `json:"rides"`
	Summary ride.Summary   `json:"summary"`
	Live    bool           `json:"live"`
	Notices []types.Notice `json:"notices"`
}

type board struct {
	svc   *ride.Service
	rec   *realtime.Reconciler
	scope realtime.Scope

	mu      sync.Mutex
	live    bool
	notices []types.Notice
}

func (b *board) notify(r ride.Ride) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, types.Notice{
		Source:  "ride:" + string(r.ID),
		Message: fmt.Sprintf("Ride %s is now %s", r.ID, r.Status),
		At:      time.Now(),
	})
	if len(b.notices) > maxNotices {
		b.notices = b.notices[len(b.notices)-maxNotices:]
	}
}

// Publisher fans a ride change out to the feeds other processes read.
type Publisher interface {
	Publish(ctx context.Context, scope realtime.Scope, ev realtime.ChangeEvent) error
}

// Options configure a Service. Feed may be nil, in which case dashboards only
// change through Refresh and their own transitions. Publisher is set when the
// feed has no upstream producer of its own (redis).
type Options struct {
	API       ride.API
	Feed      realtime.Feed
	Publisher Publisher
	Table     string
	Logger    *slog.Logger
}

// Service owns the mounted dashboards.
type Service struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	boards map[Key]*board
}

func NewService(opts Options) *Service {
	if opts.Table == "" {
		opts.Table = "booking"
	}
	return &Service{
		opts:   opts,
		logger: logging.OrDefault(opts.Logger),
		boards: make(map[Key]*board),
	}
}

// ScopeFor is the feed scope of a party: rides where it is the driver or the rider.
func ScopeFor(table string, k Key) realtime.Scope {
	col := "user_id"
	if k.Actor == ride.ActorDriver {
		col = "driver_id"
	}
	return realtime.Scope{Table: table, Column: col, Value: string(k.Party)}
}

// Mount loads the party's rides and subscribes to their changes. Mounting an
// already mounted dashboard only refreshes it.
func (s *Service) Mount(ctx context.Context, k Key) (View, error) {
	if k.Actor != ride.ActorDriver && k.Actor != ride.ActorRider {
		return View{}, fmt.Errorf("%w: unknown actor %q", ride.ErrBadRequest, k.Actor)
	}
	if k.Party == "" {
		return View{}, fmt.Errorf("%w: party id is required", ride.ErrBadRequest)
	}

	s.mu.Lock()
	b, ok := s.boards[k]
	if !ok {
		b = &board{scope: ScopeFor(s.opts.Table, k)}
		b.svc = ride.NewService(s.opts.API, ride.NewBook(), k.Actor, k.Party, s.logger)
		if s.opts.Feed != nil {
			b.rec = realtime.NewReconciler(s.opts.Feed, b.svc.Book(), s.logger, b.notify)
		}
		s.boards[k] = b
	}
	s.mu.Unlock()

	if _, err := b.svc.Refresh(ctx); err != nil {
		return View{}, err
	}
	// unmounted while loading
	if s.get(k) != b {
		return View{}, ErrNotMounted
	}
	if b.rec != nil && !b.isLive() {
		// the subscription outlives the request
		err := b.rec.Start(context.WithoutCancel(ctx), b.scope)
		switch {
		case err == nil, errors.Is(err, realtime.ErrAlreadySubscribed):
			b.setLive()
		case errors.Is(err, realtime.ErrClosed):
			return View{}, ErrNotMounted
		default:
			s.logger.Warn("dashboard feed unavailable", "actor", k.Actor, "party", k.Party, "error", err)
		}
	}
	return b.view(), nil
}

// Unmount drops the dashboard and its subscription.
func (s *Service) Unmount(k Key) error {
	s.mu.Lock()
	b, ok := s.boards[k]
	delete(s.boards, k)
	s.mu.Unlock()
	if !ok {
		return ErrNotMounted
	}
	if b.rec != nil {
		return b.rec.Close()
	}
	return nil
}

// View returns the current dashboard, mounting it first if needed.
func (s *Service) View(ctx context.Context, k Key) (View, error) {
	if b := s.get(k); b != nil {
		return b.view(), nil
	}
	return s.Mount(ctx, k)
}

// Transition fires ev on a ride from the party's dashboard.
func (s *Service) Transition(ctx context.Context, k Key, rideID types.ID, ev ride.Event) (ride.Ride, error) {
	b := s.get(k)
	if b == nil {
		if _, err := s.Mount(ctx, k); err != nil {
			return ride.Ride{}, err
		}
		if b = s.get(k); b == nil {
			return ride.Ride{}, ErrNotMounted
		}
	}
	r, err := b.svc.Transition(ctx, rideID, ev)
	if err != nil {
		return ride.Ride{}, err
	}
	s.publish(ctx, r)
	return r, nil
}

// publish announces r on the driver's and the rider's scope. A failed publish
// only costs other dashboards their live update; they still catch up on refresh.
func (s *Service) publish(ctx context.Context, r ride.Ride) {
	if s.opts.Publisher == nil {
		return
	}
	row := realtime.Row{"id": string(r.ID), "status": string(r.Status)}
	var scopes []realtime.Scope
	if r.DriverID != nil {
		row["driver_id"] = string(*r.DriverID)
		scopes = append(scopes, ScopeFor(s.opts.Table, Key{Actor: ride.ActorDriver, Party: *r.DriverID}))
	}
	if r.RiderID != "" {
		row["user_id"] = string(r.RiderID)
		scopes = append(scopes, ScopeFor(s.opts.Table, Key{Actor: ride.ActorRider, Party: r.RiderID}))
	}
	if r.Fare > 0 {
		row["fare"] = r.Fare
	}
	ev := realtime.ChangeEvent{Table: s.opts.Table, Type: realtime.EventUpdate, New: row, CommitAt: time.Now()}
	for _, scope := range scopes {
		if err := s.opts.Publisher.Publish(ctx, scope, ev); err != nil {
			s.logger.Warn("ride change publish failed", "ride_id", r.ID, "filter", scope.Filter(), "error", err)
		}
	}
}

// Close unmounts every dashboard.
func (s *Service) Close() error {
	s.mu.Lock()
	boards := s.boards
	s.boards = make(map[Key]*board)
	s.mu.Unlock()

	var errs []error
	for _, b := range boards {
		if b.rec != nil {
			errs = append(errs, b.rec.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *Service) get(k Key) *board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boards[k]
}

func (b *board) view() View {
	rides := b.svc.Book().List()
	b.mu.Lock()
	defer b.mu.Unlock()
	return View{
		Rides:   rides,
		Summary: ride.Summarize(rides),
		Live:    b.live,
		Notices: append([]types.Notice(nil), b.notices...),
	}
}

func (b *board) isLive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func (b *board) setLive() {
	b.mu.Lock()
	b.live = true
	b.mu.Unlock()
}
