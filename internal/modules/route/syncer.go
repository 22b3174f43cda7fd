// README: Keeps the drawn route and the eligible tiers consistent with the resolved pickup and drop.
package route

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"myride/internal/logging"
	"myride/internal/maps"
	"myride/internal/modules/location"
	"myride/internal/modules/pricing"
	"myride/internal/observability"
	"myride/internal/types"
)

// TierMatcher maps a trip distance to the eligible tiers.
type TierMatcher interface {
	Match(km float64) []pricing.Tier
}

type Hooks struct {
	OnTiers  func(tiers []pricing.Tier, distanceKm float64)
	OnNotice func(n types.Notice)
}

type Options struct {
	// Lock is shared with the owning session. Sync and Close expect the
	// caller to hold it; routing completions take it themselves.
	Lock          sync.Locker
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

type pair [2]types.Point

// Syncer issues one routing request per distinct (pickup, drop) pair. A
// response is applied only while that pair is still the current one.
type Syncer struct {
	router  maps.Router
	matcher TierMatcher
	canvas  Canvas
	hooks   Hooks
	opts    Options
	logger  *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	current   *pair
	requested *pair
	loading   bool
	inflight  sync.WaitGroup
}

func NewSyncer(router maps.Router, matcher TierMatcher, canvas Canvas, opts Options, hooks Hooks) *Syncer {
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		router:  router,
		matcher: matcher,
		canvas:  canvas,
		hooks:   hooks,
		opts:    opts,
		logger:  logging.OrDefault(opts.Logger),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Sync reacts to a change of either endpoint. With both resolved and a new
// pair it clears the canvas and requests a route; otherwise it clears the
// canvas and the eligible tiers.
func (s *Syncer) Sync(pickup, drop *types.Point) {
	if s.closed {
		return
	}
	if pickup == nil || drop == nil {
		s.current = nil
		s.requested = nil
		s.loading = false
		s.clear()
		return
	}
	p := pair{*pickup, *drop}
	s.current = &p
	if s.requested != nil && *s.requested == p {
		return
	}
	s.requested = &p
	s.loading = true
	s.clear()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
		defer cancel()
		path, err := s.router.Route(ctx, maps.RouteRequest{Waypoints: p, Mode: maps.ModeDrive})

		s.opts.Lock.Lock()
		defer s.opts.Lock.Unlock()
		s.apply(p, path, err)
	}()
}

// Loading reports whether a route for the current pair is still outstanding.
func (s *Syncer) Loading() bool {
	return s.loading
}

// Reset forgets the current pair and clears the canvas.
func (s *Syncer) Reset() {
	s.current = nil
	s.requested = nil
	s.loading = false
	s.canvas.Clear()
}

// Close abandons in-flight requests.
func (s *Syncer) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// Wait blocks until every issued request has completed. The caller must not
// hold the lock.
func (s *Syncer) Wait() {
	s.inflight.Wait()
}

func (s *Syncer) clear() {
	s.canvas.Clear()
	if s.hooks.OnTiers != nil {
		s.hooks.OnTiers(nil, 0)
	}
}

func (s *Syncer) apply(p pair, path []types.Point, err error) {
	if s.closed {
		return
	}
	if s.current == nil || *s.current != p {
		observability.StaleResponses.WithLabelValues("route").Inc()
		s.logger.Debug("dropping stale route", "pickup", p[0].String(), "drop", p[1].String())
		return
	}
	s.loading = false
	if err != nil {
		s.requested = nil
		s.clear()
		observability.LookupFailures.WithLabelValues("route").Inc()
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("route lookup failed", "pickup", p[0].String(), "drop", p[1].String(), "error", err)
		if s.hooks.OnNotice != nil {
			s.hooks.OnNotice(types.Notice{
				Source:  "route",
				Message: "Could not find a route between these locations",
				At:      time.Now(),
			})
		}
		return
	}

	s.canvas.Draw(p[0], p[1], path)
	km := location.DistanceKm(&p[0], &p[1])
	if s.hooks.OnTiers != nil {
		s.hooks.OnTiers(s.matcher.Match(km), km)
	}
}
