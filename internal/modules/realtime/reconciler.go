// README: Folds pushed ride status changes into the local ride book.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"myride/internal/logging"
	"myride/internal/modules/ride"
	"myride/internal/observability"
	"myride/internal/types"
)

const (
	OutcomeIgnored ride.Outcome = "ignored"
	OutcomeInvalid ride.Outcome = "invalid"
)

// Listener is told about every change that was applied to the book.
type Listener func(r ride.Ride)

// Reconciler keeps a ride.Book in step with a change feed. It holds at most
// one live subscription per scope. Once closed it refuses new subscriptions.
type Reconciler struct {
	feed     Feed
	book     *ride.Book
	logger   *slog.Logger
	listener Listener

	mu   sync.Mutex
	subs map[Scope]Subscription
	// scopes being dialed; true once Stop or Close asked for them to go away
	pending map[Scope]bool
	closed  bool
}

func NewReconciler(feed Feed, book *ride.Book, logger *slog.Logger, listener Listener) *Reconciler {
	return &Reconciler{
		feed:     feed,
		book:     book,
		logger:   logging.OrDefault(logger),
		listener: listener,
		subs:     make(map[Scope]Subscription),
		pending:  make(map[Scope]bool),
	}
}

// Start subscribes to scope. Subscribing twice to a live scope fails with
// ErrAlreadySubscribed, and subscribing after Close fails with ErrClosed.
// The feed is dialed without holding the lock, so Stop and Close never wait
// on a slow handshake.
func (r *Reconciler) Start(ctx context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if _, ok := r.subs[scope]; ok {
		r.mu.Unlock()
		return ErrAlreadySubscribed
	}
	if _, ok := r.pending[scope]; ok {
		r.mu.Unlock()
		return ErrAlreadySubscribed
	}
	r.pending[scope] = false
	r.mu.Unlock()

	sub, err := r.feed.Subscribe(ctx, scope, func(ev ChangeEvent) { r.Handle(ev) })

	r.mu.Lock()
	cancelled := r.pending[scope]
	delete(r.pending, scope)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if cancelled || r.closed {
		r.mu.Unlock()
		sub.Close()
		r.logger.Info("feed subscription dropped before it went live", "table", scope.Table, "filter", scope.Filter())
		return ErrClosed
	}
	r.subs[scope] = sub
	r.mu.Unlock()
	r.logger.Info("feed subscribed", "table", scope.Table, "filter", scope.Filter())
	return nil
}

// Stop tears down the subscription for scope. A subscription still being
// dialed is closed as soon as it lands.
func (r *Reconciler) Stop(scope Scope) error {
	r.mu.Lock()
	if _, ok := r.pending[scope]; ok {
		r.pending[scope] = true
		r.mu.Unlock()
		return nil
	}
	sub, ok := r.subs[scope]
	delete(r.subs, scope)
	r.mu.Unlock()
	if !ok {
		return ErrNotSubscribed
	}
	r.logger.Info("feed unsubscribed", "table", scope.Table, "filter", scope.Filter())
	return sub.Close()
}

// Active lists the live scopes.
func (r *Reconciler) Active() []Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scope, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Close stops every subscription and refuses later Starts.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	r.closed = true
	subs := r.subs
	r.subs = make(map[Scope]Subscription)
	r.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle folds one event into the book and reports what happened to it.
func (r *Reconciler) Handle(ev ChangeEvent) ride.Outcome {
	out := r.handle(ev)
	observability.FeedEvents.WithLabelValues(string(out)).Inc()
	return out
}

func (r *Reconciler) handle(ev ChangeEvent) ride.Outcome {
	if ev.Type != EventUpdate {
		return OutcomeIgnored
	}
	raw, ok := ev.New.String("status")
	if !ok {
		return OutcomeIgnored
	}
	id, ok := ev.New.String("id")
	if !ok || id == "" {
		r.logger.Warn("feed event without ride id", "table", ev.Table)
		return OutcomeInvalid
	}
	status, err := ride.ParseStatus(raw)
	if err != nil {
		r.logger.Warn("feed event with unknown status", "ride_id", id, "status", raw)
		return OutcomeInvalid
	}

	next := ride.Ride{ID: types.ID(id), Status: status}
	if d, ok := ev.New.String("driver_id"); ok && d != "" {
		did := types.ID(d)
		next.DriverID = &did
	}
	if fare, ok := ev.New.Float("fare"); ok {
		next.Fare = fare
	}

	updated, out := r.book.Apply(next)
	switch out {
	case ride.OutcomeApplied:
		r.logger.Info("ride status pushed", "ride_id", id, "status", updated.Status)
		if r.listener != nil {
			r.listener(updated)
		}
	case ride.OutcomeUnknown:
		r.logger.Info("feed event for unknown ride dropped", "ride_id", id, "status", status)
	default:
		r.logger.Debug("feed event not applied", "ride_id", id, "status", status, "current", updated.Status, "outcome", out)
	}
	return out
}
