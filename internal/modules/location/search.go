// README: Debounced, fenced free-text location search for the pickup and drop inputs.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"myride/internal/logging"
	"myride/internal/maps"
	"myride/internal/observability"
	"myride/internal/types"
)

// Timer is the handle returned by an AfterFunc implementation.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is the production implementation.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Hooks connect the searcher to the session that owns it. They are invoked
// while the shared lock is held and must not acquire it.
type Hooks struct {
	OnResolved      func(role Role, p types.Point)
	OnClearResolved func(role Role)
	OnNotice        func(n types.Notice)
}

type SearchOptions struct {
	Debounce      time.Duration
	Limit         int
	Lang          string
	LookupTimeout time.Duration
	// Lock guards the searcher state. Exported methods expect the caller to
	// hold it; timer and lookup completions take it themselves.
	Lock      sync.Locker
	AfterFunc AfterFunc
	Logger    *slog.Logger
}

type roleState struct {
	text        string
	suggestions []Suggestion
	resolved    bool
	timer       Timer
}

// Searcher turns keystrokes into geocoding lookups. Lookups are debounced per
// role and a response is applied only while the text it was issued for is still
// the current text.
type Searcher struct {
	geocoder maps.Geocoder
	opts     SearchOptions
	hooks    Hooks
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	roles  map[Role]*roleState
}

func NewSearcher(geocoder maps.Geocoder, opts SearchOptions, hooks Hooks) *Searcher {
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Searcher{
		geocoder: geocoder,
		opts:     opts,
		hooks:    hooks,
		logger:   logging.OrDefault(opts.Logger),
		ctx:      ctx,
		cancel:   cancel,
		roles: map[Role]*roleState{
			RolePickup: {},
			RoleDrop:   {},
		},
	}
}

// TextChanged records a keystroke. It restarts the role's debounce timer, and
// an empty text clears the suggestions without a lookup. Editing a resolved
// role drops its coordinate.
func (s *Searcher) TextChanged(role Role, text string) {
	st := s.state(role)
	if st == nil || s.closed {
		return
	}
	s.stopTimer(st)
	st.text = text
	if st.resolved {
		st.resolved = false
		if s.hooks.OnClearResolved != nil {
			s.hooks.OnClearResolved(role)
		}
	}
	if text == "" {
		st.suggestions = nil
		return
	}
	st.timer = s.opts.AfterFunc(s.opts.Debounce, func() {
		s.opts.Lock.Lock()
		defer s.opts.Lock.Unlock()
		s.fire(role, text)
	})
}

// Select resolves role to sg. The visible text becomes the label and no new
// lookup is issued for it.
func (s *Searcher) Select(role Role, sg Suggestion) {
	st := s.state(role)
	if st == nil || s.closed {
		return
	}
	s.stopTimer(st)
	st.text = sg.Label
	st.suggestions = nil
	st.resolved = true
	if s.hooks.OnResolved != nil {
		s.hooks.OnResolved(role, sg.Point)
	}
}

// SelectIndex resolves role to the i-th entry of its current list.
func (s *Searcher) SelectIndex(role Role, i int) (Suggestion, error) {
	st := s.state(role)
	if st == nil || i < 0 || i >= len(st.suggestions) {
		return Suggestion{}, fmt.Errorf("%w: %s #%d", ErrUnknownSuggestion, role, i)
	}
	sg := st.suggestions[i]
	s.Select(role, sg)
	return sg, nil
}

// Dismiss hides the role's list without touching its text.
func (s *Searcher) Dismiss(role Role) {
	if st := s.state(role); st != nil {
		st.suggestions = nil
	}
}

func (s *Searcher) Text(role Role) string {
	if st := s.state(role); st != nil {
		return st.text
	}
	return ""
}

// Suggestions returns a copy of the role's current list.
func (s *Searcher) Suggestions(role Role) []Suggestion {
	st := s.state(role)
	if st == nil || len(st.suggestions) == 0 {
		return nil
	}
	out := make([]Suggestion, len(st.suggestions))
	copy(out, st.suggestions)
	return out
}

// Reset clears both roles and cancels their timers.
func (s *Searcher) Reset() {
	for _, st := range s.roles {
		s.stopTimer(st)
		*st = roleState{}
	}
}

// Close stops every timer and abandons in-flight lookups.
func (s *Searcher) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, st := range s.roles {
		s.stopTimer(st)
	}
	s.cancel()
}

func (s *Searcher) state(role Role) *roleState {
	return s.roles[role]
}

func (s *Searcher) stopTimer(st *roleState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// fire runs with the lock held.
func (s *Searcher) fire(role Role, text string) {
	st := s.state(role)
	if s.closed || st.text != text || st.resolved {
		return
	}
	st.timer = nil
	req := maps.GeocodeRequest{Text: text, Limit: s.opts.Limit, Lang: s.opts.Lang}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
		defer cancel()
		places, err := s.geocoder.Lookup(ctx, req)

		s.opts.Lock.Lock()
		defer s.opts.Lock.Unlock()
		s.apply(role, text, places, err)
	}()
}

func (s *Searcher) apply(role Role, text string, places []maps.Place, err error) {
	st := s.state(role)
	if s.closed {
		return
	}
	if st.text != text || st.resolved {
		observability.StaleResponses.WithLabelValues("suggestions").Inc()
		s.logger.Debug("dropping stale suggestions", "role", role, "query", text, "current", st.text)
		return
	}
	if err != nil {
		st.suggestions = nil
		observability.LookupFailures.WithLabelValues("geocode").Inc()
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("location lookup failed", "role", role, "query", text, "error", err)
		if s.hooks.OnNotice != nil {
			s.hooks.OnNotice(types.Notice{
				Source:  "search:" + string(role),
				Message: "Could not look up locations, please try again",
				At:      time.Now(),
			})
		}
		return
	}
	if s.opts.Limit > 0 && len(places) > s.opts.Limit {
		places = places[:s.opts.Limit]
	}
	list := make([]Suggestion, 0, len(places))
	for _, p := range places {
		list = append(list, Suggestion{Label: p.Label, Point: p.Point})
	}
	st.suggestions = list
}
