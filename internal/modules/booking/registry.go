package booking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"myride/internal/logging"
	"myride/internal/observability"
	"myride/internal/types"
)

// Registry holds the live booking sessions of this process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[types.ID]*Controller
	deps     Deps
	idleTTL  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[types.ID]*Controller),
		deps:     deps,
		idleTTL:  idleTTL,
		logger:   logging.OrDefault(deps.Logger),
		now:      now,
	}
}

func (r *Registry) Create() *Controller {
	c := NewController(types.ID(uuid.NewString()), r.deps)

	r.mu.Lock()
	r.sessions[c.ID()] = c
	n := len(r.sessions)
	r.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	r.logger.Info("booking session created", "session_id", c.ID())
	return c
}

func (r *Registry) Get(id types.ID) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id types.ID) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	observability.ActiveSessions.Set(float64(n))
	c.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict closes every session idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Evict() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Controller
	for id, c := range r.sessions {
		if c.LastActive().Before(cutoff) {
			idle = append(idle, c)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	if len(idle) > 0 {
		observability.ActiveSessions.Set(float64(n))
		r.logger.Info("evicted idle booking sessions", "count", len(idle))
	}
	return len(idle)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}

// Close shuts every session down.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[types.ID]*Controller)
	r.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
	observability.ActiveSessions.Set(0)
}
