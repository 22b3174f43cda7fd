package ride

import (
	"sync"

	"myride/internal/types"
)

// Outcome is what folding a status update into the book did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeInserted  Outcome = "inserted"
)

// Book holds the local copies of the rides one party can see. Every status
// change, whether echoed by the ride API or pushed by the change feed, goes
// through Apply so the displayed status only ever moves forward.
type Book struct {
	mu    sync.RWMutex
	rides map[types.ID]*Ride
	order []types.ID
}

func NewBook() *Book {
	return &Book{rides: make(map[types.ID]*Ride)}
}

func fold(cur, next Status) Outcome {
	switch {
	case cur == next:
		return OutcomeDuplicate
	case Reachable(cur, next):
		return OutcomeApplied
	default:
		return OutcomeStale
	}
}

// Apply folds next into the known ride with the same ID. Unknown rides are
// left alone. On OutcomeApplied the status advances and the driver and fare
// are taken from next when it carries them.
func (b *Book) Apply(next Ride) (Ride, Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.rides[next.ID]
	if !ok {
		return Ride{}, OutcomeUnknown
	}
	out := fold(cur.Status, next.Status)
	if out == OutcomeApplied {
		cur.Status = next.Status
		if next.DriverID != nil {
			d := *next.DriverID
			cur.DriverID = &d
		}
		if next.Fare > 0 {
			cur.Fare = next.Fare
		}
	}
	return *cur, out
}

// Load merges a full listing from the ride API. New rides are inserted as-is;
// known rides keep their status unless the listed one is ahead of it.
func (b *Book) Load(rides []Ride) {
	for _, r := range rides {
		if _, out := b.Apply(r); out != OutcomeUnknown {
			continue
		}
		b.insert(r)
	}
}

func (b *Book) insert(r Ride) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rides[r.ID]; ok {
		return
	}
	cp := r
	b.rides[r.ID] = &cp
	b.order = append(b.order, r.ID)
}

func (b *Book) Get(id types.ID) (Ride, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rides[id]
	if !ok {
		return Ride{}, false
	}
	return *r, true
}

// List returns the rides in the order they were first seen.
func (b *Book) List() []Ride {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Ride, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.rides[id])
	}
	return out
}

// ActiveFor returns the first accepted or in-progress ride held by driverID,
// other than except.
func (b *Book) ActiveFor(driverID, except types.ID) (Ride, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.order {
		r := b.rides[id]
		if id == except || (r.Status != StatusAccepted && r.Status != StatusInProgress) || r.DriverID == nil || *r.DriverID != driverID {
			continue
		}
		return *r, true
	}
	return Ride{}, false
}
