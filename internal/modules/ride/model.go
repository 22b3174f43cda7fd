// README: Ride aggregate, status definitions and the lifecycle transition table.
package ride

import (
	"fmt"
	"time"

	"myride/internal/types"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus accepts the canonical names plus "progress", which the ride
// backend stores for in-progress trips.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRequested, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	if s == "progress" {
		return StatusInProgress, nil
	}
	return "", fmt.Errorf("unknown ride status %q", s)
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Ride struct {
	ID          types.ID     `json:"id"`
	RiderID     types.ID     `json:"rider_id"`
	DriverID    *types.ID    `json:"driver_id,omitempty"`
	PickupLabel string       `json:"pickup_label,omitempty"`
	DropLabel   string       `json:"drop_label,omitempty"`
	Pickup      *types.Point `json:"pickup,omitempty"`
	Drop        *types.Point `json:"drop,omitempty"`
	Status      Status       `json:"status"`
	Fare        float64      `json:"fare"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:  {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Reachable reports whether to can be reached from from in one or more
// transitions. A status is not reachable from itself.
func Reachable(from, to Status) bool {
	seen := map[Status]bool{from: true}
	queue := []Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range AllowedTransitions[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

type Actor string

const (
	ActorRider  Actor = "rider"
	ActorDriver Actor = "driver"
)

type Event string

const (
	EventAccept   Event = "accept"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

type eventRule struct {
	to     Status
	actors []Actor
}

var eventRules = map[Event]eventRule{
	EventAccept:   {to: StatusAccepted, actors: []Actor{ActorDriver}},
	EventStart:    {to: StatusInProgress, actors: []Actor{ActorDriver}},
	EventComplete: {to: StatusCompleted, actors: []Actor{ActorDriver}},
	EventCancel:   {to: StatusCancelled, actors: []Actor{ActorRider, ActorDriver}},
}

// Target returns the status an event leads to.
func Target(ev Event) (Status, bool) {
	r, ok := eventRules[ev]
	return r.to, ok
}

// Permits reports whether actor may fire ev.
func Permits(ev Event, actor Actor) bool {
	for _, a := range eventRules[ev].actors {
		if a == actor {
			return true
		}
	}
	return false
}
