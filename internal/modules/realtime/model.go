// README: Change-feed event model, subscription scopes and the Feed abstraction.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Row is one table row as decoded from JSON.
type Row map[string]any

// String returns the column as text. Numbers are formatted without exponent.
func (r Row) String(col string) (string, bool) {
	switch v := r[col].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func (r Row) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// ChangeEvent is one row change. The JSON shape is the postgres_changes
// payload, which the redis and kafka sources reuse.
type ChangeEvent struct {
	Schema   string    `json:"schema"`
	Table    string    `json:"table"`
	Type     EventType `json:"eventType"`
	New      Row       `json:"new"`
	Old      Row       `json:"old"`
	CommitAt time.Time `json:"commit_timestamp"`
}

// Scope selects the rows of Table whose Column equals Value.
type Scope struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Filter renders the server-side filter expression.
func (s Scope) Filter() string {
	return s.Column + "=eq." + s.Value
}

// Channel is the pub/sub channel name for the scope.
func (s Scope) Channel() string {
	return s.Table + ":" + s.Column + ":" + s.Value
}

// Matches reports whether ev falls inside the scope.
func (s Scope) Matches(ev ChangeEvent) bool {
	if ev.Table != "" && ev.Table != s.Table {
		return false
	}
	row := ev.New
	if row == nil {
		row = ev.Old
	}
	v, ok := row.String(s.Column)
	return ok && v == s.Value
}

func (s Scope) Validate() error {
	if s.Table == "" || s.Column == "" || s.Value == "" {
		return fmt.Errorf("%w: table, column and value are required", ErrInvalidScope)
	}
	return nil
}

var (
	ErrAlreadySubscribed = errors.New("scope already subscribed")
	ErrNotSubscribed     = errors.New("scope not subscribed")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrClosed            = errors.New("reconciler closed")
)

// Handler receives events in delivery order for one subscription.
type Handler func(ChangeEvent)

type Subscription interface {
	Close() error
}

// Feed opens push subscriptions. Implementations deliver events to the
// handler from their own goroutine until the subscription is closed.
type Feed interface {
	Subscribe(ctx context.Context, scope Scope, h Handler) (Subscription, error)
}
