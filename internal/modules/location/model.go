package location

import (
	"errors"

	"myride/internal/types"
)

// Role tells which end of the trip a query is for.
type Role string

const (
	RolePickup Role = "pickup"
	RoleDrop   Role = "drop"
)

var ErrUnknownSuggestion = errors.New("unknown suggestion")

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePickup || r == RoleDrop
}

// Query is the text currently typed for a role.
type Query struct {
	Text string `json:"text"`
	Role Role   `json:"role"`
}

// Suggestion is one candidate place for a query.
type Suggestion struct {
	Label string      `json:"label"`
	Point types.Point `json:"point"`
}
