// README: Vehicle tier catalog entries and the per-category fare rules.
package pricing

// Tier is one vehicle category. A nil bound is unbounded on that side.
type Tier struct {
	Name  string   `json:"name"`
	MinKm *float64 `json:"min_km,omitempty"`
	MaxKm *float64 `json:"max_km,omitempty"`
}

// InWindow reports whether km lies inside [MinKm, MaxKm].
func (t Tier) InWindow(km float64) bool {
	if t.MinKm != nil && km < *t.MinKm {
		return false
	}
	if t.MaxKm != nil && km > *t.MaxKm {
		return false
	}
	return true
}

// Rule prices every tier whose lower-cased name contains Keyword. An empty
// keyword matches anything.
type Rule struct {
	Category string
	Keyword  string
	PerKm    float64
	Floor    float64
}

func km(v float64) *float64 { return &v }
