// README: Selects the vehicle tiers eligible for a trip distance.
package matching

import (
	"strings"

	"myride/internal/config"
	"myride/internal/modules/pricing"
)

// Matcher filters the catalog by distance.
type Matcher struct {
	catalog *pricing.Catalog
	cfg     config.MatchingConfig
}

func NewMatcher(catalog *pricing.Catalog, cfg config.MatchingConfig) *Matcher {
	if catalog == nil {
		catalog = pricing.DefaultCatalog()
	}
	def := config.DefaultMatching()
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = def.DefaultCount
	}
	if cfg.ShortHaulKeywords == nil {
		cfg.ShortHaulKeywords = def.ShortHaulKeywords
	}
	return &Matcher{catalog: catalog, cfg: cfg}
}

// Defaults is the subset shown before a route exists or when nothing matches.
func (m *Matcher) Defaults() []pricing.Tier {
	return m.catalog.Head(m.cfg.DefaultCount)
}

// Catalog returns every tier, for manual browsing.
func (m *Matcher) Catalog() []pricing.Tier {
	return m.catalog.Tiers()
}

// Match returns the tiers whose distance window holds km, plus the short-haul
// tiers for trips up to ShortHaulKm. km <= 0 means there is no route yet.
func (m *Matcher) Match(km float64) []pricing.Tier {
	if km <= 0 {
		return m.Defaults()
	}
	var out []pricing.Tier
	for _, t := range m.catalog.Tiers() {
		if t.InWindow(km) || (km <= m.cfg.ShortHaulKm && m.shortHaul(t.Name)) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return m.Defaults()
	}
	return out
}

func (m *Matcher) shortHaul(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range m.cfg.ShortHaulKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
