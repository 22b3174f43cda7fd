// README: Fare computation over an ordered rule list, and the immutable tier catalog.
package pricing

import (
	"math"
	"strings"
)

// Rules is evaluated top to bottom and the first match wins. The order is part
// of the contract: "Traveller (14-16 Seater)" contains "4" and is priced as a
// 4-seat car.
var Rules = []Rule{
	{Category: "two-wheeler", Keyword: "bike", PerKm: 12, Floor: 40},
	{Category: "three-wheeler", Keyword: "auto", PerKm: 15, Floor: 60},
	{Category: "4-seat car", Keyword: "4", PerKm: 45, Floor: 120},
	{Category: "6-seat car", Keyword: "6", PerKm: 60, Floor: 180},
	{Category: "large-group shuttle", Keyword: "traveller", PerKm: 80, Floor: 500},
	{Category: "intercity", Keyword: "intercity", PerKm: 25, Floor: 1000},
	{Category: "generic", Keyword: "", PerKm: 30, Floor: 100},
}

// RuleFor returns the first rule matching name.
func RuleFor(name string) Rule {
	lower := strings.ToLower(name)
	for _, r := range Rules {
		if strings.Contains(lower, r.Keyword) {
			return r
		}
	}
	return Rules[len(Rules)-1]
}

// Price returns max(floor, km*perKm) for the tier's category. Negative
// distances count as zero.
func Price(t Tier, distanceKm float64) float64 {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	r := RuleFor(t.Name)
	return math.Max(r.Floor, distanceKm*r.PerKm)
}

// DefaultTiers is the built-in catalog. Its order drives the default subset.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "MyRide AutoRickshaw", MaxKm: km(5)},
		{Name: "MyRide Taxi (4-Seater)", MaxKm: km(20)},
		{Name: "MyRide Taxi (6-Seater)", MaxKm: km(40)},
		{Name: "MyRide Reservation Car", MaxKm: km(1000)},
		{Name: "MyRide Intercity", MinKm: km(20)},
		{Name: "MyRide Bike", MaxKm: km(5)},
		{Name: "MyRide Assist (Handicap Accessible)", MaxKm: km(50)},
		{Name: "MyRide Share", MaxKm: km(20)},
		{Name: "MyRide Traveller (14-16 Seater)", MinKm: km(15)},
	}
}

// Catalog is the ordered, read-only tier list loaded once at startup.
type Catalog struct {
	tiers []Tier
}

func NewCatalog(tiers []Tier) *Catalog {
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Catalog{tiers: cp}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultTiers())
}

// Tiers returns a copy of the catalog in order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Head returns the first n tiers.
func (c *Catalog) Head(n int) []Tier {
	if n > len(c.tiers) {
		n = len(c.tiers)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Tier, n)
	copy(out, c.tiers[:n])
	return out
}

// Lookup finds a tier by exact name.
func (c *Catalog) Lookup(name string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}
