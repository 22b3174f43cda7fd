package pricing

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		tier     string
		km       float64
		wantFare float64
	}{
		{name: "4-seat above floor", tier: "MyRide Taxi (4-Seater)", km: 13.3, wantFare: 598.5},
		{name: "bike floor", tier: "MyRide Bike", km: 2, wantFare: 40},
		{name: "bike per km", tier: "MyRide Bike", km: 5, wantFare: 60},
		{name: "auto floor", tier: "MyRide AutoRickshaw", km: 3, wantFare: 60},
		{name: "6-seat floor", tier: "MyRide Taxi (6-Seater)", km: 2, wantFare: 180},
		{name: "6-seat per km", tier: "MyRide Taxi (6-Seater)", km: 10, wantFare: 600},
		// Contains "4", so the 4-seat rule wins over the traveller rule.
		{name: "traveller priced as 4-seat", tier: "MyRide Traveller (14-16 Seater)", km: 20, wantFare: 900},
		{name: "intercity floor", tier: "MyRide Intercity", km: 30, wantFare: 1000},
		{name: "intercity per km", tier: "MyRide Intercity", km: 100, wantFare: 2500},
		{name: "fallback", tier: "MyRide Share", km: 10, wantFare: 300},
		{name: "fallback floor", tier: "MyRide Reservation Car", km: 1, wantFare: 100},
		{name: "zero distance", tier: "MyRide Taxi (4-Seater)", km: 0, wantFare: 120},
		{name: "negative distance", tier: "MyRide Share", km: -5, wantFare: 100},
		{name: "case insensitive", tier: "BIKE express", km: 10, wantFare: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(Tier{Name: tt.tier}, tt.km)
			if math.Abs(got-tt.wantFare) > 1e-9 {
				t.Errorf("Price(%q, %v) = %v, want %v", tt.tier, tt.km, got, tt.wantFare)
			}
		})
	}
}

func TestPrice_NeverBelowFloor(t *testing.T) {
	for _, tier := range DefaultTiers() {
		floor := RuleFor(tier.Name).Floor
		for _, d := range []float64{0, 0.5, 1, 3, 7.9, 25, 400} {
			if got := Price(tier, d); got < floor {
				t.Errorf("Price(%q, %v) = %v below floor %v", tier.Name, d, got, floor)
			}
		}
	}
}

func TestDefaultCatalogOrder(t *testing.T) {
	c := DefaultCatalog()
	head := c.Head(4)
	want := []string{"MyRide AutoRickshaw", "MyRide Taxi (4-Seater)", "MyRide Taxi (6-Seater)", "MyRide Reservation Car"}
	if len(head) != len(want) {
		t.Fatalf("Head(4) = %d tiers", len(head))
	}
	for i := range want {
		if head[i].Name != want[i] {
			t.Errorf("Head(4)[%d] = %q, want %q", i, head[i].Name, want[i])
		}
	}
	if got := len(c.Head(99)); got != 9 {
		t.Errorf("Head(99) = %d tiers, want 9", got)
	}
	if _, ok := c.Lookup("MyRide Bike"); !ok {
		t.Error("Lookup(MyRide Bike) missed")
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	c := DefaultCatalog()
	tiers := c.Tiers()
	tiers[0].Name = "changed"
	if c.Tiers()[0].Name != "MyRide AutoRickshaw" {
		t.Fatal("catalog mutated through Tiers()")
	}
}

func TestInWindow(t *testing.T) {
	intercity := Tier{Name: "x", MinKm: km(20)}
	taxi := Tier{Name: "y", MaxKm: km(20)}
	if intercity.InWindow(19.9) || !intercity.InWindow(20) {
		t.Error("min bound must be inclusive")
	}
	if !taxi.InWindow(20) || taxi.InWindow(20.1) {
		t.Error("max bound must be inclusive")
	}
}

func TestLoadCatalog_NilStore(t *testing.T) {
	c, err := LoadCatalog(context.Background(), nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Tiers()) != len(DefaultTiers()) {
		t.Fatal("expected the built-in catalog")
	}
}

func TestStore_LoadTiers(t *testing.T) {
	dsn := os.Getenv("MYRIDE_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("MYRIDE_TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	c, err := LoadCatalog(ctx, NewStore(pool))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Tiers()) == 0 {
		t.Fatal("empty catalog")
	}
}
