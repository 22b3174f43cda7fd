package types

import "testing"

func TestFromMajor_RoundsToMinorUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{598.5, 59850},
		{681.126266788824, 68113},
		{40, 4000},
		{0.005, 1},
	}
	for _, tc := range cases {
		got := FromMajor(tc.in, "")
		if got.Amount != tc.want {
			t.Errorf("FromMajor(%v) = %d, want %d", tc.in, got.Amount, tc.want)
		}
		if got.Currency != DefaultCurrency {
			t.Errorf("FromMajor(%v) currency = %q, want %q", tc.in, got.Currency, DefaultCurrency)
		}
	}
}

func TestMoney_Major(t *testing.T) {
	if got := FromMajor(598.5, "inr").Major(); got != 598.5 {
		t.Errorf("Major() = %v, want 598.5", got)
	}
}

func TestPointString(t *testing.T) {
	p := Point{Lat: 22.5, Lng: 88.3}
	if got := p.String(); got != "22.500000,88.300000" {
		t.Errorf("String() = %q", got)
	}
}
