package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Debounce != 300*time.Millisecond {
		t.Errorf("debounce = %v, want 300ms", cfg.Search.Debounce)
	}
	if cfg.Search.Limit != 6 {
		t.Errorf("limit = %d, want 6", cfg.Search.Limit)
	}
	if cfg.Matching.ShortHaulKm != 8 || cfg.Matching.DefaultCount != 4 {
		t.Errorf("matching = %+v", cfg.Matching)
	}
	if len(cfg.Matching.ShortHaulKeywords) != 3 {
		t.Errorf("short-haul keywords = %v", cfg.Matching.ShortHaulKeywords)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MYRIDE_SEARCH_DEBOUNCE", "150ms")
	t.Setenv("MYRIDE_SHORT_HAUL_KM", "6.5")
	t.Setenv("MYRIDE_SHORT_HAUL_KEYWORDS", "bike, auto")
	t.Setenv("MYRIDE_FEED_DRIVER", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Debounce != 150*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Search.Debounce)
	}
	if cfg.Matching.ShortHaulKm != 6.5 {
		t.Errorf("short haul = %v", cfg.Matching.ShortHaulKm)
	}
	if got := cfg.Matching.ShortHaulKeywords; len(got) != 2 || got[0] != "bike" || got[1] != "auto" {
		t.Errorf("keywords = %v", got)
	}
	if cfg.Feed.Driver != "redis" {
		t.Errorf("feed driver = %q", cfg.Feed.Driver)
	}
}

func TestLoad_InvalidValuesAreJoined(t *testing.T) {
	t.Setenv("MYRIDE_SEARCH_DEBOUNCE", "soon")
	t.Setenv("MYRIDE_SEARCH_LIMIT", "many")
	t.Setenv("MYRIDE_FEED_DRIVER", "carrier-pigeon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
}
