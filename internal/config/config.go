// README: Config loader with env defaults for HTTP, DB, Redis, map providers, matching, rides, payment and feed settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type SearchConfig struct {
	Debounce time.Duration
	Limit    int
	Lang     string
}

// MatchingConfig holds the tier-matching tuning constants. They were hand-tuned
// against the catalog and are kept overridable rather than baked in.
type MatchingConfig struct {
	ShortHaulKm       float64
	ShortHaulKeywords []string
	DefaultCount      int
}

type MapsConfig struct {
	Provider        string // "geoapify" or "google"
	GeoapifyURL     string
	AutocompleteKey string
	RoutingKey      string
	GoogleKey       string
	RatePerSecond   float64
	Burst           int
	CacheTTL        time.Duration
	LookupTimeout   time.Duration
}

type FeedConfig struct {
	Driver       string // "supabase", "redis", "kafka" or "" to disable
	Table        string
	SupabaseURL  string
	SupabaseKey  string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

type PaymentConfig struct {
	Provider   string // "http" or "stripe"
	BaseURL    string
	Currency   string
	StripeKey  string
	SuccessURL string
	CancelURL  string
}

type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
		AllowOrigins    []string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Log struct {
		Level string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
		CheckRevoked    bool
	}
	Session struct {
		IdleTTL time.Duration
	}
	Ride struct {
		BaseURL string
		Timeout time.Duration
	}
	Maps     MapsConfig
	Search   SearchConfig
	Matching MatchingConfig
	Payment  PaymentConfig
	Feed     FeedConfig
}

func Load() (Config, error) {
	var cfg Config
	var errs []error

	cfg.HTTP.Addr = envOrDefault("MYRIDE_HTTP_ADDR", ":8080")
	cfg.HTTP.ShutdownTimeout = envOrDefaultDuration("MYRIDE_SHUTDOWN_TIMEOUT", 15*time.Second, &errs)
	cfg.HTTP.AllowOrigins = envOrDefaultList("MYRIDE_ALLOW_ORIGINS", []string{"http://localhost:5173"})
	cfg.DB.DSN = os.Getenv("MYRIDE_DB_DSN")
	cfg.Redis.Addr = os.Getenv("MYRIDE_REDIS_ADDR")
	cfg.Log.Level = envOrDefault("MYRIDE_LOG_LEVEL", "info")
	cfg.Firebase.ProjectID = os.Getenv("MYRIDE_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("MYRIDE_FIREBASE_CREDENTIALS")
	cfg.Firebase.CheckRevoked = envOrDefaultBool("MYRIDE_FIREBASE_CHECK_REVOKED", false, &errs)
	cfg.Session.IdleTTL = envOrDefaultDuration("MYRIDE_SESSION_IDLE_TTL", 30*time.Minute, &errs)

	cfg.Ride.BaseURL = envOrDefault("MYRIDE_RIDE_API_URL", "http://localhost:8800/api")
	cfg.Ride.Timeout = envOrDefaultDuration("MYRIDE_RIDE_API_TIMEOUT", 10*time.Second, &errs)

	cfg.Maps.Provider = envOrDefault("MYRIDE_MAPS_PROVIDER", "geoapify")
	cfg.Maps.GeoapifyURL = envOrDefault("MYRIDE_GEOAPIFY_URL", "https://api.geoapify.com")
	cfg.Maps.AutocompleteKey = os.Getenv("MYRIDE_GEOAPIFY_AUTOCOMPLETE_KEY")
	cfg.Maps.RoutingKey = os.Getenv("MYRIDE_GEOAPIFY_ROUTING_KEY")
	cfg.Maps.GoogleKey = os.Getenv("MYRIDE_GOOGLE_MAPS_KEY")
	cfg.Maps.RatePerSecond = envOrDefaultFloat("MYRIDE_MAPS_RATE", 5, &errs)
	cfg.Maps.Burst = envOrDefaultInt("MYRIDE_MAPS_BURST", 5, &errs)
	cfg.Maps.CacheTTL = envOrDefaultDuration("MYRIDE_MAPS_CACHE_TTL", 24*time.Hour, &errs)
	cfg.Maps.LookupTimeout = envOrDefaultDuration("MYRIDE_LOOKUP_TIMEOUT", 5*time.Second, &errs)

	cfg.Search.Debounce = envOrDefaultDuration("MYRIDE_SEARCH_DEBOUNCE", 300*time.Millisecond, &errs)
	cfg.Search.Limit = envOrDefaultInt("MYRIDE_SEARCH_LIMIT", 6, &errs)
	cfg.Search.Lang = envOrDefault("MYRIDE_SEARCH_LANG", "en")

	cfg.Matching = DefaultMatching()
	cfg.Matching.ShortHaulKm = envOrDefaultFloat("MYRIDE_SHORT_HAUL_KM", cfg.Matching.ShortHaulKm, &errs)
	cfg.Matching.ShortHaulKeywords = envOrDefaultList("MYRIDE_SHORT_HAUL_KEYWORDS", cfg.Matching.ShortHaulKeywords)
	cfg.Matching.DefaultCount = envOrDefaultInt("MYRIDE_DEFAULT_TIER_COUNT", cfg.Matching.DefaultCount, &errs)

	cfg.Payment.Provider = envOrDefault("MYRIDE_PAYMENT_PROVIDER", "http")
	cfg.Payment.BaseURL = envOrDefault("MYRIDE_PAYMENT_URL", "http://localhost:8800/api")
	cfg.Payment.Currency = envOrDefault("MYRIDE_PAYMENT_CURRENCY", "inr")
	cfg.Payment.StripeKey = os.Getenv("STRIPE_API_KEY")
	cfg.Payment.SuccessURL = envOrDefault("MYRIDE_PAYMENT_SUCCESS_URL", "http://localhost:5173/success")
	cfg.Payment.CancelURL = envOrDefault("MYRIDE_PAYMENT_CANCEL_URL", "http://localhost:5173/ride")

	cfg.Feed.Driver = os.Getenv("MYRIDE_FEED_DRIVER")
	cfg.Feed.Table = envOrDefault("MYRIDE_FEED_TABLE", "booking")
	cfg.Feed.SupabaseURL = os.Getenv("MYRIDE_SUPABASE_URL")
	cfg.Feed.SupabaseKey = os.Getenv("MYRIDE_SUPABASE_KEY")
	cfg.Feed.KafkaBrokers = envOrDefaultList("MYRIDE_KAFKA_BROKERS", []string{"localhost:9092"})
	cfg.Feed.KafkaTopic = envOrDefault("MYRIDE_KAFKA_TOPIC", "booking-changes")
	cfg.Feed.KafkaGroupID = os.Getenv("MYRIDE_KAFKA_GROUP_ID")

	if cfg.Search.Limit <= 0 {
		errs = append(errs, errors.New("MYRIDE_SEARCH_LIMIT must be > 0"))
	}
	if cfg.Matching.DefaultCount <= 0 {
		errs = append(errs, errors.New("MYRIDE_DEFAULT_TIER_COUNT must be > 0"))
	}
	switch cfg.Feed.Driver {
	case "", "supabase", "redis", "kafka":
	default:
		errs = append(errs, fmt.Errorf("unknown MYRIDE_FEED_DRIVER %q", cfg.Feed.Driver))
	}

	return cfg, errors.Join(errs...)
}

// DefaultMatching returns the matching constants observed in production.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		ShortHaulKm:       8,
		ShortHaulKeywords: []string{"taxi", "auto", "bike"},
		DefaultCount:      4,
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int, errs *[]error) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return n
	}
	return def
}

func envOrDefaultFloat(key string, def float64, errs *[]error) float64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return n
	}
	return def
}

func envOrDefaultBool(key string, def bool, errs *[]error) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return b
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration, errs *[]error) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return d
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
