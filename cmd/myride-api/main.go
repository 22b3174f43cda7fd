// README: Entry point; loads config, wires providers and modules, serves HTTP and runs the session janitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"myride/internal/config"
	httptransport "myride/internal/http"
	"myride/internal/infra"
	"myride/internal/logging"
	"myride/internal/maps"
	"myride/internal/modules/booking"
	"myride/internal/modules/dashboard"
	"myride/internal/modules/matching"
	"myride/internal/modules/payment"
	"myride/internal/modules/pricing"
	"myride/internal/modules/realtime"
	"myride/internal/modules/ride"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("myride-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	catalog := pricing.DefaultCatalog()
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		catalog, err = pricing.LoadCatalog(ctx, pricing.NewStore(pool))
		if err != nil {
			return fmt.Errorf("load tier catalog: %w", err)
		}
	}
	logger.Info("tier catalog loaded", "tiers", len(catalog.Tiers()))

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	geocoder, router, err := newMapProviders(cfg.Maps)
	if err != nil {
		return err
	}
	if rdb != nil {
		cache := maps.NewCache(rdb, cfg.Maps.CacheTTL, logger)
		geocoder = maps.CachedGeocoder(geocoder, cache)
		router = maps.CachedRouter(router, cache)
	}

	gateway, err := newGateway(cfg.Payment)
	if err != nil {
		return err
	}

	feed, err := newFeed(cfg.Feed, rdb, logger)
	if err != nil {
		return err
	}

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, infra.FirebaseOptions{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			CheckRevoked:    cfg.Firebase.CheckRevoked,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("MYRIDE_FIREBASE_PROJECT_ID unset, ride endpoints are unauthenticated")
	}

	sessions := booking.NewRegistry(booking.Deps{
		Geocoder:      geocoder,
		Router:        router,
		Matcher:       matching.NewMatcher(catalog, cfg.Matching),
		Gateway:       gateway,
		Search:        cfg.Search,
		LookupTimeout: cfg.Maps.LookupTimeout,
		Currency:      cfg.Payment.Currency,
		Logger:        logger,
	}, cfg.Session.IdleTTL)
	defer sessions.Close()

	// redis has no upstream producer, so this process publishes its own transitions
	var publisher dashboard.Publisher
	if cfg.Feed.Driver == "redis" {
		publisher = realtime.NewRedisPublisher(rdb)
	}
	dashboards := dashboard.NewService(dashboard.Options{
		API:       ride.NewClient(cfg.Ride.BaseURL, cfg.Ride.Timeout),
		Feed:      feed,
		Publisher: publisher,
		Table:     cfg.Feed.Table,
		Logger:    logger,
	})
	defer dashboards.Close()

	server := httptransport.NewServer(httptransport.ServerDeps{
		Sessions:     sessions,
		Dashboards:   dashboards,
		Geocoder:     geocoder,
		Router:       router,
		SearchLimit:  cfg.Search.Limit,
		SearchLang:   cfg.Search.Lang,
		Verifier:     verifier,
		AllowOrigins: cfg.HTTP.AllowOrigins,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		sessions.RunJanitor(gctx, time.Minute)
		return nil
	})
	return g.Wait()
}

func newMapProviders(cfg config.MapsConfig) (maps.Geocoder, maps.Router, error) {
	switch cfg.Provider {
	case "google":
		rate := int(cfg.RatePerSecond)
		places, err := maps.NewPlacesService(cfg.GoogleKey, rate)
		if err != nil {
			return nil, nil, fmt.Errorf("google geocoder: %w", err)
		}
		routes, err := maps.NewRouteService(cfg.GoogleKey, rate)
		if err != nil {
			return nil, nil, fmt.Errorf("google router: %w", err)
		}
		return places, routes, nil
	case "geoapify", "":
		c := maps.NewGeoapifyClient(maps.GeoapifyOptions{
			BaseURL:         cfg.GeoapifyURL,
			AutocompleteKey: cfg.AutocompleteKey,
			RoutingKey:      cfg.RoutingKey,
			RatePerSecond:   cfg.RatePerSecond,
			Burst:           cfg.Burst,
		})
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown MYRIDE_MAPS_PROVIDER %q", cfg.Provider)
	}
}

func newGateway(cfg config.PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		if cfg.StripeKey == "" {
			return nil, errors.New("STRIPE_API_KEY is required for the stripe payment provider")
		}
		return payment.NewStripeGateway(cfg.StripeKey, cfg.SuccessURL, cfg.CancelURL, nil), nil
	case "http", "":
		return payment.NewHTTPGateway(cfg.BaseURL, 10*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown MYRIDE_PAYMENT_PROVIDER %q", cfg.Provider)
	}
}

func newFeed(cfg config.FeedConfig, rdb *redis.Client, logger *slog.Logger) (realtime.Feed, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "supabase":
		return realtime.NewSupabaseFeed(realtime.SupabaseOptions{
			URL:    cfg.SupabaseURL,
			APIKey: cfg.SupabaseKey,
			Logger: logger,
		})
	case "redis":
		if rdb == nil {
			return nil, errors.New("MYRIDE_REDIS_ADDR is required for the redis feed")
		}
		return realtime.NewRedisFeed(rdb, logger), nil
	case "kafka":
		return realtime.NewKafkaFeed(realtime.KafkaOptions{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown feed driver %q", cfg.Driver)
	}
}
