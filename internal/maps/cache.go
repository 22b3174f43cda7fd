package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"myride/internal/logging"
	"myride/internal/observability"
	"myride/internal/types"
)

// Cache stores provider answers in redis as JSON. A cache error never fails
// a lookup; it only falls through to the provider.
type Cache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logging.OrDefault(logger)}
}

func (c *Cache) get(ctx context.Context, key string, out any) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("lookup cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		c.logger.Warn("lookup cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("lookup cache write failed", "key", key, "error", err)
	}
}

func geocodeKey(req GeocodeRequest) string {
	return fmt.Sprintf("myride:geocode:%s:%d:%s", req.Lang, req.Limit, strings.ToLower(strings.TrimSpace(req.Text)))
}

func routeKey(req RouteRequest) string {
	return fmt.Sprintf("myride:route:%s:%s|%s", req.Mode, req.Waypoints[0].String(), req.Waypoints[1].String())
}

type cachedGeocoder struct {
	next  Geocoder
	cache *Cache
}

// CachedGeocoder wraps next so that identical requests are answered from redis.
// Failed lookups are never cached.
func CachedGeocoder(next Geocoder, cache *Cache) Geocoder {
	if cache == nil {
		return next
	}
	return &cachedGeocoder{next: next, cache: cache}
}

func (g *cachedGeocoder) Lookup(ctx context.Context, req GeocodeRequest) ([]Place, error) {
	key := geocodeKey(req)
	var places []Place
	if g.cache.get(ctx, key, &places) {
		observability.CacheHits.WithLabelValues("geocode").Inc()
		return places, nil
	}
	places, err := g.next.Lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	g.cache.set(ctx, key, places)
	return places, nil
}

type cachedRouter struct {
	next  Router
	cache *Cache
}

// CachedRouter wraps next so that repeated routes between the same points are answered from redis.
func CachedRouter(next Router, cache *Cache) Router {
	if cache == nil {
		return next
	}
	return &cachedRouter{next: next, cache: cache}
}

func (r *cachedRouter) Route(ctx context.Context, req RouteRequest) ([]types.Point, error) {
	if req.Mode == "" {
		req.Mode = ModeDrive
	}
	key := routeKey(req)
	var points []types.Point
	if r.cache.get(ctx, key, &points) {
		observability.CacheHits.WithLabelValues("route").Inc()
		return points, nil
	}
	points, err := r.next.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	r.cache.set(ctx, key, points)
	return points, nil
}
