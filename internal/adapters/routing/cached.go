package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// CachedTravelTimes puts a cache in front of an EnrichmentBackend. Requests
// with SkipCache set always go to the backend and are not stored, since a live
// gps-near origin is unlikely to repeat.
type CachedTravelTimes struct {
	next  ports.EnrichmentBackend
	cache ports.CacheService
	ttl   time.Duration
}

// NewCachedTravelTimes wraps next. cache may be nil.
func NewCachedTravelTimes(next ports.EnrichmentBackend, cache ports.CacheService, ttl time.Duration) *CachedTravelTimes {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedTravelTimes{next: next, cache: cache, ttl: ttl}
}

// TravelTimeKey identifies a travel-time matrix row by mode, origin (rounded
// to ~10 m) and the set of destination ids.
func TravelTimeKey(req ports.TravelTimeRequest) string {
	ids := make([]string, len(req.POIs))
	for i, p := range req.POIs {
		ids[i] = p.ID
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("travel:%s:%.4f:%.4f:%016x", req.Mode, req.Origin.Lat, req.Origin.Lng, h.Sum64())
}

// TravelTimes implements ports.EnrichmentBackend.
func (c *CachedTravelTimes) TravelTimes(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
	if c.cache == nil || req.SkipCache {
		return c.next.TravelTimes(ctx, req)
	}

	key := TravelTimeKey(req)
	if data, err := c.cache.Get(ctx, key); err == nil {
		var times map[string]float64
		if err := json.Unmarshal(data, &times); err == nil {
			metrics.CacheHits.WithLabelValues("travel_times").Inc()
			return times, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("travel_times").Inc()

	times, err := c.next.TravelTimes(ctx, req)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(times); err == nil {
		_ = c.cache.Set(ctx, key, data, int(c.ttl.Seconds()))
	}
	return times, nil
}

// Warm fetches and stores travel times regardless of what is cached.
func (c *CachedTravelTimes) Warm(ctx context.Context, req ports.TravelTimeRequest) (int, error) {
	times, err := c.next.TravelTimes(ctx, req)
	if err != nil {
		return 0, err
	}
	if c.cache != nil {
		data, err := json.Marshal(times)
		if err != nil {
			return 0, err
		}
		if err := c.cache.Set(ctx, TravelTimeKey(req), data, int(c.ttl.Seconds())); err != nil {
			return 0, fmt.Errorf("store travel times: %w", err)
		}
	}
	return len(times), nil
}
