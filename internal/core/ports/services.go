package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
)

// Position capability failures. All of them put the tracker into fallback.
var (
	ErrPositionDenied      = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("geolocation unavailable")
	ErrPositionTimeout     = errors.New("geolocation timed out")
	ErrInsecureContext     = errors.New("geolocation requires a secure context")
)

// ErrNoRoute is returned by a directions backend when no route exists.
var ErrNoRoute = errors.New("no route found")

// PositionSource is the device position capability.
// Watch returns an error if the capability cannot be started at all; otherwise
// fixes are delivered to onFix until ctx is cancelled or onErr reports a
// terminal failure.
type PositionSource interface {
	Watch(ctx context.Context, onFix func(domain.PositionFix), onErr func(error)) error
}

// TravelTimeRequest asks for travel times from one origin to a set of POIs.
type TravelTimeRequest struct {
	Origin    domain.Coordinates
	POIs      []domain.POI
	Mode      domain.TransportMode
	SkipCache bool
}

// EnrichmentBackend computes travel times. The result maps POI id to seconds;
// ids without a reachable route are absent.
type EnrichmentBackend interface {
	TravelTimes(ctx context.Context, req TravelTimeRequest) (map[string]float64, error)
}

// DirectionsBackend computes a single route.
type DirectionsBackend interface {
	Route(ctx context.Context, origin, destination domain.Coordinates, profile string) (*domain.RouteData, error)
}

// ErrCacheMiss is returned by a CacheService when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// CatalogSubscriber delivers catalog-changed notifications.
type CatalogSubscriber interface {
	SubscribeCatalogUpdates(ctx context.Context, handler func(ctx context.Context, projectSlug string) error) error
}
