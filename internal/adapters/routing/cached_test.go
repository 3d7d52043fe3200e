package routing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/poiexplorer/internal/adapters/routing"
	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

type mockBackend struct {
	calls int
}

func (m *mockBackend) TravelTimes(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
	m.calls++
	return map[string]float64{"a": 60}, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ports.ErrCacheMiss
}

func (m *mapCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestCachedTravelTimes_HitsCache(t *testing.T) {
	backend := &mockBackend{}
	c := routing.NewCachedTravelTimes(backend, &mapCache{data: map[string][]byte{}}, time.Minute)
	req := ports.TravelTimeRequest{Origin: origin, POIs: pois, Mode: domain.ModeWalk}

	for i := 0; i < 3; i++ {
		times, err := c.TravelTimes(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if times["a"] != 60 {
			t.Errorf("expected a=60, got %v", times["a"])
		}
	}
	if backend.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.calls)
	}
}

func TestCachedTravelTimes_SkipCache(t *testing.T) {
	backend := &mockBackend{}
	cache := &mapCache{data: map[string][]byte{}}
	c := routing.NewCachedTravelTimes(backend, cache, time.Minute)
	req := ports.TravelTimeRequest{Origin: origin, POIs: pois, Mode: domain.ModeWalk, SkipCache: true}

	c.TravelTimes(context.Background(), req)
	c.TravelTimes(context.Background(), req)

	if backend.calls != 2 {
		t.Errorf("expected every live request to reach the backend, got %d", backend.calls)
	}
	if len(cache.data) != 0 {
		t.Errorf("expected nothing cached, got %d keys", len(cache.data))
	}
}

func TestCachedTravelTimes_Warm(t *testing.T) {
	backend := &mockBackend{}
	cache := &mapCache{data: map[string][]byte{}}
	c := routing.NewCachedTravelTimes(backend, cache, time.Minute)
	req := ports.TravelTimeRequest{Origin: origin, POIs: pois, Mode: domain.ModeCar}

	n, err := c.Warm(context.Background(), req)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 warmed entry, got %d, %v", n, err)
	}
	if _, err := cache.Get(context.Background(), routing.TravelTimeKey(req)); errors.Is(err, ports.ErrCacheMiss) {
		t.Error("expected warmed key in cache")
	}
}

func TestTravelTimeKey_OrderIndependent(t *testing.T) {
	a := ports.TravelTimeRequest{Origin: origin, POIs: pois, Mode: domain.ModeWalk}
	b := ports.TravelTimeRequest{Origin: origin, POIs: []domain.POI{pois[1], pois[0]}, Mode: domain.ModeWalk}
	if routing.TravelTimeKey(a) != routing.TravelTimeKey(b) {
		t.Error("expected key to ignore POI order")
	}
	b.Mode = domain.ModeCar
	if routing.TravelTimeKey(a) == routing.TravelTimeKey(b) {
		t.Error("expected key to depend on mode")
	}
}
