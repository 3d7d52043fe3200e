package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// metersPerDegreeLat matches the earth radius used by geospatial.Haversine.
const metersPerDegreeLat = 6371000 * 3.141592653589793 / 180

var bilbao = domain.Coordinates{Lat: 43.2630, Lng: -2.9350}

func north(c domain.Coordinates, meters float64) domain.Coordinates {
	return domain.Coordinates{Lat: c.Lat + meters/metersPerDegreeLat, Lng: c.Lng}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Mock PositionSource ---

type mockPosition struct {
	mu       sync.Mutex
	watchErr error
	watched  int
	onFix    func(domain.PositionFix)
	onErr    func(error)
}

func (m *mockPosition) Watch(ctx context.Context, onFix func(domain.PositionFix), onErr func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched++
	if m.watchErr != nil {
		return m.watchErr
	}
	m.onFix, m.onErr = onFix, onErr
	return nil
}

func (m *mockPosition) Push(fix domain.PositionFix) {
	m.mu.Lock()
	fn := m.onFix
	m.mu.Unlock()
	if fn != nil {
		fn(fix)
	}
}

func (m *mockPosition) Fail(err error) {
	m.mu.Lock()
	fn := m.onErr
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (m *mockPosition) SetInsecure(insecure bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if insecure {
		m.watchErr = ports.ErrInsecureContext
	}
}

func (m *mockPosition) at(c domain.Coordinates) {
	m.Push(domain.PositionFix{Coordinates: c, Accuracy: 5})
}

// --- Mock EnrichmentBackend ---

type mockEnrichment struct {
	travelTimesFn func(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error)

	mu    sync.Mutex
	calls []ports.TravelTimeRequest
}

func (m *mockEnrichment) TravelTimes(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.travelTimesFn != nil {
		return m.travelTimesFn(ctx, req)
	}
	return map[string]float64{}, nil
}

func (m *mockEnrichment) requests() []ports.TravelTimeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.TravelTimeRequest(nil), m.calls...)
}

// --- Mock DirectionsBackend ---

type mockDirections struct {
	routeFn func(ctx context.Context, origin, dest domain.Coordinates, profile string) (*domain.RouteData, error)

	mu    sync.Mutex
	calls int
}

func (m *mockDirections) Route(ctx context.Context, origin, dest domain.Coordinates, profile string) (*domain.RouteData, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.routeFn != nil {
		return m.routeFn(ctx, origin, dest, profile)
	}
	return &domain.RouteData{
		Coordinates:       [][2]float64{{origin.Lng, origin.Lat}, {dest.Lng, dest.Lat}},
		TravelTimeSeconds: 120,
		DistanceMeters:    150,
	}, nil
}

func (m *mockDirections) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (m *mockPublisher) PublishSessionEvent(ctx context.Context, ev *domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockPublisher) kinds() []domain.SessionEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SessionEventKind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

// --- Fixtures ---

func testCatalog() *domain.Catalog {
	return &domain.Catalog{
		Project: domain.Project{ID: "p1", Slug: "bilbao-old-town", Name: "Bilbao Old Town", Center: bilbao},
		Themes: []domain.Theme{
			{ID: "food", Name: "Food", CategoryIDs: []string{"restaurants", "bars"}},
			{ID: "culture", Name: "Culture", CategoryIDs: []string{"museums"}},
		},
		Categories: []domain.Category{
			{ID: "restaurants", Name: "Restaurants"},
			{ID: "bars", Name: "Bars"},
			{ID: "museums", Name: "Museums"},
			{ID: "parking", Name: "Parking"},
		},
		POIs: []domain.POI{
			{ID: "poi-a", Name: "Café Iruña", Coordinates: north(bilbao, 100), CategoryID: "restaurants"},
			{ID: "poi-b", Name: "Guggenheim", Coordinates: north(bilbao, 900), CategoryID: "museums"},
			{ID: "poi-c", Name: "Bar Motrikes", Coordinates: north(bilbao, 300), CategoryID: "bars"},
			{ID: "poi-d", Name: "Parking Arriaga", Coordinates: north(bilbao, 500), CategoryID: "parking"},
		},
	}
}

func ids(pois []domain.POI) []string {
	out := make([]string, len(pois))
	for i, p := range pois {
		out[i] = p.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
