package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// --- Mock CatalogRepository ---

type mockCatalogRepo struct {
	getProjectFn func(ctx context.Context, slug string) (*domain.Project, error)
	calls        int
}

func (m *mockCatalogRepo) GetProject(ctx context.Context, slug string) (*domain.Project, error) {
	m.calls++
	if m.getProjectFn != nil {
		return m.getProjectFn(ctx, slug)
	}
	cat := testCatalog()
	if slug != cat.Project.Slug {
		return nil, ports.ErrNotFound
	}
	return &cat.Project, nil
}

func (m *mockCatalogRepo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return []domain.Project{testCatalog().Project}, nil
}

func (m *mockCatalogRepo) ListThemes(ctx context.Context, projectID string) ([]domain.Theme, error) {
	return testCatalog().Themes, nil
}

func (m *mockCatalogRepo) ListCategories(ctx context.Context, projectID string) ([]domain.Category, error) {
	return testCatalog().Categories, nil
}

func (m *mockCatalogRepo) ListPOIs(ctx context.Context, projectID string) ([]domain.POI, error) {
	return testCatalog().POIs, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Tests ---

func TestCatalogService_Project(t *testing.T) {
	svc := usecases.NewCatalogService(&mockCatalogRepo{}, nil, time.Minute)

	cat, err := svc.Project(context.Background(), "bilbao-old-town")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.POIs) != 4 || len(cat.Themes) != 2 || len(cat.Categories) != 4 {
		t.Errorf("unexpected catalog sizes: %d pois, %d themes, %d categories",
			len(cat.POIs), len(cat.Themes), len(cat.Categories))
	}
}

func TestCatalogService_NotFound(t *testing.T) {
	svc := usecases.NewCatalogService(&mockCatalogRepo{}, nil, time.Minute)

	_, err := svc.Project(context.Background(), "atlantis")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogService_EmptySlug(t *testing.T) {
	svc := usecases.NewCatalogService(&mockCatalogRepo{}, nil, time.Minute)
	if _, err := svc.Project(context.Background(), ""); err == nil {
		t.Error("expected error for empty slug")
	}
}

func TestCatalogService_ReadThroughCache(t *testing.T) {
	repo := &mockCatalogRepo{}
	svc := usecases.NewCatalogService(repo, newMockCache(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Project(ctx, "bilbao-old-town"); err != nil {
			t.Fatal(err)
		}
	}
	if repo.calls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.calls)
	}

	if err := svc.Invalidate(ctx, "bilbao-old-town"); err != nil {
		t.Fatal(err)
	}
	cat, err := svc.Project(ctx, "bilbao-old-town")
	if err != nil {
		t.Fatal(err)
	}
	if repo.calls != 2 {
		t.Errorf("expected reload after invalidate, got %d calls", repo.calls)
	}
	if cat.Project.Center != bilbao {
		t.Errorf("expected center to round-trip, got %v", cat.Project.Center)
	}
}
