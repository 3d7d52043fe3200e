package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// CatalogService loads a project's themes, categories and POIs, reading
// through the cache.
type CatalogService struct {
	repo  ports.CatalogRepository
	cache ports.CacheService
	ttl   time.Duration
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(repo ports.CatalogRepository, cache ports.CacheService, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogService{repo: repo, cache: cache, ttl: ttl}
}

var tracer = otel.Tracer("poiexplorer/usecases")

func catalogKey(slug string) string {
	return "catalog:" + slug
}

// Project returns the full catalog for a project slug.
func (s *CatalogService) Project(ctx context.Context, slug string) (*domain.Catalog, error) {
	if slug == "" {
		return nil, fmt.Errorf("project slug must not be empty")
	}

	cacheKey := catalogKey(slug)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cat domain.Catalog
			if err := json.Unmarshal(data, &cat); err == nil {
				metrics.CacheHits.WithLabelValues("catalog").Inc()
				return &cat, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("catalog").Inc()
	}

	ctx, span := tracer.Start(ctx, "catalog.Load")
	span.SetAttributes(attribute.String("project.slug", slug))
	defer span.End()

	cat, err := s.load(ctx, slug)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.pois", len(cat.POIs)))

	if s.cache != nil {
		if data, err := json.Marshal(cat); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.ttl.Seconds()))
		}
	}
	return cat, nil
}

func (s *CatalogService) load(ctx context.Context, slug string) (*domain.Catalog, error) {
	project, err := s.repo.GetProject(ctx, slug)
	if err != nil {
		return nil, err
	}
	themes, err := s.repo.ListThemes(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	categories, err := s.repo.ListCategories(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	pois, err := s.repo.ListPOIs(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list pois: %w", err)
	}
	return &domain.Catalog{
		Project:    *project,
		Themes:     themes,
		Categories: categories,
		POIs:       pois,
	}, nil
}

// ListProjects returns every project.
func (s *CatalogService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// Invalidate drops the cached catalog for slug.
func (s *CatalogService) Invalidate(ctx context.Context, slug string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, catalogKey(slug))
}
