package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// CatalogRepository persists projects and their POI catalog.
type CatalogRepository interface {
	GetProject(ctx context.Context, slug string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ListThemes(ctx context.Context, projectID string) ([]domain.Theme, error)
	ListCategories(ctx context.Context, projectID string) ([]domain.Category, error)
	ListPOIs(ctx context.Context, projectID string) ([]domain.POI, error)
}
