package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// CatalogLoader loads a project's catalog.
type CatalogLoader interface {
	Project(ctx context.Context, slug string) (*domain.Catalog, error)
}

// TravelTimeWarmer fetches travel times and stores them in the cache.
type TravelTimeWarmer interface {
	Warm(ctx context.Context, req ports.TravelTimeRequest) (int, error)
}

// WarmActivities holds the activity implementations for the warming workflow.
type WarmActivities struct {
	Catalog CatalogLoader
	Warmer  TravelTimeWarmer
	Logger  *slog.Logger
}

// WarmTravelTimes caches travel times from the project center to every POI
// of the project for one transport mode. It returns how many POIs got a time.
func (a *WarmActivities) WarmTravelTimes(ctx context.Context, slug string, mode domain.TransportMode) (int, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("invalid transport mode %q", mode)
	}
	cat, err := a.Catalog.Project(ctx, slug)
	if err != nil {
		return 0, fmt.Errorf("load catalog %s: %w", slug, err)
	}
	if len(cat.POIs) == 0 {
		return 0, nil
	}

	n, err := a.Warmer.Warm(ctx, ports.TravelTimeRequest{
		Origin: cat.Project.Center,
		POIs:   cat.POIs,
		Mode:   mode,
	})
	if err != nil {
		return 0, fmt.Errorf("warm %s/%s: %w", slug, mode, err)
	}

	if a.Logger != nil {
		a.Logger.Info("travel times warmed", "project", slug, "mode", mode, "pois", n)
	}
	return n, nil
}
