package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/poiexplorer/internal/adapters/geojson"
	natsadapter "github.com/samirrijal/poiexplorer/internal/adapters/nats"
	"github.com/samirrijal/poiexplorer/internal/adapters/postgres"
	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/pkg/config"
	"github.com/samirrijal/poiexplorer/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Projects []ProjectEntry `json:"projects"`
}

type ProjectEntry struct {
	Slug       string             `json:"slug"`
	Name       string             `json:"name"`
	Center     domain.Coordinates `json:"center"`
	Categories []domain.Category  `json:"categories"`
	Themes     []domain.Theme     `json:"themes"`
	// POIs is a GeoJSON FeatureCollection, as a URL or a local path.
	POIs       string             `json:"pois"`
	Properties geojson.Properties `json:"properties"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("explorer-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewCatalogRepo(db)

	// API instances drop their cached catalog when told to.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, caches will expire on their own", "error", err)
	} else {
		defer pub.Close()
	}

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	// Optional CLI arg: comma-separated slug filter
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	slog.Info("importing catalogs", "projects", len(manifest.Projects), "manifest", manifestPath)

	client := &http.Client{Timeout: 60 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)
	for _, p := range manifest.Projects {
		if len(slugFilter) > 0 && !slugFilter[p.Slug] {
			continue
		}

		wg.Add(1)
		go func(p ProjectEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importProject(ctx, repo, client, p); err != nil {
				slog.Error("import failed", "project", p.Slug, "error", err)
				return
			}
			if pub != nil {
				if err := pub.PublishCatalogUpdated(ctx, p.Slug); err != nil {
					slog.Warn("publish catalog update", "project", p.Slug, "error", err)
				}
			}
		}(p)
	}

	wg.Wait()
	slog.Info("import complete")
}

// ---------------------------------------------------------------------------
// Per-project import
// ---------------------------------------------------------------------------

func importProject(ctx context.Context, repo *postgres.CatalogRepo, client *http.Client, p ProjectEntry) error {
	raw, err := load(ctx, client, p.POIs)
	if err != nil {
		return fmt.Errorf("load pois: %w", err)
	}
	pois, skipped, err := geojson.DecodePOIs(raw, p.Properties)
	if err != nil {
		return err
	}

	// Categories used by POIs but missing from the manifest get their id as name.
	categories := p.Categories
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, id := range geojson.Categories(pois) {
		if !known[id] {
			categories = append(categories, domain.Category{ID: id, Name: id})
		}
	}

	projectID, err := repo.UpsertProject(ctx, &domain.Project{Slug: p.Slug, Name: p.Name, Center: p.Center})
	if err != nil {
		return err
	}
	if err := repo.UpsertTaxonomy(ctx, projectID, categories, p.Themes); err != nil {
		return err
	}
	if err := repo.UpsertPOIs(ctx, projectID, pois); err != nil {
		return fmt.Errorf("upsert pois: %w", err)
	}

	slog.Info("project imported", "project", p.Slug, "pois", len(pois), "skipped", skipped, "categories", len(categories))
	return nil
}

func load(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}
	return io.ReadAll(resp.Body)
}
