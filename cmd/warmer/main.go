package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/poiexplorer/internal/adapters/nats"
	"github.com/samirrijal/poiexplorer/internal/adapters/postgres"
	"github.com/samirrijal/poiexplorer/internal/adapters/routing"
	"github.com/samirrijal/poiexplorer/internal/adapters/valkey"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
	"github.com/samirrijal/poiexplorer/internal/pkg/config"
	"github.com/samirrijal/poiexplorer/internal/pkg/logging"
	"github.com/samirrijal/poiexplorer/internal/workflows"
)

// warmer runs the travel-time warming worker. Every catalog update starts a
// warm-up of the updated project; `warmer <slug>...` starts them by hand.
func main() {
	cfg, err := config.Load("explorer-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
		Logger:   slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 {
		for _, slug := range os.Args[1:] {
			if err := startWarm(ctx, c, cfg.Temporal.TaskQueue, slug); err != nil {
				log.Fatalf("start warm-up %s: %v", slug, err)
			}
		}
		return
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Warming without a cache has nothing to fill.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	router := routing.NewClient(routing.Config{
		BaseURL:           cfg.Routing.BaseURL,
		RequestsPerSecond: cfg.Routing.RequestsPerSecond,
		Timeout:           cfg.Routing.Timeout,
	})

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.WarmTravelTimesWorkflow)
	w.RegisterActivity(&workflows.WarmActivities{
		// Catalog reads skip the cache so a fresh import is warmed, not the old copy.
		Catalog: usecases.NewCatalogService(postgres.NewCatalogRepo(db), nil, 0),
		Warmer:  routing.NewCachedTravelTimes(router, cache, cfg.Explorer.TravelCacheTTL),
		Logger:  slog.Default(),
	})

	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("catalog update subscription unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeCatalogUpdates(ctx, func(ctx context.Context, slug string) error {
			return startWarm(ctx, c, cfg.Temporal.TaskQueue, slug)
		})
		if err != nil {
			slog.Warn("subscribe catalog updates", "error", err)
		}
	}

	slog.Info("warmer worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// startWarm starts a warm-up for slug. The workflow id is per project, so a
// burst of updates for one project runs a single warm-up.
func startWarm(ctx context.Context, c client.Client, queue, slug string) error {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "warm-travel-times-" + slug,
		TaskQueue: queue,
	}, workflows.WarmTravelTimesWorkflow, workflows.WarmInput{ProjectSlug: slug})
	if err != nil {
		return err
	}
	slog.Info("warm-up started", "project", slug, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
