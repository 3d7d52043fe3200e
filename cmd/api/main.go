package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/poiexplorer/internal/adapters/http"
	natsadapter "github.com/samirrijal/poiexplorer/internal/adapters/nats"
	"github.com/samirrijal/poiexplorer/internal/adapters/position"
	"github.com/samirrijal/poiexplorer/internal/adapters/postgres"
	"github.com/samirrijal/poiexplorer/internal/adapters/routing"
	"github.com/samirrijal/poiexplorer/internal/adapters/valkey"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
	"github.com/samirrijal/poiexplorer/internal/pkg/config"
	"github.com/samirrijal/poiexplorer/internal/pkg/logging"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
	"github.com/samirrijal/poiexplorer/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("explorer-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	deps := &http.Dependencies{DB: db}

	// Cache is optional: without it every request goes to the backends.
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS is optional too: session events are best-effort.
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats health conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	// Routing backend
	router := routing.NewClient(routing.Config{
		BaseURL:           cfg.Routing.BaseURL,
		RequestsPerSecond: cfg.Routing.RequestsPerSecond,
		Timeout:           cfg.Routing.Timeout,
	})
	travelTimes := routing.NewCachedTravelTimes(router, cache, cfg.Explorer.TravelCacheTTL)

	// Use cases
	catalog := usecases.NewCatalogService(postgres.NewCatalogRepo(db), cache, cfg.Explorer.CatalogCacheTTL)
	explorer := usecases.NewExplorerService(catalog, usecases.SessionConfig{
		NearThresholdMeters:     cfg.Explorer.NearThresholdMeters,
		MovementThresholdMeters: cfg.Explorer.MovementThresholdMeters,
		Cooldown:                cfg.Explorer.Cooldown,
		MinLoadingDisplay:       cfg.Explorer.MinLoadingDisplay,
		FixTimeout:              cfg.Explorer.FixTimeout,
	}, usecases.ExplorerDeps{
		Enrichment:        travelTimes,
		Directions:        router,
		Publisher:         publisher,
		NewPositionSource: func() ports.PositionSource { return position.NewPush() },
		Logger:            slog.Default(),
	})
	defer explorer.Shutdown()
	deps.Catalog = catalog
	deps.Explorer = explorer

	go explorer.RunReaper(ctx, time.Minute, cfg.Explorer.SessionIdleTTL)

	// Catalog invalidation
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("catalog update subscription unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeCatalogUpdates(ctx, func(ctx context.Context, slug string) error {
			slog.Info("catalog updated", "project", slug)
			return explorer.InvalidateProject(ctx, slug)
		})
		if err != nil {
			slog.Warn("subscribe catalog updates", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "POI Explorer API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
