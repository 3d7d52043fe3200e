package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	natsadapter "github.com/samirrijal/poiexplorer/internal/adapters/nats"
	"github.com/samirrijal/poiexplorer/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|notify <slug>...>")
	}

	cfg, err := config.Load("explorer-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		pool := connect(ctx, cfg)
		defer pool.Close()
		runMigrations(ctx, pool, upFiles)
	case "down":
		pool := connect(ctx, cfg)
		defer pool.Close()
		runMigrations(ctx, pool, downFiles)
	case "notify":
		// After editing catalog rows by hand, tell API instances to reload.
		notify(ctx, cfg.NATS.URL, os.Args[2:])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

var upFiles = []string{
	"migrations/001_init_extensions.sql",
	"migrations/002_catalog_tables.sql",
}

var downFiles = []string{
	"migrations/down/002_catalog_tables.sql",
}

func connect(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	return pool
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

func notify(ctx context.Context, natsURL string, slugs []string) {
	if len(slugs) == 0 {
		log.Fatal("usage: migrate notify <slug>...")
	}
	pub, err := natsadapter.NewPublisher(natsURL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	for _, slug := range slugs {
		if err := pub.PublishCatalogUpdated(ctx, slug); err != nil {
			log.Fatalf("notify %s: %v", slug, err)
		}
		fmt.Printf("OK  %s\n", slug)
	}
}
