package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// Pinger is a backing service that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Catalog  *usecases.CatalogService
	Explorer *usecases.ExplorerService
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
}
