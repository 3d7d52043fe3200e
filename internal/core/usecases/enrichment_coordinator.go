package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// EnrichOptions controls a single enrichment request.
type EnrichOptions struct {
	// SkipCache is set while the origin is a live gps-near position.
	SkipCache bool
}

// EnrichmentCoordinator attaches travel times to the POI set.
//
// Every Request gets a generation number. A response is applied only if its
// generation is still the latest, so a slow response can never overwrite data
// computed from a newer request.
type EnrichmentCoordinator struct {
	backend ports.EnrichmentBackend
	log     *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	status     domain.EnrichmentStatus
	travel     map[string]map[domain.TransportMode]float64

	wg       sync.WaitGroup
	watchers watchers[domain.EnrichmentStatus]
}

// NewEnrichmentCoordinator creates a coordinator with no travel times.
func NewEnrichmentCoordinator(backend ports.EnrichmentBackend, log *slog.Logger) *EnrichmentCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &EnrichmentCoordinator{
		backend: backend,
		log:     log,
		travel:  make(map[string]map[domain.TransportMode]float64),
	}
}

// Status returns the current busy/error flags.
func (c *EnrichmentCoordinator) Status() domain.EnrichmentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a listener for status changes. Listeners may run
// concurrently with later changes and should re-read Status.
func (c *EnrichmentCoordinator) Subscribe(fn func(domain.EnrichmentStatus)) (unsubscribe func()) {
	return c.watchers.add(fn)
}

// Request starts an enrichment for pois against origin/mode and returns its
// generation. Any pending request is cancelled and superseded.
func (c *EnrichmentCoordinator) Request(ctx context.Context, origin domain.Coordinates, pois []domain.POI, mode domain.TransportMode, opts EnrichOptions) uint64 {
	req := ports.TravelTimeRequest{
		Origin:    origin,
		POIs:      append([]domain.POI(nil), pois...),
		Mode:      mode,
		SkipCache: opts.SkipCache,
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.status.IsLoading = true
	c.status.Generation = gen
	snap := c.status
	c.wg.Add(1)
	c.mu.Unlock()

	c.watchers.notify(snap)
	go c.run(reqCtx, cancel, gen, req)
	return gen
}

// Cancel abandons the pending request, if any. Its response will be discarded.
func (c *EnrichmentCoordinator) Cancel() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.cancel = nil
	c.generation++
	c.status.IsLoading = false
	c.status.Generation = c.generation
	snap := c.status
	c.mu.Unlock()

	c.watchers.notify(snap)
}

// Wait blocks until every started request has resolved.
func (c *EnrichmentCoordinator) Wait() {
	c.wg.Wait()
}

// Enrich returns copies of pois with the known travel times attached.
func (c *EnrichmentCoordinator) Enrich(pois []domain.POI) []domain.POI {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.POI, len(pois))
	for i, p := range pois {
		if times, ok := c.travel[p.ID]; ok && len(times) > 0 {
			m := make(map[domain.TransportMode]float64, len(times))
			for k, v := range times {
				m[k] = v
			}
			p.TravelTimeByMode = m
		} else {
			p.TravelTimeByMode = nil
		}
		out[i] = p
	}
	return out
}

func (c *EnrichmentCoordinator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req ports.TravelTimeRequest) {
	defer c.wg.Done()
	defer cancel()

	mode := string(req.Mode)
	start := time.Now()
	result, err := c.backend.TravelTimes(ctx, req)
	metrics.EnrichmentDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		metrics.EnrichmentRequests.WithLabelValues(mode, "superseded").Inc()
		c.log.Debug("discarding superseded enrichment response", "generation", gen)
		return
	}
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		c.mu.Unlock()
		metrics.EnrichmentRequests.WithLabelValues(mode, "cancelled").Inc()
		return
	}

	c.cancel = nil
	c.status.IsLoading = false
	if err != nil {
		c.status.HasError = true
		metrics.EnrichmentRequests.WithLabelValues(mode, "failed").Inc()
		c.log.Warn("travel-time enrichment failed", "mode", mode, "pois", len(req.POIs), "error", err)
	} else {
		for _, p := range req.POIs {
			times, ok := c.travel[p.ID]
			if !ok {
				times = make(map[domain.TransportMode]float64)
				c.travel[p.ID] = times
			}
			if secs, ok := result[p.ID]; ok {
				times[req.Mode] = secs
			} else {
				delete(times, req.Mode)
			}
		}
		c.status.HasError = false
		metrics.EnrichmentRequests.WithLabelValues(mode, "applied").Inc()
	}
	snap := c.status
	c.mu.Unlock()

	c.watchers.notify(snap)
}
