package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// RouteFetcher owns the active selection and the route to it.
// At most one request is live at a time: every new selection, refresh or
// clear cancels the previous one, and a response is applied only if its token
// and selection still match.
type RouteFetcher struct {
	backend ports.DirectionsBackend
	lookup  func(id string) (domain.POI, bool)
	log     *slog.Logger

	mu        sync.Mutex
	selection string
	route     *domain.RouteData
	token     uint64
	cancel    context.CancelFunc

	wg       sync.WaitGroup
	watchers watchers[*domain.RouteData]
}

// NewRouteFetcher creates a fetcher. lookup resolves POI ids to catalog entries.
func NewRouteFetcher(backend ports.DirectionsBackend, lookup func(id string) (domain.POI, bool), log *slog.Logger) *RouteFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &RouteFetcher{backend: backend, lookup: lookup, log: log}
}

// Selection returns the active POI id, or "" when nothing is selected.
func (f *RouteFetcher) Selection() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selection
}

// Route returns the route for the active selection, or nil.
func (f *RouteFetcher) Route() *domain.RouteData {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.route == nil {
		return nil
	}
	r := *f.route
	return &r
}

// Subscribe registers a listener called whenever the route is set or cleared.
func (f *RouteFetcher) Subscribe(fn func(*domain.RouteData)) (unsubscribe func()) {
	return f.watchers.add(fn)
}

// Select makes id the active selection and starts fetching its route.
// Selecting the active id again, or passing "", clears the selection.
// It returns the resulting selection.
func (f *RouteFetcher) Select(ctx context.Context, id string, origin domain.Coordinates, mode domain.TransportMode) (string, error) {
	f.mu.Lock()
	if id != "" && id == f.selection {
		id = ""
	}

	var poi domain.POI
	if id != "" {
		var ok bool
		if poi, ok = f.lookup(id); !ok {
			f.mu.Unlock()
			return f.Selection(), fmt.Errorf("%w: %s", ErrUnknownPOI, id)
		}
	}

	f.resetLocked()
	f.selection = id
	if id != "" {
		f.startLocked(ctx, poi, origin, mode)
	}
	f.mu.Unlock()

	f.watchers.notify(nil)
	return id, nil
}

// Clear drops the selection and cancels any in-flight request.
func (f *RouteFetcher) Clear() {
	f.mu.Lock()
	had := f.selection != "" || f.route != nil
	f.resetLocked()
	f.selection = ""
	f.mu.Unlock()

	if had {
		f.watchers.notify(nil)
	}
}

// Refresh re-fetches the route for the current selection, e.g. after the
// transport mode or geolocation mode changed.
func (f *RouteFetcher) Refresh(ctx context.Context, origin domain.Coordinates, mode domain.TransportMode) {
	f.mu.Lock()
	if f.selection == "" {
		f.mu.Unlock()
		return
	}
	poi, ok := f.lookup(f.selection)
	if !ok {
		f.mu.Unlock()
		return
	}
	f.resetLocked()
	f.startLocked(ctx, poi, origin, mode)
	f.mu.Unlock()

	f.watchers.notify(nil)
}

// Wait blocks until every started fetch has resolved.
func (f *RouteFetcher) Wait() {
	f.wg.Wait()
}

func (f *RouteFetcher) resetLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.token++
	f.route = nil
}

func (f *RouteFetcher) startLocked(ctx context.Context, poi domain.POI, origin domain.Coordinates, mode domain.TransportMode) {
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	tok := f.token
	f.wg.Add(1)
	go f.fetch(reqCtx, cancel, tok, poi, origin, mode.Profile())
}

func (f *RouteFetcher) fetch(ctx context.Context, cancel context.CancelFunc, tok uint64, poi domain.POI, origin domain.Coordinates, profile string) {
	defer f.wg.Done()
	defer cancel()

	route, err := f.backend.Route(ctx, origin, poi.Coordinates, profile)

	f.mu.Lock()
	if tok != f.token || f.selection != poi.ID {
		f.mu.Unlock()
		metrics.RouteFetches.WithLabelValues(profile, "superseded").Inc()
		return
	}
	if err != nil {
		f.cancel = nil
		f.mu.Unlock()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			metrics.RouteFetches.WithLabelValues(profile, "cancelled").Inc()
			return
		}
		metrics.RouteFetches.WithLabelValues(profile, "failed").Inc()
		f.log.Warn("route fetch failed", "poi", poi.ID, "profile", profile, "error", err)
		return
	}

	r := *route
	r.POIID = poi.ID
	f.route = &r
	f.cancel = nil
	f.mu.Unlock()

	metrics.RouteFetches.WithLabelValues(profile, "ok").Inc()
	f.watchers.notify(&r)
}
