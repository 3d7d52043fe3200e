package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/geospatial"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// GeolocationConfig tunes the geolocation tracker.
type GeolocationConfig struct {
	ProjectCenter       domain.Coordinates
	NearThresholdMeters float64
	FixTimeout          time.Duration
}

// GeolocationTracker wraps the device position capability and owns GeolocationState.
// No capability failure escapes it: every failure maps to fallback.
type GeolocationTracker struct {
	source ports.PositionSource
	clock  clock.Clock
	cfg    GeolocationConfig
	log    *slog.Logger

	mu      sync.Mutex
	state   domain.GeolocationState
	cancel  context.CancelFunc
	timeout *clock.Timer
	lastFix time.Time

	watchers watchers[domain.GeolocationState]
}

// NewGeolocationTracker creates a tracker in the disabled mode.
func NewGeolocationTracker(source ports.PositionSource, clk clock.Clock, cfg GeolocationConfig, log *slog.Logger) *GeolocationTracker {
	if log == nil {
		log = slog.Default()
	}
	return &GeolocationTracker{
		source: source,
		clock:  clk,
		cfg:    cfg,
		log:    log,
		state: domain.GeolocationState{
			Mode:            domain.GeoDisabled,
			EffectiveOrigin: cfg.ProjectCenter,
		},
	}
}

// State returns a snapshot of the current geolocation state.
func (t *GeolocationTracker) State() domain.GeolocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe registers a listener for state changes.
func (t *GeolocationTracker) Subscribe(fn func(domain.GeolocationState)) (unsubscribe func()) {
	return t.watchers.add(fn)
}

// Enable requests the position capability. Calling it again is a no-op.
// The subscription lives until ctx is cancelled or Close is called.
func (t *GeolocationTracker) Enable(ctx context.Context) {
	t.mu.Lock()
	if t.state.IsEnabled {
		t.mu.Unlock()
		return
	}
	t.state.IsEnabled = true
	t.state.Mode = domain.GeoLoading
	watchCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	if t.cfg.FixTimeout > 0 {
		t.timeout = t.clock.AfterFunc(t.cfg.FixTimeout, func() {
			t.fail(ports.ErrPositionTimeout)
		})
	}
	snap := t.state
	t.mu.Unlock()

	t.watchers.notify(snap)

	if t.source == nil {
		t.fail(ports.ErrPositionUnavailable)
		return
	}
	if err := t.source.Watch(watchCtx, t.handleFix, t.fail); err != nil {
		t.fail(err)
	}
}

// Close tears down the position subscription.
func (t *GeolocationTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *GeolocationTracker) handleFix(fix domain.PositionFix) {
	t.mu.Lock()
	if t.state.Mode != domain.GeoLoading && !t.state.Mode.HasFix() {
		t.mu.Unlock()
		return
	}
	// Fixes can be pushed concurrently; an older one never replaces a newer one.
	if !fix.Timestamp.IsZero() {
		if fix.Timestamp.Before(t.lastFix) {
			t.mu.Unlock()
			t.log.Debug("discarding stale position fix", "timestamp", fix.Timestamp)
			return
		}
		t.lastFix = fix.Timestamp
	}
	if t.timeout != nil {
		t.timeout.Stop()
		t.timeout = nil
	}

	pos := fix.Coordinates
	acc := fix.Accuracy
	dist := geospatial.Haversine(pos.Lat, pos.Lng, t.cfg.ProjectCenter.Lat, t.cfg.ProjectCenter.Lng)

	mode := domain.GeoFar
	if dist <= t.cfg.NearThresholdMeters {
		mode = domain.GeoNear
	}
	t.state.Mode = mode
	t.state.UserPosition = &pos
	t.state.Accuracy = &acc
	t.state.DistanceToProject = &dist
	t.state.EffectiveOrigin = pos
	snap := t.state
	t.mu.Unlock()

	t.watchers.notify(snap)
}

func (t *GeolocationTracker) fail(err error) {
	t.mu.Lock()
	if !t.state.IsEnabled || t.state.Mode == domain.GeoFallback {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.state.Mode = domain.GeoFallback
	t.state.UserPosition = nil
	t.state.Accuracy = nil
	t.state.DistanceToProject = nil
	t.state.EffectiveOrigin = t.cfg.ProjectCenter
	snap := t.state
	t.mu.Unlock()

	metrics.GeolocationFallbacks.WithLabelValues(fallbackReason(err)).Inc()
	t.log.Info("geolocation falling back to project center", "error", err)
	t.watchers.notify(snap)
}

func (t *GeolocationTracker) stopLocked() {
	if t.timeout != nil {
		t.timeout.Stop()
		t.timeout = nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ports.ErrPositionDenied):
		return "denied"
	case errors.Is(err, ports.ErrPositionTimeout):
		return "timeout"
	case errors.Is(err, ports.ErrInsecureContext):
		return "insecure_context"
	default:
		return "unavailable"
	}
}
