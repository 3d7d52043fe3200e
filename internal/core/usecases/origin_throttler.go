package usecases

import (
	"time"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/pkg/geospatial"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// ThrottleConfig tunes the origin hysteresis gate.
type ThrottleConfig struct {
	ProjectCenter           domain.Coordinates
	MovementThresholdMeters float64
	Cooldown                time.Duration
}

// throttleMemo is the last accepted gps-near origin. A zero lastCalc means unset.
type throttleMemo struct {
	lastOrigin domain.Coordinates
	lastCalc   time.Time
}

// OriginThrottler decides, per GPS update, which origin enrichment should use.
// It is not safe for concurrent use; the session serialises calls.
type OriginThrottler struct {
	cfg  ThrottleConfig
	memo throttleMemo
}

// NewOriginThrottler creates a throttler with an unset memo.
func NewOriginThrottler(cfg ThrottleConfig) *OriginThrottler {
	return &OriginThrottler{cfg: cfg}
}

// Decide returns the enrichment origin for this tick.
//
// Only gps-near is throttled: the first fix is accepted immediately, later
// fixes only when they moved further than the movement threshold AND the
// cooldown has elapsed since the last accepted origin. Any other mode bypasses
// throttling and resets the memo.
func (o *OriginThrottler) Decide(mode domain.GeolocationMode, position *domain.Coordinates, now time.Time) domain.Coordinates {
	if mode != domain.GeoNear || position == nil {
		o.memo = throttleMemo{}
		metrics.OriginDecisions.WithLabelValues("bypass").Inc()
		if mode == domain.GeoFar && position != nil {
			return *position
		}
		return o.cfg.ProjectCenter
	}

	if o.memo.lastCalc.IsZero() {
		o.accept(*position, now)
		return *position
	}

	moved := geospatial.Haversine(position.Lat, position.Lng, o.memo.lastOrigin.Lat, o.memo.lastOrigin.Lng)
	elapsed := now.Sub(o.memo.lastCalc)
	if moved > o.cfg.MovementThresholdMeters && elapsed > o.cfg.Cooldown {
		o.accept(*position, now)
		return *position
	}

	metrics.OriginDecisions.WithLabelValues("held").Inc()
	return o.memo.lastOrigin
}

func (o *OriginThrottler) accept(p domain.Coordinates, now time.Time) {
	o.memo = throttleMemo{lastOrigin: p, lastCalc: now}
	metrics.OriginDecisions.WithLabelValues("accepted").Inc()
}
