package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

func newTracker(src ports.PositionSource, clk clock.Clock) *usecases.GeolocationTracker {
	return usecases.NewGeolocationTracker(src, clk, usecases.GeolocationConfig{
		ProjectCenter:       bilbao,
		NearThresholdMeters: 2000,
		FixTimeout:          15 * time.Second,
	}, nil)
}

func TestGeolocationTracker_StartsDisabled(t *testing.T) {
	tr := newTracker(&mockPosition{}, clock.NewMock())
	st := tr.State()
	if st.Mode != domain.GeoDisabled {
		t.Errorf("expected disabled, got %s", st.Mode)
	}
	if st.EffectiveOrigin != bilbao {
		t.Errorf("expected project center origin, got %v", st.EffectiveOrigin)
	}
	if st.IsEnabled {
		t.Error("expected IsEnabled false")
	}
}

func TestGeolocationTracker_NearFix(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())

	tr.Enable(context.Background())
	if got := tr.State().Mode; got != domain.GeoLoading {
		t.Fatalf("expected loading after enable, got %s", got)
	}

	fix := north(bilbao, 50)
	src.at(fix)

	st := tr.State()
	if st.Mode != domain.GeoNear {
		t.Fatalf("expected gps-near, got %s", st.Mode)
	}
	if st.EffectiveOrigin != fix {
		t.Errorf("expected origin %v, got %v", fix, st.EffectiveOrigin)
	}
	if st.DistanceToProject == nil || *st.DistanceToProject < 49 || *st.DistanceToProject > 51 {
		t.Errorf("expected ~50 m distance, got %v", st.DistanceToProject)
	}
	if st.Accuracy == nil || *st.Accuracy != 5 {
		t.Errorf("expected accuracy 5, got %v", st.Accuracy)
	}
}

func TestGeolocationTracker_FarFixAndBack(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())
	tr.Enable(context.Background())

	src.at(north(bilbao, 5000))
	if got := tr.State().Mode; got != domain.GeoFar {
		t.Fatalf("expected gps-far, got %s", got)
	}

	src.at(north(bilbao, 1999))
	if got := tr.State().Mode; got != domain.GeoNear {
		t.Errorf("expected gps-near at the threshold, got %s", got)
	}
}

func TestGeolocationTracker_EnableIsIdempotent(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())
	tr.Enable(context.Background())
	tr.Enable(context.Background())

	src.mu.Lock()
	watched := src.watched
	src.mu.Unlock()
	if watched != 1 {
		t.Errorf("expected one watch, got %d", watched)
	}
}

func TestGeolocationTracker_DeniedFallsBack(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())
	tr.Enable(context.Background())
	src.at(north(bilbao, 50))

	src.Fail(ports.ErrPositionDenied)

	st := tr.State()
	if st.Mode != domain.GeoFallback {
		t.Fatalf("expected fallback, got %s", st.Mode)
	}
	if st.UserPosition != nil || st.DistanceToProject != nil {
		t.Error("expected position cleared on fallback")
	}
	if st.EffectiveOrigin != bilbao {
		t.Errorf("expected center origin, got %v", st.EffectiveOrigin)
	}

	// Fixes after a terminal failure are ignored.
	src.at(north(bilbao, 10))
	if got := tr.State().Mode; got != domain.GeoFallback {
		t.Errorf("expected fallback to stick, got %s", got)
	}
}

func TestGeolocationTracker_WatchErrorFallsBack(t *testing.T) {
	src := &mockPosition{watchErr: ports.ErrInsecureContext}
	tr := newTracker(src, clock.NewMock())
	tr.Enable(context.Background())

	if got := tr.State().Mode; got != domain.GeoFallback {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestGeolocationTracker_NilSourceFallsBack(t *testing.T) {
	tr := newTracker(nil, clock.NewMock())
	tr.Enable(context.Background())

	if got := tr.State().Mode; got != domain.GeoFallback {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestGeolocationTracker_FixTimeout(t *testing.T) {
	clk := clock.NewMock()
	tr := newTracker(&mockPosition{}, clk)
	tr.Enable(context.Background())

	clk.Add(14 * time.Second)
	if got := tr.State().Mode; got != domain.GeoLoading {
		t.Fatalf("expected loading before timeout, got %s", got)
	}

	clk.Add(2 * time.Second)
	waitFor(t, "fallback after fix timeout", func() bool {
		return tr.State().Mode == domain.GeoFallback
	})
}

func TestGeolocationTracker_FixStopsTimeout(t *testing.T) {
	clk := clock.NewMock()
	src := &mockPosition{}
	tr := newTracker(src, clk)
	tr.Enable(context.Background())
	src.at(north(bilbao, 50))

	clk.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	if got := tr.State().Mode; got != domain.GeoNear {
		t.Errorf("expected gps-near to survive the timeout, got %s", got)
	}
}

func TestGeolocationTracker_NotifiesListeners(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())

	var modes []domain.GeolocationMode
	unsubscribe := tr.Subscribe(func(st domain.GeolocationState) {
		modes = append(modes, st.Mode)
	})
	tr.Enable(context.Background())
	src.at(north(bilbao, 50))
	unsubscribe()
	src.at(north(bilbao, 5000))

	want := []domain.GeolocationMode{domain.GeoLoading, domain.GeoNear}
	if len(modes) != len(want) {
		t.Fatalf("expected %v, got %v", want, modes)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], modes[i])
		}
	}
}

func TestGeolocationTracker_StaleFixDiscarded(t *testing.T) {
	src := &mockPosition{}
	tr := newTracker(src, clock.NewMock())
	tr.Enable(context.Background())

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	far := north(bilbao, 5000)
	src.Push(domain.PositionFix{Coordinates: far, Accuracy: 5, Timestamp: t0.Add(time.Second)})
	src.Push(domain.PositionFix{Coordinates: north(bilbao, 50), Accuracy: 5, Timestamp: t0})

	st := tr.State()
	if st.Mode != domain.GeoFar {
		t.Errorf("expected the newer far fix to stand, got %s", st.Mode)
	}
	if st.UserPosition == nil || *st.UserPosition != far {
		t.Errorf("expected position %v, got %v", far, st.UserPosition)
	}
}
