package geospatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Bilbao Abando to Moyua, roughly 660 m apart.
	d := Haversine(43.2609, -2.9276, 43.2630, -2.9353)
	if d < 600 || d > 700 {
		t.Errorf("expected ~660m, got %.1f", d)
	}
}

func TestHaversine_SamePoint(t *testing.T) {
	if d := Haversine(43.26, -2.93, 43.26, -2.93); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestEuclidean(t *testing.T) {
	d := Euclidean(orb.Point{0, 0}, orb.Point{3, 4})
	if math.Abs(d-5) > 1e-9 {
		t.Errorf("expected 5, got %f", d)
	}
}
