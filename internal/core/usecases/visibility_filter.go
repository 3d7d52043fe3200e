package usecases

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/pkg/geospatial"
)

// VisibilityInput is everything the list derivation depends on.
type VisibilityInput struct {
	POIs       []domain.POI
	Themes     []domain.Theme
	Categories []domain.Category
	Disabled   map[string]struct{}
	// Viewport holds the POI ids the map currently shows. nil means the
	// renderer has not reported a viewport yet and nothing is clipped.
	Viewport  map[string]struct{}
	Selection string
	Mode      domain.TransportMode
	Origin    domain.Coordinates
}

// ActiveCategories derives the enabled category set: theme categories that are
// not disabled, plus catalog categories that belong to no theme and are not disabled.
func ActiveCategories(themes []domain.Theme, categories []domain.Category, disabled map[string]struct{}) map[string]struct{} {
	active := make(map[string]struct{})
	themed := make(map[string]struct{})
	for _, th := range themes {
		for _, id := range th.CategoryIDs {
			themed[id] = struct{}{}
			if _, off := disabled[id]; !off {
				active[id] = struct{}{}
			}
		}
	}
	for _, c := range categories {
		if _, ok := themed[c.ID]; ok {
			continue
		}
		if _, off := disabled[c.ID]; !off {
			active[c.ID] = struct{}{}
		}
	}
	return active
}

// ComputeVisible returns the ordered POI list to display.
// The selected POI is always included when its category is active, even if
// the map has panned away from it.
func ComputeVisible(in VisibilityInput) []domain.POI {
	active := ActiveCategories(in.Themes, in.Categories, in.Disabled)

	visible := make([]domain.POI, 0, len(in.POIs))
	var forced *domain.POI
	for i := range in.POIs {
		p := in.POIs[i]
		if _, ok := active[p.CategoryID]; !ok {
			continue
		}
		if in.Viewport != nil {
			if _, inView := in.Viewport[p.ID]; !inView {
				if p.ID == in.Selection {
					forced = &p
				}
				continue
			}
		}
		visible = append(visible, p)
	}
	if forced != nil {
		visible = append(visible, *forced)
	}

	SortByTravelTime(visible, in.Mode, in.Origin)
	return visible
}

// SortByTravelTime orders POIs by known travel time for mode; POIs with a
// known time come first, the rest by planar distance from origin.
func SortByTravelTime(pois []domain.POI, mode domain.TransportMode, origin domain.Coordinates) {
	o := origin.Point()
	dist := func(p domain.POI) float64 {
		return geospatial.Euclidean(o, orb.Point{p.Coordinates.Lng, p.Coordinates.Lat})
	}
	sort.SliceStable(pois, func(i, j int) bool {
		ti, oki := pois[i].TravelTime(mode)
		tj, okj := pois[j].TravelTime(mode)
		switch {
		case oki && okj:
			return ti < tj
		case oki != okj:
			return oki
		default:
			return dist(pois[i]) < dist(pois[j])
		}
	})
}

// ViewportFromBounds returns the ids of the POIs inside b.
func ViewportFromBounds(pois []domain.POI, b domain.Bounds) map[string]struct{} {
	bound := b.Bound()
	ids := make(map[string]struct{})
	for _, p := range pois {
		if bound.Contains(p.Coordinates.Point()) {
			ids[p.ID] = struct{}{}
		}
	}
	return ids
}
