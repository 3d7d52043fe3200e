// Package geojson reads POI catalogs published as GeoJSON.
package geojson

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
)

// Properties names the feature properties a POI is read from.
type Properties struct {
	ID       string // default "id"; the feature id is used when absent
	Name     string // default "name"
	Category string // default "category"
}

func (p Properties) withDefaults() Properties {
	if p.ID == "" {
		p.ID = "id"
	}
	if p.Name == "" {
		p.Name = "name"
	}
	if p.Category == "" {
		p.Category = "category"
	}
	return p
}

// ErrNoPOIs is returned when a collection has no usable point features.
var ErrNoPOIs = errors.New("no point features")

// DecodePOIs reads a FeatureCollection into POIs. Point features become POIs
// at their coordinates; polygons and lines use the centroid of their bound.
// Features without an id or category are skipped and counted in skipped.
func DecodePOIs(data []byte, props Properties) (pois []domain.POI, skipped int, err error) {
	props = props.withDefaults()

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode feature collection: %w", err)
	}

	seen := make(map[string]struct{}, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			skipped++
			continue
		}

		id := f.Properties.MustString(props.ID, "")
		if id == "" {
			id = featureID(f.ID)
		}
		category := strings.TrimSpace(f.Properties.MustString(props.Category, ""))
		if id == "" || category == "" {
			skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			skipped++
			continue
		}
		seen[id] = struct{}{}

		pt := representativePoint(f.Geometry)
		pois = append(pois, domain.POI{
			ID:          id,
			Name:        f.Properties.MustString(props.Name, id),
			Coordinates: domain.Coordinates{Lat: pt.Lat(), Lng: pt.Lon()},
			CategoryID:  category,
		})
	}

	if len(pois) == 0 {
		return nil, skipped, ErrNoPOIs
	}
	return pois, skipped, nil
}

func representativePoint(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}

func featureID(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

// Categories returns the distinct category ids of pois in first-seen order.
func Categories(pois []domain.POI) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range pois {
		if _, ok := seen[p.CategoryID]; ok {
			continue
		}
		seen[p.CategoryID] = struct{}{}
		out = append(out, p.CategoryID)
	}
	return out
}
