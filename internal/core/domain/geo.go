package domain

import "github.com/paulmach/orb"

// Coordinates is a WGS 84 position. It is a value type and never mutated in place.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to an orb point (lng, lat order).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Bound converts to an orb bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// RouteData is a fetched route to the selected POI.
// Coordinates are [lng, lat] pairs in travel order.
type RouteData struct {
	POIID             string       `json:"poi_id"`
	Coordinates       [][2]float64 `json:"coordinates"`
	TravelTimeSeconds float64      `json:"travel_time_seconds"`
	DistanceMeters    float64      `json:"distance_meters,omitempty"`
}

// LineString returns the route geometry as an orb line string.
func (r *RouteData) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(r.Coordinates))
	for _, c := range r.Coordinates {
		ls = append(ls, orb.Point{c[0], c[1]})
	}
	return ls
}
