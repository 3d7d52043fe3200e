package domain

import (
	"time"
)

// TransportMode is the travel mode used for enrichment and routing.
type TransportMode string

const (
	ModeWalk TransportMode = "walk"
	ModeBike TransportMode = "bike"
	ModeCar  TransportMode = "car"
)

// TransportModes lists every supported mode in display order.
var TransportModes = []TransportMode{ModeWalk, ModeBike, ModeCar}

// Valid reports whether m is a known transport mode.
func (m TransportMode) Valid() bool {
	switch m {
	case ModeWalk, ModeBike, ModeCar:
		return true
	}
	return false
}

// Profile returns the directions backend profile name for the mode.
func (m TransportMode) Profile() string {
	switch m {
	case ModeBike:
		return "cycling"
	case ModeCar:
		return "driving"
	default:
		return "walking"
	}
}

// Project is a location-based product with its own POI catalog.
type Project struct {
	ID        string      `json:"id"`
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	Center    Coordinates `json:"center"`
	CreatedAt time.Time   `json:"created_at"`
}

// Category groups POIs (e.g. "Restaurants").
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Theme groups categories (e.g. "Food").
type Theme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CategoryIDs []string `json:"category_ids"`
}

// POI is a catalog point of interest. Identity fields are read-only;
// only TravelTimeByMode is attached by enrichment.
type POI struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Coordinates      Coordinates               `json:"coordinates"`
	CategoryID       string                    `json:"category_id"`
	TravelTimeByMode map[TransportMode]float64 `json:"travel_time_by_mode,omitempty"` // seconds
}

// TravelTime returns the travel time in seconds for mode, if known.
func (p POI) TravelTime(mode TransportMode) (float64, bool) {
	if p.TravelTimeByMode == nil {
		return 0, false
	}
	t, ok := p.TravelTimeByMode[mode]
	return t, ok
}

// Catalog is the static-for-the-session data for one project.
type Catalog struct {
	Project    Project    `json:"project"`
	Themes     []Theme    `json:"themes"`
	Categories []Category `json:"categories"`
	POIs       []POI      `json:"pois"`
}

// POIByID returns the POI with the given id.
func (c *Catalog) POIByID(id string) (POI, bool) {
	for _, p := range c.POIs {
		if p.ID == id {
			return p, true
		}
	}
	return POI{}, false
}

// PositionFix is a single reading from the device position capability.
type PositionFix struct {
	Coordinates Coordinates `json:"coordinates"`
	Accuracy    float64     `json:"accuracy"` // meters
	Timestamp   time.Time   `json:"timestamp"`
}
