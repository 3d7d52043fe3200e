package domain

import "time"

// GeolocationMode is the discrete state of the geolocation tracker.
type GeolocationMode string

const (
	GeoDisabled GeolocationMode = "disabled"
	GeoLoading  GeolocationMode = "loading"
	GeoFallback GeolocationMode = "fallback"
	GeoNear     GeolocationMode = "gps-near"
	GeoFar      GeolocationMode = "gps-far"
)

// HasFix reports whether the mode carries a live user position.
func (m GeolocationMode) HasFix() bool {
	return m == GeoNear || m == GeoFar
}

// GeolocationState is owned by the geolocation tracker. EffectiveOrigin is always set.
type GeolocationState struct {
	Mode              GeolocationMode `json:"mode"`
	UserPosition      *Coordinates    `json:"user_position,omitempty"`
	Accuracy          *float64        `json:"accuracy,omitempty"`
	IsEnabled         bool            `json:"is_enabled"`
	DistanceToProject *float64        `json:"distance_to_project,omitempty"` // meters
	EffectiveOrigin   Coordinates     `json:"effective_origin"`
}

// LoadState is the presentation state of the POI list.
type LoadState string

const (
	LoadInitial    LoadState = "initial"
	LoadLoading    LoadState = "loading"
	LoadLoaded     LoadState = "loaded"
	LoadError      LoadState = "error"
	LoadRefreshing LoadState = "refreshing"
)

// EnrichmentStatus is the busy/error flag exposed by the enrichment coordinator.
type EnrichmentStatus struct {
	IsLoading  bool   `json:"is_loading"`
	HasError   bool   `json:"has_error"`
	Generation uint64 `json:"generation"`
}

// Snapshot is everything the presentation layer renders for a session.
type Snapshot struct {
	SessionID          string           `json:"session_id"`
	OrderedPOIs        []POI            `json:"ordered_pois"`
	LoadState          LoadState        `json:"load_state"`
	RouteData          *RouteData       `json:"route_data"`
	Geolocation        GeolocationState `json:"geolocation"`
	Selection          *string          `json:"selection"`
	TransportMode      TransportMode    `json:"transport_mode"`
	DisabledCategories []string         `json:"disabled_categories"`
	ActiveCategories   []string         `json:"active_categories"`
}

// SessionEventKind names a published session event.
type SessionEventKind string

const (
	EventSelection     SessionEventKind = "selection"
	EventTransportMode SessionEventKind = "transport_mode"
	EventLoadState     SessionEventKind = "load_state"
	EventGeolocation   SessionEventKind = "geolocation"
)

// SessionEvent is an analytics event emitted by an explorer session.
type SessionEvent struct {
	SessionID   string           `json:"session_id"`
	ProjectSlug string           `json:"project_slug"`
	Kind        SessionEventKind `json:"kind"`
	Value       string           `json:"value"`
	Time        time.Time        `json:"time"`
}
