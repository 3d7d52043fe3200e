package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// SessionConfig holds the tuning constants of one explorer session.
type SessionConfig struct {
	NearThresholdMeters     float64
	MovementThresholdMeters float64
	Cooldown                time.Duration
	MinLoadingDisplay       time.Duration
	FixTimeout              time.Duration
}

// SessionDeps are the collaborators of one explorer session.
type SessionDeps struct {
	Position   ports.PositionSource
	Enrichment ports.EnrichmentBackend
	Directions ports.DirectionsBackend
	Publisher  ports.EventPublisher // optional
	Clock      clock.Clock
	Logger     *slog.Logger
}

// positionFeed is a position source that accepts fixes pushed by the client.
type positionFeed interface {
	Push(fix domain.PositionFix)
	Fail(err error)
	SetInsecure(insecure bool)
}

// ErrPositionNotPushable is returned when the session's position source is
// not fed by the client.
var ErrPositionNotPushable = errors.New("position source does not accept pushed fixes")

// Session is one visitor's explorer. It wires the geolocation tracker, origin
// throttler, enrichment coordinator, route fetcher, category filter and load
// state machine together and derives the snapshot the presentation layer renders.
type Session struct {
	ID string

	catalog   *domain.Catalog
	source    ports.PositionSource
	publisher ports.EventPublisher
	clock     clock.Clock
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	Geolocation *GeolocationTracker
	Enrichment  *EnrichmentCoordinator
	Routes      *RouteFetcher
	Categories  *CategoryFilter
	Load        *LoadStateMachine
	throttler   *OriginThrottler

	// seq serialises operations that drive enrichment or routing, so requests
	// are issued in the order their triggers arrived.
	seq         sync.Mutex
	lastOrigin  *domain.Coordinates
	lastGeoMode domain.GeolocationMode

	viewMu     sync.Mutex
	mode       domain.TransportMode
	viewport   map[string]struct{}
	lastActive time.Time
	closed     bool

	unsubs   []func()
	watchers watchers[domain.Snapshot]
}

// NewSession builds a session over catalog. Call Start to begin enrichment.
func NewSession(id string, catalog *domain.Catalog, cfg SessionConfig, deps SessionDeps) *Session {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", id, "project", catalog.Project.Slug)
	center := catalog.Project.Center

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		catalog:   catalog,
		source:    deps.Position,
		publisher: deps.Publisher,
		clock:     clk,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		Geolocation: NewGeolocationTracker(deps.Position, clk, GeolocationConfig{
			ProjectCenter:       center,
			NearThresholdMeters: cfg.NearThresholdMeters,
			FixTimeout:          cfg.FixTimeout,
		}, log),
		Enrichment: NewEnrichmentCoordinator(deps.Enrichment, log),
		Categories: NewCategoryFilter(catalog.Themes, catalog.Categories),
		Load:       NewLoadStateMachine(clk, cfg.MinLoadingDisplay),
		throttler: NewOriginThrottler(ThrottleConfig{
			ProjectCenter:           center,
			MovementThresholdMeters: cfg.MovementThresholdMeters,
			Cooldown:                cfg.Cooldown,
		}),
		lastGeoMode: domain.GeoDisabled,
		mode:        domain.ModeWalk,
		lastActive:  clk.Now(),
	}
	s.Routes = NewRouteFetcher(deps.Directions, catalog.POIByID, log)
	return s
}

// Start subscribes the components to each other and issues the first
// enrichment from the project center.
func (s *Session) Start() {
	s.unsubs = append(s.unsubs,
		s.Geolocation.Subscribe(s.onGeolocation),
		s.Enrichment.Subscribe(func(domain.EnrichmentStatus) {
			// Re-read: notifications can interleave with newer changes.
			s.Load.Observe(s.Enrichment.Status())
			s.emit()
		}),
		s.Load.Subscribe(func(st domain.LoadState) {
			s.publish(domain.EventLoadState, string(st))
			s.emit()
		}),
		s.Routes.Subscribe(func(*domain.RouteData) { s.emit() }),
	)
	s.onGeolocation(s.Geolocation.State())
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() *domain.Catalog {
	return s.catalog
}

// Subscribe registers a snapshot listener.
func (s *Session) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	return s.watchers.add(fn)
}

// TransportMode returns the current transport mode.
func (s *Session) TransportMode() domain.TransportMode {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.mode
}

// LastActive returns when the session last handled an intent.
func (s *Session) LastActive() time.Time {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.lastActive
}

// SelectPOI selects id, or toggles it off when already selected. "" clears.
func (s *Session) SelectPOI(id string) (string, error) {
	s.touch()
	s.seq.Lock()
	geo := s.Geolocation.State()
	sel, err := s.Routes.Select(s.ctx, id, s.routeOrigin(geo), s.TransportMode())
	s.seq.Unlock()
	if err != nil {
		return sel, err
	}
	s.publish(domain.EventSelection, sel)
	s.emit()
	return sel, nil
}

// SetTransportMode switches the mode, re-enriching and re-routing.
func (s *Session) SetTransportMode(mode domain.TransportMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTransportMode, mode)
	}
	s.touch()

	s.seq.Lock()
	s.viewMu.Lock()
	if s.mode == mode {
		s.viewMu.Unlock()
		s.seq.Unlock()
		return nil
	}
	s.mode = mode
	s.viewMu.Unlock()

	geo := s.Geolocation.State()
	origin := s.catalog.Project.Center
	if s.lastOrigin != nil {
		origin = *s.lastOrigin
	}
	s.Enrichment.Request(s.ctx, origin, s.catalog.POIs, mode, EnrichOptions{SkipCache: geo.Mode == domain.GeoNear})
	s.Routes.Refresh(s.ctx, s.routeOrigin(geo), mode)
	s.seq.Unlock()

	s.publish(domain.EventTransportMode, string(mode))
	s.emit()
	return nil
}

// ToggleCategory flips one category.
func (s *Session) ToggleCategory(id string) error {
	s.touch()
	if err := s.Categories.ToggleCategory(id); err != nil {
		return err
	}
	s.emit()
	return nil
}

// ToggleTheme flips every category of a theme.
func (s *Session) ToggleTheme(id string) error {
	s.touch()
	if err := s.Categories.ToggleTheme(id); err != nil {
		return err
	}
	s.emit()
	return nil
}

// EnableGeolocation requests the position capability.
func (s *Session) EnableGeolocation() {
	s.touch()
	s.Geolocation.Enable(s.ctx)
}

// MarkInsecureContext records that the client page is not a secure context,
// so the next EnableGeolocation falls back immediately.
func (s *Session) MarkInsecureContext() error {
	feed, ok := s.source.(positionFeed)
	if !ok {
		return ErrPositionNotPushable
	}
	feed.SetInsecure(true)
	return nil
}

// PushPosition forwards a client-reported fix to the position source.
func (s *Session) PushPosition(fix domain.PositionFix) error {
	feed, ok := s.source.(positionFeed)
	if !ok {
		return ErrPositionNotPushable
	}
	s.touch()
	feed.Push(fix)
	return nil
}

// ReportPositionError forwards a client-reported capability failure.
func (s *Session) ReportPositionError(err error) error {
	feed, ok := s.source.(positionFeed)
	if !ok {
		return ErrPositionNotPushable
	}
	s.touch()
	feed.Fail(err)
	return nil
}

// SetViewport replaces the set of POI ids visible on the map.
func (s *Session) SetViewport(ids []string) {
	vp := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		vp[id] = struct{}{}
	}
	s.setViewport(vp)
}

// SetViewportBounds derives the viewport from a map bounding box.
func (s *Session) SetViewportBounds(b domain.Bounds) {
	s.setViewport(ViewportFromBounds(s.catalog.POIs, b))
}

// ClearViewport removes any viewport restriction.
func (s *Session) ClearViewport() {
	s.setViewport(nil)
}

// Snapshot derives the current presentation state.
func (s *Session) Snapshot() domain.Snapshot {
	enriched := s.Enrichment.Enrich(s.catalog.POIs)
	geo := s.Geolocation.State()
	sel := s.Routes.Selection()
	route := s.Routes.Route()

	s.viewMu.Lock()
	mode := s.mode
	var viewport map[string]struct{}
	if s.viewport != nil {
		viewport = make(map[string]struct{}, len(s.viewport))
		for k := range s.viewport {
			viewport[k] = struct{}{}
		}
	}
	s.viewMu.Unlock()

	ordered := ComputeVisible(VisibilityInput{
		POIs:       enriched,
		Themes:     s.catalog.Themes,
		Categories: s.catalog.Categories,
		Disabled:   s.Categories.DisabledSet(),
		Viewport:   viewport,
		Selection:  sel,
		Mode:       mode,
		Origin:     geo.EffectiveOrigin,
	})

	if route != nil && route.POIID != sel {
		route = nil
	}
	var selection *string
	if sel != "" {
		selection = &sel
	}

	return domain.Snapshot{
		SessionID:          s.ID,
		OrderedPOIs:        ordered,
		LoadState:          s.Load.State(),
		RouteData:          route,
		Geolocation:        geo,
		Selection:          selection,
		TransportMode:      mode,
		DisabledCategories: s.Categories.Disabled(),
		ActiveCategories:   s.Categories.Active(),
	}
}

// Close ends the session and releases its subscriptions.
func (s *Session) Close() {
	s.viewMu.Lock()
	if s.closed {
		s.viewMu.Unlock()
		return
	}
	s.closed = true
	s.viewMu.Unlock()

	for _, u := range s.unsubs {
		u()
	}
	s.cancel()
	s.Geolocation.Close()
	s.Enrichment.Cancel()
	s.Routes.Clear()
	s.Load.Close()
}

// Wait blocks until in-flight enrichment and route requests have resolved.
func (s *Session) Wait() {
	s.Enrichment.Wait()
	s.Routes.Wait()
}

// onGeolocation re-reads the tracker state: notifications for concurrent
// fixes can arrive out of order, and only the current state may decide.
func (s *Session) onGeolocation(domain.GeolocationState) {
	s.seq.Lock()
	geo := s.Geolocation.State()
	origin := s.throttler.Decide(geo.Mode, geo.UserPosition, s.clock.Now())
	modeChanged := geo.Mode != s.lastGeoMode
	s.lastGeoMode = geo.Mode

	if s.lastOrigin == nil || *s.lastOrigin != origin {
		s.lastOrigin = &origin
		s.Enrichment.Request(s.ctx, origin, s.catalog.POIs, s.TransportMode(), EnrichOptions{
			SkipCache: geo.Mode == domain.GeoNear,
		})
	}
	// Routes refresh on mode transitions only, not on every origin move.
	if modeChanged {
		s.Routes.Refresh(s.ctx, s.routeOrigin(geo), s.TransportMode())
	}
	s.seq.Unlock()

	if modeChanged {
		s.publish(domain.EventGeolocation, string(geo.Mode))
	}
	s.emit()
}

// routeOrigin is the live position when there is one, else the project center.
// It is deliberately not throttled.
func (s *Session) routeOrigin(geo domain.GeolocationState) domain.Coordinates {
	if geo.UserPosition != nil {
		return *geo.UserPosition
	}
	return s.catalog.Project.Center
}

func (s *Session) setViewport(vp map[string]struct{}) {
	s.viewMu.Lock()
	s.viewport = vp
	s.lastActive = s.clock.Now()
	s.viewMu.Unlock()
	s.emit()
}

func (s *Session) touch() {
	s.viewMu.Lock()
	s.lastActive = s.clock.Now()
	s.viewMu.Unlock()
}

func (s *Session) emit() {
	s.viewMu.Lock()
	closed := s.closed
	s.viewMu.Unlock()
	if closed {
		return
	}
	s.watchers.notify(s.Snapshot())
}

func (s *Session) publish(kind domain.SessionEventKind, value string) {
	if s.publisher == nil {
		return
	}
	ev := &domain.SessionEvent{
		SessionID:   s.ID,
		ProjectSlug: s.catalog.Project.Slug,
		Kind:        kind,
		Value:       value,
		Time:        s.clock.Now(),
	}
	if err := s.publisher.PublishSessionEvent(s.ctx, ev); err != nil {
		s.log.Debug("publish session event failed", "kind", kind, "error", err)
	}
}
