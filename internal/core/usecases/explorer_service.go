package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// ExplorerDeps are shared by every session the service starts.
type ExplorerDeps struct {
	Enrichment ports.EnrichmentBackend
	Directions ports.DirectionsBackend
	Publisher  ports.EventPublisher
	// NewPositionSource returns the position source of a new session.
	NewPositionSource func() ports.PositionSource
	Clock             clock.Clock
	Logger            *slog.Logger
}

// ExplorerService owns the live explorer sessions.
type ExplorerService struct {
	catalog *CatalogService
	cfg     SessionConfig
	deps    ExplorerDeps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewExplorerService creates a new ExplorerService.
func NewExplorerService(catalog *CatalogService, cfg SessionConfig, deps ExplorerDeps) *ExplorerService {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &ExplorerService{
		catalog:  catalog,
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// StartSession loads the project's catalog and starts a session over it.
func (s *ExplorerService) StartSession(ctx context.Context, slug string) (*Session, error) {
	cat, err := s.catalog.Project(ctx, slug)
	if err != nil {
		return nil, err
	}

	var source ports.PositionSource
	if s.deps.NewPositionSource != nil {
		source = s.deps.NewPositionSource()
	}

	sess := NewSession(uuid.NewString(), cat, s.cfg, SessionDeps{
		Position:   source,
		Enrichment: s.deps.Enrichment,
		Directions: s.deps.Directions,
		Publisher:  s.deps.Publisher,
		Clock:      s.deps.Clock,
		Logger:     s.deps.Logger,
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	sess.Start()
	s.deps.Logger.Info("session started", "session_id", sess.ID, "project", slug)
	return sess, nil
}

// Get returns a live session.
func (s *ExplorerService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// End closes and forgets a session.
func (s *ExplorerService) End(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

// Count returns the number of live sessions.
func (s *ExplorerService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap ends every session idle for longer than ttl and returns how many.
func (s *ExplorerService) Reap(ttl time.Duration) int {
	now := s.deps.Clock.Now()

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActive()) > ttl {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if s.End(id) == nil {
			n++
		}
	}
	if n > 0 {
		s.deps.Logger.Info("reaped idle sessions", "count", n)
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (s *ExplorerService) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := s.deps.Clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(ttl)
		}
	}
}

// InvalidateProject drops the cached catalog of a project. Live sessions keep
// the catalog they started with.
func (s *ExplorerService) InvalidateProject(ctx context.Context, slug string) error {
	return s.catalog.Invalidate(ctx, slug)
}

// Shutdown ends every session.
func (s *ExplorerService) Shutdown() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.Close()
		metrics.ActiveSessions.Dec()
	}
}
