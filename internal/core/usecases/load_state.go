package usecases

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// LoadStateMachine derives the list presentation state from enrichment status.
//
// A first load that resolves faster than minDisplay stays in loading until
// the floor has elapsed, so the skeleton never flashes. Once content has been
// shown, later cycles are reported as refreshing instead of loading.
type LoadStateMachine struct {
	clock      clock.Clock
	minDisplay time.Duration

	mu            sync.Mutex
	state         domain.LoadState
	shownOnce     bool
	loadStartedAt time.Time
	pending       *clock.Timer
	pendingGen    uint64
	lastSeen      uint64

	watchers watchers[domain.LoadState]
}

// NewLoadStateMachine creates a machine in the initial state.
func NewLoadStateMachine(clk clock.Clock, minDisplay time.Duration) *LoadStateMachine {
	return &LoadStateMachine{clock: clk, minDisplay: minDisplay, state: domain.LoadInitial}
}

// State returns the current presentation state.
func (m *LoadStateMachine) State() domain.LoadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HasShownContentOnce reports whether content has been shown this session.
func (m *LoadStateMachine) HasShownContentOnce() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shownOnce
}

// Subscribe registers a listener for state transitions.
func (m *LoadStateMachine) Subscribe(fn func(domain.LoadState)) (unsubscribe func()) {
	return m.watchers.add(fn)
}

// Observe feeds the latest enrichment status into the machine. A status from
// an older enrichment generation than one already observed is ignored.
func (m *LoadStateMachine) Observe(st domain.EnrichmentStatus) {
	m.mu.Lock()
	if st.Generation < m.lastSeen {
		m.mu.Unlock()
		return
	}
	m.lastSeen = st.Generation
	prev := m.state
	now := m.clock.Now()

	switch {
	case st.HasError:
		m.stopPendingLocked()
		m.state = domain.LoadError
	case st.IsLoading:
		m.stopPendingLocked()
		if m.shownOnce {
			m.state = domain.LoadRefreshing
		} else {
			if m.state != domain.LoadLoading {
				m.loadStartedAt = now
			}
			m.state = domain.LoadLoading
		}
	case m.state == domain.LoadInitial:
		// Nothing has been requested yet.
	case m.shownOnce:
		m.state = domain.LoadLoaded
	case m.pending != nil:
		// Already waiting out the display floor.
	default:
		elapsed := now.Sub(m.loadStartedAt)
		if m.state == domain.LoadLoading && elapsed < m.minDisplay {
			m.pendingGen++
			gen := m.pendingGen
			m.pending = m.clock.AfterFunc(m.minDisplay-elapsed, func() { m.finishFirstLoad(gen) })
		} else {
			m.markShownLocked()
		}
	}

	next := m.state
	m.mu.Unlock()

	if next != prev {
		metrics.LoadStateTransitions.WithLabelValues(string(next)).Inc()
		m.watchers.notify(next)
	}
}

// Close stops any pending transition.
func (m *LoadStateMachine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopPendingLocked()
}

func (m *LoadStateMachine) finishFirstLoad(gen uint64) {
	m.mu.Lock()
	if m.pending == nil || gen != m.pendingGen {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	prev := m.state
	m.markShownLocked()
	next := m.state
	m.mu.Unlock()

	if next != prev {
		metrics.LoadStateTransitions.WithLabelValues(string(next)).Inc()
		m.watchers.notify(next)
	}
}

func (m *LoadStateMachine) markShownLocked() {
	m.state = domain.LoadLoaded
	m.shownOnce = true
}

func (m *LoadStateMachine) stopPendingLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.pendingGen++
}
