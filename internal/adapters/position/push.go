// Package position provides position sources for explorer sessions.
package position

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// Push is a ports.PositionSource fed by the client: the browser watches the
// device position and posts fixes and failures to the API.
type Push struct {
	mu       sync.Mutex
	insecure bool
	onFix    func(domain.PositionFix)
	onErr    func(error)
}

// NewPush creates a push source.
func NewPush() *Push {
	return &Push{}
}

// SetInsecure marks the client as running outside a secure context, so the
// next Watch fails immediately.
func (p *Push) SetInsecure(insecure bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insecure = insecure
}

// Watch implements ports.PositionSource.
func (p *Push) Watch(ctx context.Context, onFix func(domain.PositionFix), onErr func(error)) error {
	p.mu.Lock()
	if p.insecure {
		p.mu.Unlock()
		return ports.ErrInsecureContext
	}
	p.onFix, p.onErr = onFix, onErr
	p.mu.Unlock()

	context.AfterFunc(ctx, p.detach)
	return nil
}

// Push delivers a fix. Fixes arriving while nothing watches are dropped.
func (p *Push) Push(fix domain.PositionFix) {
	p.mu.Lock()
	fn := p.onFix
	p.mu.Unlock()
	if fn != nil {
		fn(fix)
	}
}

// Fail reports a terminal capability failure and detaches the watcher.
func (p *Push) Fail(err error) {
	p.mu.Lock()
	fn := p.onErr
	p.onFix, p.onErr = nil, nil
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Push) detach() {
	p.mu.Lock()
	p.onFix, p.onErr = nil, nil
	p.mu.Unlock()
}

// ValidateFix rejects coordinates outside WGS 84 bounds and negative accuracy.
func ValidateFix(fix domain.PositionFix) error {
	c := fix.Coordinates
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range", c.Lng)
	}
	if fix.Accuracy < 0 {
		return fmt.Errorf("accuracy must not be negative")
	}
	return nil
}

// ErrorFromCode maps a client-reported failure code to a capability error.
// It returns nil for unknown codes.
func ErrorFromCode(code string) error {
	switch code {
	case "denied", "permission_denied":
		return ports.ErrPositionDenied
	case "unavailable", "position_unavailable":
		return ports.ErrPositionUnavailable
	case "timeout":
		return ports.ErrPositionTimeout
	case "insecure_context":
		return ports.ErrInsecureContext
	}
	return nil
}
