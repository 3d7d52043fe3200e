package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/poiexplorer/internal/adapters/position"
	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

// wsIntent is a user intent sent by a client over the session stream.
// Action is one of: select, mode, toggle_category, toggle_theme,
// geolocation, position, viewport.
type wsIntent struct {
	Action        string               `json:"action"`
	POIID         string               `json:"poi_id,omitempty"`
	Mode          domain.TransportMode `json:"mode,omitempty"`
	ID            string               `json:"id,omitempty"`
	SecureContext *bool                `json:"secure_context,omitempty"`
	Lat           *float64             `json:"lat,omitempty"`
	Lng           *float64             `json:"lng,omitempty"`
	Accuracy      float64              `json:"accuracy,omitempty"`
	Error         string               `json:"error,omitempty"`
	POIIDs        []string             `json:"poi_ids,omitempty"`
	Bounds        *domain.Bounds       `json:"bounds,omitempty"`
}

// wsEnvelope is every server-to-client frame.
type wsEnvelope struct {
	Type     string           `json:"type"` // "snapshot" | "error"
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
	Code     string           `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
}

var errUnknownAction = errors.New("unknown action")

// applyIntent runs one client intent against the session.
func applyIntent(sess *usecases.Session, in wsIntent) error {
	switch in.Action {
	case "select":
		_, err := sess.SelectPOI(in.POIID)
		return err
	case "mode":
		return sess.SetTransportMode(in.Mode)
	case "toggle_category":
		return sess.ToggleCategory(in.ID)
	case "toggle_theme":
		return sess.ToggleTheme(in.ID)
	case "geolocation":
		if in.SecureContext != nil && !*in.SecureContext {
			if err := sess.MarkInsecureContext(); err != nil {
				return err
			}
		}
		sess.EnableGeolocation()
		return nil
	case "position":
		if in.Error != "" {
			capErr := position.ErrorFromCode(in.Error)
			if capErr == nil {
				return errors.New("unknown position error: " + in.Error)
			}
			return sess.ReportPositionError(capErr)
		}
		if in.Lat == nil || in.Lng == nil {
			return errors.New("lat and lng are required")
		}
		fix := domain.PositionFix{
			Coordinates: domain.Coordinates{Lat: *in.Lat, Lng: *in.Lng},
			Accuracy:    in.Accuracy,
			Timestamp:   time.Now(),
		}
		if err := position.ValidateFix(fix); err != nil {
			return err
		}
		return sess.PushPosition(fix)
	case "viewport":
		switch {
		case in.Bounds != nil:
			sess.SetViewportBounds(*in.Bounds)
		case in.POIIDs != nil:
			sess.SetViewport(in.POIIDs)
		default:
			sess.ClearViewport()
		}
		return nil
	}
	return errUnknownAction
}

// SessionStreamHandler pushes a snapshot to the client after every session
// change and applies intents the client sends back.
// Clients send JSON such as {"action":"select","poi_id":"p1"}.
func SessionStreamHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		logger := slog.Default().With("remote", c.RemoteAddr().String(), "session_id", c.Params("id"))

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		writeErr := func(code, msg string) {
			_ = writeJSON(wsEnvelope{Type: "error", Code: code, Message: msg})
		}

		sess, err := deps.Explorer.Get(c.Params("id"))
		if err != nil {
			writeErr("not_found", err.Error())
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		// Snapshots coalesce: the writer always sends the latest state.
		dirty := make(chan struct{}, 1)
		unsubscribe := sess.Subscribe(func(domain.Snapshot) {
			select {
			case dirty <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
		dirty <- struct{}{}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-dirty:
					snap := sess.Snapshot()
					if err := writeJSON(wsEnvelope{Type: "snapshot", Snapshot: &snap}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var in wsIntent
			if err := json.Unmarshal(msg, &in); err != nil {
				writeErr("bad_request", "invalid JSON")
				continue
			}
			if err := applyIntent(sess, in); err != nil {
				_, code, ok := classify(err)
				if !ok {
					code = "bad_request"
				}
				writeErr(code, err.Error())
			}
		}

		close(done)
		logger.Info("ws client disconnected")
	}
}
