package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/poiexplorer/internal/adapters/position"
	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// ListProjectsHandler returns all projects.
func ListProjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projects, err := deps.Catalog.ListProjects(c.UserContext())
		if err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(paginate(c, projects))
	}
}

// GetProjectHandler returns a project's full catalog.
func GetProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cat, err := deps.Catalog.Project(c.UserContext(), c.Params("slug"))
		if err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(cat)
	}
}

// ProjectPOIsGeoJSONHandler returns a project's POIs as a GeoJSON FeatureCollection.
func ProjectPOIsGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cat, err := deps.Catalog.Project(c.UserContext(), c.Params("slug"))
		if err != nil {
			return errFromUsecase(c, err)
		}

		fc := geojson.NewFeatureCollection()
		for _, p := range cat.POIs {
			f := geojson.NewFeature(p.Coordinates.Point())
			f.ID = p.ID
			f.Properties["name"] = p.Name
			f.Properties["category_id"] = p.CategoryID
			fc.Append(f)
		}

		data, err := fc.MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

type sessionCreated struct {
	ID       string          `json:"id"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// StartSessionHandler opens an explorer session on a project.
func StartSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Explorer.StartSession(c.UserContext(), c.Params("slug"))
		if err != nil {
			return errFromUsecase(c, err)
		}
		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(sessionCreated{ID: sess.ID, Snapshot: sess.Snapshot()})
	}
}

// withSession resolves the :id parameter and hands the session to fn.
func withSession(deps *Dependencies, fn func(c *fiber.Ctx, sess *usecases.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Explorer.Get(c.Params("id"))
		if err != nil {
			return errFromUsecase(c, err)
		}
		c.Locals("session_id", sess.ID)
		return fn(c, sess)
	}
}

// GetSessionHandler returns the session's current snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		return c.JSON(sess.Snapshot())
	})
}

// EndSessionHandler closes a session.
func EndSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Explorer.End(c.Params("id")); err != nil {
			return errFromUsecase(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RouteGeoJSONHandler returns the active route as a GeoJSON Feature.
func RouteGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		route := sess.Snapshot().RouteData
		if route == nil {
			return errNotFound(c, "no route for the current selection")
		}

		f := geojson.NewFeature(route.LineString())
		f.Properties["poi_id"] = route.POIID
		f.Properties["travel_time_seconds"] = route.TravelTimeSeconds
		f.Properties["distance_meters"] = route.DistanceMeters

		data, err := f.MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	})
}

type selectionRequest struct {
	POIID string `json:"poi_id"`
}

// SelectPOIHandler selects a POI. Selecting the active POI again, or sending
// an empty id, clears the selection.
func SelectPOIHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req selectionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if _, err := sess.SelectPOI(req.POIID); err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(sess.Snapshot())
	})
}

type modeRequest struct {
	Mode domain.TransportMode `json:"mode"`
}

// SetTransportModeHandler switches between walk, bike and car.
func SetTransportModeHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req modeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := sess.SetTransportMode(req.Mode); err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(sess.Snapshot())
	})
}

// ToggleCategoryHandler flips a single category.
func ToggleCategoryHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		if err := sess.ToggleCategory(c.Params("categoryId")); err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(sess.Snapshot())
	})
}

// ToggleThemeHandler flips every category of a theme.
func ToggleThemeHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		if err := sess.ToggleTheme(c.Params("themeId")); err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(sess.Snapshot())
	})
}

type geolocationRequest struct {
	// SecureContext is false when the browser refuses geolocation outright.
	SecureContext *bool `json:"secure_context"`
}

// EnableGeolocationHandler asks the session to start tracking the device.
func EnableGeolocationHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req geolocationRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.SecureContext != nil && !*req.SecureContext {
			if err := sess.MarkInsecureContext(); err != nil {
				return errFromUsecase(c, err)
			}
		}
		sess.EnableGeolocation()
		return c.JSON(sess.Snapshot())
	})
}

type positionRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
	// Error reports a capability failure instead of a fix:
	// denied, unavailable, timeout or insecure_context.
	Error string `json:"error"`
}

// PushPositionHandler accepts a fix or a capability failure from the client.
func PushPositionHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		if req.Error != "" {
			capErr := position.ErrorFromCode(req.Error)
			if capErr == nil {
				return errBadRequest(c, "unknown position error: "+req.Error)
			}
			if err := sess.ReportPositionError(capErr); err != nil {
				return errFromUsecase(c, err)
			}
			return c.JSON(sess.Snapshot())
		}

		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}
		fix := domain.PositionFix{
			Coordinates: domain.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
			Accuracy:    req.Accuracy,
			Timestamp:   time.Now(),
		}
		if req.Timestamp != nil {
			fix.Timestamp = *req.Timestamp
		}
		if err := position.ValidateFix(fix); err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := sess.PushPosition(fix); err != nil {
			return errFromUsecase(c, err)
		}
		return c.JSON(sess.Snapshot())
	})
}

type viewportRequest struct {
	POIIDs []string       `json:"poi_ids"`
	Bounds *domain.Bounds `json:"bounds"`
}

// SetViewportHandler reports what the map currently shows, either as POI ids
// or as a bounding box. An empty body clears the viewport.
func SetViewportHandler(deps *Dependencies) fiber.Handler {
	return withSession(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req viewportRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		switch {
		case req.Bounds != nil && req.POIIDs != nil:
			return errBadRequest(c, "send either poi_ids or bounds, not both")
		case req.Bounds != nil:
			b := *req.Bounds
			if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
				return errBadRequest(c, "bounds min must not exceed max")
			}
			sess.SetViewportBounds(b)
		case req.POIIDs != nil:
			sess.SetViewport(req.POIIDs)
		default:
			sess.ClearViewport()
		}
		return c.JSON(sess.Snapshot())
	})
}
