package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/poiexplorer/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Position pushes arrive every few seconds per client, so the budget is
	// higher than a catalog-only API would need.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Catalog
	v1.Get("/projects", timeout.NewWithContext(ListProjectsHandler(deps), requestTimeout))
	v1.Get("/projects/:slug", timeout.NewWithContext(GetProjectHandler(deps), requestTimeout))
	v1.Get("/projects/:slug/pois.geojson", timeout.NewWithContext(ProjectPOIsGeoJSONHandler(deps), requestTimeout))

	// Sessions
	v1.Post("/projects/:slug/sessions", timeout.NewWithContext(StartSessionHandler(deps), requestTimeout))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", EndSessionHandler(deps))
	v1.Get("/sessions/:id/route.geojson", RouteGeoJSONHandler(deps))
	v1.Post("/sessions/:id/selection", SelectPOIHandler(deps))
	v1.Put("/sessions/:id/mode", SetTransportModeHandler(deps))
	v1.Post("/sessions/:id/categories/:categoryId/toggle", ToggleCategoryHandler(deps))
	v1.Post("/sessions/:id/themes/:themeId/toggle", ToggleThemeHandler(deps))
	v1.Post("/sessions/:id/geolocation", EnableGeolocationHandler(deps))
	v1.Post("/sessions/:id/position", PushPositionHandler(deps))
	v1.Put("/sessions/:id/viewport", SetViewportHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(SessionStreamHandler(deps)))
}
