package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poiexplorer",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poiexplorer",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Explorer session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "active_sessions",
		Help:      "Current number of live explorer sessions",
	})

	GeolocationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "geolocation_fallbacks_total",
		Help:      "Sessions that fell back to the project center origin",
	}, []string{"reason"})

	OriginDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "origin_decisions_total",
		Help:      "Enrichment origin decisions by outcome (accepted, held, bypass)",
	}, []string{"decision"})

	EnrichmentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "enrichment_requests_total",
		Help:      "Travel-time enrichment requests by outcome",
	}, []string{"mode", "outcome"})

	EnrichmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "enrichment_duration_seconds",
		Help:      "Latency of travel-time enrichment requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	RouteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "route_fetches_total",
		Help:      "Route fetches for selected POIs by outcome",
	}, []string{"profile", "outcome"})

	LoadStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "explorer",
		Name:      "load_state_transitions_total",
		Help:      "Presentation load-state transitions by target state",
	}, []string{"state"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poiexplorer",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poiexplorer",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poiexplorer",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poiexplorer",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poiexplorer",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// normalizePath reduces path cardinality for metrics by replacing IDs with :id.
func normalizePath(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready" || path == "/graphql" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/:id"
	case strings.HasPrefix(path, "/v1/projects/"):
		return "/v1/projects/:slug"
	default:
		return path
	}
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = normalizePath(c.Path())
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Accepts any value with pgxpool.Stat's accessors so this package stays free of pgx.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
