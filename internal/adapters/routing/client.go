package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

// maxTableDestinations keeps table requests under the public OSRM limit of
// 100 coordinates per request, including the source.
const maxTableDestinations = 99

var tracer = otel.Tracer("poiexplorer/routing")

// Config configures an OSRM client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to an OSRM-compatible routing server. It implements
// ports.DirectionsBackend and ports.EnrichmentBackend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a rate-limited OSRM client.
func NewClient(cfg Config) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
}

// Route returns the full route geometry from origin to destination.
func (c *Client) Route(ctx context.Context, origin, destination domain.Coordinates, profile string) (*domain.RouteData, error) {
	ctx, span := tracer.Start(ctx, "routing.Route")
	defer span.End()
	span.SetAttributes(attribute.String("routing.profile", profile))

	url := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		c.baseURL, profile, lngLat(origin), lngLat(destination))

	var data routeResponse
	if err := c.get(ctx, url, &data); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if data.Code == "NoRoute" || (data.Code == "Ok" && len(data.Routes) == 0) {
		return nil, ports.ErrNoRoute
	}
	if data.Code != "Ok" {
		err := fmt.Errorf("osrm route: %s: %s", data.Code, data.Message)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := data.Routes[0]
	return &domain.RouteData{
		Coordinates:       r.Geometry.Coordinates,
		TravelTimeSeconds: r.Duration,
		DistanceMeters:    r.Distance,
	}, nil
}

// TravelTimes returns one-to-many durations from req.Origin, in seconds.
// POIs OSRM cannot reach are left out of the result.
func (c *Client) TravelTimes(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
	ctx, span := tracer.Start(ctx, "routing.TravelTimes")
	defer span.End()
	profile := req.Mode.Profile()
	span.SetAttributes(
		attribute.String("routing.profile", profile),
		attribute.Int("routing.destinations", len(req.POIs)),
	)

	out := make(map[string]float64, len(req.POIs))
	for start := 0; start < len(req.POIs); start += maxTableDestinations {
		end := start + maxTableDestinations
		if end > len(req.POIs) {
			end = len(req.POIs)
		}
		if err := c.table(ctx, req.Origin, req.POIs[start:end], profile, out); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) table(ctx context.Context, origin domain.Coordinates, pois []domain.POI, profile string, out map[string]float64) error {
	coords := make([]string, 0, len(pois)+1)
	coords = append(coords, lngLat(origin))
	for _, p := range pois {
		coords = append(coords, lngLat(p.Coordinates))
	}
	url := fmt.Sprintf("%s/table/v1/%s/%s?sources=0&annotations=duration",
		c.baseURL, profile, strings.Join(coords, ";"))

	var data tableResponse
	if err := c.get(ctx, url, &data); err != nil {
		return err
	}
	if data.Code != "Ok" {
		return fmt.Errorf("osrm table: %s: %s", data.Code, data.Message)
	}
	if len(data.Durations) == 0 || len(data.Durations[0]) != len(pois)+1 {
		return fmt.Errorf("osrm table: unexpected matrix shape")
	}

	row := data.Durations[0]
	for i, p := range pois {
		if d := row[i+1]; d != nil {
			out[p.ID] = *d
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	// OSRM reports NoRoute and friends with a 400 and a JSON body.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("osrm returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("osrm decode: %w", err)
	}
	return nil
}

func lngLat(c domain.Coordinates) string {
	return fmt.Sprintf("%f,%f", c.Lng, c.Lat)
}
