package http_test

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/poiexplorer/api"
)

// TestOpenAPIDocument validates the OpenAPI document is valid.
func TestOpenAPIDocument(t *testing.T) {
	data := api.OpenAPI

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/projects",
		"/v1/projects/{slug}",
		"/v1/projects/{slug}/pois.geojson",
		"/v1/projects/{slug}/sessions",
		"/v1/sessions/{id}",
		"/v1/sessions/{id}/route.geojson",
		"/v1/sessions/{id}/selection",
		"/v1/sessions/{id}/mode",
		"/v1/sessions/{id}/categories/{categoryId}/toggle",
		"/v1/sessions/{id}/themes/{themeId}/toggle",
		"/v1/sessions/{id}/geolocation",
		"/v1/sessions/{id}/position",
		"/v1/sessions/{id}/viewport",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in document", path)
		}
	}

	expectedSchemas := []string{
		"Project",
		"Theme",
		"Category",
		"POI",
		"Catalog",
		"RouteData",
		"GeolocationState",
		"Snapshot",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	data := api.OpenAPI

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	if doc.Info.Title != "POI Explorer API" {
		t.Errorf("expected title 'POI Explorer API', got %q", doc.Info.Title)
	}

	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}

	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", doc.Info.Title, doc.Info.Version, doc.Servers[0].URL)
}

// TestOpenAPICoversRoutes checks every registered /v1 route is documented.
func TestOpenAPICoversRoutes(t *testing.T) {
	data := api.OpenAPI
	doc, err := (&openapi3.Loader{}).LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}

	app := setupApp(makeDeps(t, testRepo()))
	param := regexp.MustCompile(`:([A-Za-z]+)`)
	for _, r := range app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, "/v1/") || r.Method == "HEAD" {
			continue
		}
		path := param.ReplaceAllString(r.Path, "{$1}")
		item := doc.Paths.Find(path)
		if item == nil {
			t.Errorf("route %s %s is not documented", r.Method, path)
			continue
		}
		if item.GetOperation(r.Method) == nil {
			t.Errorf("operation %s %s is not documented", r.Method, path)
		}
	}
}

func TestDocsServesDocument(t *testing.T) {
	app := setupApp(makeDeps(t, testRepo()))

	resp := do(t, app, "GET", "/docs/openapi.yaml", nil)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if ct := resp.Header("Content-Type"); ct != "application/yaml" {
		t.Errorf("expected application/yaml, got %q", ct)
	}
	if !strings.Contains(string(resp.Body), "POI Explorer API") {
		t.Error("expected the embedded document")
	}
}
