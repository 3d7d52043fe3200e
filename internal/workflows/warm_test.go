package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
)

type stubCatalog struct {
	cat *domain.Catalog
	err error
}

func (s stubCatalog) Project(ctx context.Context, slug string) (*domain.Catalog, error) {
	return s.cat, s.err
}

type recordingWarmer struct {
	reqs []ports.TravelTimeRequest
	err  error
}

func (r *recordingWarmer) Warm(ctx context.Context, req ports.TravelTimeRequest) (int, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return 0, r.err
	}
	return len(req.POIs), nil
}

func testCatalog() *domain.Catalog {
	return &domain.Catalog{
		Project: domain.Project{ID: "p1", Slug: "bilbao-old-town", Center: domain.Coordinates{Lat: 43.263, Lng: -2.935}},
		POIs: []domain.POI{
			{ID: "a", CategoryID: "restaurants"},
			{ID: "b", CategoryID: "museums"},
		},
	}
}

func TestWarmTravelTimes_UsesProjectCenter(t *testing.T) {
	w := &recordingWarmer{}
	a := &WarmActivities{Catalog: stubCatalog{cat: testCatalog()}, Warmer: w}

	n, err := a.WarmTravelTimes(context.Background(), "bilbao-old-town", domain.ModeBike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 warmed, got %d", n)
	}
	if len(w.reqs) != 1 {
		t.Fatalf("expected one warm request, got %d", len(w.reqs))
	}
	req := w.reqs[0]
	if req.Origin != testCatalog().Project.Center || req.Mode != domain.ModeBike || req.SkipCache {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestWarmTravelTimes_Errors(t *testing.T) {
	a := &WarmActivities{Catalog: stubCatalog{err: ports.ErrNotFound}, Warmer: &recordingWarmer{}}
	if _, err := a.WarmTravelTimes(context.Background(), "nowhere", domain.ModeWalk); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	a = &WarmActivities{Catalog: stubCatalog{cat: testCatalog()}, Warmer: &recordingWarmer{}}
	if _, err := a.WarmTravelTimes(context.Background(), "bilbao-old-town", "rocket"); err == nil {
		t.Error("expected an error for an invalid mode")
	}
}

func TestWarmTravelTimes_EmptyCatalog(t *testing.T) {
	w := &recordingWarmer{}
	cat := testCatalog()
	cat.POIs = nil
	a := &WarmActivities{Catalog: stubCatalog{cat: cat}, Warmer: w}

	n, err := a.WarmTravelTimes(context.Background(), "bilbao-old-town", domain.ModeWalk)
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
	if len(w.reqs) != 0 {
		t.Error("expected no backend call for an empty catalog")
	}
}

func TestWarmTravelTimesWorkflow_AllModes(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	w := &recordingWarmer{}
	env.RegisterActivity(&WarmActivities{Catalog: stubCatalog{cat: testCatalog()}, Warmer: w})

	env.ExecuteWorkflow(WarmTravelTimesWorkflow, WarmInput{ProjectSlug: "bilbao-old-town"})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res WarmResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	for _, mode := range domain.TransportModes {
		if res.Warmed[mode] != 2 {
			t.Errorf("mode %s: expected 2 warmed, got %d", mode, res.Warmed[mode])
		}
	}
	if len(w.reqs) != len(domain.TransportModes) {
		t.Errorf("expected one request per mode, got %d", len(w.reqs))
	}
}

func TestWarmTravelTimesWorkflow_PartialFailure(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterActivity(&WarmActivities{})
	env.OnActivity("WarmTravelTimes", mock.Anything, "bilbao-old-town", domain.ModeCar).
		Return(0, errors.New("backend down"))
	env.OnActivity("WarmTravelTimes", mock.Anything, "bilbao-old-town", mock.Anything).
		Return(5, nil)

	env.ExecuteWorkflow(WarmTravelTimesWorkflow, WarmInput{ProjectSlug: "bilbao-old-town"})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("a single failing mode must not fail the workflow: %v", err)
	}

	var res WarmResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Warmed[domain.ModeCar]; ok {
		t.Error("expected car to be missing from the result")
	}
	if res.Warmed[domain.ModeWalk] != 5 || res.Warmed[domain.ModeBike] != 5 {
		t.Errorf("unexpected result: %+v", res.Warmed)
	}
}
