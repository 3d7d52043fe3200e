package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// gatedReply resolves one blocked TravelTimes call.
type gatedReply struct {
	times map[string]float64
	err   error
}

// gatedEnrichment blocks every call until the test releases it, ignoring
// cancellation so that late responses really do arrive late.
func gatedEnrichment() (*mockEnrichment, chan chan gatedReply) {
	calls := make(chan chan gatedReply, 16)
	m := &mockEnrichment{
		travelTimesFn: func(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
			reply := make(chan gatedReply)
			calls <- reply
			r := <-reply
			return r.times, r.err
		},
	}
	return m, calls
}

func TestEnrichmentCoordinator_AppliesResult(t *testing.T) {
	backend := &mockEnrichment{
		travelTimesFn: func(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
			return map[string]float64{"poi-a": 120, "poi-b": 600}, nil
		},
	}
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	cat := testCatalog()

	c.Request(context.Background(), bilbao, cat.POIs, domain.ModeWalk, usecases.EnrichOptions{})
	c.Wait()

	st := c.Status()
	if st.IsLoading || st.HasError {
		t.Fatalf("expected idle status, got %+v", st)
	}
	enriched := c.Enrich(cat.POIs)
	if got, ok := enriched[0].TravelTime(domain.ModeWalk); !ok || got != 120 {
		t.Errorf("expected poi-a 120s, got %v (%v)", got, ok)
	}
	if _, ok := enriched[2].TravelTime(domain.ModeWalk); ok {
		t.Error("expected poi-c to have no travel time")
	}
	if cat.POIs[0].TravelTimeByMode != nil {
		t.Error("catalog POIs must not be mutated")
	}
}

func TestEnrichmentCoordinator_PassesRequest(t *testing.T) {
	backend := &mockEnrichment{}
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	origin := north(bilbao, 10)

	c.Request(context.Background(), origin, testCatalog().POIs, domain.ModeBike, usecases.EnrichOptions{SkipCache: true})
	c.Wait()

	reqs := backend.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Origin != origin || reqs[0].Mode != domain.ModeBike || !reqs[0].SkipCache {
		t.Errorf("unexpected request %+v", reqs[0])
	}
}

func TestEnrichmentCoordinator_NoStaleOverwrite(t *testing.T) {
	backend, calls := gatedEnrichment()
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	pois := testCatalog().POIs[:1]

	c.Request(context.Background(), bilbao, pois, domain.ModeWalk, usecases.EnrichOptions{})
	replyA := <-calls
	c.Request(context.Background(), north(bilbao, 100), pois, domain.ModeWalk, usecases.EnrichOptions{})
	replyB := <-calls

	// B resolves first, then the stale A arrives.
	replyB <- gatedReply{times: map[string]float64{"poi-a": 200}}
	waitFor(t, "B applied", func() bool { return !c.Status().IsLoading })
	replyA <- gatedReply{times: map[string]float64{"poi-a": 999}}
	c.Wait()

	got, _ := c.Enrich(pois)[0].TravelTime(domain.ModeWalk)
	if got != 200 {
		t.Errorf("expected B's 200s to survive, got %v", got)
	}
	if c.Status().IsLoading {
		t.Error("expected stale response to leave status idle")
	}
}

func TestEnrichmentCoordinator_StaleErrorIgnored(t *testing.T) {
	backend, calls := gatedEnrichment()
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	pois := testCatalog().POIs[:1]

	c.Request(context.Background(), bilbao, pois, domain.ModeWalk, usecases.EnrichOptions{})
	replyA := <-calls
	c.Request(context.Background(), bilbao, pois, domain.ModeCar, usecases.EnrichOptions{})
	replyB := <-calls

	replyA <- gatedReply{err: errors.New("upstream 502")}
	replyB <- gatedReply{times: map[string]float64{"poi-a": 60}}
	c.Wait()

	if st := c.Status(); st.HasError || st.IsLoading {
		t.Errorf("expected clean status, got %+v", st)
	}
}

func TestEnrichmentCoordinator_ErrorKeepsPriorValues(t *testing.T) {
	fail := false
	backend := &mockEnrichment{
		travelTimesFn: func(ctx context.Context, req ports.TravelTimeRequest) (map[string]float64, error) {
			if fail {
				return nil, errors.New("matrix unavailable")
			}
			return map[string]float64{"poi-a": 90}, nil
		},
	}
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	pois := testCatalog().POIs[:1]

	c.Request(context.Background(), bilbao, pois, domain.ModeWalk, usecases.EnrichOptions{})
	c.Wait()
	fail = true
	c.Request(context.Background(), bilbao, pois, domain.ModeWalk, usecases.EnrichOptions{})
	c.Wait()

	if !c.Status().HasError {
		t.Fatal("expected HasError")
	}
	if got, ok := c.Enrich(pois)[0].TravelTime(domain.ModeWalk); !ok || got != 90 {
		t.Errorf("expected prior value 90 retained, got %v (%v)", got, ok)
	}
}

func TestEnrichmentCoordinator_CancelIsSilent(t *testing.T) {
	backend, calls := gatedEnrichment()
	c := usecases.NewEnrichmentCoordinator(backend, nil)
	pois := testCatalog().POIs[:1]

	c.Request(context.Background(), bilbao, pois, domain.ModeWalk, usecases.EnrichOptions{})
	reply := <-calls
	c.Cancel()
	reply <- gatedReply{err: context.Canceled}
	c.Wait()

	st := c.Status()
	if st.IsLoading || st.HasError {
		t.Errorf("expected cancel to leave idle status without error, got %+v", st)
	}
}

func TestEnrichmentCoordinator_GenerationsIncrease(t *testing.T) {
	c := usecases.NewEnrichmentCoordinator(&mockEnrichment{}, nil)
	g1 := c.Request(context.Background(), bilbao, nil, domain.ModeWalk, usecases.EnrichOptions{})
	g2 := c.Request(context.Background(), bilbao, nil, domain.ModeWalk, usecases.EnrichOptions{})
	c.Wait()
	if g2 <= g1 {
		t.Errorf("expected increasing generations, got %d then %d", g1, g2)
	}
}
