package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/poiexplorer/internal/core/domain"
)

// WarmInput is the input for the warming workflow.
type WarmInput struct {
	ProjectSlug string
}

// WarmResult reports how many POIs were warmed per transport mode.
type WarmResult struct {
	Warmed map[domain.TransportMode]int
}

// WarmTravelTimesWorkflow fills the travel-time cache for a project's center,
// once per transport mode, so the first session of a project loads from cache.
// A failing mode does not stop the others.
func WarmTravelTimesWorkflow(ctx workflow.Context, input WarmInput) (WarmResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting travel time warm-up", "project", input.ProjectSlug)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	})

	result := WarmResult{Warmed: make(map[domain.TransportMode]int)}
	var firstErr error
	for _, mode := range domain.TransportModes {
		var n int
		err := workflow.ExecuteActivity(ctx, "WarmTravelTimes", input.ProjectSlug, mode).Get(ctx, &n)
		if err != nil {
			logger.Warn("warm-up failed", "mode", string(mode), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Warmed[mode] = n
	}

	if len(result.Warmed) == 0 && firstErr != nil {
		return result, firstErr
	}
	logger.Info("Travel time warm-up finished", "modes", len(result.Warmed))
	return result, nil
}
