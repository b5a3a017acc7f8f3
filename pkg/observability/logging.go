package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Debug, and run completion at Info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "run_id", e.RunID, "graph_id", e.GraphID)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node", e.NodeID, "function", e.Function)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"run_id", e.RunID,
				"node", e.NodeID,
				"edge", e.Edge,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finish", "run_id", e.RunID, "graph_id", e.GraphID, "status", e.Status, "steps", e.Steps)
		},
	}
}
