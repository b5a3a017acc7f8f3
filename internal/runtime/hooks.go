package runtime

import (
	"context"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
)

func (e *Engine) emitRun(ctx context.Context, typ domain.EventType, run *domain.Run) {
	var hook func(context.Context, *domain.RunEvent)
	switch typ {
	case domain.EventRunStart:
		hook = e.hooks.OnRunStart
	case domain.EventRunFinish:
		hook = e.hooks.OnRunFinish
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      typ,
			RunID:     run.ID,
			GraphID:   run.GraphID,
		},
		Status: run.Status,
		Steps:  run.Steps(),
	})
}

func (e *Engine) emitNode(ctx context.Context, typ domain.EventType, run *domain.Run, nodeID, function, edge string, d time.Duration, isErr bool) {
	var hook func(context.Context, *domain.NodeEvent)
	switch typ {
	case domain.EventNodeEnter:
		hook = e.hooks.OnNodeEnter
	case domain.EventNodeLeave:
		hook = e.hooks.OnNodeLeave
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      typ,
			RunID:     run.ID,
			GraphID:   run.GraphID,
		},
		NodeID:   nodeID,
		Function: function,
		Edge:     edge,
		Duration: d,
		IsError:  isErr,
	})
}
