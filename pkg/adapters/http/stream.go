package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// RunEvent is pushed to the subscribers of a run.
type RunEvent struct {
	Type    domain.EventType `json:"type"`
	RunID   string           `json:"run_id"`
	Node    string           `json:"node,omitempty"`
	Edge    string           `json:"edge,omitempty"`
	IsError bool             `json:"is_error,omitempty"`
	Status  domain.RunStatus `json:"status,omitempty"`
}

// StepMessage is the payload of a "step" server-sent event.
type StepMessage struct {
	Node    string           `json:"node"`
	Edge    string           `json:"edge,omitempty"`
	IsError bool             `json:"is_error,omitempty"`
	Steps   int              `json:"steps"`
	Diff    domain.StateDiff `json:"diff,omitempty"`
}

// StreamManager fans engine events out to SSE connections, keyed by run ID.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan RunEvent
	done chan struct{}
	once sync.Once
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers interest in runID. The returned func unsubscribes; it is safe to call
// more than once.
func (sm *StreamManager) Subscribe(runID string) (<-chan RunEvent, func()) {
	sub := &subscriber{
		ch:   make(chan RunEvent, 16),
		done: make(chan struct{}),
	}

	sm.mu.Lock()
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[*subscriber]struct{})
	}
	sm.subscribers[runID][sub] = struct{}{}
	sm.mu.Unlock()

	return sub.ch, func() {
		sub.once.Do(func() { close(sub.done) })

		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Broadcast delivers ev to every subscriber of its run. Step events are dropped for
// subscribers whose buffer is full; the run finish event waits until each subscriber
// takes it or unsubscribes.
func (sm *StreamManager) Broadcast(ev RunEvent) {
	sm.mu.RLock()
	subs := make([]*subscriber, 0, len(sm.subscribers[ev.RunID]))
	for sub := range sm.subscribers[ev.RunID] {
		subs = append(subs, sub)
	}
	sm.mu.RUnlock()

	for _, sub := range subs {
		if ev.Type == domain.EventRunFinish {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Hooks returns lifecycle hooks that feed Broadcast.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			sm.Broadcast(RunEvent{Type: e.Type, RunID: e.RunID, Node: e.NodeID, Edge: e.Edge, IsError: e.IsError})
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			sm.Broadcast(RunEvent{Type: e.Type, RunID: e.RunID, Status: e.Status})
		},
	}
}

// StreamRun handles GET /graph/state/{run_id}/events.
// It sends a "snapshot" event, one "step" event per node with the state diff, and a final
// "finish" event carrying the terminal run before closing the stream. Engine events only
// wake the handler: steps are read back from the run store, so a dropped event never
// loses a step or the finish.
func (s *Server) StreamRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	ctx := r.Context()
	runID := chi.URLParam(r, "run_id")

	// Subscribe before reading the snapshot so no step falls in between.
	events, unsubscribe := s.Streams.Subscribe(runID)
	defer unsubscribe()

	run, err := s.Engine.GetRunState(ctx, runID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.writeEvent(w, "snapshot", run)
	flusher.Flush()
	if run.Status.IsTerminal() {
		return
	}

	prev := run.State
	sent := run.Steps()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			current, err := s.Engine.GetRunState(ctx, runID)
			if err != nil {
				s.Logger.Warn("stream: failed to load run", "run_id", runID, "error", err)
				return
			}

			for _, step := range current.Trace[min(sent, len(current.Trace)):] {
				s.writeEvent(w, "step", StepMessage{
					Node:    step.Node,
					Edge:    step.Edge,
					IsError: step.Error != "",
					Steps:   step.Index,
					Diff:    domain.Diff(prev, step.State),
				})
				prev = step.State
			}
			sent = max(sent, len(current.Trace))

			if current.Status.IsTerminal() {
				s.writeEvent(w, "finish", current)
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.Logger.Error("stream: encode failed", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
