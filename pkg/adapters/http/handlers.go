package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/flowgraph/internal/workflows"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/loader"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// CreateGraphResponse is returned by the create endpoints.
type CreateGraphResponse struct {
	GraphID string `json:"graph_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// RunRequest is the body of POST /graph/run.
type RunRequest struct {
	GraphID       string       `json:"graph_id"`
	InitialState  domain.State `json:"initial_state"`
	MaxIterations int          `json:"max_iterations"`
	Wait          bool         `json:"wait"`
}

// RunAccepted is returned when a run is started in the background.
type RunAccepted struct {
	RunID   string           `json:"run_id"`
	GraphID string           `json:"graph_id"`
	Status  domain.RunStatus `json:"status"`
	State   domain.State     `json:"state"`
	Message string           `json:"message"`
}

// RunSummary is one entry of GET /runs.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	GraphID     string           `json:"graph_id"`
	Status      domain.RunStatus `json:"status"`
	CurrentNode string           `json:"current_node"`
	Steps       int              `json:"steps"`
	StartedAt   time.Time        `json:"started_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

const maxBodyBytes = 1 << 20

// CreateGraph handles POST /graph/create.
func (s *Server) CreateGraph(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	if err := decodeBody(w, r, &raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	spec, err := loader.Decode(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid graph document", err)
		return
	}

	s.createGraph(w, r, spec)
}

// CreateCodeReview handles POST /workflows/code-review/create.
func (s *Server) CreateCodeReview(w http.ResponseWriter, r *http.Request) {
	spec, err := workflows.CodeReview()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load workflow", err)
		return
	}
	s.createGraph(w, r, spec)
}

func (s *Server) createGraph(w http.ResponseWriter, r *http.Request, spec domain.GraphSpec) {
	graph, err := s.Engine.CreateGraph(r.Context(), spec)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, CreateGraphResponse{
		GraphID: graph.ID,
		Name:    graph.Name,
		Message: "Graph created successfully",
	})
}

// RunGraph handles POST /graph/run.
func (s *Server) RunGraph(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.GraphID == "" {
		s.writeError(w, http.StatusBadRequest, "graph_id is required", nil)
		return
	}
	if body.InitialState == nil {
		body.InitialState = domain.State{}
	}

	if body.Wait {
		run, err := s.Engine.ExecuteGraph(r.Context(), body.GraphID, body.InitialState, body.MaxIterations)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, run)
		return
	}

	run, err := s.Engine.RunGraph(r.Context(), body.GraphID, body.InitialState, body.MaxIterations)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, RunAccepted{
		RunID:   run.ID,
		GraphID: run.GraphID,
		Status:  run.Status,
		State:   run.State,
		Message: fmt.Sprintf("Run started; poll /graph/state/%s", run.ID),
	})
}

// GetRunState handles GET /graph/state/{run_id}.
func (s *Server) GetRunState(w http.ResponseWriter, r *http.Request) {
	run, err := s.Engine.GetRunState(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.Engine.ListGraphs(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"graphs": graphs})
}

// GetGraph handles GET /graphs/{graph_id}.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.Engine.GetGraph(r.Context(), chi.URLParam(r, "graph_id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Engine.ListRuns(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]RunSummary, len(runs))
	for i, run := range runs {
		out[i] = RunSummary{
			RunID:       run.ID,
			GraphID:     run.GraphID,
			Status:      run.Status,
			CurrentNode: run.CurrentNode,
			Steps:       run.Steps(),
			StartedAt:   run.StartedAt,
			UpdatedAt:   run.UpdatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": s.Engine.Tools()})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "flowgraph-http",
		"version":     s.Version,
		"api_version": apiVersion,
	})
}

// -- Helpers --

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = []string{err.Error()}
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error(msg, "error", err)
	} else {
		s.Logger.Warn(msg, "error", err)
	}
	s.writeJSON(w, status, resp)
}

// writeEngineError maps domain errors onto status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		s.Logger.Warn("validation failed", "error", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid graph", Details: verr.Details()})
	case errors.Is(err, domain.ErrGraphNotFound):
		s.writeError(w, http.StatusNotFound, "graph not found", nil)
	case errors.Is(err, domain.ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, "run not found", nil)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
