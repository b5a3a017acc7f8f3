package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/loader"
	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphsURI is the resource listing every stored graph.
const GraphsURI = "flowgraph://graphs"

// CreateGraphResponse aligns with the HTTP adapter's create response.
type CreateGraphResponse struct {
	GraphID string `json:"graph_id" jsonschema_description:"Identifier of the stored graph"`
	Name    string `json:"name" jsonschema_description:"Graph name"`
	Message string `json:"message"`
}

// GraphList wraps the stored graphs.
type GraphList struct {
	Graphs []*domain.GraphDefinition `json:"graphs" jsonschema_description:"Stored graphs, oldest first"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	CreateGraph(ctx context.Context, spec domain.GraphSpec) (*domain.GraphDefinition, error)
	ListGraphs(ctx context.Context) ([]*domain.GraphDefinition, error)
	RunGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error)
	ExecuteGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error)
	GetRunState(ctx context.Context, runID string) (*domain.Run, error)
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("flowgraph-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server (tests, custom transports).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	// TOOL: create_graph
	createTool := mcp.NewTool("create_graph",
		mcp.WithDescription("Validate and store a graph. Returns its ID."),
		mcp.WithString("graph", mcp.Required(),
			mcp.Description(`JSON graph document: {"name", "nodes", "edges", "conditional_edges", "max_iterations"}`)),
		mcp.WithOutputSchema[CreateGraphResponse](),
	)
	s.mcpServer.AddTool(createTool, mcp.NewStructuredToolHandler(s.handleCreateGraph))

	// TOOL: run_graph
	runTool := mcp.NewTool("run_graph",
		mcp.WithDescription("Run a stored graph. By default the run executes in the background; poll it with get_run_state."),
		mcp.WithString("graph_id", mcp.Required(), mcp.Description("Graph ID returned by create_graph")),
		mcp.WithString("initial_state", mcp.Description("JSON object with the initial state (optional)")),
		mcp.WithNumber("max_iterations", mcp.Description("Bound on node invocations (optional)")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run reaches a terminal status")),
		mcp.WithOutputSchema[domain.Run](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunGraph))

	// TOOL: get_run_state
	stateTool := mcp.NewTool("get_run_state",
		mcp.WithDescription("Get the latest snapshot of a run: status, state and execution trace."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID returned by run_graph")),
		mcp.WithOutputSchema[domain.Run](),
	)
	s.mcpServer.AddTool(stateTool, mcp.NewStructuredToolHandler(s.handleGetRunState))

	// TOOL: list_graphs
	listTool := mcp.NewTool("list_graphs",
		mcp.WithDescription("List stored graphs."),
		mcp.WithOutputSchema[GraphList](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListGraphs))
}

// Handler methods for structured tools

func (s *Server) handleCreateGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (CreateGraphResponse, error) {
	doc, _ := args["graph"].(string)
	if strings.TrimSpace(doc) == "" {
		return CreateGraphResponse{}, errors.New("graph is required")
	}

	spec, err := loader.Parse([]byte(doc), loader.FormatJSON)
	if err != nil {
		return CreateGraphResponse{}, err
	}

	graph, err := s.engine.CreateGraph(ctx, spec)
	if err != nil {
		return CreateGraphResponse{}, err
	}
	return CreateGraphResponse{
		GraphID: graph.ID,
		Name:    graph.Name,
		Message: "Graph created successfully",
	}, nil
}

func (s *Server) handleRunGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Run, error) {
	graphID, _ := args["graph_id"].(string)
	if graphID == "" {
		return domain.Run{}, errors.New("graph_id is required")
	}

	initial := domain.State{}
	if raw, ok := args["initial_state"].(string); ok {
		state, err := loader.ParseState([]byte(raw))
		if err != nil {
			return domain.Run{}, err
		}
		initial = state
	}

	maxIterations := 0
	if n, ok := args["max_iterations"].(float64); ok {
		maxIterations = int(n)
	}

	var (
		run *domain.Run
		err error
	)
	if wait, _ := args["wait"].(bool); wait {
		run, err = s.engine.ExecuteGraph(ctx, graphID, initial, maxIterations)
	} else {
		run, err = s.engine.RunGraph(ctx, graphID, initial, maxIterations)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("run failed: %w", err)
	}
	return *run, nil
}

func (s *Server) handleGetRunState(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Run, error) {
	runID, _ := args["run_id"].(string)
	run, err := s.engine.GetRunState(ctx, runID)
	if err != nil {
		return domain.Run{}, err
	}
	return *run, nil
}

func (s *Server) handleListGraphs(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (GraphList, error) {
	graphs, err := s.engine.ListGraphs(ctx)
	if err != nil {
		return GraphList{}, err
	}
	return GraphList{Graphs: graphs}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: flowgraph://graphs
	s.mcpServer.AddResource(mcp.NewResource(GraphsURI, "Stored graph definitions",
		mcp.WithMIMEType("application/json"),
	), s.readGraphs)
}

func (s *Server) readGraphs(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	graphs, err := s.engine.ListGraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	jsonBytes, err := json.Marshal(GraphList{Graphs: graphs})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
