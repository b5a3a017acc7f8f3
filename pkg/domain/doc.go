/*
Package domain contains the core domain models of the flowgraph engine.

It defines the fundamental entities of graph execution: graph definitions, the shared
State record threaded between nodes, Runs and their execution trace. This package is kept
free of I/O and persistence, following Hexagonal Architecture principles.

# Key Entities

  - GraphSpec / GraphDefinition: Nodes, unconditional edges and ordered conditional edges.
  - Condition: A field/operator/value/target rule evaluated after a node runs.
  - State: The schema-less key/value record every node reads and updates.
  - Run: One execution of a graph, with its status and append-only trace.

State is deliberately untyped (map[string]any): node functions are user-extensible, so
contracts between nodes are not checked at compile time.
*/
package domain
