/*
Package ports defines the driven ports (interfaces) for the flowgraph engine.

These interfaces decouple the execution engine from storage implementations.

# Key Interfaces

  - RunStore: Holds the latest snapshot of every Run, keyed by run ID.
  - GraphStore: Holds validated, immutable graph definitions.

The package also ships contract suites (RunRunStoreContract, RunGraphStoreContract)
that adapters run from their own tests.
*/
package ports
