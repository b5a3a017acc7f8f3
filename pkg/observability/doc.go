/*
Package observability turns engine lifecycle events into Prometheus metrics and structured logs.

Both are plain domain.LifecycleHooks, so they can be combined with domain.Combine and passed to
the engine with WithLifecycleHooks.
*/
package observability
