// Package middleware decorates a ports.RunStore with storage-side behavior
// (encryption at rest, redaction) without the engine noticing.
package middleware

import "github.com/aretw0/flowgraph/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain wraps store so that the first middleware is the outermost.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
