// Package stage contains the runtime shared by every component of a pipeline:
// the worker loop that turns the inbound channel into coherent blocks,
// the output fan-out and the wiring of tags between components.
package stage

import (
	"context"
)

// Component is a node of the pipeline graph.
//
// Implementations embed a [*Base] and provide ProcessMessage.
// Start and Shutdown may be overridden, but the override must
// call the ones of the embedded [Base].
type Component interface {
	ID() string

	// ProcessMessage is invoked once per coherent block, on the worker goroutine
	// of the component. A returned error halts the component.
	ProcessMessage(ctx context.Context, block *Block) error

	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error

	base() *Base
}

// BaseOf returns the runtime state embedded in a component.
func BaseOf(c Component) *Base {
	return c.base()
}
