// Package connector contains the queues that link the components of a pipeline.
package connector

import (
	"errors"
	"time"
)

// ErrNoProducers is returned when an item is written to a channel
// that has no producer checked in.
var ErrNoProducers = errors.New("channel: no producers checked in")

// NoTimeout makes a read block until an item is available or the channel is closed.
const NoTimeout time.Duration = -1

// Status is the outcome of a read.
type Status int

const (
	// StatusNewItem means at least one item has been returned.
	StatusNewItem Status = iota
	// StatusClosed means no producer is checked in and the queue is empty.
	StatusClosed
	// StatusTimeout means the timeout elapsed before an item arrived.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusNewItem:
		return "new-item"
	case StatusClosed:
		return "closed"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
