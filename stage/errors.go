package stage

import (
	"errors"

	"github.com/squadracorsepolito/acmeflow/internal/timestream"
)

var (
	ErrUnknownTag      = errors.New("stage: message with unknown tag")
	ErrTypeMismatch    = errors.New("stage: message type not accepted by slot")
	ErrUndefinedSlot   = errors.New("stage: undefined output slot")
	ErrMissingSlot     = errors.New("stage: required slot not configured")
	ErrUnnecessarySlot = errors.New("stage: configured slot not required")
	ErrDuplicateTag    = errors.New("stage: tag already published by another component")
	ErrNoProducer      = errors.New("stage: no component publishes tag")
	ErrNotEmpty        = errors.New("stage: buffered data left at shutdown")
	ErrAlreadyStarted  = errors.New("stage: component already started")
	ErrNotWired        = errors.New("stage: component started before being wired")
	ErrMissingMessage  = errors.New("stage: block has no message for slot")
)

// Errors raised while buffering and slicing the input streams.
var (
	ErrOutOfOrder       = timestream.ErrOutOfOrder
	ErrDegenerateStream = timestream.ErrDegenerateStream
	ErrSlicePastHead    = timestream.ErrSlicePastHead
	ErrSliceMismatch    = timestream.ErrSliceMismatch
)
