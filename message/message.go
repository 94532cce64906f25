// Package message defines the timestamped messages exchanged by components
// and the merge/slice capabilities every message kind implements.
package message

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TypeID identifies a message kind. Values are stable across versions.
type TypeID = uuid.UUID

var (
	// TypeAny is accepted by slots that do not check the message kind.
	TypeAny               = uuid.Nil
	TypeConversationState = uuid.MustParse("8daa46ce-6253-4bfb-b6af-d9c2fa9ae3c2")
	TypeAudio             = uuid.MustParse("6ed34b01-8032-4895-9211-6cc913e514ee")
	TypeFeatures          = uuid.MustParse("f7e7f3d0-0798-4ae6-9c3b-375ac645b127")
	TypeMatrix            = uuid.MustParse("38bb96d4-42c7-4797-a4af-a0eda018cf9e")
	TypeBinary            = uuid.MustParse("e754362e-58da-4488-831e-9277f8be1d66")
	TypeJSON              = uuid.MustParse("ebe880c8-f6d9-4b7d-8d15-7589302b6946")
)

var typeNames = map[TypeID]string{
	TypeAny:               "any",
	TypeConversationState: "conversation_state",
	TypeAudio:             "audio",
	TypeFeatures:          "features",
	TypeMatrix:            "matrix",
	TypeBinary:            "binary",
	TypeJSON:              "json",
}

// TypeName returns a readable name for the given type id.
func TypeName(id TypeID) string {
	if name, ok := typeNames[id]; ok {
		return name
	}
	return id.String()
}

// ErrMergeMismatch is returned when two messages of the same kind
// contradict each other and cannot be buffered one after the other.
var ErrMergeMismatch = errors.New("message: merge mismatch")

// Traceable is implemented by anything carrying a span context.
type Traceable interface {
	SaveSpan(span trace.Span)
	LoadSpanContext(ctx context.Context) context.Context
}

// Message is the unit of data flowing through the pipeline.
//
// A published message is shared by every subscriber and must not be mutated.
// MergeWith and SliceOut are only called on private clones held by the
// buffer of a single component.
type Message interface {
	Traceable

	// Tag is the routing key set by the output slot of the sender.
	Tag() string
	SetTag(tag string)

	// Time is the tick marking the end of the span covered by the message.
	Time() uint64
	SetTime(time uint64)

	TypeID() TypeID

	Descriptor(key string) string
	SetDescriptor(key, value string)
	FullDescriptorString() string
	SetFullDescriptorString(descriptors string) error

	Describe() string

	Clone() Message

	// MergeWith appends other onto the tail of the receiver.
	// A nil remainder means other has been absorbed, otherwise the
	// remainder must be buffered as a separate entry.
	MergeWith(other Message) (remainder Message, err error)

	// CanSliceAt reports whether the buffered stream, whose head is the receiver,
	// can be cut exactly at sliceTime. offset is the last tick already sliced out.
	CanSliceAt(sliceTime uint64, stream []Message, offset int64) bool

	// SliceOut removes the part of the stream ending at sliceTime.
	// It returns the sliced message and the remaining stream.
	SliceOut(sliceTime uint64, stream []Message, offset int64) (slice Message, rest []Message, ok bool)

	ShiftInTime(delta int64)
}
