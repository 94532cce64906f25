// Package timestream buffers the messages of every input slot of a component
// and cuts them into time-coherent slices.
package timestream

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/squadracorsepolito/acmeflow/message"
)

var (
	ErrUnknownSlot      = errors.New("timestream: unknown slot")
	ErrOutOfOrder       = errors.New("timestream: message time not after last buffered message")
	ErrSlicePastHead    = errors.New("timestream: slice time after first buffered message")
	ErrSliceMismatch    = errors.New("timestream: sliced message does not end at slice time")
	ErrDegenerateStream = errors.New("timestream: degenerate streams, slot cannot align although data is buffered")
)

// InitialCutoff is the cutoff before anything has been sliced.
const InitialCutoff int64 = -1

type stream struct {
	slot string
	msgs []message.Message

	// offset is the last tick sliced out of the stream
	offset int64
}

func newStream(slot string) *stream {
	return &stream{
		slot:   slot,
		offset: InitialCutoff,
	}
}

func (s *stream) isEmpty() bool {
	return len(s.msgs) == 0
}

// lastTime is 0 when the stream is empty.
func (s *stream) lastTime() uint64 {
	if len(s.msgs) == 0 {
		return 0
	}
	return s.msgs[len(s.msgs)-1].Time()
}

func (s *stream) add(msg message.Message) error {
	if int64(msg.Time()) <= s.offset {
		return fmt.Errorf("%w: slot %s, already sliced up to %d, received %d (%s)",
			ErrOutOfOrder, s.slot, s.offset, msg.Time(), msg.Describe())
	}

	if s.isEmpty() {
		s.msgs = append(s.msgs, msg.Clone())
		return nil
	}

	last := s.msgs[len(s.msgs)-1]
	if msg.Time() <= last.Time() {
		return fmt.Errorf("%w: slot %s, last buffered %d, received %d (%s)",
			ErrOutOfOrder, s.slot, last.Time(), msg.Time(), msg.Describe())
	}

	rem, err := last.MergeWith(msg.Clone())
	if err != nil {
		return fmt.Errorf("slot %s: %w", s.slot, err)
	}

	if rem != nil {
		s.msgs = append(s.msgs, rem)
	}

	return nil
}

func (s *stream) canSliceAt(sliceTime uint64) (bool, error) {
	if s.isEmpty() {
		return false, nil
	}

	head := s.msgs[0]
	if sliceTime > head.Time() {
		return false, fmt.Errorf("%w: slot %s, slice time %d, first message %d",
			ErrSlicePastHead, s.slot, sliceTime, head.Time())
	}

	return head.CanSliceAt(sliceTime, s.msgs, s.offset), nil
}

func (s *stream) sliceOut(sliceTime uint64) (message.Message, error) {
	slice, rest, ok := s.msgs[0].SliceOut(sliceTime, s.msgs, s.offset)
	if !ok {
		return nil, fmt.Errorf("%w: slot %s could not be sliced at %d", ErrSliceMismatch, s.slot, sliceTime)
	}

	if slice.Time() != sliceTime {
		return nil, fmt.Errorf("%w: slot %s, slice time %d, message time %d",
			ErrSliceMismatch, s.slot, sliceTime, slice.Time())
	}

	s.msgs = rest
	s.offset = int64(sliceTime)

	return slice, nil
}

// Streams holds one buffer per input slot of a component.
// It is owned by a single goroutine.
type Streams struct {
	id string

	slots   []string
	streams map[string]*stream

	trace func(msg string, args ...any)
}

// New returns an empty set of streams for the component with the given id.
func New(id string) *Streams {
	return &Streams{
		id:      id,
		streams: make(map[string]*stream),
	}
}

// SetTrace sets a function receiving a record of every slicing step.
func (s *Streams) SetTrace(trace func(msg string, args ...any)) {
	s.trace = trace
}

func (s *Streams) logTrace(msg string, args ...any) {
	if s.trace != nil {
		s.trace(msg, args...)
	}
}

// AddSlot creates the buffer of a slot. Adding an existing slot is a no-op.
func (s *Streams) AddSlot(slot string) {
	if _, ok := s.streams[slot]; ok {
		return
	}

	s.streams[slot] = newStream(slot)
	s.slots = append(s.slots, slot)
	slices.Sort(s.slots)
}

// Slots returns the slot names in sorted order.
func (s *Streams) Slots() []string {
	return slices.Clone(s.slots)
}

// Add buffers a message on the given slot, merging it into the last
// buffered message when possible.
func (s *Streams) Add(slot string, msg message.Message) error {
	st, ok := s.streams[slot]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}

	if err := st.add(msg); err != nil {
		return err
	}

	s.logTrace("buffered message", "slot", slot, "time", msg.Time(), "buffered", len(st.msgs))

	return nil
}

// horizon is the latest tick every slot has data for.
func (s *Streams) horizon() uint64 {
	horizon := uint64(math.MaxUint64)
	for _, st := range s.streams {
		horizon = min(horizon, st.lastTime())
	}
	return horizon
}

// NextCoherent cuts the next coherent slice, one message per slot, all ending at
// the smallest buffered end time after prevCutoff. On success prevCutoff is moved
// to the slice time. A nil map means more data is needed.
func (s *Streams) NextCoherent(prevCutoff *int64) (map[string]message.Message, error) {
	if len(s.streams) == 0 {
		return nil, nil
	}

	horizon := s.horizon()

	sliceTime := uint64(0)
	found := false
	for _, st := range s.streams {
		for _, msg := range st.msgs {
			t := msg.Time()
			if int64(t) <= *prevCutoff || t > horizon {
				continue
			}

			if !found || t < sliceTime {
				sliceTime = t
				found = true
			}
		}
	}

	if !found {
		return nil, nil
	}

	for _, slot := range s.slots {
		canSlice, err := s.streams[slot].canSliceAt(sliceTime)
		if err != nil {
			return nil, err
		}

		if canSlice {
			continue
		}

		s.logTrace("slot cannot be sliced", "slot", slot, "slice_time", sliceTime)

		// Two or more messages in every slot and still no cut: treated as misaligned.
		// A slow producer with one-deep buffers escapes this check.
		if s.allDeep() {
			return nil, fmt.Errorf("%w: component %s, slot %s at %d\n%s",
				ErrDegenerateStream, s.id, slot, sliceTime, s.Dump())
		}

		return nil, nil
	}

	block := make(map[string]message.Message, len(s.streams))
	for _, slot := range s.slots {
		slice, err := s.streams[slot].sliceOut(sliceTime)
		if err != nil {
			return nil, err
		}
		block[slot] = slice
	}

	s.logTrace("sliced coherent block", "prev_cutoff", *prevCutoff, "slice_time", sliceTime)

	*prevCutoff = int64(sliceTime)

	return block, nil
}

func (s *Streams) allDeep() bool {
	for _, st := range s.streams {
		if len(st.msgs) < 2 {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no slot holds buffered data.
func (s *Streams) IsEmpty() bool {
	for _, st := range s.streams {
		if !st.isEmpty() {
			return false
		}
	}
	return true
}

// LeastFilledSlot returns the slot whose buffered data ends earliest,
// i.e. the slot the component is waiting on. Empty when there are no slots.
func (s *Streams) LeastFilledSlot() string {
	least := ""
	leastTime := uint64(0)

	for _, slot := range s.slots {
		t := s.streams[slot].lastTime()
		if least == "" || t < leastTime {
			least = slot
			leastTime = t
		}
	}

	return least
}

// Dump returns a table with the end times of every buffered message.
func (s *Streams) Dump() string {
	width := len("slot")
	for _, slot := range s.slots {
		width = max(width, len(slot))
	}

	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%-*s | %-8s | %s\n", width, "slot", "offset", "end times")

	for _, slot := range s.slots {
		st := s.streams[slot]

		times := make([]string, 0, len(st.msgs))
		for _, msg := range st.msgs {
			times = append(times, fmt.Sprintf("%d", msg.Time()))
		}

		fmt.Fprintf(&sb, "%-*s | %-8d | %s\n", width, slot, st.offset, strings.Join(times, " "))
	}

	return sb.String()
}
