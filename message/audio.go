package message

import (
	"fmt"
	"math"
	"slices"
)

var _ Message = (*Audio)(nil)

// Audio is a chunk of mono samples. Consecutive compatible chunks merge
// into one and the stream can be cut at any sample boundary.
type Audio struct {
	Base

	Samples        []float32
	SampleRate     float32
	TicksPerSample float32
}

// NewAudio returns an audio chunk ending at the given tick.
func NewAudio(time uint64, samples []float32, sampleRate, ticksPerSample float32) *Audio {
	return &Audio{
		Base: newBase(time),

		Samples:        samples,
		SampleRate:     sampleRate,
		TicksPerSample: ticksPerSample,
	}
}

func (a *Audio) TypeID() TypeID {
	return TypeAudio
}

func (a *Audio) Clone() Message {
	return &Audio{
		Base: a.cloneBase(),

		Samples:        slices.Clone(a.Samples),
		SampleRate:     a.SampleRate,
		TicksPerSample: a.TicksPerSample,
	}
}

func (a *Audio) Describe() string {
	return fmt.Sprintf("%s samples=%d sample_rate=%g ticks_per_sample=%g",
		a.describeBase("audio"), len(a.Samples), a.SampleRate, a.TicksPerSample)
}

func (a *Audio) MergeWith(other Message) (Message, error) {
	next, ok := other.(*Audio)
	if !ok {
		return other, nil
	}

	if next.SampleRate != a.SampleRate || next.TicksPerSample != a.TicksPerSample || !a.sameDescriptors(&next.Base) {
		return other, nil
	}

	a.Samples = append(a.Samples, next.Samples...)
	a.time = next.time

	return nil, nil
}

func (a *Audio) tickStep() uint64 {
	return uint64(math.Round(float64(a.TicksPerSample)))
}

func (a *Audio) CanSliceAt(sliceTime uint64, _ []Message, _ int64) bool {
	if sliceTime > a.time {
		return false
	}

	step := a.tickStep()
	if step == 0 {
		return true
	}

	return (a.time-sliceTime)%step == 0
}

func (a *Audio) SliceOut(sliceTime uint64, stream []Message, offset int64) (Message, []Message, bool) {
	if !a.CanSliceAt(sliceTime, stream, offset) {
		return nil, stream, false
	}

	// The first slice of a stream starts at tick 0
	start := max(offset, 0)

	frac := 1.0
	if sliceTime != a.time {
		length := int64(a.time) - start
		if length > 0 {
			frac = float64(int64(sliceTime)-start) / float64(length)
		}
	}

	toRemove := int(math.Round(frac * float64(len(a.Samples))))
	toRemove = min(max(toRemove, 0), len(a.Samples))

	// A partial cut must carry at least one sample
	if toRemove == 0 && sliceTime != a.time {
		return nil, stream, false
	}

	slice := &Audio{
		Base: a.cloneBase(),

		Samples:        slices.Clone(a.Samples[:toRemove]),
		SampleRate:     a.SampleRate,
		TicksPerSample: a.TicksPerSample,
	}
	slice.time = sliceTime

	if toRemove == len(a.Samples) {
		return slice, stream[1:], true
	}

	a.Samples = a.Samples[toRemove:]

	return slice, stream, true
}
