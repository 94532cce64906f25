package message

import (
	"fmt"
	"slices"
)

var _ Message = (*Features)(nil)

// Features is a sequence of feature frames, each stamped with its own tick.
// Data is column-major: frame i is Data[i*Rows:(i+1)*Rows].
//
// Consecutive chunks of the same utterance merge by appending frames.
// The stream can only be cut at a frame tick or at the end of the message.
type Features struct {
	Base

	UtteranceID string
	Rows        int
	Names       []string
	Data        []float64
	FrameTimes  []uint64
}

// NewFeatures returns a features chunk ending at the given tick.
// len(data) must be rows*len(frameTimes).
func NewFeatures(time uint64, utteranceID string, rows int, data []float64, frameTimes []uint64) *Features {
	return &Features{
		Base: newBase(time),

		UtteranceID: utteranceID,
		Rows:        rows,
		Data:        data,
		FrameTimes:  frameTimes,
	}
}

func (f *Features) TypeID() TypeID {
	return TypeFeatures
}

// Frames returns the number of frames.
func (f *Features) Frames() int {
	return len(f.FrameTimes)
}

// Frame returns the values of the given frame.
func (f *Features) Frame(frame int) []float64 {
	return f.Data[frame*f.Rows : (frame+1)*f.Rows]
}

func (f *Features) At(row, frame int) float64 {
	return f.Data[frame*f.Rows+row]
}

func (f *Features) Clone() Message {
	return &Features{
		Base: f.cloneBase(),

		UtteranceID: f.UtteranceID,
		Rows:        f.Rows,
		Names:       slices.Clone(f.Names),
		Data:        slices.Clone(f.Data),
		FrameTimes:  slices.Clone(f.FrameTimes),
	}
}

func (f *Features) Describe() string {
	return fmt.Sprintf("%s utterance_id=%s rows=%d frames=%d",
		f.describeBase("features"), f.UtteranceID, f.Rows, f.Frames())
}

func (f *Features) MergeWith(other Message) (Message, error) {
	next, ok := other.(*Features)
	if !ok || next.UtteranceID != f.UtteranceID {
		return other, nil
	}

	switch {
	case next.Frames() == 0:
	case f.Frames() == 0:
		f.Rows = next.Rows
		f.Names = next.Names
	case next.Rows != f.Rows:
		return nil, fmt.Errorf("%w: features of utterance %s have %d rows, got %d",
			ErrMergeMismatch, f.UtteranceID, f.Rows, next.Rows)
	}

	f.Data = append(f.Data, next.Data...)
	f.FrameTimes = append(f.FrameTimes, next.FrameTimes...)
	f.time = next.time

	return nil, nil
}

func (f *Features) CanSliceAt(sliceTime uint64, _ []Message, _ int64) bool {
	if sliceTime == f.time {
		return true
	}

	_, found := slices.BinarySearch(f.FrameTimes, sliceTime)
	return found
}

func (f *Features) SliceOut(sliceTime uint64, stream []Message, offset int64) (Message, []Message, bool) {
	if !f.CanSliceAt(sliceTime, stream, offset) {
		return nil, stream, false
	}

	removed, found := slices.BinarySearch(f.FrameTimes, sliceTime)
	if found {
		removed++
	}

	slice := &Features{
		Base: f.cloneBase(),

		UtteranceID: f.UtteranceID,
		Rows:        f.Rows,
		Names:       f.Names,
		Data:        slices.Clone(f.Data[:removed*f.Rows]),
		FrameTimes:  slices.Clone(f.FrameTimes[:removed]),
	}
	slice.time = sliceTime

	if sliceTime == f.time {
		return slice, stream[1:], true
	}

	f.Data = f.Data[removed*f.Rows:]
	f.FrameTimes = f.FrameTimes[removed:]

	return slice, stream, true
}

func (f *Features) ShiftInTime(delta int64) {
	f.Base.ShiftInTime(delta)
	for i, t := range f.FrameTimes {
		f.FrameTimes[i] = uint64(int64(t) + delta)
	}
}
