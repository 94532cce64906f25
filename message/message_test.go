package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Audio_MergeWith(t *testing.T) {
	assert := assert.New(t)

	first := NewAudio(100, []float32{1, 2}, 16_000, 50)
	second := NewAudio(200, []float32{3, 4}, 16_000, 50)

	rem, err := first.MergeWith(second)
	assert.NoError(err)
	assert.Nil(rem)
	assert.Equal([]float32{1, 2, 3, 4}, first.Samples)
	assert.Equal(uint64(200), first.Time())

	otherRate := NewAudio(300, []float32{5}, 8_000, 100)
	rem, err = first.MergeWith(otherRate)
	assert.NoError(err)
	assert.Same(otherRate, rem)

	described := NewAudio(300, []float32{5}, 16_000, 50)
	described.SetDescriptor("channel", "left")
	rem, err = first.MergeWith(described)
	assert.NoError(err)
	assert.Same(described, rem)
}

func Test_Audio_SliceOut(t *testing.T) {
	assert := assert.New(t)

	audio := NewAudio(40, []float32{1, 2, 3, 4}, 16_000, 10)
	stream := []Message{audio}

	assert.True(audio.CanSliceAt(20, stream, -1))
	assert.False(audio.CanSliceAt(25, stream, -1))
	assert.False(audio.CanSliceAt(50, stream, -1))

	slice, rest, ok := audio.SliceOut(20, stream, -1)
	require.True(t, ok)
	assert.Equal(uint64(20), slice.Time())
	assert.Equal([]float32{1, 2}, slice.(*Audio).Samples)
	assert.Len(rest, 1)
	assert.Equal([]float32{3, 4}, audio.Samples)

	slice, rest, ok = audio.SliceOut(40, rest, 20)
	require.True(t, ok)
	assert.Equal([]float32{3, 4}, slice.(*Audio).Samples)
	assert.Empty(rest)
}

func Test_Audio_SliceOutRejectsEmptyPart(t *testing.T) {
	assert := assert.New(t)

	// Four samples over 1000 ticks, the cut at tick 100 rounds to no sample
	audio := NewAudio(1000, []float32{1, 2, 3, 4}, 16_000, 1)
	stream := []Message{audio}

	assert.True(audio.CanSliceAt(100, stream, 0))

	slice, rest, ok := audio.SliceOut(100, stream, 0)
	assert.False(ok)
	assert.Nil(slice)
	assert.Len(rest, 1)
	assert.Len(audio.Samples, 4)

	slice, rest, ok = audio.SliceOut(500, stream, 0)
	require.True(t, ok)
	assert.Len(slice.(*Audio).Samples, 2)
	assert.Len(rest, 1)
}

func Test_Audio_CloneIsDeep(t *testing.T) {
	assert := assert.New(t)

	audio := NewAudio(10, []float32{1}, 16_000, 10)
	audio.SetDescriptor("k", "v")

	clone := audio.Clone().(*Audio)
	clone.Samples[0] = 9
	clone.SetDescriptor("k", "w")

	assert.Equal(float32(1), audio.Samples[0])
	assert.Equal("v", audio.Descriptor("k"))
}

func Test_ConversationState_MergeWith(t *testing.T) {
	assert := assert.New(t)

	open := NewConversationState(10, "utt-1", false, "conv-1", false)
	rem, err := open.MergeWith(NewConversationState(20, "utt-1", true, "conv-1", false))
	assert.NoError(err)
	assert.Nil(rem)
	assert.Equal(uint64(20), open.Time())
	assert.True(open.LastInUtterance)

	next := NewConversationState(30, "utt-2", false, "conv-1", false)
	rem, err = open.MergeWith(next)
	assert.NoError(err)
	assert.Same(next, rem)

	_, err = open.MergeWith(NewConversationState(30, "utt-1", false, "conv-1", false))
	assert.ErrorIs(err, ErrMergeMismatch)

	_, err = next.MergeWith(NewConversationState(40, "utt-3", false, "conv-1", false))
	assert.ErrorIs(err, ErrMergeMismatch)
}

func Test_ConversationState_SliceOut(t *testing.T) {
	assert := assert.New(t)

	state := NewConversationState(30, "utt-1", true, "conv-1", true)
	state.SetDescriptor(DescriptorIgnoreData, "true")
	stream := []Message{state}

	slice, rest, ok := state.SliceOut(10, stream, -1)
	assert.True(ok)
	assert.Len(rest, 1)

	partial := slice.(*ConversationState)
	assert.Equal(uint64(10), partial.Time())
	assert.False(partial.LastInUtterance)
	assert.False(partial.LastInConversation)
	assert.True(partial.IgnoreData())

	slice, rest, ok = state.SliceOut(30, rest, 10)
	assert.True(ok)
	assert.Empty(rest)
	assert.Same(state, slice)
}

func Test_Matrix_SliceOut(t *testing.T) {
	assert := assert.New(t)

	m := NewMatrix(10, 1, 2, []float64{1, 2})
	stream := []Message{m}

	rem, err := m.MergeWith(NewMatrix(20, 1, 2, nil))
	assert.NoError(err)
	assert.NotNil(rem)

	slice, rest, ok := m.SliceOut(5, stream, -1)
	assert.True(ok)
	assert.Len(rest, 1)
	assert.Equal(uint64(5), slice.Time())
	assert.Equal(2.0, slice.(*Matrix).At(0, 1))
	assert.NotSame(m, slice)

	_, rest, ok = m.SliceOut(10, rest, 5)
	assert.True(ok)
	assert.Empty(rest)
}

func Test_Features_MergeWith(t *testing.T) {
	assert := assert.New(t)

	first := NewFeatures(20, "u1", 2, []float64{1, 2, 3, 4}, []uint64{10, 20})
	second := NewFeatures(30, "u1", 2, []float64{5, 6}, []uint64{30})

	rem, err := first.MergeWith(second)
	assert.NoError(err)
	assert.Nil(rem)
	assert.Equal([]uint64{10, 20, 30}, first.FrameTimes)
	assert.Equal([]float64{5, 6}, first.Frame(2))
	assert.Equal(uint64(30), first.Time())

	otherUtt := NewFeatures(40, "u2", 2, []float64{7, 8}, []uint64{40})
	rem, err = first.MergeWith(otherUtt)
	assert.NoError(err)
	assert.Same(otherUtt, rem)

	_, err = first.MergeWith(NewFeatures(40, "u1", 3, []float64{1, 2, 3}, []uint64{40}))
	assert.ErrorIs(err, ErrMergeMismatch)

	empty := NewFeatures(50, "u1", 2, nil, nil)
	rem, err = first.MergeWith(empty)
	assert.NoError(err)
	assert.Nil(rem)
	assert.Equal(3, first.Frames())
	assert.Equal(uint64(50), first.Time())

	assert.Equal(TypeFeatures, first.TypeID())
}

func Test_Features_SliceOut(t *testing.T) {
	assert := assert.New(t)

	f := NewFeatures(40, "u1", 1, []float64{1, 2, 3, 4}, []uint64{10, 20, 30, 40})
	stream := []Message{f}

	assert.True(f.CanSliceAt(20, stream, -1))
	assert.False(f.CanSliceAt(25, stream, -1))

	_, _, ok := f.SliceOut(25, stream, -1)
	assert.False(ok)

	// The leading frames leave the buffer, the rest stays
	slice, rest, ok := f.SliceOut(20, stream, -1)
	require.True(t, ok)
	assert.Len(rest, 1)
	assert.Equal(uint64(20), slice.Time())
	assert.Equal([]float64{1, 2}, slice.(*Features).Data)
	assert.Equal([]uint64{10, 20}, slice.(*Features).FrameTimes)
	assert.Equal([]uint64{30, 40}, f.FrameTimes)
	assert.Equal([]float64{3, 4}, f.Data)

	slice, rest, ok = f.SliceOut(40, rest, 20)
	require.True(t, ok)
	assert.Empty(rest)
	assert.Equal([]float64{3, 4}, slice.(*Features).Data)
}

func Test_Features_SliceTrailingEmpty(t *testing.T) {
	assert := assert.New(t)

	f := NewFeatures(30, "u1", 1, []float64{1}, []uint64{10})
	stream := []Message{f}

	slice, rest, ok := f.SliceOut(10, stream, -1)
	require.True(t, ok)
	assert.Equal(1, slice.(*Features).Frames())
	require.Len(t, rest, 1)

	// No frame left but the message still covers up to 30
	assert.True(f.CanSliceAt(30, rest, 10))
	slice, rest, ok = f.SliceOut(30, rest, 10)
	require.True(t, ok)
	assert.Zero(slice.(*Features).Frames())
	assert.Empty(rest)
}

func Test_Features_ShiftInTime(t *testing.T) {
	assert := assert.New(t)

	f := NewFeatures(40, "u1", 1, []float64{1, 2}, []uint64{20, 40})
	f.ShiftInTime(-10)
	assert.Equal(uint64(30), f.Time())
	assert.Equal([]uint64{10, 30}, f.FrameTimes)
}

func Test_JSON_Atomic(t *testing.T) {
	assert := assert.New(t)

	msg, err := NewJSONFrom(200, map[string]string{"word": "hello"})
	require.NoError(t, err)
	stream := []Message{msg}

	assert.False(msg.CanSliceAt(100, stream, -1))
	assert.True(msg.CanSliceAt(200, stream, -1))

	_, _, ok := msg.SliceOut(100, stream, -1)
	assert.False(ok)

	slice, rest, ok := msg.SliceOut(200, stream, -1)
	assert.True(ok)
	assert.Empty(rest)

	var decoded map[string]string
	assert.NoError(slice.(*JSON).Decode(&decoded))
	assert.Equal("hello", decoded["word"])
}

func Test_Binary_Atomic(t *testing.T) {
	assert := assert.New(t)

	msg := NewBinary(5, []byte{1, 2}, "raw")
	rem, err := msg.MergeWith(NewBinary(6, nil, "raw"))
	assert.NoError(err)
	assert.NotNil(rem)

	assert.True(msg.CanSliceAt(5, nil, -1))
	assert.Contains(msg.Describe(), "format=raw")
}

func Test_Base_FullDescriptorString(t *testing.T) {
	assert := assert.New(t)

	msg := NewBinary(1, nil, "raw")
	msg.SetDescriptor("b", "2")
	msg.SetDescriptor("a", "1")
	assert.Equal("a=1;b=2;", msg.FullDescriptorString())

	assert.NoError(msg.SetFullDescriptorString("x=1;y=;"))
	assert.Equal("1", msg.Descriptor("x"))
	assert.Equal("", msg.Descriptor("y"))
	assert.Equal("x=1;y=;", msg.FullDescriptorString())

	assert.Error(msg.SetFullDescriptorString("broken"))
}

func Test_Base_ShiftInTime(t *testing.T) {
	assert := assert.New(t)

	msg := NewMatrix(100, 1, 1, nil)
	msg.ShiftInTime(-40)
	assert.Equal(uint64(60), msg.Time())

	assert.Equal("audio", TypeName(TypeAudio))
}
