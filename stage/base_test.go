package stage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

type testSource struct {
	*Base
}

func newTestSource(id string, outputs map[string]string) *testSource {
	cfg := config.NewComponent(id, "TestSource")
	for slot, tag := range outputs {
		cfg.Outputs[slot] = tag
	}

	base := NewBase("test_source", cfg)
	for slot := range outputs {
		base.AddOutputSlot(slot)
	}

	return &testSource{Base: base}
}

func (s *testSource) ProcessMessage(_ context.Context, _ *Block) error {
	return nil
}

type testSink struct {
	*Base

	mux    sync.Mutex
	blocks []*Block

	// forward pushes the message of the slot to the output slot with the same name
	forward map[string]string
}

func newTestSink(id string, inputs map[string]string, types map[string]message.TypeID) *testSink {
	cfg := config.NewComponent(id, "TestSink")
	for slot, tag := range inputs {
		cfg.Inputs[slot] = tag
	}

	base := NewBase("test_sink", cfg)
	for slot := range inputs {
		if typ, ok := types[slot]; ok {
			base.AddInputSlot(slot, typ)
			continue
		}
		base.AddInputSlot(slot)
	}

	return &testSink{Base: base, forward: make(map[string]string)}
}

func (s *testSink) withOutput(inSlot, outSlot, tag string) *testSink {
	s.cfg.Outputs[outSlot] = tag
	s.AddOutputSlot(outSlot)
	s.forward[inSlot] = outSlot
	return s
}

func (s *testSink) ProcessMessage(ctx context.Context, block *Block) error {
	s.mux.Lock()
	s.blocks = append(s.blocks, block)
	s.mux.Unlock()

	for inSlot, outSlot := range s.forward {
		if err := s.Push(ctx, outSlot, block.Message(inSlot)); err != nil {
			return err
		}
	}

	return nil
}

func (s *testSink) getBlocks() []*Block {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.blocks
}

func wire(t *testing.T, components ...Component) *Wiring {
	t.Helper()

	w := NewWiring()
	for _, c := range components {
		require.NoError(t, w.RegisterOutputs(c))
	}
	for _, c := range components {
		require.NoError(t, w.ConnectInputs(c))
	}

	return w
}

func start(t *testing.T, components ...Component) {
	t.Helper()

	for _, c := range components {
		require.NoError(t, c.Start(context.Background()))
	}
}

func waitDone(t *testing.T, components ...Component) {
	t.Helper()

	for _, c := range components {
		select {
		case <-BaseOf(c).Done():
		case <-time.After(testTimeout):
			t.Fatalf("component %s did not shut down", c.ID())
		}
	}
}

func Test_Base_LinearChainShutdownCascade(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "t0"})
	relay1 := newTestSink("relay1", map[string]string{"in": "t0"}, nil).withOutput("in", "out", "t1")
	relay2 := newTestSink("relay2", map[string]string{"in": "t1"}, nil).withOutput("in", "out", "t2")
	sink := newTestSink("sink", map[string]string{"in": "t2"}, nil)

	wire(t, source, relay1, relay2, sink)
	start(t, source, relay1, relay2, sink)

	for tm := uint64(1); tm <= 5; tm++ {
		require.NoError(t, source.Push(context.Background(), "out", message.NewJSON(tm, []byte(`{}`))))
	}
	source.CheckOutSelf()

	waitDone(t, source, relay1, relay2, sink)

	for _, c := range []Component{source, relay1, relay2, sink} {
		assert.True(BaseOf(c).IsFinished())
		assert.NoError(BaseOf(c).Err())
	}

	blocks := sink.getBlocks()
	require.Len(t, blocks, 5)
	for i, block := range blocks {
		assert.Equal(uint64(i+1), block.Time())
		assert.Equal(int64(i), max(block.PrevCutoff(), 0))
		assert.Equal("t2", block.Message("in").Tag())
	}

	stats := BaseOf(sink).Stats()
	assert.Equal(int64(5), stats.Blocks)
	assert.Equal(uint64(5), stats.Ticks)
}

func Test_Base_FanOut(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "shared"})
	sinks := []*testSink{
		newTestSink("sink0", map[string]string{"in": "shared"}, nil),
		newTestSink("sink1", map[string]string{"in": "shared"}, nil),
		newTestSink("sink2", map[string]string{"in": "shared"}, nil),
	}

	components := []Component{source}
	for _, sink := range sinks {
		components = append(components, sink)
	}

	wire(t, components...)
	start(t, components...)

	msg := message.NewJSON(10, []byte(`{}`))
	require.NoError(t, source.Push(context.Background(), "out", msg))
	source.CheckOutSelf()

	waitDone(t, components...)

	for _, sink := range sinks {
		assert.Equal(int64(1), sink.receivedMessages.Load())
		require.Len(t, sink.getBlocks(), 1)
	}

	// A consumer mutating its slice does not affect the others
	sinks[0].getBlocks()[0].Message("in").SetDescriptor("seen_by", "sink0")
	assert.Equal("", sinks[1].getBlocks()[0].Message("in").Descriptor("seen_by"))
	assert.Equal("", msg.Descriptor("seen_by"))
}

func Test_Base_TypeMismatchIsFatal(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "audio"})
	sink := newTestSink("sink", map[string]string{"in": "audio"}, map[string]message.TypeID{"in": message.TypeAudio})

	fatal := make(chan error, 1)
	BaseOf(sink).SetFatalHandler(func(err error) { fatal <- err })

	wire(t, source, sink)
	start(t, source, sink)

	require.NoError(t, source.Push(context.Background(), "out", message.NewJSON(10, nil)))
	source.CheckOutSelf()

	waitDone(t, source, sink)

	select {
	case err := <-fatal:
		assert.ErrorIs(err, ErrTypeMismatch)
		assert.Contains(err.Error(), "sink")
	default:
		t.Fatal("fatal handler not called")
	}

	assert.ErrorIs(BaseOf(sink).Err(), ErrTypeMismatch)
	assert.True(BaseOf(sink).IsFinished())
}

func Test_Base_OutOfOrderIsFatal(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "json"})
	sink := newTestSink("sink", map[string]string{"in": "json"}, nil)

	wire(t, source, sink)

	// Fill the queue before starting, so both messages are buffered together
	require.NoError(t, source.Push(context.Background(), "out", message.NewJSON(5, nil)))
	require.NoError(t, source.Push(context.Background(), "out", message.NewJSON(3, nil)))
	source.CheckOutSelf()

	start(t, source, sink)
	waitDone(t, source, sink)

	assert.ErrorIs(BaseOf(sink).Err(), ErrOutOfOrder)
}

func Test_Base_NotEmptyAtShutdown(t *testing.T) {
	assert := assert.New(t)

	sourceA := newTestSource("a", map[string]string{"out": "ta"})
	sourceB := newTestSource("b", map[string]string{"out": "tb"})
	sink := newTestSink("sink", map[string]string{"a": "ta", "b": "tb"}, nil)

	wire(t, sourceA, sourceB, sink)
	start(t, sourceA, sourceB, sink)

	require.NoError(t, sourceA.Push(context.Background(), "out", message.NewJSON(10, nil)))
	sourceA.CheckOutSelf()
	sourceB.CheckOutSelf()

	waitDone(t, sourceA, sourceB, sink)

	err := BaseOf(sink).Err()
	assert.ErrorIs(err, ErrNotEmpty)
	assert.Contains(err.Error(), "10")
	assert.Empty(sink.getBlocks())
}

func Test_Base_UnknownTag(t *testing.T) {
	assert := assert.New(t)

	sink := newTestSink("sink", map[string]string{"in": "known"}, nil)
	source := newTestSource("source", map[string]string{"out": "known"})
	wire(t, source, sink)

	msg := message.NewJSON(1, nil)
	msg.SetTag("unknown")
	assert.ErrorIs(sink.file(msg), ErrUnknownTag)
}

func Test_Base_PushUndefinedSlot(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "t"})
	wire(t, source)

	err := source.Push(context.Background(), "other", message.NewJSON(1, nil))
	assert.ErrorIs(err, ErrUndefinedSlot)
}

func Test_Base_PushAfterCheckOut(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "t"})
	sink := newTestSink("sink", map[string]string{"in": "t"}, nil)
	wire(t, source, sink)

	require.NoError(t, source.Shutdown(context.Background()))

	err := source.Push(context.Background(), "out", message.NewJSON(1, nil))
	assert.Error(err)
	assert.True(source.IsFinished())
}

func Test_Base_PushSharedMessageOnTwoSlots(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"a": "ta", "b": "tb"})
	sinkA := newTestSink("sinkA", map[string]string{"in": "ta"}, nil)
	sinkB := newTestSink("sinkB", map[string]string{"in": "tb"}, nil)
	wire(t, source, sinkA, sinkB)

	msg := message.NewJSON(1, nil)
	assert.NoError(source.Push(context.Background(), "a", msg))
	assert.NoError(source.Push(context.Background(), "b", msg))

	// The instance published on "a" keeps its tag
	assert.Equal("ta", msg.Tag())
}

func Test_Base_StartErrors(t *testing.T) {
	assert := assert.New(t)

	source := newTestSource("source", map[string]string{"out": "t"})
	assert.ErrorIs(source.Start(context.Background()), ErrNotWired)

	wire(t, source)
	assert.NoError(source.Start(context.Background()))
	assert.ErrorIs(source.Start(context.Background()), ErrAlreadyStarted)

	source.CheckOutSelf()
	waitDone(t, source)
}

func Test_Block_Get(t *testing.T) {
	assert := assert.New(t)

	block := NewBlock(map[string]message.Message{
		"audio": message.NewAudio(10, []float32{1}, 16_000, 10),
	}, -1, 10)

	audio, err := Get[*message.Audio](block, "audio")
	assert.NoError(err)
	assert.Len(audio.Samples, 1)

	_, err = Get[*message.JSON](block, "audio")
	assert.ErrorIs(err, ErrTypeMismatch)

	_, err = Get[*message.Audio](block, "missing")
	assert.ErrorIs(err, ErrMissingMessage)

	assert.Len(block.Messages(), 1)
	assert.Nil(block.Message("missing"))
}
