package stage

import (
	"testing"

	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/stretchr/testify/assert"
)

func Test_Wiring_RegisterOutputs(t *testing.T) {
	assert := assert.New(t)

	w := NewWiring()

	missing := newTestSource("missing", nil)
	missing.AddOutputSlot("out")
	assert.ErrorIs(w.RegisterOutputs(missing), ErrMissingSlot)

	extra := newTestSource("extra", map[string]string{"out": "t"})
	extra.cfg.Outputs["debug"] = "dbg"
	assert.ErrorIs(w.RegisterOutputs(extra), ErrUnnecessarySlot)

	first := newTestSource("first", map[string]string{"out": "t"})
	assert.NoError(w.RegisterOutputs(first))

	producer, ok := w.Producer("t")
	assert.True(ok)
	assert.Equal("first", producer)

	second := newTestSource("second", map[string]string{"out": "t"})
	assert.ErrorIs(w.RegisterOutputs(second), ErrDuplicateTag)

	assert.Equal([]string{"t"}, w.Tags())
}

func Test_Wiring_ConnectInputs(t *testing.T) {
	assert := assert.New(t)

	w := NewWiring()
	source := newTestSource("source", map[string]string{"out": "t"})
	assert.NoError(w.RegisterOutputs(source))

	noProducer := newTestSink("no_producer", map[string]string{"in": "nope"}, nil)
	assert.ErrorIs(w.ConnectInputs(noProducer), ErrNoProducer)

	unconfigured := newTestSink("unconfigured", map[string]string{"in": "t"}, nil)
	unconfigured.AddInputSlot("state", message.TypeConversationState)
	assert.ErrorIs(w.ConnectInputs(unconfigured), ErrMissingSlot)

	strict := newTestSink("strict", map[string]string{"in": "t"}, nil)
	strict.cfg.Inputs["extra"] = "t"
	assert.ErrorIs(w.ConnectInputs(strict), ErrUnnecessarySlot)

	lenient := newTestSink("lenient", map[string]string{"in": "t"}, nil)
	lenient.cfg.Inputs["extra"] = "t"
	lenient.SetStrict(false)
	assert.NoError(w.ConnectInputs(lenient))
	assert.Equal([]string{"extra", "in"}, lenient.InputSlots())
	assert.Equal([]string{"extra", "in"}, lenient.tagToSlots["t"])

	// One check-in for the tag, plus none for itself
	assert.Equal(1, lenient.input.Producers())

	zeroInputs := newTestSource("zero", map[string]string{"out": "z"})
	assert.NoError(w.RegisterOutputs(zeroInputs))
	assert.NoError(w.ConnectInputs(zeroInputs))
	assert.Equal(1, zeroInputs.input.Producers())
}
