package energy

import (
	"context"
	"math"
	"testing"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/internal/stagetest"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnergy(t *testing.T) stage.Component {
	t.Helper()

	cfg := config.NewComponent("energy", "Energy")
	cfg.Inputs[SlotStreamedAudio] = "audio"
	cfg.Inputs[SlotConversationState] = "state"
	cfg.Outputs[SlotFeatures] = "features"
	cfg.Outputs[SlotConversationState] = "energy_state"

	c, err := New(cfg)
	require.NoError(t, err)

	return c
}

func Test_logEnergy(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(math.Log(0.25), logEnergy([]float32{0.5, -0.5}, 1e-10), 1e-9)
	assert.InDelta(math.Log(1e-10), logEnergy([]float32{0, 0}, 1e-10), 1e-9)
	assert.InDelta(math.Log(1e-10), logEnergy(nil, 1e-10), 1e-9)
}

func Test_Stage_ComputesFeaturesPerBlock(t *testing.T) {
	assert := assert.New(t)

	feeder := stagetest.NewFeeder("feeder", map[string]string{"audio": "audio", "state": "state"})
	energy := newTestEnergy(t)
	collector := stagetest.NewCollector("collector", map[string]string{
		"features": "features",
		"state":    "energy_state",
	})

	stagetest.Run(t, context.Background(), feeder, energy, collector)

	// One audio chunk covering two utterances, cut by the conversation state
	feeder.Feed(t, "audio", message.NewAudio(4, []float32{1, 1, 0.5, 0.5}, 16_000, 1))
	feeder.Feed(t, "state", message.NewConversationState(2, "u1", true, "c1", false))
	feeder.Feed(t, "state", message.NewConversationState(4, "u2", true, "c1", true))
	feeder.Close()

	stagetest.Wait(t, feeder, energy, collector)
	require.NoError(t, stage.BaseOf(energy).Err())
	require.NoError(t, stage.BaseOf(collector).Err())

	features := collector.Messages("features")
	require.Len(t, features, 2)

	first := features[0].(*message.Features)
	assert.Equal(message.TypeFeatures, first.TypeID())
	assert.Equal(uint64(2), first.Time())
	assert.Equal("u1", first.UtteranceID)
	assert.Equal([]uint64{2}, first.FrameTimes)
	assert.InDelta(0.0, first.At(0, 0), 1e-9)

	second := features[1].(*message.Features)
	assert.Equal(uint64(4), second.Time())
	assert.InDelta(math.Log(0.25), second.At(0, 0), 1e-9)

	states := collector.Messages("state")
	require.Len(t, states, 2)
	assert.Equal("u2", states[1].(*message.ConversationState).UtteranceID)
	assert.Equal("energy_state", states[1].Tag())
}

func Test_Stage_IgnoredDataYieldsEmptyFeatures(t *testing.T) {
	assert := assert.New(t)

	feeder := stagetest.NewFeeder("feeder", map[string]string{"audio": "audio", "state": "state"})
	energy := newTestEnergy(t)
	collector := stagetest.NewCollector("collector", map[string]string{"features": "features"})
	sink := stagetest.NewCollector("state_sink", map[string]string{"state": "energy_state"})

	stagetest.Run(t, context.Background(), feeder, energy, collector, sink)

	state := message.NewConversationState(3, "u1", true, "c1", true)
	state.SetDescriptor(message.DescriptorIgnoreData, "true")

	feeder.Feed(t, "audio", message.NewAudio(3, []float32{1, 1, 1}, 16_000, 1))
	feeder.Feed(t, "state", state)
	feeder.Close()

	stagetest.Wait(t, feeder, energy, collector, sink)
	require.NoError(t, stage.BaseOf(energy).Err())

	features := collector.Messages("features")
	require.Len(t, features, 1)
	assert.Zero(features[0].(*message.Features).Frames())
	assert.Equal(uint64(3), features[0].Time())
}
