// Package energy contains a component computing the log energy of an audio stream.
package energy

import (
	"context"
	"math"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	SlotStreamedAudio     = "streamed_audio"
	SlotConversationState = "conversation_state"
	SlotFeatures          = "features"
)

var _ stage.Component = (*Stage)(nil)

// Stage emits, for every block, one feature frame holding the log of the
// mean energy of the block's samples. When the conversation state asks to
// ignore the data a features chunk without frames is emitted instead,
// so the stream time keeps advancing.
type Stage struct {
	*stage.Base

	floor float64
}

func New(cfg *config.Component) (stage.Component, error) {
	energyCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewStage(cfg, energyCfg), nil
}

func NewStage(compCfg *config.Component, cfg *Config) *Stage {
	base := stage.NewBase("energy", compCfg)
	base.AddInputSlot(SlotStreamedAudio, message.TypeAudio)
	base.AddInputSlot(SlotConversationState, message.TypeConversationState)
	base.AddOutputSlot(SlotFeatures)
	base.AddOutputSlot(SlotConversationState)

	return &Stage{
		Base: base,

		floor: cfg.Floor,
	}
}

func (s *Stage) ProcessMessage(ctx context.Context, block *stage.Block) error {
	audio, err := stage.Get[*message.Audio](block, SlotStreamedAudio)
	if err != nil {
		return err
	}

	state, err := stage.Get[*message.ConversationState](block, SlotConversationState)
	if err != nil {
		return err
	}

	features := message.NewFeatures(block.Time(), state.UtteranceID, 1, nil, nil)
	features.Names = []string{"log_energy"}
	if !state.IgnoreData() {
		value := logEnergy(audio.Samples, s.floor)
		features.Data = []float64{value}
		features.FrameTimes = []uint64{block.Time()}

		trace.SpanFromContext(ctx).SetAttributes(attribute.Float64("log_energy", value))
	}

	if err := s.Push(ctx, SlotFeatures, features); err != nil {
		return err
	}

	return s.Push(ctx, SlotConversationState, state)
}

func logEnergy(samples []float32, floor float64) float64 {
	if len(samples) == 0 {
		return math.Log(floor)
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Log(max(sum/float64(len(samples)), floor))
}
