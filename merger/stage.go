// Package merger contains a component joining the branches created by a router.
package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
)

const (
	SlotOutputStream      = "output_stream"
	SlotConversationState = "conversation_state"

	slotInputStreamPrefix       = "input_stream_"
	slotConversationStatePrefix = "conversation_state_"
)

// ErrNotRouted is returned when a branch conversation state carries no routing decision.
var ErrNotRouted = errors.New("merger: conversation state without ignore_data descriptor")

var _ stage.Component = (*Stage)(nil)

// Stage forwards, block by block, the data of the branches
// whose conversation state does not ask to ignore it.
type Stage struct {
	*stage.Base

	numStreams int
}

func New(cfg *config.Component) (stage.Component, error) {
	numStreams, err := cfg.Int("num_streams")
	if err != nil {
		return nil, err
	}

	if numStreams <= 0 {
		return nil, fmt.Errorf("%w: %s.num_streams must be positive", config.ErrInvalidParameter, cfg.ID)
	}

	return NewStage(cfg, numStreams), nil
}

func NewStage(cfg *config.Component, numStreams int) *Stage {
	base := stage.NewBase("merger", cfg)
	for i := range numStreams {
		base.AddInputSlot(inputStreamSlot(i))
		base.AddInputSlot(conversationStateSlot(i), message.TypeConversationState)
	}
	base.AddOutputSlot(SlotOutputStream)
	base.AddOutputSlot(SlotConversationState)

	return &Stage{
		Base: base,

		numStreams: numStreams,
	}
}

func inputStreamSlot(i int) string {
	return fmt.Sprintf("%s%d", slotInputStreamPrefix, i)
}

func conversationStateSlot(i int) string {
	return fmt.Sprintf("%s%d", slotConversationStatePrefix, i)
}

func (s *Stage) ProcessMessage(ctx context.Context, block *stage.Block) error {
	var merged *message.ConversationState

	for i := range s.numStreams {
		state, err := stage.Get[*message.ConversationState](block, conversationStateSlot(i))
		if err != nil {
			return err
		}

		switch state.Descriptor(message.DescriptorIgnoreData) {
		case "true":
			continue
		case "false":
		default:
			return fmt.Errorf("%w: slot %s (%s)", ErrNotRouted, conversationStateSlot(i), state.Describe())
		}

		data := block.Message(inputStreamSlot(i))
		if data == nil {
			return fmt.Errorf("%w: %s", stage.ErrMissingMessage, inputStreamSlot(i))
		}

		if err := s.Push(ctx, SlotOutputStream, data); err != nil {
			return err
		}

		if merged == nil {
			merged = state
		}
	}

	ignored := "false"
	if merged == nil {
		// Every branch ignored the block
		merged, _ = stage.Get[*message.ConversationState](block, conversationStateSlot(0))
		ignored = "true"
	}

	out := merged.Clone()
	out.SetTag("")
	out.SetDescriptor(message.DescriptorIgnoreData, ignored)

	return s.Push(ctx, SlotConversationState, out)
}
