// Package router contains a component splitting a stream into branches,
// one utterance per branch in round robin.
package router

import (
	"context"
	"fmt"
	"strconv"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
)

const (
	SlotConversationState = "conversation_state"

	slotRoutePrefix = "conversation_state_"
)

var _ stage.Component = (*Stage)(nil)

// Stage emits one conversation state per branch for every block. The
// state of the branch owning the current utterance has ignore_data set
// to "false", the others to "true". Every branch sees the whole stream.
type Stage struct {
	*stage.Base

	numOutputs int
	current    int
}

func New(cfg *config.Component) (stage.Component, error) {
	routerType, err := cfg.StringOr("router_type", "utterance_round_robin")
	if err != nil {
		return nil, err
	}

	if routerType != "utterance_round_robin" {
		return nil, fmt.Errorf("%w: %s.router_type %q", config.ErrInvalidParameter, cfg.ID, routerType)
	}

	numOutputs, err := cfg.Int("num_outputs")
	if err != nil {
		return nil, err
	}

	if numOutputs <= 0 {
		return nil, fmt.Errorf("%w: %s.num_outputs must be positive", config.ErrInvalidParameter, cfg.ID)
	}

	return NewStage(cfg, numOutputs), nil
}

func NewStage(cfg *config.Component, numOutputs int) *Stage {
	base := stage.NewBase("router", cfg)
	base.AddInputSlot(SlotConversationState, message.TypeConversationState)
	for i := range numOutputs {
		base.AddOutputSlot(routeSlot(i))
	}

	return &Stage{
		Base: base,

		numOutputs: numOutputs,
	}
}

func routeSlot(i int) string {
	return slotRoutePrefix + strconv.Itoa(i)
}

func (s *Stage) ProcessMessage(ctx context.Context, block *stage.Block) error {
	state, err := stage.Get[*message.ConversationState](block, SlotConversationState)
	if err != nil {
		return err
	}

	for i := range s.numOutputs {
		out := state.Clone()
		out.SetTag("")
		out.SetDescriptor(message.DescriptorIgnoreData, strconv.FormatBool(i != s.current))

		if err := s.Push(ctx, routeSlot(i), out); err != nil {
			return err
		}
	}

	if state.LastInUtterance {
		s.current = (s.current + 1) % s.numOutputs
	}

	return nil
}
