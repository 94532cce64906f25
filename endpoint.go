package acmeflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/connector"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
)

const (
	endpointKind       = "endpoint"
	endpointOutputSlot = "output"
)

var (
	ErrUnknownEndpoint   = errors.New("acmeflow: unknown endpoint")
	ErrEndpointClosed    = errors.New("acmeflow: endpoint closed")
	ErrDuplicateEndpoint = errors.New("acmeflow: endpoint already defined")
)

var _ stage.Component = (*inputEndpoint)(nil)

// inputEndpoint publishes the messages pushed from outside the graph.
type inputEndpoint struct {
	*stage.Base

	mux    sync.Mutex
	closed bool
}

func newInputEndpoint(name, tag string) *inputEndpoint {
	cfg := config.NewComponent(name, "InputEndpoint")
	cfg.Outputs[endpointOutputSlot] = tag

	base := stage.NewBase(endpointKind, cfg)
	base.AddOutputSlot(endpointOutputSlot)

	return &inputEndpoint{Base: base}
}

func (e *inputEndpoint) ProcessMessage(_ context.Context, _ *stage.Block) error {
	return nil
}

func (e *inputEndpoint) push(ctx context.Context, msg message.Message) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if e.closed {
		return fmt.Errorf("%w: %s", ErrEndpointClosed, e.ID())
	}

	return e.Push(ctx, endpointOutputSlot, msg)
}

func (e *inputEndpoint) close() {
	e.mux.Lock()
	defer e.mux.Unlock()

	if e.closed {
		return
	}

	e.closed = true
	e.CheckOutSelf()
}

var _ stage.Component = (*outputEndpoint)(nil)

// outputEndpoint keeps the blocks it receives until they are pulled.
type outputEndpoint struct {
	*stage.Base

	keeper *connector.Channel[map[string]message.Message]
}

func newOutputEndpoint(name string, inputs map[string]string) *outputEndpoint {
	cfg := config.NewComponent(name, "OutputEndpoint")
	cfg.Strict = false
	for slot, tag := range inputs {
		cfg.Inputs[slot] = tag
	}

	keeper := connector.NewChannel[map[string]message.Message](name)
	keeper.CheckIn(name)

	return &outputEndpoint{
		Base:   stage.NewBase(endpointKind, cfg),
		keeper: keeper,
	}
}

func (e *outputEndpoint) ProcessMessage(_ context.Context, block *stage.Block) error {
	return e.keeper.Write(block.Messages())
}

func (e *outputEndpoint) Shutdown(ctx context.Context) error {
	e.keeper.CheckOut(e.ID())
	return e.Base.Shutdown(ctx)
}
