// Package stagetest provides a feeding source and a collecting sink
// to run a single component in isolation.
package stagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
	"github.com/stretchr/testify/require"
)

// Timeout bounds every wait of the helpers.
const Timeout = 5 * time.Second

// Feeder is a component without inputs whose output slots are fed by the test.
type Feeder struct {
	*stage.Base
}

// NewFeeder returns a feeder publishing every slot of outputs under the mapped tag.
func NewFeeder(id string, outputs map[string]string) *Feeder {
	cfg := config.NewComponent(id, "Feeder")
	for slot, tag := range outputs {
		cfg.Outputs[slot] = tag
	}

	base := stage.NewBase("feeder", cfg)
	for slot := range outputs {
		base.AddOutputSlot(slot)
	}

	return &Feeder{Base: base}
}

func (f *Feeder) ProcessMessage(_ context.Context, _ *stage.Block) error {
	return nil
}

// Feed pushes msg to the output slot.
func (f *Feeder) Feed(t *testing.T, slot string, msg message.Message) {
	t.Helper()
	require.NoError(t, f.Push(context.Background(), slot, msg))
}

// Close ends the feeder.
func (f *Feeder) Close() {
	f.CheckOutSelf()
}

// Collector is a component storing every block it receives.
type Collector struct {
	*stage.Base

	mux    sync.Mutex
	blocks []*stage.Block
}

// NewCollector returns a collector subscribed to the tag mapped by every input slot.
func NewCollector(id string, inputs map[string]string) *Collector {
	cfg := config.NewComponent(id, "Collector")
	for slot, tag := range inputs {
		cfg.Inputs[slot] = tag
	}

	base := stage.NewBase("collector", cfg)
	for slot := range inputs {
		base.AddInputSlot(slot)
	}

	return &Collector{Base: base}
}

func (c *Collector) ProcessMessage(_ context.Context, block *stage.Block) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.blocks = append(c.blocks, block)

	return nil
}

// Blocks returns the received blocks.
func (c *Collector) Blocks() []*stage.Block {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.blocks
}

// Messages returns the slices received on slot, in order.
func (c *Collector) Messages(slot string) []message.Message {
	c.mux.Lock()
	defer c.mux.Unlock()

	msgs := make([]message.Message, 0, len(c.blocks))
	for _, block := range c.blocks {
		if msg := block.Message(slot); msg != nil {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

// Run wires and starts the components.
func Run(t *testing.T, ctx context.Context, components ...stage.Component) {
	t.Helper()

	w := stage.NewWiring()
	for _, c := range components {
		require.NoError(t, w.RegisterOutputs(c))
	}
	for _, c := range components {
		require.NoError(t, w.ConnectInputs(c))
	}

	for _, c := range components {
		require.NoError(t, c.Start(ctx))
	}
}

// Wait blocks until every component has shut down.
func Wait(t *testing.T, components ...stage.Component) {
	t.Helper()

	for _, c := range components {
		select {
		case <-stage.BaseOf(c).Done():
		case <-time.After(Timeout):
			t.Fatalf("component %s did not shut down", c.ID())
		}
	}
}
