package stage

import (
	"fmt"
	"maps"

	"github.com/squadracorsepolito/acmeflow/message"
)

// Block holds one coherent slice of every input slot,
// all ending at the same tick.
type Block struct {
	msgs       map[string]message.Message
	prevCutoff int64
	time       uint64
}

// NewBlock returns a block covering the ticks in (prevCutoff, time].
func NewBlock(msgs map[string]message.Message, prevCutoff int64, time uint64) *Block {
	return &Block{
		msgs:       msgs,
		prevCutoff: prevCutoff,
		time:       time,
	}
}

// PrevCutoff is the end tick of the previous block.
func (b *Block) PrevCutoff() int64 {
	return b.prevCutoff
}

// Time is the end tick of the block.
func (b *Block) Time() uint64 {
	return b.time
}

// Message returns the slice of the given slot, nil if absent.
func (b *Block) Message(slot string) message.Message {
	return b.msgs[slot]
}

// Messages returns a copy of the slot to message map.
func (b *Block) Messages() map[string]message.Message {
	return maps.Clone(b.msgs)
}

// Get returns the slice of the given slot as a concrete message kind.
func Get[T message.Message](b *Block, slot string) (T, error) {
	var zero T

	msg, ok := b.msgs[slot]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingMessage, slot)
	}

	typed, ok := msg.(T)
	if !ok {
		return zero, fmt.Errorf("%w: slot %s holds %s", ErrTypeMismatch, slot, message.TypeName(msg.TypeID()))
	}

	return typed, nil
}
