package stage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/squadracorsepolito/acmeflow/connector"
	"github.com/squadracorsepolito/acmeflow/message"
)

// subscribers are the inbound channels of the components consuming a tag.
type subscribers struct {
	producer string
	tag      string
	channels []*connector.Channel[message.Message]
}

func (s *subscribers) add(ch *connector.Channel[message.Message]) {
	if slices.Contains(s.channels, ch) {
		return
	}
	s.channels = append(s.channels, ch)
}

// Wiring is the registry of published tags of one graph.
// Outputs of every component must be registered before inputs are connected.
// It is not safe for concurrent use.
type Wiring struct {
	tags map[string]*subscribers
}

func NewWiring() *Wiring {
	return &Wiring{
		tags: make(map[string]*subscribers),
	}
}

// Tags returns the published tags.
func (w *Wiring) Tags() []string {
	return slices.Sorted(maps.Keys(w.tags))
}

// Producer returns the id of the component publishing the tag.
func (w *Wiring) Producer(tag string) (string, bool) {
	subs, ok := w.tags[tag]
	if !ok {
		return "", false
	}
	return subs.producer, true
}

// RegisterOutputs publishes the configured output tags of a component.
func (w *Wiring) RegisterOutputs(c Component) error {
	b := c.base()
	b.self = c

	for _, slot := range b.requiredOutputs {
		if _, ok := b.cfg.Outputs[slot]; !ok {
			return fmt.Errorf("%w: component %s, output slot %s", ErrMissingSlot, b.id, slot)
		}
	}

	for _, slot := range slices.Sorted(maps.Keys(b.cfg.Outputs)) {
		tag := b.cfg.Outputs[slot]

		if b.strict && !slices.Contains(b.requiredOutputs, slot) {
			return fmt.Errorf("%w: component %s, output slot %s", ErrUnnecessarySlot, b.id, slot)
		}

		if other, ok := w.tags[tag]; ok {
			return fmt.Errorf("%w: component %s, tag %s (published by %s)", ErrDuplicateTag, b.id, tag, other.producer)
		}

		subs := &subscribers{
			producer: b.id,
			tag:      tag,
		}

		w.tags[tag] = subs
		b.outputs[slot] = subs
	}

	return nil
}

// ConnectInputs subscribes the inbound channel of a component
// to the tags of its configured input slots.
func (w *Wiring) ConnectInputs(c Component) error {
	b := c.base()
	b.self = c

	for _, slot := range slices.Sorted(maps.Keys(b.inputSlots)) {
		if _, ok := b.cfg.Inputs[slot]; !ok {
			return fmt.Errorf("%w: component %s, input slot %s", ErrMissingSlot, b.id, slot)
		}
	}

	for _, slot := range slices.Sorted(maps.Keys(b.cfg.Inputs)) {
		tag := b.cfg.Inputs[slot]

		subs, ok := w.tags[tag]
		if !ok {
			return fmt.Errorf("%w: component %s, input slot %s, tag %s", ErrNoProducer, b.id, slot, tag)
		}

		if _, declared := b.inputSlots[slot]; !declared {
			if b.strict {
				return fmt.Errorf("%w: component %s, input slot %s", ErrUnnecessarySlot, b.id, slot)
			}
			b.inputSlots[slot] = []message.TypeID{message.TypeAny}
		}

		// One check-in per tag, even when the tag feeds several slots
		if _, subscribed := b.tagToSlots[tag]; !subscribed {
			subs.add(b.input)
			b.input.CheckIn(tag)
		}

		b.tagToSlots[tag] = append(b.tagToSlots[tag], slot)
	}

	for slot := range b.inputSlots {
		b.streams.AddSlot(slot)
	}

	// Without inputs the component is the only producer of its own channel
	if len(b.inputSlots) == 0 {
		b.input.CheckIn(b.id)
	}

	return nil
}
