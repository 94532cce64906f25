package stage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/connector"
	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/internal/timestream"
	"github.com/squadracorsepolito/acmeflow/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Base is the runtime of a component. It owns the inbound channel,
// buffers the input slots and fans the pushed messages out to subscribers.
type Base struct {
	id   string
	kind string

	cfg *config.Component
	tel *internal.Telemetry

	self Component

	input *connector.Channel[message.Message]

	inputSlots map[string][]message.TypeID
	tagToSlots map[string][]string

	requiredOutputs []string
	outputs         map[string]*subscribers

	streams *timestream.Streams

	strict  bool
	verbose bool

	onFatal func(err error)

	started  atomic.Bool
	finished atomic.Bool
	done     chan struct{}
	err      error

	stats *statsRecorder

	// Telemetry metrics
	receivedMessages atomic.Int64
	pushedMessages   atomic.Int64
	processedBlocks  atomic.Int64
	processDuration  metric.Float64Histogram
	waitDuration     metric.Float64Histogram
}

// NewBase returns the runtime of the component described by cfg.
// kind names the component type in logs and metrics.
func NewBase(kind string, cfg *config.Component) *Base {
	tel := internal.NewTelemetry(kind, cfg.ID)
	tel.SetVerbose(cfg.Verbose)

	streams := timestream.New(cfg.ID)
	if cfg.Verbose {
		streams.SetTrace(tel.LogDebug)
	}

	b := &Base{
		id:   cfg.ID,
		kind: kind,

		cfg: cfg,
		tel: tel,

		input: connector.NewChannel[message.Message](cfg.ID),

		inputSlots: make(map[string][]message.TypeID),
		tagToSlots: make(map[string][]string),

		outputs: make(map[string]*subscribers),

		streams: streams,

		strict:  cfg.Strict,
		verbose: cfg.Verbose,

		done: make(chan struct{}),

		stats: newStatsRecorder(),
	}

	b.initMetrics()

	return b
}

func (b *Base) initMetrics() {
	b.tel.NewCounter("received_messages", func() int64 { return b.receivedMessages.Load() })
	b.tel.NewCounter("pushed_messages", func() int64 { return b.pushedMessages.Load() })
	b.tel.NewCounter("processed_blocks", func() int64 { return b.processedBlocks.Load() })
	b.tel.NewUpDownCounter("queued_messages", func() int64 { return int64(b.input.Len()) })

	b.processDuration = b.tel.NewHistogram("process_duration", "s")
	b.waitDuration = b.tel.NewHistogram("wait_duration", "s")
}

func (b *Base) base() *Base {
	return b
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) Kind() string {
	return b.kind
}

func (b *Base) Config() *config.Component {
	return b.cfg
}

func (b *Base) Telemetry() *internal.Telemetry {
	return b.tel
}

// AddInputSlot declares a required input slot accepting the given message kinds.
// Without kinds, or with [message.TypeAny], every kind is accepted.
func (b *Base) AddInputSlot(slot string, types ...message.TypeID) {
	if len(types) == 0 {
		types = []message.TypeID{message.TypeAny}
	}
	b.inputSlots[slot] = types
}

// AddOutputSlot declares a required output slot.
func (b *Base) AddOutputSlot(slot string) {
	if !slices.Contains(b.requiredOutputs, slot) {
		b.requiredOutputs = append(b.requiredOutputs, slot)
	}
}

// SetStrict enables or disables the check on configured slots
// the component has not declared.
func (b *Base) SetStrict(strict bool) {
	b.strict = strict
}

// InputSlots returns the declared input slots.
func (b *Base) InputSlots() []string {
	return slices.Sorted(maps.Keys(b.inputSlots))
}

// OutputSlots returns the wired output slots.
func (b *Base) OutputSlots() []string {
	return slices.Sorted(maps.Keys(b.outputs))
}

// SetFatalHandler sets the function receiving the error that halted the component.
func (b *Base) SetFatalHandler(onFatal func(err error)) {
	b.onFatal = onFatal
}

// IsFinished reports whether the component has shut down.
func (b *Base) IsFinished() bool {
	return b.finished.Load()
}

// Done is closed once the worker loop has returned and the component has shut down.
func (b *Base) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that halted the component, if any.
// It is only meaningful after Done is closed.
func (b *Base) Err() error {
	return b.err
}

// Stats returns the runtime statistics of the component.
func (b *Base) Stats() Stats {
	return b.stats.snapshot()
}

// Start launches the worker loop. The loop only ends when the inbound channel
// is closed: cancelling ctx does not interrupt it, components without inputs
// use ctx to know when to stop producing.
func (b *Base) Start(ctx context.Context) error {
	if b.self == nil {
		return fmt.Errorf("%w: %s", ErrNotWired, b.id)
	}

	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, b.id)
	}

	b.stats.start()

	go b.run(context.WithoutCancel(ctx))

	return nil
}

// Shutdown checks the component out of every downstream channel
// and marks it as finished.
func (b *Base) Shutdown(_ context.Context) error {
	for _, slot := range slices.Sorted(maps.Keys(b.outputs)) {
		subs := b.outputs[slot]
		for _, ch := range subs.channels {
			ch.CheckOut(subs.tag)
		}
	}

	b.finished.Store(true)

	return nil
}

// CheckOutSelf ends a component without inputs: its worker loop
// sees the inbound channel closed and shuts the component down.
func (b *Base) CheckOutSelf() {
	b.input.CheckOut(b.id)
}

// Push stamps the message with the tag of the output slot
// and delivers it to every subscriber.
func (b *Base) Push(ctx context.Context, slot string, msg message.Message) error {
	subs, ok := b.outputs[slot]
	if !ok {
		return fmt.Errorf("%w: component %s, slot %s", ErrUndefinedSlot, b.id, slot)
	}

	// A message already published under another tag is shared, so a copy is stamped
	if tag := msg.Tag(); tag != "" && tag != subs.tag {
		msg = msg.Clone()
	}
	msg.SetTag(subs.tag)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		msg.SaveSpan(span)
	}

	if b.verbose {
		b.tel.LogDebug("pushing message", "slot", slot, "subscribers", len(subs.channels), "message", msg.Describe())
	}

	for _, ch := range subs.channels {
		if err := ch.Write(msg); err != nil {
			return fmt.Errorf("component %s, slot %s: %w", b.id, slot, err)
		}
	}

	b.pushedMessages.Add(1)

	return nil
}

func (b *Base) run(ctx context.Context) {
	defer close(b.done)

	if err := b.processLoop(ctx); err != nil {
		b.err = fmt.Errorf("component %s: %w", b.id, err)
		b.tel.LogError("component halted", err)

		if b.onFatal != nil {
			b.onFatal(b.err)
		}
	}

	if err := b.self.Shutdown(ctx); err != nil {
		b.tel.LogError("failed to shut down", err)
	}

	b.stats.stop()
}

func (b *Base) processLoop(ctx context.Context) error {
	prevCutoff := timestream.InitialCutoff

	for {
		waitSlot := b.streams.LeastFilledSlot()
		waitStart := time.Now()

		msg, status := b.input.Read(connector.NoTimeout)

		waited := time.Since(waitStart)
		b.stats.addWait(waitSlot, waited)
		b.waitDuration.Record(ctx, waited.Seconds(), metric.WithAttributes(attribute.String("slot", waitSlot)))

		if status == connector.StatusClosed {
			break
		}

		if err := b.file(msg); err != nil {
			return err
		}

		// Drain whatever is already queued before slicing
		msgs, _ := b.input.ReadAll(0)
		for _, msg := range msgs {
			if err := b.file(msg); err != nil {
				return err
			}
		}

		if err := b.processBlocks(ctx, &prevCutoff); err != nil {
			return err
		}
	}

	if !b.streams.IsEmpty() {
		return fmt.Errorf("%w\n%s", ErrNotEmpty, b.streams.Dump())
	}

	return nil
}

func (b *Base) file(msg message.Message) error {
	b.receivedMessages.Add(1)

	slots, ok := b.tagToSlots[msg.Tag()]
	if !ok {
		return fmt.Errorf("%w: %s (%s)", ErrUnknownTag, msg.Tag(), msg.Describe())
	}

	for _, slot := range slots {
		accepted := b.inputSlots[slot]
		if !slices.Contains(accepted, message.TypeAny) && !slices.Contains(accepted, msg.TypeID()) {
			return fmt.Errorf("%w: slot %s received %s (%s)", ErrTypeMismatch, slot, message.TypeName(msg.TypeID()), msg.Describe())
		}

		if b.verbose {
			b.tel.LogDebug("received message", "slot", slot, "message", msg.Describe())
		}

		if err := b.streams.Add(slot, msg); err != nil {
			return err
		}
	}

	return nil
}

func (b *Base) processBlocks(ctx context.Context, prevCutoff *int64) error {
	for {
		lastCutoff := *prevCutoff

		msgs, err := b.streams.NextCoherent(prevCutoff)
		if err != nil {
			return err
		}

		if msgs == nil {
			return nil
		}

		block := NewBlock(msgs, lastCutoff, uint64(*prevCutoff))
		if err := b.process(ctx, block); err != nil {
			return fmt.Errorf("process block ending at %d: %w", block.Time(), err)
		}
	}
}

func (b *Base) process(ctx context.Context, block *Block) error {
	links := make([]trace.Link, 0, len(block.msgs))
	for _, msg := range block.msgs {
		sc := trace.SpanContextFromContext(msg.LoadSpanContext(context.Background()))
		if sc.IsValid() {
			links = append(links, trace.Link{SpanContext: sc})
		}
	}

	ctx, span := b.tel.NewTrace(ctx, "process block", trace.WithLinks(links...))
	defer span.End()

	span.SetAttributes(
		attribute.Int64("prev_cutoff", block.PrevCutoff()),
		attribute.Int64("time", int64(block.Time())),
	)

	if b.verbose {
		b.tel.LogDebug("processing block", "prev_cutoff", block.PrevCutoff(), "time", block.Time())
	}

	start := time.Now()
	err := b.self.ProcessMessage(ctx, block)
	elapsed := time.Since(start)

	b.processDuration.Record(ctx, elapsed.Seconds())
	b.stats.addBlock(elapsed, block.Time()-uint64(max(block.PrevCutoff(), 0)))
	b.processedBlocks.Add(1)

	return err
}
