// Package questdb contains a sink storing feature frames in QuestDB.
package questdb

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	SlotFeatures          = "features"
	SlotConversationState = "conversation_state"
)

var _ stage.Component = (*Stage)(nil)

// Stage writes one row per feature frame. Rows are flushed at the end
// of every utterance and when the stage shuts down.
type Stage struct {
	*stage.Base

	cfg *Config

	openWriter func(ctx context.Context, cfg *Config) (rowWriter, error)
	writer     rowWriter

	// Telemetry metrics
	insertedRows atomic.Int64
	flushes      atomic.Int64
}

func New(cfg *config.Component) (stage.Component, error) {
	qdbCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewStage(cfg, qdbCfg), nil
}

func NewStage(compCfg *config.Component, cfg *Config) *Stage {
	base := stage.NewBase("questdb", compCfg)
	base.AddInputSlot(SlotFeatures, message.TypeFeatures, message.TypeMatrix)
	base.AddInputSlot(SlotConversationState, message.TypeConversationState)

	s := &Stage{
		Base: base,

		cfg: cfg,

		openWriter: openSenderWriter,
	}

	s.Telemetry().NewCounter("inserted_rows", func() int64 { return s.insertedRows.Load() })
	s.Telemetry().NewCounter("flushes", func() int64 { return s.flushes.Load() })

	return s
}

func (s *Stage) Start(ctx context.Context) error {
	writer, err := s.openWriter(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("component %s: open writer: %w", s.ID(), err)
	}
	s.writer = writer

	if err := s.Base.Start(ctx); err != nil {
		writer.Close(ctx)
		return err
	}

	return nil
}

func (s *Stage) ProcessMessage(ctx context.Context, block *stage.Block) error {
	features, err := framesOf(block)
	if err != nil {
		return err
	}

	state, err := stage.Get[*message.ConversationState](block, SlotConversationState)
	if err != nil {
		return err
	}

	rows := s.buildRows(features, state, time.Now())

	if err := s.writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	s.insertedRows.Add(int64(len(rows)))

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("inserted_rows", len(rows)))

	if state.LastInUtterance {
		return s.flush(ctx)
	}

	return nil
}

// framesOf returns the features of the block. A plain matrix is read
// one frame per column, the ticks of the block being spread evenly
// across the frames.
func framesOf(block *stage.Block) (*message.Features, error) {
	switch msg := block.Message(SlotFeatures).(type) {
	case *message.Features:
		return msg, nil

	case *message.Matrix:
		start := uint64(max(block.PrevCutoff(), 0))
		span := block.Time() - start

		features := message.NewFeatures(block.Time(), "", msg.Rows, make([]float64, 0, len(msg.Data)), make([]uint64, 0, msg.Cols))
		for col := range msg.Cols {
			for row := range msg.Rows {
				features.Data = append(features.Data, msg.At(row, col))
			}
			features.FrameTimes = append(features.FrameTimes, start+span*uint64(col+1)/uint64(msg.Cols))
		}
		return features, nil
	}

	_, err := stage.Get[*message.Features](block, SlotFeatures)
	return nil, err
}

// buildRows returns one row per frame.
func (s *Stage) buildRows(features *message.Features, state *message.ConversationState, now time.Time) []*Row {
	frames := features.Frames()

	rows := make([]*Row, 0, frames)
	for frame, tick := range features.FrameTimes {
		row := NewRow(s.cfg.Table, now)
		row.AddSymbol(NewSymbol("component", s.ID()))
		row.AddSymbol(NewSymbol("conversation_id", state.ConversationID))
		row.AddSymbol(NewSymbol("utterance_id", state.UtteranceID))

		row.AddColumn(NewIntColumn("tick", int64(tick)))
		row.AddColumn(NewIntColumn("frame", int64(frame)))
		for dim, value := range features.Frame(frame) {
			row.AddColumn(NewFloatColumn("value_"+strconv.Itoa(dim), value))
		}

		last := frame == frames-1
		row.AddColumn(NewBoolColumn("last_in_utterance", last && state.LastInUtterance))
		row.AddColumn(NewBoolColumn("last_in_conversation", last && state.LastInConversation))

		rows = append(rows, row)
	}

	return rows
}

func (s *Stage) flush(ctx context.Context) error {
	if err := s.writer.Flush(ctx); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}

	s.flushes.Add(1)

	return nil
}

// Shutdown flushes the pending rows and closes the writer.
func (s *Stage) Shutdown(ctx context.Context) error {
	var err error
	if s.writer != nil {
		if flushErr := s.flush(ctx); flushErr != nil {
			err = flushErr
		}

		if closeErr := s.writer.Close(ctx); closeErr != nil && err == nil {
			err = fmt.Errorf("close writer: %w", closeErr)
		}
	}

	if baseErr := s.Base.Shutdown(ctx); baseErr != nil && err == nil {
		err = baseErr
	}

	return err
}
