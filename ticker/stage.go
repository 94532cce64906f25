// Package ticker contains a source emitting synthetic audio at a fixed pace.
package ticker

import (
	"context"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/stage"
)

const (
	SlotStreamedAudio     = "streamed_audio"
	SlotConversationState = "conversation_state"
)

var _ stage.Component = (*Stage)(nil)

type Stage struct {
	*stage.Base

	cfg    *Config
	source *source
}

// New returns a ticker configured by cfg.
func New(cfg *config.Component) (stage.Component, error) {
	tickerCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewStage(cfg, tickerCfg), nil
}

func NewStage(compCfg *config.Component, cfg *Config) *Stage {
	base := stage.NewBase("ticker", compCfg)
	base.AddOutputSlot(SlotStreamedAudio)
	base.AddOutputSlot(SlotConversationState)

	return &Stage{
		Base: base,

		cfg:    cfg,
		source: newSource(base.Telemetry(), cfg),
	}
}

func (s *Stage) ProcessMessage(_ context.Context, _ *stage.Block) error {
	return nil
}

func (s *Stage) Start(ctx context.Context) error {
	if err := s.Base.Start(ctx); err != nil {
		return err
	}

	go s.run(ctx)

	return nil
}

func (s *Stage) run(ctx context.Context) {
	defer s.CheckOutSelf()

	var trigger <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		trigger = ticker.C
	}

	for !s.source.exhausted() {
		if !wait(ctx, trigger) {
			s.Telemetry().LogInfo("stopped", "emitted_chunks", s.source.emitted)
			return
		}

		if err := s.emit(ctx); err != nil {
			s.Telemetry().LogError("failed to emit chunk", err)
			return
		}
	}

	s.Telemetry().LogInfo("all chunks emitted", "emitted_chunks", s.source.emitted)
}

func (s *Stage) emit(ctx context.Context) error {
	ctx, c := s.source.next(ctx)

	if err := s.Push(ctx, SlotStreamedAudio, c.audio); err != nil {
		return err
	}

	return s.Push(ctx, SlotConversationState, c.state)
}
