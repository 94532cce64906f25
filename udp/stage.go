// Package udp contains a source receiving raw PCM audio over UDP.
package udp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/message"
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

	conn *net.UDPConn
}

func New(cfg *config.Component) (stage.Component, error) {
	udpCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewStage(cfg, udpCfg), nil
}

func NewStage(compCfg *config.Component, cfg *Config) *Stage {
	base := stage.NewBase("udp", compCfg)
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

// Addr returns the local address once the stage is started.
func (s *Stage) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Stage) Start(ctx context.Context) error {
	parsedAddr, err := netip.ParseAddr(s.cfg.IPAddr)
	if err != nil {
		return err
	}

	addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(parsedAddr, s.cfg.Port))
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	if err := s.Base.Start(ctx); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn

	// Close the connection when the context is done to unblock the read
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	go s.run(ctx)

	s.Telemetry().LogInfo("listening", "address", conn.LocalAddr().String())

	return nil
}

func (s *Stage) run(ctx context.Context) {
	defer s.CheckOutSelf()

	buf := make([]byte, defaultUDPPayloadSize)

	for {
		if err := s.setDeadline(); err != nil {
			s.Telemetry().LogError("failed to set read deadline", err)
			return
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if err := s.closeUtterance(ctx, false); err != nil {
					s.Telemetry().LogError("failed to close utterance", err)
					return
				}
				continue
			}

			if ctx.Err() == nil {
				s.Telemetry().LogError("failed to read connection", err)
			}

			if err := s.closeUtterance(context.WithoutCancel(ctx), true); err != nil {
				s.Telemetry().LogError("failed to close conversation", err)
			}

			return
		}

		pushCtx, prev := s.source.handleDatagram(ctx, buf[:n])
		if prev == nil {
			continue
		}

		if err := s.pushChunk(pushCtx, prev, false, false); err != nil {
			s.Telemetry().LogError("failed to push chunk", err)
			return
		}
	}
}

// setDeadline arms the utterance gap only while a chunk is held back.
func (s *Stage) setDeadline() error {
	if s.source.pending == nil {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.cfg.UtteranceGap))
}

// closeUtterance flushes the held back chunk as the last of its utterance.
func (s *Stage) closeUtterance(ctx context.Context, lastInConversation bool) error {
	pending := s.source.takePending()
	if pending == nil {
		return nil
	}

	if err := s.pushChunk(ctx, pending, true, lastInConversation); err != nil {
		return err
	}

	s.source.nextUtterance()

	return nil
}

func (s *Stage) pushChunk(ctx context.Context, audio *message.Audio, lastInUtterance, lastInConversation bool) error {
	if err := s.Push(ctx, SlotStreamedAudio, audio); err != nil {
		return err
	}

	state := s.source.state(audio.Time(), lastInUtterance, lastInConversation)
	return s.Push(ctx, SlotConversationState, state)
}
