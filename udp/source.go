package udp

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/internal/ids"
	"github.com/squadracorsepolito/acmeflow/message"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultUDPPayloadSize = 65_507

	int16Scale = 1 << 15
)

// decodePCM converts little-endian signed 16 bit samples into [-1, 1) floats.
// A trailing odd byte is ignored.
func decodePCM(payload []byte) []float32 {
	samples := make([]float32, len(payload)/2)
	for i := range samples {
		raw := int16(binary.LittleEndian.Uint16(payload[2*i:]))
		samples[i] = float32(raw) / int16Scale
	}
	return samples
}

// EncodePCM converts [-1, 1] floats into little-endian signed 16 bit samples.
func EncodePCM(samples []float32) []byte {
	buf := make([]byte, 2*len(samples))
	for i, sample := range samples {
		scaled := math.Round(float64(sample) * int16Scale)
		raw := int16(min(max(scaled, math.MinInt16), math.MaxInt16))
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(raw))
	}
	return buf
}

// source turns datagrams into audio chunks. The last chunk is held back
// until the next datagram or the end of the utterance is known, so its
// conversation state can carry the right flags.
type source struct {
	tel *internal.Telemetry
	cfg *Config

	conversationID string
	utteranceID    string

	time    uint64
	pending *message.Audio

	// Telemetry metrics
	receivedBytes     atomic.Int64
	receivedDatagrams atomic.Int64
}

func newSource(tel *internal.Telemetry, cfg *Config) *source {
	s := &source{
		tel: tel,
		cfg: cfg,

		conversationID: ids.New(),
		utteranceID:    ids.New(),
	}

	s.tel.NewCounter("received_bytes", func() int64 { return s.receivedBytes.Load() })
	s.tel.NewCounter("received_datagrams", func() int64 { return s.receivedDatagrams.Load() })

	return s
}

// handleDatagram converts the payload and returns the chunk it replaces as pending.
func (s *source) handleDatagram(ctx context.Context, payload []byte) (context.Context, *message.Audio) {
	ctx, span := s.tel.NewTrace(ctx, "receive UDP datagram")
	defer span.End()

	if len(payload)%2 != 0 {
		s.tel.LogWarn("odd payload size, dropping last byte", "payload_size", len(payload))
	}

	samples := decodePCM(payload)
	s.time += uint64(math.Round(float64(len(samples)) * s.cfg.TicksPerSample))

	span.SetAttributes(
		attribute.Int("payload_size", len(payload)),
		attribute.Int64("time", int64(s.time)),
	)

	s.receivedBytes.Add(int64(len(payload)))
	s.receivedDatagrams.Add(1)

	prev := s.pending
	s.pending = message.NewAudio(s.time, samples, float32(s.cfg.SampleRate), float32(s.cfg.TicksPerSample))

	return ctx, prev
}

// state returns the conversation state of a chunk ending at the given tick.
func (s *source) state(time uint64, lastInUtterance, lastInConversation bool) *message.ConversationState {
	return message.NewConversationState(time, s.utteranceID, lastInUtterance, s.conversationID, lastInConversation)
}

// takePending returns the held back chunk, nil if there is none.
func (s *source) takePending() *message.Audio {
	pending := s.pending
	s.pending = nil
	return pending
}

func (s *source) nextUtterance() {
	s.utteranceID = ids.New()
}
