package ticker

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/internal/ids"
	"github.com/squadracorsepolito/acmeflow/message"
	"go.opentelemetry.io/otel/attribute"
)

const amplitude = 0.5

// chunk is the pair of messages emitted at every trigger.
type chunk struct {
	audio *message.Audio
	state *message.ConversationState
}

// source synthesizes a continuous sine wave split in chunks.
type source struct {
	tel *internal.Telemetry
	cfg *Config

	conversationID string
	utteranceID    string

	emitted     int
	sampleIndex uint64
	time        uint64

	// Telemetry metrics
	emittedChunks atomic.Int64
}

func newSource(tel *internal.Telemetry, cfg *Config) *source {
	s := &source{
		tel: tel,
		cfg: cfg,

		conversationID: ids.New(),
		utteranceID:    ids.New(),
	}

	s.tel.NewCounter("emitted_chunks", func() int64 { return s.emittedChunks.Load() })

	return s
}

// exhausted reports whether every requested chunk has been emitted.
func (s *source) exhausted() bool {
	return s.cfg.Chunks > 0 && s.emitted >= s.cfg.Chunks
}

func (s *source) next(ctx context.Context) (context.Context, *chunk) {
	ctx, span := s.tel.NewTrace(ctx, "emit chunk")
	defer span.End()

	samples := make([]float32, s.cfg.SamplesPerChunk)
	for i := range samples {
		n := float64(s.sampleIndex + uint64(i))
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*s.cfg.Frequency*n/s.cfg.SampleRate))
	}
	s.sampleIndex += uint64(len(samples))

	s.time += uint64(math.Round(float64(len(samples)) * s.cfg.TicksPerSample))
	s.emitted++

	lastInConversation := s.exhausted()
	lastInUtterance := lastInConversation || s.emitted%s.cfg.ChunksPerUtterance == 0

	c := &chunk{
		audio: message.NewAudio(s.time, samples, float32(s.cfg.SampleRate), float32(s.cfg.TicksPerSample)),
		state: message.NewConversationState(s.time, s.utteranceID, lastInUtterance, s.conversationID, lastInConversation),
	}

	span.SetAttributes(
		attribute.Int("chunk", s.emitted),
		attribute.Int64("time", int64(s.time)),
		attribute.String("utterance_id", s.utteranceID),
	)

	if lastInUtterance {
		s.utteranceID = ids.New()
	}

	s.emittedChunks.Add(1)

	return ctx, c
}

// wait blocks until the next trigger. It returns false if ctx is done.
func wait(ctx context.Context, trigger <-chan time.Time) bool {
	if trigger == nil {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-trigger:
		return true
	}
}
