package ticker

import (
	"fmt"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
)

type Config struct {
	Interval time.Duration

	// Chunks is the number of chunks to emit, 0 means until the context is cancelled.
	Chunks             int
	ChunksPerUtterance int

	SamplesPerChunk int
	SampleRate      float64
	TicksPerSample  float64
	Frequency       float64
}

func NewDefaultConfig() *Config {
	return &Config{
		Interval: 100 * time.Millisecond,

		Chunks:             0,
		ChunksPerUtterance: 10,

		SamplesPerChunk: 1600,
		SampleRate:      16_000,
		TicksPerSample:  1,
		Frequency:       440,
	}
}

func parseConfig(c *config.Component) (*Config, error) {
	cfg := NewDefaultConfig()

	var err error
	if cfg.Interval, err = c.DurationOr("interval", cfg.Interval); err != nil {
		return nil, err
	}
	if cfg.Chunks, err = c.IntOr("chunks", cfg.Chunks); err != nil {
		return nil, err
	}
	if cfg.ChunksPerUtterance, err = c.IntOr("chunks_per_utterance", cfg.ChunksPerUtterance); err != nil {
		return nil, err
	}
	if cfg.SamplesPerChunk, err = c.IntOr("samples_per_chunk", cfg.SamplesPerChunk); err != nil {
		return nil, err
	}
	if cfg.SampleRate, err = c.FloatOr("sample_rate", cfg.SampleRate); err != nil {
		return nil, err
	}
	if cfg.TicksPerSample, err = c.FloatOr("ticks_per_sample", cfg.TicksPerSample); err != nil {
		return nil, err
	}
	if cfg.Frequency, err = c.FloatOr("frequency", cfg.Frequency); err != nil {
		return nil, err
	}

	switch {
	case cfg.Interval < 0:
		return nil, fmt.Errorf("%w: %s.interval must not be negative", config.ErrInvalidParameter, c.ID)
	case cfg.Chunks < 0:
		return nil, fmt.Errorf("%w: %s.chunks must not be negative", config.ErrInvalidParameter, c.ID)
	case cfg.ChunksPerUtterance <= 0:
		return nil, fmt.Errorf("%w: %s.chunks_per_utterance must be positive", config.ErrInvalidParameter, c.ID)
	case cfg.SamplesPerChunk <= 0:
		return nil, fmt.Errorf("%w: %s.samples_per_chunk must be positive", config.ErrInvalidParameter, c.ID)
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("%w: %s.sample_rate must be positive", config.ErrInvalidParameter, c.ID)
	case cfg.TicksPerSample < 1:
		return nil, fmt.Errorf("%w: %s.ticks_per_sample must be at least 1", config.ErrInvalidParameter, c.ID)
	}

	return cfg, nil
}
