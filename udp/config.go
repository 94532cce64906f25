package udp

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
)

type Config struct {
	IPAddr string
	Port   uint16

	SampleRate     float64
	TicksPerSample float64

	// UtteranceGap is the silence after which the current utterance is closed.
	UtteranceGap time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		IPAddr: "127.0.0.1",
		Port:   20_000,

		SampleRate:     16_000,
		TicksPerSample: 1,

		UtteranceGap: 500 * time.Millisecond,
	}
}

func parseConfig(c *config.Component) (*Config, error) {
	cfg := NewDefaultConfig()

	var err error
	if cfg.IPAddr, err = c.StringOr("address", cfg.IPAddr); err != nil {
		return nil, err
	}

	port, err := c.IntOr("port", int(cfg.Port))
	if err != nil {
		return nil, err
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %s.port %d out of range", config.ErrInvalidParameter, c.ID, port)
	}
	cfg.Port = uint16(port)

	if cfg.SampleRate, err = c.FloatOr("sample_rate", cfg.SampleRate); err != nil {
		return nil, err
	}
	if cfg.TicksPerSample, err = c.FloatOr("ticks_per_sample", cfg.TicksPerSample); err != nil {
		return nil, err
	}
	if cfg.UtteranceGap, err = c.DurationOr("utterance_gap", cfg.UtteranceGap); err != nil {
		return nil, err
	}

	if _, err := netip.ParseAddr(cfg.IPAddr); err != nil {
		return nil, fmt.Errorf("%w: %s.address: %w", config.ErrInvalidParameter, c.ID, err)
	}

	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("%w: %s.sample_rate must be positive", config.ErrInvalidParameter, c.ID)
	case cfg.TicksPerSample < 1:
		return nil, fmt.Errorf("%w: %s.ticks_per_sample must be at least 1", config.ErrInvalidParameter, c.ID)
	case cfg.UtteranceGap <= 0:
		return nil, fmt.Errorf("%w: %s.utterance_gap must be positive", config.ErrInvalidParameter, c.ID)
	}

	return cfg, nil
}
