package energy

import (
	"fmt"

	"github.com/squadracorsepolito/acmeflow/config"
)

type Config struct {
	// Floor is the lowest mean energy before taking the logarithm.
	Floor float64
}

func NewDefaultConfig() *Config {
	return &Config{
		Floor: 1e-10,
	}
}

func parseConfig(c *config.Component) (*Config, error) {
	cfg := NewDefaultConfig()

	var err error
	if cfg.Floor, err = c.FloatOr("floor", cfg.Floor); err != nil {
		return nil, err
	}

	if cfg.Floor <= 0 {
		return nil, fmt.Errorf("%w: %s.floor must be positive", config.ErrInvalidParameter, c.ID)
	}

	return cfg, nil
}
