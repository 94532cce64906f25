package questdb

import (
	"fmt"
	"time"

	"github.com/squadracorsepolito/acmeflow/config"
)

type Config struct {
	Address string
	Table   string

	AutoFlushRows int
	RetryTimeout  time.Duration
}

func NewDefaultConfig() *Config {
	return &Config{
		Address: "localhost:9000",
		Table:   "features",

		AutoFlushRows: 75_000,
		RetryTimeout:  time.Second,
	}
}

func parseConfig(c *config.Component) (*Config, error) {
	cfg := NewDefaultConfig()

	var err error
	if cfg.Address, err = c.StringOr("address", cfg.Address); err != nil {
		return nil, err
	}
	if cfg.Table, err = c.StringOr("table", cfg.Table); err != nil {
		return nil, err
	}
	if cfg.AutoFlushRows, err = c.IntOr("auto_flush_rows", cfg.AutoFlushRows); err != nil {
		return nil, err
	}
	if cfg.RetryTimeout, err = c.DurationOr("retry_timeout", cfg.RetryTimeout); err != nil {
		return nil, err
	}

	switch {
	case cfg.Address == "":
		return nil, fmt.Errorf("%w: %s.address is empty", config.ErrInvalidParameter, c.ID)
	case cfg.Table == "":
		return nil, fmt.Errorf("%w: %s.table is empty", config.ErrInvalidParameter, c.ID)
	case cfg.AutoFlushRows <= 0:
		return nil, fmt.Errorf("%w: %s.auto_flush_rows must be positive", config.ErrInvalidParameter, c.ID)
	}

	return cfg, nil
}
