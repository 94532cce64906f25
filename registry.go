package acmeflow

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/stage"
)

var (
	ErrUnknownType   = errors.New("acmeflow: unknown component type")
	ErrDuplicateType = errors.New("acmeflow: component type already registered")
)

// Factory builds a component from its configuration.
type Factory func(cfg *config.Component) (stage.Component, error)

// Registry maps component type names to factories.
type Registry struct {
	mux       sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given type name.
func (r *Registry) Register(typ string, factory Factory) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.factories[typ]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typ)
	}

	r.factories[typ] = factory

	return nil
}

// New builds the component described by cfg.
func (r *Registry) New(cfg *config.Component) (stage.Component, error) {
	r.mux.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mux.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (component %s)", ErrUnknownType, cfg.Type, cfg.ID)
	}

	comp, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create component %s: %w", cfg.ID, err)
	}

	return comp, nil
}

// Types returns the registered type names.
func (r *Registry) Types() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}
