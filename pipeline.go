// Package acmeflow builds and runs graphs of components exchanging
// timestamped messages.
package acmeflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/connector"
	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/message"
	"github.com/squadracorsepolito/acmeflow/stage"
)

const (
	pipelineKind = "pipeline"

	defaultPollInterval = time.Second
)

var (
	ErrDuplicateComponent = errors.New("acmeflow: duplicate component id")
	ErrNotInitialized     = errors.New("acmeflow: pipeline not initialized")
	ErrAlreadyInitialized = errors.New("acmeflow: pipeline already initialized")
)

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithFatalHandler sets the function receiving the error of a component
// that halted. The default logs the error and exits the process.
func WithFatalHandler(onFatal func(err error)) Option {
	return func(p *Pipeline) {
		p.onFatal = onFatal
	}
}

// WithPollInterval sets how often Wait checks whether every component finished.
func WithPollInterval(interval time.Duration) Option {
	return func(p *Pipeline) {
		p.pollInterval = interval
	}
}

// WithStatsInterval makes the pipeline log the throughput of every
// component at the given interval while running.
func WithStatsInterval(interval time.Duration) Option {
	return func(p *Pipeline) {
		p.statsInterval = interval
	}
}

// WithPrometheusRegisterer exports the runtime statistics of the components.
func WithPrometheusRegisterer(registerer prometheus.Registerer) Option {
	return func(p *Pipeline) {
		p.registerer = registerer
	}
}

// Pipeline is a graph of wired components.
type Pipeline struct {
	tel *internal.Telemetry

	cfg      *config.Graph
	registry *Registry

	wiring     *stage.Wiring
	components []stage.Component

	inputEndpoints  map[string]*inputEndpoint
	outputEndpoints map[string]*outputEndpoint

	onFatal       func(err error)
	pollInterval  time.Duration
	statsInterval time.Duration
	registerer    prometheus.Registerer

	cancelCtx context.CancelFunc
	wg        *sync.WaitGroup

	isInitialized bool
	isRunning     bool
}

// NewPipeline returns a pipeline for the given graph. Component types are
// resolved through the registry.
func NewPipeline(cfg *config.Graph, registry *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		tel: internal.NewTelemetry(pipelineKind, "main"),

		cfg:      cfg,
		registry: registry,

		wiring: stage.NewWiring(),

		inputEndpoints:  make(map[string]*inputEndpoint),
		outputEndpoints: make(map[string]*outputEndpoint),

		pollInterval: defaultPollInterval,

		wg: &sync.WaitGroup{},
	}

	p.onFatal = p.exitOnFatal

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Pipeline) exitOnFatal(err error) {
	p.tel.LogError("fatal error, terminating", err)
	os.Exit(1)
}

func (p *Pipeline) checkNewEndpoint(name string) error {
	if p.isInitialized {
		return ErrAlreadyInitialized
	}

	_, isInput := p.inputEndpoints[name]
	_, isOutput := p.outputEndpoints[name]
	if isInput || isOutput {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, name)
	}

	return nil
}

// AddInputEndpoint adds an endpoint publishing the pushed messages on tag.
// It must be called before Init.
func (p *Pipeline) AddInputEndpoint(name, tag string) error {
	if err := p.checkNewEndpoint(name); err != nil {
		return err
	}

	p.inputEndpoints[name] = newInputEndpoint(name, tag)

	return nil
}

// AddOutputEndpoint adds an endpoint consuming the given slot to tag mapping,
// whose coherent blocks are read with PullMessage. It must be called before Init.
func (p *Pipeline) AddOutputEndpoint(name string, inputs map[string]string) error {
	if err := p.checkNewEndpoint(name); err != nil {
		return err
	}

	p.outputEndpoints[name] = newOutputEndpoint(name, inputs)

	return nil
}

// Init builds the components and wires them: every output is registered
// before any input is connected.
func (p *Pipeline) Init(_ context.Context) error {
	if p.isInitialized {
		return ErrAlreadyInitialized
	}

	ids := make(map[string]struct{})
	addComponent := func(c stage.Component) error {
		if _, ok := ids[c.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateComponent, c.ID())
		}

		ids[c.ID()] = struct{}{}
		p.components = append(p.components, c)

		return nil
	}

	for _, compCfg := range p.cfg.Components {
		comp, err := p.registry.New(compCfg)
		if err != nil {
			return err
		}

		if err := addComponent(comp); err != nil {
			return err
		}
	}

	for _, endpoint := range p.inputEndpoints {
		if err := addComponent(endpoint); err != nil {
			return err
		}
	}
	for _, endpoint := range p.outputEndpoints {
		if err := addComponent(endpoint); err != nil {
			return err
		}
	}

	for _, comp := range p.components {
		stage.BaseOf(comp).SetFatalHandler(p.onFatal)

		if err := p.wiring.RegisterOutputs(comp); err != nil {
			return err
		}
	}

	for _, comp := range p.components {
		if err := p.wiring.ConnectInputs(comp); err != nil {
			return err
		}
	}

	for _, compCfg := range p.cfg.Components {
		if err := compCfg.CheckParameters(); err != nil {
			return err
		}
	}

	if p.registerer != nil {
		if err := p.registerer.Register(newStatsCollector(p)); err != nil {
			return err
		}
	}

	p.isInitialized = true

	p.tel.LogInfo("pipeline initialized", "components", len(p.components), "tags", len(p.wiring.Tags()))

	return nil
}

// Run starts every component.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.isInitialized {
		return ErrNotInitialized
	}

	ctx, cancelCtx := context.WithCancel(ctx)
	p.cancelCtx = cancelCtx

	for _, comp := range p.components {
		if err := comp.Start(ctx); err != nil {
			return err
		}
	}

	p.isRunning = true

	if p.statsInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runStats(ctx)
		}()
	}

	return nil
}

// Finished reports whether every component has shut down.
func (p *Pipeline) Finished() bool {
	for _, comp := range p.components {
		if !stage.BaseOf(comp).IsFinished() {
			return false
		}
	}
	return true
}

// Wait blocks until every component has shut down.
func (p *Pipeline) Wait() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for !p.Finished() {
		<-ticker.C
	}
}

// Stop cancels the sources, closes the input endpoints and waits
// for the shutdown to cascade through the graph.
func (p *Pipeline) Stop() {
	if !p.isRunning {
		return
	}

	p.cancelCtx()

	for _, endpoint := range p.inputEndpoints {
		endpoint.close()
	}

	p.Wait()
	p.wg.Wait()

	p.isRunning = false

	p.logStats()
}

// Component returns the component with the given id.
func (p *Pipeline) Component(id string) (stage.Component, bool) {
	for _, comp := range p.components {
		if comp.ID() == id {
			return comp, true
		}
	}
	return nil, false
}

// Stats returns the runtime statistics of every component.
func (p *Pipeline) Stats() map[string]stage.Stats {
	stats := make(map[string]stage.Stats, len(p.components))
	for _, comp := range p.components {
		stats[comp.ID()] = stage.BaseOf(comp).Stats()
	}
	return stats
}

// PushMessage publishes a message through an input endpoint.
func (p *Pipeline) PushMessage(ctx context.Context, endpoint string, msg message.Message) error {
	e, ok := p.inputEndpoints[endpoint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}
	return e.push(ctx, msg)
}

// CloseEndpoint closes an input endpoint, no more messages can be pushed through it.
func (p *Pipeline) CloseEndpoint(endpoint string) error {
	e, ok := p.inputEndpoints[endpoint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	e.close()

	return nil
}

// PullMessage returns the next block received by an output endpoint.
func (p *Pipeline) PullMessage(endpoint string, timeout time.Duration) (map[string]message.Message, connector.Status, error) {
	e, ok := p.outputEndpoints[endpoint]
	if !ok {
		return nil, connector.StatusClosed, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	block, status := e.keeper.Read(timeout)

	return block, status, nil
}

// PullAllMessages returns every block queued in an output endpoint.
func (p *Pipeline) PullAllMessages(endpoint string, timeout time.Duration) ([]map[string]message.Message, connector.Status, error) {
	e, ok := p.outputEndpoints[endpoint]
	if !ok {
		return nil, connector.StatusClosed, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	blocks, status := e.keeper.ReadAll(timeout)

	return blocks, status, nil
}
