package transapi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/schema"
	"netconf-transapi/pkg/transapi/callbacks"
	"netconf-transapi/pkg/transapi/differ"
	"netconf-transapi/pkg/transapi/dispatch"
)

// ModuleConfig holds the per-module transaction settings.
type ModuleConfig struct {
	// Name identifies the module in logs, events and metrics. Defaults to
	// the schema module name.
	Name string

	Order       dispatch.Order
	ErrorOption dispatch.ErrorOption

	// RefreshState makes the coordinator call the GetState hook after a
	// transaction that left changes in effect.
	RefreshState bool
}

// Options returns the dispatch options of the module.
func (c ModuleConfig) Options() dispatch.Options {
	opts := dispatch.DefaultOptions()
	if c.Order != "" {
		opts.Order = c.Order
	}
	if c.ErrorOption != "" {
		opts.ErrorOption = c.ErrorOption
	}
	return opts
}

// Hooks are the optional lifecycle callbacks of a module.
type Hooks struct {
	// Init runs once before the first transaction or RPC.
	Init func(ctx context.Context) error

	// Close runs once when the module is closed.
	Close func(ctx context.Context) error

	// GetState returns the operational state of the module.
	GetState func(ctx context.Context) (*configtree.Element, error)
}

// Module is a schema, its callbacks and its lifecycle state. Transactions on
// one module are serialized.
type Module struct {
	config   ModuleConfig
	model    *schema.Model
	registry *callbacks.Registry
	differ   *differ.Differ
	hooks    Hooks

	// mu serializes transactions, RPCs and Close.
	mu sync.Mutex

	initOnce    sync.Once
	initErr     error
	initialized bool

	closed         bool
	configModified atomic.Bool
}

// NewModule creates a module from a built callback registry.
//
// Example:
//
//	b := callbacks.NewBuilder(model)
//	b.RegisterData("/interfaces/interface", applyInterface, backend)
//	registry, err := b.Build()
//	...
//	module, err := transapi.NewModule(transapi.ModuleConfig{
//	    ErrorOption: dispatch.ErrorRollback,
//	}, registry, transapi.Hooks{Init: backend.Connect})
func NewModule(cfg ModuleConfig, registry *callbacks.Registry, hooks Hooks) (*Module, error) {
	if registry == nil || registry.Model() == nil {
		return nil, &Error{
			Stage:   StageRegistry,
			Module:  cfg.Name,
			Message: "module requires a built callback registry",
		}
	}
	model := registry.Model()
	if cfg.Name == "" {
		cfg.Name = model.Name()
	}

	order, err := dispatch.ParseOrder(string(cfg.Order))
	if err != nil {
		return nil, &Error{Stage: StageRegistry, Module: cfg.Name, Message: "invalid module configuration", Cause: err}
	}
	errorOption, err := dispatch.ParseErrorOption(string(cfg.ErrorOption))
	if err != nil {
		return nil, &Error{Stage: StageRegistry, Module: cfg.Name, Message: "invalid module configuration", Cause: err}
	}
	cfg.Order, cfg.ErrorOption = order, errorOption

	return &Module{
		config:   cfg,
		model:    model,
		registry: registry,
		differ:   differ.New(model),
		hooks:    hooks,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.config.Name }

// Config returns the module configuration.
func (m *Module) Config() ModuleConfig { return m.config }

// Model returns the schema model of the module.
func (m *Module) Model() *schema.Model { return m.model }

// Registry returns the callback registry of the module.
func (m *Module) Registry() *callbacks.Registry { return m.registry }

// ConfigModified reports whether a transaction left changes in effect since
// the last ResetConfigModified. The hosting server reads it to decide
// whether the configuration has to be persisted.
func (m *Module) ConfigModified() bool {
	return m.configModified.Load()
}

// ResetConfigModified clears the config_modified flag, typically after the
// configuration was persisted.
func (m *Module) ResetConfigModified() {
	m.configModified.Store(false)
}

// ensureInit runs the init hook once per module lifetime. An init failure is
// sticky. Callers hold mu.
func (m *Module) ensureInit(ctx context.Context) error {
	if m.closed {
		return ErrModuleClosed
	}
	m.initOnce.Do(func() {
		if m.hooks.Init != nil {
			if err := m.hooks.Init(ctx); err != nil {
				m.initErr = fmt.Errorf("init hook: %w", err)
				return
			}
		}
		m.initialized = true
	})
	return m.initErr
}

// State invokes the GetState hook. It returns nil when the module has no
// such hook.
func (m *Module) State(ctx context.Context) (*configtree.Element, error) {
	if m.hooks.GetState == nil {
		return nil, nil
	}
	state, err := m.hooks.GetState(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_state hook: %w", err)
	}
	return state, nil
}

// ExecuteRPC runs the named RPC callback of the module.
func (m *Module) ExecuteRPC(ctx context.Context, name string, input *configtree.Element) (*configtree.Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureInit(ctx); err != nil {
		return nil, newInitError(m.Name(), err)
	}
	return m.registry.InvokeRPC(ctx, name, input)
}

// Close runs the close hook once, provided the module was initialized.
// Later transactions fail with ErrModuleClosed.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if !m.initialized || m.hooks.Close == nil {
		return nil
	}
	if err := m.hooks.Close(ctx); err != nil {
		return fmt.Errorf("close hook: %w", err)
	}
	return nil
}
