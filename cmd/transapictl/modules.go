package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/core/config"
	"netconf-transapi/pkg/httpstore"
	"netconf-transapi/pkg/schema"
	"netconf-transapi/pkg/transapi"
	"netconf-transapi/pkg/transapi/callbacks"
	"netconf-transapi/pkg/transapi/dispatch"
)

// treeExtensions are tried in order when looking up a module's tree in a
// directory.
var treeExtensions = []string{".xml", ".yaml", ".yml"}

// moduleFlags are the flags shared by diff and apply.
type moduleFlags struct {
	configFile  string
	schemaFile  string
	oldPath     string
	newPath     string
	order       string
	errorOption string

	fetchTimeout time.Duration
	fetchToken   string
}

// moduleSpec describes one module to load.
type moduleSpec struct {
	schemaFile string
	config     transapi.ModuleConfig
}

// plan is the set of modules of one invocation, in application order.
type plan struct {
	verbose int
	metrics config.MetricsConfig
	modules []moduleSpec

	// dirs is true when old and new name directories holding one tree file
	// per module.
	dirs bool
}

// loadPlan builds the plan either from a configuration file or from the
// single-module flags.
func loadPlan(f *moduleFlags) (*plan, error) {
	if f.configFile == "" {
		if f.schemaFile == "" {
			return nil, errors.New("either --config or --schema is required")
		}
		return &plan{
			modules: []moduleSpec{{
				schemaFile: f.schemaFile,
				config: transapi.ModuleConfig{
					Order:       dispatch.Order(f.order),
					ErrorOption: dispatch.ErrorOption(f.errorOption),
				},
			}},
		}, nil
	}

	if f.schemaFile != "" {
		return nil, errors.New("--schema cannot be combined with --config")
	}

	cfg, err := config.LoadConfigFile(f.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	p := &plan{
		verbose: cfg.Logging.Verbose,
		metrics: cfg.Metrics,
		dirs:    true,
	}
	for _, name := range cfg.ModuleNames() {
		mc := cfg.Modules[name]
		spec := moduleSpec{
			schemaFile: mc.Schema,
			config: transapi.ModuleConfig{
				Name:         name,
				Order:        dispatch.Order(mc.CallbacksOrder),
				ErrorOption:  dispatch.ErrorOption(mc.ErrorOption),
				RefreshState: mc.RefreshState,
			},
		}
		// Command line options override the file.
		if f.order != "" {
			spec.config.Order = dispatch.Order(f.order)
		}
		if f.errorOption != "" {
			spec.config.ErrorOption = dispatch.ErrorOption(f.errorOption)
		}
		p.modules = append(p.modules, spec)
	}
	return p, nil
}

// sources reads schemas and configuration trees from files or HTTP(S) URLs.
type sources struct {
	store *httpstore.HTTPStore
	opts  httpstore.FetchOptions
	auth  *httpstore.AuthConfig
}

func newSources(f *moduleFlags, logger *slog.Logger) *sources {
	src := &sources{
		store: httpstore.New(logger),
		opts:  httpstore.FetchOptions{Timeout: f.fetchTimeout},
	}
	if f.fetchToken != "" {
		src.auth = &httpstore.AuthConfig{Type: "bearer", Token: f.fetchToken}
	}
	return src
}

func (s *sources) read(ctx context.Context, location string, validate httpstore.ValidateFunc) ([]byte, error) {
	if httpstore.IsURL(location) {
		return s.store.Fetch(ctx, location, s.opts, s.auth, validate)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return data, nil
}

func (s *sources) schema(ctx context.Context, location string) (*schema.Model, error) {
	data, err := s.read(ctx, location, func(data []byte) error {
		_, err := schema.Load(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	model, err := schema.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return model, nil
}

func (s *sources) tree(ctx context.Context, location, namespace string) (*configtree.Tree, error) {
	data, err := s.read(ctx, location, func(data []byte) error {
		_, err := parseTree(location, data, namespace)
		return err
	})
	if err != nil {
		return nil, err
	}
	tree, err := parseTree(location, data, namespace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return tree, nil
}

// parseTree decodes YAML for .yaml and .yml locations and XML otherwise.
func parseTree(location string, data []byte, namespace string) (*configtree.Tree, error) {
	name := location
	if u, err := url.Parse(location); err == nil && httpstore.IsURL(location) {
		name = u.Path
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return configtree.ParseYAML(data, namespace)
	default:
		return configtree.Parse(bytes.NewReader(data))
	}
}

// loadTrees returns the old and new tree of a module. A missing file in
// directory mode is an empty tree, so a module can be created or deleted
// as a whole.
func (p *plan) loadTrees(ctx context.Context, src *sources, f *moduleFlags, m *transapi.Module) (oldTree, newTree *configtree.Tree, err error) {
	namespace := m.Model().Namespace()
	if !p.dirs {
		if oldTree, err = src.tree(ctx, f.oldPath, namespace); err != nil {
			return nil, nil, err
		}
		if newTree, err = src.tree(ctx, f.newPath, namespace); err != nil {
			return nil, nil, err
		}
		return oldTree, newTree, nil
	}

	if httpstore.IsURL(f.oldPath) || httpstore.IsURL(f.newPath) {
		return nil, nil, errors.New("--old and --new must be local directories with --config")
	}
	if oldTree, err = loadModuleTree(f.oldPath, m.Name(), namespace); err != nil {
		return nil, nil, err
	}
	if newTree, err = loadModuleTree(f.newPath, m.Name(), namespace); err != nil {
		return nil, nil, err
	}
	return oldTree, newTree, nil
}

func loadModuleTree(dir, module, namespace string) (*configtree.Tree, error) {
	if filepath.Base(module) != module || module == ".." {
		return nil, fmt.Errorf("module name %q cannot be used as a file name", module)
	}
	for _, ext := range treeExtensions {
		file := filepath.Join(dir, module+ext)
		if _, err := os.Stat(file); err == nil {
			return configtree.LoadFile(file, namespace)
		}
	}
	return configtree.New(), nil
}

// buildModule loads the schema of spec and registers backend callbacks for
// every data node. A nil backend registers no callback at all.
func buildModule(ctx context.Context, src *sources, spec moduleSpec, backend *echoBackend) (*transapi.Module, error) {
	model, err := src.schema(ctx, spec.schemaFile)
	if err != nil {
		return nil, err
	}

	builder := callbacks.NewBuilder(model)
	hooks := transapi.Hooks{}
	if backend != nil {
		for _, p := range model.Paths() {
			_ = builder.RegisterData(p, backend.apply, model.Namespace())
		}
		hooks = transapi.Hooks{
			Init:     backend.init,
			Close:    backend.close,
			GetState: backend.stateFor(model.Namespace()),
		}
	}
	registry, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to register callbacks: %w", err)
	}

	return transapi.NewModule(spec.config, registry, hooks)
}

// echoBackend stands in for the system a module manages. It prints every
// change it receives and refuses changes at the configured paths, matched
// by instance path or schema path.
type echoBackend struct {
	out    io.Writer
	logger *slog.Logger
	fail   map[string]bool

	mu      sync.Mutex
	applied int
}

func newEchoBackend(out io.Writer, logger *slog.Logger, failPaths []string) *echoBackend {
	fail := make(map[string]bool, len(failPaths))
	for _, p := range failPaths {
		fail[p] = true
	}
	return &echoBackend{out: out, logger: logger, fail: fail}
}

func (b *echoBackend) apply(_ context.Context, _ any, change callbacks.Change) error {
	if b.fail[change.Path] || b.fail[change.SchemaPath] {
		return fmt.Errorf("backend refused %s at %s", change.Op, change.Path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	verb := "apply"
	if change.Reversal {
		verb = "revert"
		b.applied--
	} else {
		b.applied++
	}
	fmt.Fprintf(b.out, "%-6s %-15s %s\n", verb, change.Op, change.Path)
	return nil
}

func (b *echoBackend) init(context.Context) error {
	b.logger.Debug("Backend initialized")
	return nil
}

func (b *echoBackend) close(context.Context) error {
	b.logger.Debug("Backend closed")
	return nil
}

// stateFor returns a get_state hook reporting the number of changes in
// effect.
func (b *echoBackend) stateFor(namespace string) func(context.Context) (*configtree.Element, error) {
	return func(context.Context) (*configtree.Element, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		return configtree.NewElement(namespace, "state").Append(
			configtree.NewLeaf(namespace, "changes-in-effect", strconv.Itoa(b.applied)),
		), nil
	}
}
