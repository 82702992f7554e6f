// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"netconf-transapi/pkg/audit"
	"netconf-transapi/pkg/core/logging"
	"netconf-transapi/pkg/events"
	"netconf-transapi/pkg/httpstore"
	"netconf-transapi/pkg/introspection"
	"netconf-transapi/pkg/metrics"
	"netconf-transapi/pkg/schema"
	"netconf-transapi/pkg/transapi"
)

func addModuleFlags(cmd *cobra.Command, f *moduleFlags) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to the module configuration file")
	cmd.Flags().StringVar(&f.schemaFile, "schema", "", "Path or URL of a YAML schema definition (single module mode)")
	cmd.Flags().StringVar(&f.oldPath, "old", "", "Previous configuration: a tree file or URL, or a directory of <module>.xml|yaml with --config")
	cmd.Flags().StringVar(&f.newPath, "new", "", "Proposed configuration: a tree file or URL, or a directory of <module>.xml|yaml with --config")
	cmd.Flags().StringVar(&f.order, "order", "", "Callback order: leaf-to-root, root-to-leaf or default")
	cmd.Flags().StringVar(&f.errorOption, "error-option", "", "Error option: stop, continue or rollback")
	cmd.Flags().DurationVar(&f.fetchTimeout, "fetch-timeout", 0, "Timeout for schemas and trees given as HTTP(S) URLs (default 30s)")
	cmd.Flags().StringVar(&f.fetchToken, "fetch-token", "", "Bearer token for schemas and trees given as HTTP(S) URLs")

	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
}

// setupLogger creates the logger of a command. The -v flag takes precedence
// over the configured verbosity.
func setupLogger(cmd *cobra.Command, configured int) *slog.Logger {
	verbose, _ := cmd.Flags().GetCount("verbose")
	if verbose == 0 {
		verbose = configured
	}
	return logging.NewLoggerTo(cmd.ErrOrStderr(), logging.LevelForVerbosity(verbose))
}

func newPathsCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "List the data node paths of a schema",
		Long: `List every data node path of a schema in depth-first schema order, with the
node kind. These are the paths callbacks can be registered for.

Example usage:
  transapictl paths --schema schemas/system.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := schema.LoadFile(schemaFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range model.Paths() {
				node, _ := model.Lookup(path)
				fmt.Fprintf(out, "%-10s %s\n", node.Kind, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "Path to a YAML schema definition (required)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var f moduleFlags

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the changes between two configurations without applying them",
		Long: `Compute the diff between the previous and the proposed configuration of each
module and print its entries in document order. No callback is invoked.

Example usage:
  # Single module
  transapictl diff --schema system.yaml --old running.xml --new candidate.xml

  # All modules of a configuration file
  transapictl diff --config transapi.yaml --old running/ --new candidate/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiff(cmd, &f)
		},
	}

	addModuleFlags(cmd, &f)
	return cmd
}

func runDiff(cmd *cobra.Command, f *moduleFlags) error {
	p, err := loadPlan(f)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, p.verbose)
	coordinator := transapi.New().WithLogger(logger)
	src := newSources(f, logger)
	out := cmd.OutOrStdout()

	for _, spec := range p.modules {
		m, err := buildModule(cmd.Context(), src, spec, nil)
		if err != nil {
			return err
		}
		oldTree, newTree, err := p.loadTrees(cmd.Context(), src, f, m)
		if err != nil {
			return err
		}

		diff, err := coordinator.Diff(cmd.Context(), m, oldTree, newTree)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "[%s] %s\n", m.Name(), diff.Summary.String())
		for _, e := range diff.Entries {
			fmt.Fprintf(out, "  %-15s %s\n", e.Op, e.Path)
		}
	}
	return nil
}

type applyFlags struct {
	moduleFlags
	fail        []string
	metricsAddr string
	debugAddr   string
	linger      time.Duration
}

func newApplyCmd() *cobra.Command {
	var f applyFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply configuration transactions through echo callbacks",
		Long: `Apply the proposed configuration of each module as one transaction per module.

Echo callbacks print every applied or reverted change. Paths given with
--fail (instance or schema paths) make the callback fail, which exercises
the error option of the module. Modules are applied in alphabetical order;
the first module that does not succeed stops the run.

Example usage:
  # Roll back when /system/hostname cannot be applied
  transapictl apply --schema system.yaml --old running.xml --new candidate.xml \
      --error-option rollback --fail /system/hostname

  # Apply all modules and keep /metrics available for a minute
  transapictl apply --config transapi.yaml --old running/ --new candidate/ \
      --metrics-addr :9090 --linger 1m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, &f)
		},
	}

	addModuleFlags(cmd, &f.moduleFlags)
	cmd.Flags().StringSliceVar(&f.fail, "fail", nil, "Paths whose callback fails (repeatable)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides the configuration)")
	cmd.Flags().StringVar(&f.debugAddr, "debug-addr", "", "Serve debug variables and pprof on this address")
	cmd.Flags().DurationVar(&f.linger, "linger", 0, "Keep the metrics and debug endpoints up this long after the last transaction")
	return cmd
}

func runApply(cmd *cobra.Command, f *applyFlags) error {
	p, err := loadPlan(&f.moduleFlags)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, p.verbose)
	out := cmd.OutOrStdout()

	registry := prometheus.NewRegistry()
	bus := events.NewEventBus(100)
	recorder := audit.NewRecorder(bus, logger, 0)
	coordinator := transapi.New().
		WithLogger(logger).
		WithEventBus(bus).
		WithMetrics(transapi.NewMetrics(registry))
	backend := newEchoBackend(out, logger, f.fail)
	src := newSources(&f.moduleFlags, logger)

	modules := make([]*transapi.Module, 0, len(p.modules))
	for _, spec := range p.modules {
		m, err := buildModule(cmd.Context(), src, spec, backend)
		if err != nil {
			return err
		}
		modules = append(modules, m)
	}

	addr := f.metricsAddr
	if addr == "" && p.metrics.Enabled {
		addr = fmt.Sprintf(":%d", p.metrics.Port)
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	bus.Start()
	g.Go(func() error {
		return recorder.Start(gCtx)
	})
	if addr != "" {
		server := metrics.NewServer(addr, registry).WithLogger(logger)
		g.Go(func() error {
			return server.Start(gCtx)
		})
	}
	if f.debugAddr != "" {
		server := introspection.NewServer(f.debugAddr, debugVars(modules, recorder, bus, src.store)).WithLogger(logger)
		g.Go(func() error {
			return server.Start(gCtx)
		})
	}
	serving := addr != "" || f.debugAddr != ""

	g.Go(func() error {
		// Stops the recorder and the servers once all modules ran.
		defer cancel()

		for _, m := range modules {
			oldTree, newTree, err := p.loadTrees(gCtx, src, &f.moduleFlags, m)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "[%s]\n", m.Name())
			result, err := coordinator.Apply(gCtx, m, oldTree, newTree)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, result.String())
			if result.State != nil {
				fmt.Fprintf(out, "State: %s\n", result.State.Canonical())
			}
			if err := result.Err(); err != nil {
				return err
			}
		}

		if serving && f.linger > 0 {
			logger.Info("Keeping endpoints up", "metrics_addr", addr, "debug_addr", f.debugAddr, "linger", f.linger)
			select {
			case <-time.After(f.linger):
			case <-gCtx.Done():
			}
		}
		return nil
	})

	err = g.Wait()

	for _, m := range modules {
		if closeErr := m.Close(context.Background()); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("module %s: %w", m.Name(), closeErr))
		}
	}
	return err
}

// moduleStatus is the debug view of a module.
type moduleStatus struct {
	Schema         string   `json:"schema"`
	Namespace      string   `json:"namespace"`
	Order          string   `json:"order"`
	ErrorOption    string   `json:"error_option"`
	RefreshState   bool     `json:"refresh_state"`
	ConfigModified bool     `json:"config_modified"`
	Callbacks      []string `json:"callbacks"`
}

// debugVars publishes module state, recent transactions, fetched documents and event bus
// statistics.
func debugVars(modules []*transapi.Module, recorder *audit.Recorder, bus *events.EventBus, store *httpstore.HTTPStore) *introspection.Registry {
	registry := introspection.NewRegistry()

	registry.Publish("modules", introspection.Func(func() (any, error) {
		out := make(map[string]moduleStatus, len(modules))
		for _, m := range modules {
			opts := m.Config().Options()
			out[m.Name()] = moduleStatus{
				Schema:         m.Model().Name(),
				Namespace:      m.Model().Namespace(),
				Order:          opts.Order.String(),
				ErrorOption:    opts.ErrorOption.String(),
				RefreshState:   m.Config().RefreshState,
				ConfigModified: m.ConfigModified(),
				Callbacks:      m.Registry().DataPaths(),
			}
		}
		return out, nil
	}))
	registry.Publish("transactions", introspection.Func(func() (any, error) {
		return recorder.Summaries(50), nil
	}))
	registry.Publish("documents", introspection.Func(func() (any, error) {
		return map[string]int{"fetched": store.Len()}, nil
	}))
	registry.Publish("events", introspection.Func(func() (any, error) {
		return map[string]any{
			"subscribers": bus.Subscribers(),
			"dropped":     bus.Dropped(),
		}, nil
	}))
	return registry
}
