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

// Package main provides transapictl, a command line driver for configuration
// transactions.
//
// transapictl loads module schemas and pairs of configuration trees (XML or
// YAML), computes their diff and dispatches it to echo callbacks that print
// every change they apply. It is meant for exercising callback orders and
// error options without a real backend:
//
//   - transapictl paths --schema system.yaml
//   - transapictl diff --schema system.yaml --old running.xml --new candidate.xml
//   - transapictl apply --config transapi.yaml --old running/ --new candidate/
//
// The process stops on SIGTERM or SIGINT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel() called explicitly before exit
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transapictl",
		Short: "Compute and apply configuration transactions",
		Long: `transapictl computes the difference between two configuration trees of a
module and dispatches it to data callbacks under a callback order and an
error option.

Callbacks are echo callbacks registered for every data node of the schema.
They print each change and fail for the paths given with --fail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v INFO, -vv DEBUG)")

	root.AddCommand(newPathsCmd(), newDiffCmd(), newApplyCmd())
	return root
}
