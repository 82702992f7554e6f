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

// Package config provides data models for the configuration of the process
// hosting transaction modules.
package config

// Config is the root configuration structure.
type Config struct {
	// Logging configures logging behavior.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Modules maps module names to their transaction settings.
	//
	// Example:
	//   interfaces:
	//     schema: schemas/interfaces.yaml
	//     callbacks_order: root-to-leaf
	//     error_option: rollback
	Modules map[string]ModuleConfig `yaml:"modules"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Verbose controls log level: 0=WARNING, 1=INFO, 2=DEBUG
	Verbose int `yaml:"verbose"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Port is the port for Prometheus metrics.
	// Default: 9090
	Port int `yaml:"port"`
}

// ModuleConfig holds the settings of one module.
type ModuleConfig struct {
	// Schema is the path of the YAML schema definition. Relative paths are
	// resolved against the directory of the configuration file.
	Schema string `yaml:"schema"`

	// CallbacksOrder is the traversal order of data callbacks:
	// "leaf-to-root", "root-to-leaf" or "default".
	// Default: default
	CallbacksOrder string `yaml:"callbacks_order"`

	// ErrorOption selects the reaction to a failing callback:
	// "stop", "continue" or "rollback".
	// Default: stop
	ErrorOption string `yaml:"error_option"`

	// RefreshState requests operational state after a transaction that
	// changed the configuration.
	RefreshState bool `yaml:"refresh_state"`
}
