// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig parses YAML configuration and applies default values.
//
// Example:
//
//	cfg, err := config.LoadConfig(yamlString)
//	if err != nil {
//	    return err
//	}
//	if err := config.ValidateStructure(cfg); err != nil {
//	    return err
//	}
func LoadConfig(configYAML string) (*Config, error) {
	cfg, err := parseConfig(configYAML)
	if err != nil {
		return nil, err
	}

	setDefaults(cfg)

	return cfg, nil
}

// LoadConfigFile reads, parses and validates the configuration file at path.
// Relative module schema paths are made relative to the file's directory;
// URLs are kept as they are.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for name, module := range cfg.Modules {
		if module.Schema != "" && !filepath.IsAbs(module.Schema) && !strings.Contains(module.Schema, "://") {
			module.Schema = filepath.Join(dir, module.Schema)
			cfg.Modules[name] = module
		}
	}

	if err := ValidateStructure(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig parses YAML configuration into a Config struct without
// applying defaults or validating. Unknown fields are rejected.
func parseConfig(configYAML string) (*Config, error) {
	if configYAML == "" {
		return nil, fmt.Errorf("config YAML is empty")
	}

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(configYAML))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &cfg, nil
}

// ModuleNames returns the configured module names in the order transactions
// are applied: alphabetically.
func (c *Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
