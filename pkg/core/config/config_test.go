package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
logging:
  verbose: 2

metrics:
  enabled: true
  port: 9100

modules:
  interfaces:
    schema: schemas/interfaces.yaml
    callbacks_order: root-to-leaf
    error_option: rollback
    refresh_state: true
  system:
    schema: /etc/transapi/system.yaml
`

func TestLoadConfig_Success(t *testing.T) {
	cfg, err := LoadConfig(validYAML)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Logging.Verbose)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)

	require.Contains(t, cfg.Modules, "interfaces")
	ifaces := cfg.Modules["interfaces"]
	assert.Equal(t, "root-to-leaf", ifaces.CallbacksOrder)
	assert.Equal(t, "rollback", ifaces.ErrorOption)
	assert.True(t, ifaces.RefreshState)

	assert.Equal(t, []string{"interfaces", "system"}, cfg.ModuleNames())
	assert.NoError(t, ValidateStructure(cfg))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(`
modules:
  system:
    schema: system.yaml
`)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Logging.Verbose)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.Equal(t, DefaultCallbacksOrder, cfg.Modules["system"].CallbacksOrder)
	assert.Equal(t, DefaultErrorOption, cfg.Modules["system"].ErrorOption)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "config YAML is empty"},
		{"invalid yaml", "modules: [", "failed to unmarshal YAML"},
		{"unknown field", "modules: {}\ncontroller: {}\n", "failed to unmarshal YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(tt.yaml)
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateStructure(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Logging: LoggingConfig{Verbose: 1},
			Metrics: MetricsConfig{Port: 9090},
			Modules: map[string]ModuleConfig{
				"system": {Schema: "system.yaml", CallbacksOrder: "default", ErrorOption: "stop"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"verbose too high", func(c *Config) { c.Logging.Verbose = 3 }, "logging: verbose must be"},
		{"port out of range", func(c *Config) { c.Metrics.Port = 70000 }, "metrics: port must be"},
		{"no modules", func(c *Config) { c.Modules = nil }, "at least one module"},
		{"missing schema", func(c *Config) {
			c.Modules["system"] = ModuleConfig{CallbacksOrder: "default", ErrorOption: "stop"}
		}, "modules: system: schema cannot be empty"},
		{"bad order", func(c *Config) {
			c.Modules["system"] = ModuleConfig{Schema: "s.yaml", CallbacksOrder: "sideways", ErrorOption: "stop"}
		}, "callbacks_order: invalid callbacks order"},
		{"bad error option", func(c *Config) {
			c.Modules["system"] = ModuleConfig{Schema: "s.yaml", CallbacksOrder: "default", ErrorOption: "ignore"}
		}, "error_option: invalid error option"},
		{"module name escaping the tree directory", func(c *Config) {
			c.Modules["../etc/passwd"] = ModuleConfig{Schema: "s.yaml"}
		}, `invalid module name "../etc/passwd"`},
		{"module name with backslash", func(c *Config) {
			c.Modules[`a\b`] = ModuleConfig{Schema: "s.yaml"}
		}, "must be a plain name"},
		{"dot-dot module name", func(c *Config) {
			c.Modules[".."] = ModuleConfig{Schema: "s.yaml"}
		}, `invalid module name ".."`},
		{"protocol error option spelling", func(c *Config) {
			c.Modules["system"] = ModuleConfig{Schema: "s.yaml", ErrorOption: "rollback-on-error"}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := ValidateStructure(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	assert.ErrorContains(t, ValidateStructure(nil), "config is nil")
}

func TestLoadConfigFile_ResolvesSchemaPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "schemas", "interfaces.yaml"), cfg.Modules["interfaces"].Schema)
	assert.Equal(t, "/etc/transapi/system.yaml", cfg.Modules["system"].Schema)
}

func TestLoadConfigFile_KeepsSchemaURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modules:\n  system:\n    schema: https://schemas.example/system.yaml\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://schemas.example/system.yaml", cfg.Modules["system"].Schema)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  verbose: 9\nmodules:\n  m:\n    schema: s.yaml\n"), 0o600))
	_, err = LoadConfigFile(path)
	assert.ErrorContains(t, err, "verbose must be")
}
