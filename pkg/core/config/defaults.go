package config

// Default values for configuration fields.
const (
	// DefaultMetricsPort is the default port for Prometheus metrics.
	DefaultMetricsPort = 9090

	// DefaultCallbacksOrder resolves to leaf-to-root traversal.
	DefaultCallbacksOrder = "default"

	// DefaultErrorOption halts dispatch at the first failing callback.
	DefaultErrorOption = "stop"
)

// setDefaults applies default values to unset configuration fields.
// This modifies the config in-place and should be called after parsing
// the configuration and before validation.
func setDefaults(cfg *Config) {
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}

	// Note: Verbose level 0 is valid (WARNING), so we don't set a default

	for name, module := range cfg.Modules {
		if module.CallbacksOrder == "" {
			module.CallbacksOrder = DefaultCallbacksOrder
		}
		if module.ErrorOption == "" {
			module.ErrorOption = DefaultErrorOption
		}
		cfg.Modules[name] = module
	}
}
