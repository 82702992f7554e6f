package config

import (
	"fmt"
	"strings"

	"netconf-transapi/pkg/transapi/dispatch"
)

// ValidateStructure performs basic structural validation on the configuration.
// It does not load the referenced schema files.
func ValidateStructure(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if err := validateMetricsConfig(&cfg.Metrics); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if err := validateModules(cfg.Modules); err != nil {
		return fmt.Errorf("modules: %w", err)
	}

	return nil
}

// validateLoggingConfig validates the logging configuration.
func validateLoggingConfig(lc *LoggingConfig) error {
	if lc.Verbose < 0 || lc.Verbose > 2 {
		return fmt.Errorf("verbose must be 0 (WARNING), 1 (INFO), or 2 (DEBUG), got %d", lc.Verbose)
	}

	return nil
}

func validateMetricsConfig(mc *MetricsConfig) error {
	if mc.Port < 1 || mc.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", mc.Port)
	}
	return nil
}

func validateModules(modules map[string]ModuleConfig) error {
	if len(modules) == 0 {
		return fmt.Errorf("at least one module must be configured")
	}

	for name, module := range modules {
		if err := validateModuleName(name); err != nil {
			return err
		}
		if err := validateModule(&module); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// validateModuleName rejects names that cannot serve as a plain file name,
// since module trees are looked up as <dir>/<name>.xml.
func validateModuleName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid module name %q: must be a plain name without path separators", name)
	}
	return nil
}

func validateModule(mc *ModuleConfig) error {
	if mc.Schema == "" {
		return fmt.Errorf("schema cannot be empty")
	}
	if _, err := dispatch.ParseOrder(mc.CallbacksOrder); err != nil {
		return fmt.Errorf("callbacks_order: %w", err)
	}
	if _, err := dispatch.ParseErrorOption(mc.ErrorOption); err != nil {
		return fmt.Errorf("error_option: %w", err)
	}
	return nil
}
