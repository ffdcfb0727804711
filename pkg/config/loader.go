package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} occurrences for expansion.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Initialize loads deepresearch.yaml from configDir (if present), expands
// environment variables, merges it over the built-in defaults, and
// returns a ready-to-use Config. A missing config file is not an error:
// the engine runs on built-in defaults alone.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := builtin()

	path := filepath.Join(configDir, "deepresearch.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("no deepresearch.yaml found, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	expanded := expandEnv(string(raw))

	var userCfg Config
	if err := yaml.Unmarshal([]byte(expanded), &userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, userCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "max_iterations", cfg.Research.DefaultMaxIterations,
		"llm_model", cfg.LLM.Model)
	return cfg, nil
}

// expandEnv replaces ${VAR} with the environment variable's value,
// leaving the placeholder untouched if unset rather than silently turning
// it into an empty string. validate does not check for leftover
// placeholders.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

func validate(cfg *Config) error {
	if cfg.Research.DefaultMaxIterations < 0 {
		return fmt.Errorf("research.default_max_iterations must be >= 0")
	}
	if cfg.Research.MaxSearchDepth < 0 {
		return fmt.Errorf("research.max_search_depth must be >= 0")
	}
	if cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if cfg.Sandbox.MaxRetries < 0 {
		return fmt.Errorf("sandbox.max_retries must be >= 0")
	}
	return nil
}
