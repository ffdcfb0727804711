// Package config loads and validates the engine's configuration: LLM and
// search adapter endpoints, sandbox limits, review-loop defaults, and
// server settings. A YAML file is merged with built-in defaults via
// dario.cat/mergo, with environment-variable expansion for secrets.
package config

import "time"

// Config is the fully resolved, ready-to-use engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Research ResearchConfig `yaml:"research"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
	GinMode  string `yaml:"gin_mode"`
}

// ResearchConfig controls the orchestrator's default bounds.
type ResearchConfig struct {
	DefaultMaxIterations int           `yaml:"default_max_iterations"`
	MaxSearchDepth       int           `yaml:"max_search_depth"`
	MaxConcurrentSections int          `yaml:"max_concurrent_sections"`
	DrainPollInterval    time.Duration `yaml:"drain_poll_interval"`
	CancelCheckInterval  time.Duration `yaml:"cancel_check_interval"`
}

// LLMConfig points at the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Model          string        `yaml:"model"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SearchConfig points at the web-search endpoint.
type SearchConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheSize      int           `yaml:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// SandboxConfig bounds the Starlark analysis runner.
type SandboxConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	ExecTimeout    time.Duration `yaml:"exec_timeout"`
}

// DatabaseConfig is the checkpoint store's Postgres connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	PasswordEnv     string        `yaml:"password_env"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Stats summarizes the resolved configuration for the health endpoint.
type Stats struct {
	MaxIterations int    `json:"max_iterations"`
	LLMModel      string `json:"llm_model"`
	SandboxRetries int   `json:"sandbox_max_retries"`
}

// Stats reports a snapshot of the configuration's headline values.
func (c *Config) Stats() Stats {
	return Stats{
		MaxIterations:  c.Research.DefaultMaxIterations,
		LLMModel:       c.LLM.Model,
		SandboxRetries: c.Sandbox.MaxRetries,
	}
}
