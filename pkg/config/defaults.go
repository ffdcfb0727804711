package config

import "time"

// builtin returns the engine's built-in defaults, merged with user YAML
// by Initialize, so a user config file only needs to override what it
// cares about.
func builtin() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: "8080",
			GinMode:  "release",
		},
		Research: ResearchConfig{
			DefaultMaxIterations:  3,
			MaxSearchDepth:        2,
			MaxConcurrentSections: 3,
			DrainPollInterval:     500 * time.Millisecond,
			CancelCheckInterval:   500 * time.Millisecond,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "LLM_API_KEY",
			Model:          "gpt-4o-mini",
			Temperature:    0.3,
			MaxTokens:      4096,
			RequestTimeout: 60 * time.Second,
		},
		Search: SearchConfig{
			BaseURL:        "",
			APIKeyEnv:      "SEARCH_API_KEY",
			RequestTimeout: 30 * time.Second,
			CacheSize:      512,
			CacheTTL:       time.Hour,
		},
		Sandbox: SandboxConfig{
			MaxRetries:  3,
			ExecTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "deepresearch",
			PasswordEnv:     "DATABASE_PASSWORD",
			Database:        "deepresearch",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
	}
}
