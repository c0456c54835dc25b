package config

// Config holds nanopdf configuration.
// Stored at: ~/.nanopdf/config.yaml
type Config struct {
	Backends map[string]BackendCfg `mapstructure:"backends" yaml:"backends"`
	Defaults DefaultsCfg           `mapstructure:"defaults" yaml:"defaults"`
}

// BackendCfg configures a generative image backend.
type BackendCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "gemini", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name (backend default if empty)
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default command behavior.
type DefaultsCfg struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`       // Default image backend
	Resolution string `mapstructure:"resolution" yaml:"resolution"` // Default output resolution (4K/2K/1K)
	Workers    int    `mapstructure:"workers" yaml:"workers"`       // Max concurrent generation tasks
	RenderDPI  int    `mapstructure:"render_dpi" yaml:"render_dpi"` // DPI for page rasterization
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backends: map[string]BackendCfg{
			"gemini": {
				Type:      "gemini",
				Model:     "gemini-3-pro-image-preview",
				APIKey:    "${GEMINI_API_KEY}",
				RateLimit: 1.0,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-image-1",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 1.0,
				Enabled:   false,
			},
		},
		Defaults: DefaultsCfg{
			Backend:    "gemini",
			Resolution: "2K",
			Workers:    10,
			RenderDPI:  300,
		},
	}
}

// GetBackend returns a backend config by name.
func (c *Config) GetBackend(name string) (BackendCfg, bool) {
	cfg, ok := c.Backends[name]
	return cfg, ok
}

// EnabledBackends returns all enabled backends.
func (c *Config) EnabledBackends() map[string]BackendCfg {
	result := make(map[string]BackendCfg)
	for name, cfg := range c.Backends {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ResolveAPIKey resolves the API key for a backend, expanding any
// ${ENV_VAR} reference. Returns the empty string for unknown backends.
func (c *Config) ResolveAPIKey(name string) string {
	cfg, ok := c.Backends[name]
	if !ok {
		return ""
	}
	return ResolveEnvVars(cfg.APIKey)
}
