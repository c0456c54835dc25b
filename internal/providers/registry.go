package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds references to image backends.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]ImageBackend
	logger   *slog.Logger
}

// NewRegistry creates a new empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]ImageBackend),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers an image backend by name.
func (r *Registry) Register(name string, backend ImageBackend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend
	if r.logger != nil {
		r.logger.Info("registered image backend", "name", name)
	}
}

// Unregister removes an image backend by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
	if r.logger != nil {
		r.logger.Info("unregistered image backend", "name", name)
	}
}

// Get returns an image backend by name.
func (r *Registry) Get(name string) (ImageBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("image backend not found: %s", name)
	}
	return backend, nil
}

// List returns all registered backend names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Has checks if an image backend is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

// RegistryConfig defines the backends to instantiate from config.
// This mirrors the config.Config structure for backend setup.
type RegistryConfig struct {
	// Backends maps backend names to their config
	Backends map[string]BackendConfig
}

// BackendConfig matches config.BackendCfg with resolved API key.
type BackendConfig struct {
	Type      string  // "gemini", "openai"
	Model     string  // Model name
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per second
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with backends based on configuration.
// Only enabled backends with valid API keys will be registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.applyConfig(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Backends that are no longer configured will be unregistered.
// Backends with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Track which backends should exist
	want := make(map[string]bool)

	for name, provCfg := range cfg.Backends {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		want[name] = true

		existing, hasExisting := r.backends[name]
		if !hasExisting || needsUpdate(existing, provCfg) {
			backend := createBackend(provCfg)
			if backend != nil {
				r.backends[name] = backend
				if r.logger != nil {
					if hasExisting {
						r.logger.Info("updated image backend", "name", name, "type", provCfg.Type)
					} else {
						r.logger.Info("registered image backend", "name", name, "type", provCfg.Type)
					}
				}
			}
		}
	}

	// Remove backends that are no longer configured
	for name := range r.backends {
		if !want[name] {
			delete(r.backends, name)
			if r.logger != nil {
				r.logger.Info("unregistered image backend", "name", name)
			}
		}
	}
}

// applyConfig applies configuration without locking (used during init).
func (r *Registry) applyConfig(cfg RegistryConfig) {
	for name, provCfg := range cfg.Backends {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		backend := createBackend(provCfg)
		if backend != nil {
			r.backends[name] = backend
		}
	}
}

// createBackend creates an image backend based on backend type.
func createBackend(cfg BackendConfig) ImageBackend {
	switch cfg.Type {
	case "gemini":
		return NewGeminiBackend(GeminiConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		})
	case "openai":
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		})
	default:
		return nil
	}
}

// needsUpdate checks if a backend needs to be recreated.
func needsUpdate(backend ImageBackend, cfg BackendConfig) bool {
	switch b := backend.(type) {
	case *GeminiBackend:
		return b.apiKey != cfg.APIKey ||
			(cfg.Model != "" && b.model != cfg.Model) ||
			b.rateLimit != cfg.RateLimit
	case *OpenAIBackend:
		return b.apiKey != cfg.APIKey ||
			(cfg.Model != "" && b.model != cfg.Model) ||
			b.rateLimit != cfg.RateLimit
	default:
		return true
	}
}
