package integration

import (
	"context"
	"errors"
	"sync"

	"github.com/ignite/formbridge/internal/form"
	"github.com/ignite/formbridge/internal/pkg/logger"
)

// SettingsLoader loads stored provider credentials.
type SettingsLoader interface {
	GetSettings(ctx context.Context, provider form.Provider) (*Settings, error)
}

// Factory builds a connector from stored credentials. It returns a
// classified error when the credentials are missing or malformed.
type Factory func(credentials map[string]string) (Connector, error)

// ConnectorSource resolves the connector for a provider at use time.
type ConnectorSource interface {
	Connector(ctx context.Context, provider form.Provider) (Connector, error)
}

// Registry resolves connectors per provider. Credentials saved through
// the admin API take precedence; connectors seeded from boot config
// serve as the fallback when no row is stored. Built connectors are
// cached until Refresh drops them.
type Registry struct {
	settings  SettingsLoader
	factories map[form.Provider]Factory
	seeds     map[form.Provider]Connector
	log       *logger.Logger

	mu    sync.RWMutex
	built map[form.Provider]Connector
}

// NewRegistry creates a registry over the given settings store. A nil
// loader is allowed; the registry then serves seeded connectors only.
func NewRegistry(settings SettingsLoader) *Registry {
	return &Registry{
		settings:  settings,
		factories: make(map[form.Provider]Factory),
		seeds:     make(map[form.Provider]Connector),
		built:     make(map[form.Provider]Connector),
		log:       logger.Component("registry"),
	}
}

// Seed registers a config-constructed connector as the fallback for
// its provider.
func (r *Registry) Seed(c Connector) {
	r.seeds[c.Provider()] = c
}

// RegisterFactory registers the builder used for admin-saved
// credentials of one provider.
func (r *Registry) RegisterFactory(provider form.Provider, f Factory) {
	r.factories[provider] = f
}

// Connector returns the connector for the provider, building it from
// stored credentials when present and falling back to the seed
// otherwise. With neither it returns an auth-classified error.
func (r *Registry) Connector(ctx context.Context, provider form.Provider) (Connector, error) {
	r.mu.RLock()
	c, ok := r.built[provider]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	if r.settings != nil && r.factories[provider] != nil {
		st, err := r.settings.GetSettings(ctx, provider)
		switch {
		case err == nil:
			c, err := r.factories[provider](st.Credentials)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.built[provider] = c
			r.mu.Unlock()
			return c, nil
		case !errors.Is(err, ErrNotFound):
			// Transient store failure: fall back to the seed if one
			// exists rather than dropping the dispatch.
			r.log.Warn("settings load failed",
				"provider", provider, "error", err)
		}
	}

	if seed, ok := r.seeds[provider]; ok {
		return seed, nil
	}
	return nil, Errorf(CategoryAuth, "no credentials configured for %s", provider)
}

// Refresh drops the cached connector so the next resolution rebuilds
// it from stored credentials. Called after settings are saved.
func (r *Registry) Refresh(provider form.Provider) {
	r.mu.Lock()
	delete(r.built, provider)
	r.mu.Unlock()
}
