package container

import "github.com/pkg/errors"

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider is a loader: it contributes definitions to the catalog,
// then gets a chance to use the ready container.
//
// Register is called before the container is initialized and must only add
// definitions. Boot is called after Init, when every eager singleton exists,
// making it safe to resolve beans inside Boot.
//
//	type StoreProvider struct{ container.BaseProvider }
//
//	func (p *StoreProvider) Register(c *container.Container) error {
//	    return c.Register(
//	        beans.DefineOf[Store]().Implementation(beans.TypeOf[*SQLStore]()).Definition(),
//	    )
//	}
//
//	func (p *StoreProvider) Boot(c *container.Container) error {
//	    store, err := container.Resolve[Store](c)
//	    if err != nil {
//	        return err
//	    }
//	    return store.Migrate()
//	}
type ServiceProvider interface {
	// Register adds definitions. Do NOT resolve beans here; use Boot.
	Register(c *Container) error

	// Boot is called after the container is initialized.
	Boot(c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with a no-op Boot.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(c *container.Container) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers providers into a container, initializes the
// container and boots the providers in registration order.
type ProviderRegistry struct {
	c          *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to c.
func NewProviderRegistry(c *Container) *ProviderRegistry {
	return &ProviderRegistry{
		c:          c,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register calls the provider's Register. Registering the same provider
// twice is a no-op; registering after Boot fails because the catalog is
// sealed.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted {
		return errors.Errorf("provider %T registered after boot", provider)
	}
	if err := provider.Register(r.c); err != nil {
		return errors.Wrapf(err, "register %T", provider)
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	return nil
}

// Boot initializes the container, then calls Boot on every provider.
// A second call is a no-op.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	if err := r.c.Init(); err != nil {
		return err
	}
	for _, provider := range r.providers {
		if err := provider.Boot(r.c); err != nil {
			return errors.Wrapf(err, "boot %T", provider)
		}
	}
	return nil
}

// Booted returns true if Boot has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the registered providers in order.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
