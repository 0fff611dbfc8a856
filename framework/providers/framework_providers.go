package providers

import (
	"time"

	"github.com/pkg/errors"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/inspect"
	"github.com/km-arc/go-beans/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider publishes the configuration repository as a bean and
// layers YAML files under it.
//
// Beans:
//   - "config" → *config.Repository, also found as config.Config
//
// The repository is closed with the container, which stops the file watcher.
type ConfigServiceProvider struct {
	container.BaseProvider
	Repo  *config.Repository
	Files []string      // YAML documents, lower precedence than the environment
	Watch time.Duration // reload debounce; 0 disables watching
}

func (p *ConfigServiceProvider) Register(c *container.Container) error {
	if p.Repo == nil {
		return errors.New("config provider without repository")
	}
	for _, file := range p.Files {
		src, err := config.NewYAMLFile(file)
		if err != nil {
			return err
		}
		p.Repo.AddSource(src)
	}
	return c.Register(
		beans.DefineOf[*config.Repository]().
			ID("config").
			Instance(p.Repo).
			Also(beans.TypeOf[config.Config](), "").
			Definition(),
	)
}

func (p *ConfigServiceProvider) Boot(_ *container.Container) error {
	if p.Watch <= 0 || len(p.Files) == 0 {
		return nil
	}
	return p.Repo.Watch(p.Watch)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router and, at boot, mounts every
// bean exposed as routing.Registrar.
//
// Beans:
//   - "router" → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(c *container.Container) error {
	return c.Register(
		beans.DefineOf[*routing.Router]().ID("router").Constructor(routing.New).Definition(),
	)
}

func (p *RoutingServiceProvider) Boot(c *container.Container) error {
	router, err := container.Resolve[*routing.Router](c)
	if err != nil {
		return err
	}
	regs, err := container.All[routing.Registrar](c)
	if err != nil {
		return err
	}
	router.Mount(regs...)
	return nil
}

// ── InspectServiceProvider ────────────────────────────────────────────────────

// InspectServiceProvider registers the bean inspector endpoints.
//
// Beans:
//   - "inspector" → *inspect.Inspector, also found as routing.Registrar
//
// Configuration keys:
//   - inspect.prefix (default: "/beans")
type InspectServiceProvider struct {
	container.BaseProvider
}

func (p *InspectServiceProvider) Register(c *container.Container) error {
	return c.Register(
		beans.DefineOf[*inspect.Inspector]().
			ID("inspector").
			Also(beans.TypeOf[routing.Registrar](), "").
			Definition(),
	)
}
