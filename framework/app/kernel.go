package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/providers"
	"github.com/km-arc/go-beans/framework/routing"
)

// Version of the framework.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Options selects the configuration files and collaborators of an
// Application. The zero value loads .env and the process environment.
type Options struct {
	EnvFiles    []string
	ConfigFiles []string      // YAML documents
	Watch       time.Duration // reload debounce for ConfigFiles; 0 disables
	Logger      logging.Logger
}

// Application is the top-level application container. It embeds the bean
// Container so user code can call app.Register(defs...) and friends directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry
	Config    *config.Repository

	log logging.Logger
}

// New creates the application and registers the framework providers.
//
//	application, err := app.New(app.Options{ConfigFiles: []string{"app.yaml"}})
//	application.Use(&MyProvider{})
//	err = application.Run(ctx)
func New(opts Options) (*Application, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewLogger()
	}

	repo := config.Load(opts.EnvFiles...)
	repo.SetLogger(log)

	c := container.New(container.WithLogger(log), container.WithConfig(repo))
	if err := c.AddBean(beans.TypeOf[logging.Logger](), log, true); err != nil {
		return nil, err
	}

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		Config:    repo,
		log:       log.WithField("component", "app"),
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Repo: repo, Files: opts.ConfigFiles, Watch: opts.Watch},
		&providers.RoutingServiceProvider{},
		&providers.InspectServiceProvider{},
	} {
		if err := a.Use(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Use adds a ServiceProvider to the application.
func (a *Application) Use(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot initializes the container and runs the Boot phase of every provider.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Router resolves the HTTP router.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container)
}

// Addr is the listen address, ":" + app.port (default 8000).
func (a *Application) Addr() string {
	return net.JoinHostPort(a.property("app.host", ""), a.property("app.port", "8000"))
}

// Run boots the application if needed and serves HTTP until ctx is done.
// The container is closed when the server stops.
func (a *Application) Run(ctx context.Context) error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return err
		}
	}
	router, err := a.Router()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Infof("%s running on %s [%s]", a.Name(), srv.Addr, a.Environment())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	serveErr := g.Wait()
	if err := a.Close(); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func (a *Application) property(key, fallback string) string {
	if v, ok := a.Config.GetProperty(key); ok && v != "" {
		return v
	}
	return fallback
}

// Name returns app.name.
func (a *Application) Name() string { return a.property("app.name", "go-beans") }

// Environment returns app.env.
func (a *Application) Environment() string { return a.property("app.env", "local") }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
