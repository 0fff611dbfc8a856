package container

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/catalog"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/logging"
)

// ErrClosed is returned by every resolution call made after Close.
var ErrClosed = errors.New("container is closed")

// ── Container ─────────────────────────────────────────────────────────────────

// Container resolves bean definitions into wired, lifecycle-managed
// instances.
//
// It supports:
//   - lookup by id, by type, by type and name, by qualifier
//   - singleton and prototype scopes
//   - constructor, factory and value construction
//   - struct tag injection, config binding and validation
//   - lazy handles, collection and map injection
//   - proxies wrapping other beans
//   - ordered eager start-up and best-effort shutdown
//
// Definitions are registered first, then Init seals the catalog. Lookups are
// safe for concurrent use; registration is not.
type Container struct {
	log     logging.Logger
	catalog *catalog.Catalog
	cfg     config.Config

	// definition → *slot
	slots sync.Map

	// reflect.Type → []*beans.BeanDefinition, filled once the catalog is sealed
	lists     sync.Map
	listGroup singleflight.Group

	// guards registration and created
	mu sync.Mutex

	// owned singletons in creation order
	created []*slot

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger. The default writes to stderr at the level
// named by GO_BEANS_LOG_LEVEL.
func WithLogger(log logging.Logger) Option {
	return func(c *Container) { c.log = log }
}

// WithConfig sets the configuration collaborator used for `config` fields,
// ConfigAware beans and config.Config injection.
func WithConfig(cfg config.Config) Option {
	return func(c *Container) { c.cfg = cfg }
}

// New creates an empty container.
//
//	repo := config.NewRepository()
//	c := container.New(container.WithConfig(repo))
func New(opts ...Option) *Container {
	c := &Container{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.NewLogger()
	}
	c.log = c.log.WithField("component", "container")
	c.catalog = catalog.New(c.log)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register adds definitions to the catalog. The first failing definition
// stops the call; the ones before it stay registered.
//
//	err := c.Register(
//	    beans.DefineOf[*Pool]().Constructor(NewPool).Definition(),
//	    beans.DefineOf[Store]().Implementation(beans.TypeOf[*SQLStore]()).Primary().Definition(),
//	)
func (c *Container) Register(defs ...*beans.BeanDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, def := range defs {
		if err := c.catalog.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// AddAlias registers an alternative name for an id or a (type, name) pair.
//
//	c.AddAlias(catalog.Alias{Alias: "db", TargetID: "primary-db"})
func (c *Container) AddAlias(alias catalog.Alias) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.AddAlias(alias)
}

// AddBean registers a pre-built singleton under typ. The instance skips
// construction and the lifecycle, and is not destroyed on Close.
//
//	c.AddBean(beans.TypeOf[*sql.DB](), db, true)
func (c *Container) AddBean(typ reflect.Type, instance any, primary bool) error {
	def := beans.NewDefinition(typ)
	def.Primary = primary
	def.Value = beans.Literal(instance)
	def.Source = beans.Source{Kind: beans.SourceProgrammatic, Origin: "AddBean"}

	if instance != nil && !reflect.TypeOf(instance).AssignableTo(typ) {
		return beans.NewDefinitionError(def, "instance %T is not assignable to %v", instance, typ)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.catalog.Add(def); err != nil {
		return err
	}
	s := c.slotFor(def)
	s.value, s.raw, s.state = instance, instance, Ready
	s.done.Store(true)
	return nil
}

// Init seals the catalog and builds every non-lazy singleton in sortOrder.
// A singleton refusing to load is logged and skipped. Init is a no-op once
// it has run.
func (c *Container) Init() error {
	c.mu.Lock()
	if c.catalog.Sealed() {
		c.mu.Unlock()
		return nil
	}
	c.catalog.Seal()
	c.mu.Unlock()

	defs := c.catalog.Definitions()
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].SortOrder < defs[j].SortOrder })

	eager := 0
	for _, def := range defs {
		if !def.Singleton || def.LazyInit {
			continue
		}
		if _, err := c.resolve(def, nil); err != nil {
			if errors.Is(err, beans.ErrNotLoaded) {
				c.log.WithField("bean", def.String()).Info("skipped, refused to load")
				continue
			}
			return err
		}
		eager++
	}
	c.log.WithFields(map[string]any{"definitions": len(defs), "eager": eager}).Info("container initialized")
	return nil
}

// Catalog exposes the definition catalog for inspection.
func (c *Container) Catalog() *catalog.Catalog { return c.catalog }

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves the bean with id, following aliases.
//
//	db, err := c.Get("primary-db")
func (c *Container) Get(id string) (any, error) {
	def := c.catalog.Get(id)
	if def == nil {
		return nil, &beans.NoSuchDefinitionError{Query: "id '" + id + "'"}
	}
	return c.resolve(def, nil)
}

// GetByType resolves the primary (or only) bean of typ.
func (c *Container) GetByType(typ reflect.Type) (any, error) {
	return c.lookup(query{typ: typ}, nil)
}

// GetNamed resolves the bean registered under (typ, name), falling back to
// the bean whose id is name.
func (c *Container) GetNamed(typ reflect.Type, name string) (any, error) {
	return c.lookup(query{typ: typ, name: name}, nil)
}

// TryGet is GetByType returning nil instead of NoSuchDefinitionError.
//
//	v, err := c.TryGet(beans.TypeOf[Cache]())
//	if v == nil && err == nil {
//	    // no cache configured
//	}
func (c *Container) TryGet(typ reflect.Type) (any, error) {
	return c.lookup(query{typ: typ, optional: true}, nil)
}

// TryGetNamed is GetNamed returning nil instead of NoSuchDefinitionError.
func (c *Container) TryGetNamed(typ reflect.Type, name string) (any, error) {
	return c.lookup(query{typ: typ, name: name, optional: true}, nil)
}

// GetAll resolves every bean of typ in sortOrder.
func (c *Container) GetAll(typ reflect.Type) ([]any, error) {
	return c.all(typ, "", nil)
}

// GetAllQualified resolves every bean of typ carrying qualifier, in sortOrder.
func (c *Container) GetAllQualified(typ reflect.Type, qualifier string) ([]any, error) {
	return c.all(typ, qualifier, nil)
}

// GetNamedBeans resolves the beans of typ keyed by their name, or their id
// when they have no name. Anonymous beans are left out.
func (c *Container) GetNamedBeans(typ reflect.Type) (map[string]any, error) {
	return c.named(typ, "", nil)
}

// Create always builds a fresh instance of typ, bypassing the singleton
// cache. An unregistered type is built from an ad-hoc definition.
//
//	report := c.Create(beans.TypeOf[*Report]())
func (c *Container) Create(typ reflect.Type) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	def, err := c.match(query{typ: typ})
	if errors.Is(err, beans.ErrNoSuchDefinition) {
		def = beans.NewDefinition(typ)
		def.Singleton = false
		def.Source = beans.Source{Kind: beans.SourceProgrammatic, Origin: "Create"}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	_, out, _, err := c.produce(def, nil)
	return out, err
}

// Inject runs AWARE, CONFIGURED and INJECTED on an object built elsewhere.
// obj must be a pointer to a struct.
//
//	var holder struct {
//	    Store Store `autowire:"@"`
//	}
//	err := c.Inject(&holder)
func (c *Container) Inject(obj any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if _, ok := structValue(obj); !ok {
		return errors.Errorf("inject target must be a non-nil pointer to a struct, got %T", obj)
	}
	def := beans.NewDefinition(reflect.TypeOf(obj))
	def.Singleton = false
	def.Source = beans.Source{Kind: beans.SourceProgrammatic, Origin: "Inject"}

	node := (*chain)(nil).push(def)
	defer node.finish()

	lc := &lifecycle{c: c, def: def, node: node, instance: obj}
	for _, step := range []func() (bool, error){lc.aware, lc.configure, lc.inject} {
		if _, err := step(); err != nil {
			return constructionError(def, err)
		}
	}
	return nil
}

// ── Shutdown ──────────────────────────────────────────────────────────────────

// Close destroys every singleton the container built. Destroy hooks run
// concurrently; a failing hook is logged and does not stop the others. The
// first failure is returned. Close is idempotent.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		created := c.created
		c.created = nil
		c.mu.Unlock()

		var g errgroup.Group
		for _, s := range created {
			s := s
			if !s.owned {
				continue
			}
			g.Go(func() error {
				if err := destroy(s.def, s.raw); err != nil {
					c.log.WithField("bean", s.def.String()).Errorf("destroy failed: %v", err)
					return errors.Wrapf(err, "destroy %s", s.def)
				}
				return nil
			})
		}
		c.closeErr = g.Wait()

		c.slots.Range(func(k, _ any) bool {
			c.slots.Delete(k)
			return true
		})
		c.log.WithField("destroyed", len(created)).Info("container closed")
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Container) Closed() bool { return c.closed.Load() }

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve is GetByType with the result asserted to T.
//
//	// Instead of: v, err := c.GetByType(beans.TypeOf[Store]()); store := v.(Store)
//	// Write:      store, err := container.Resolve[Store](c)
func Resolve[T any](c *Container) (T, error) {
	return assert[T](c.GetByType(beans.TypeOf[T]()))
}

// ResolveNamed is GetNamed with the result asserted to T.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return assert[T](c.GetNamed(beans.TypeOf[T](), name))
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// All resolves every bean of T in sortOrder.
func All[T any](c *Container) ([]T, error) {
	items, err := c.GetAll(beans.TypeOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := assert[T](item, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func assert[T any](v any, err error) (T, error) {
	var zero T
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("container: resolved %T, want %v", v, beans.TypeOf[T]())
	}
	return typed, nil
}
