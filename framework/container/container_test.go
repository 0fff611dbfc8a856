package container_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/catalog"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/logging"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Store interface{ Name() string }

type memStore struct{ name string }

func (m *memStore) Name() string {
	if m.name == "" {
		return "mem"
	}
	return m.name
}

type diskStore struct{ path string }

func (d *diskStore) Name() string { return "disk" }

var storeType = beans.TypeOf[Store]()

type ServiceB struct{ id string }

type ServiceA struct {
	B *ServiceB `autowire:"@"`
}

type ticket struct {
	n     int64
	label string
}

var tickets atomic.Int64

func newTicket() *ticket { return &ticket{n: tickets.Add(1)} }

func newContainer(t *testing.T, opts ...container.Option) *container.Container {
	t.Helper()
	opts = append([]container.Option{container.WithLogger(logging.Discard())}, opts...)
	c := container.New(opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func memStoreDef() *beans.Builder {
	return beans.DefineOf[Store]().Implementation(beans.TypeOf[*memStore]())
}

func diskStoreDef() *beans.Builder {
	return beans.DefineOf[Store]().Implementation(beans.TypeOf[*diskStore]())
}

// ── End-to-end ────────────────────────────────────────────────────────────────

func TestGet_InjectsSharedSingleton(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		beans.DefineOf[*ServiceA]().Definition(),
		beans.DefineOf[*ServiceB]().Definition(),
	))
	require.NoError(t, c.Init())

	a, err := container.Resolve[*ServiceA](c)
	require.NoError(t, err)
	b, err := container.Resolve[*ServiceB](c)
	require.NoError(t, err)

	require.NotNil(t, a.B)
	assert.Same(t, b, a.B)
}

func TestTryGet_PrimaryAndNamed(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		diskStoreDef().Named("x").Definition(),
		memStoreDef().Primary().Definition(),
	))
	require.NoError(t, c.Init())

	primary, err := c.TryGet(storeType)
	require.NoError(t, err)
	assert.IsType(t, &memStore{}, primary)

	named, err := c.TryGetNamed(storeType, "x")
	require.NoError(t, err)
	assert.IsType(t, &diskStore{}, named)
}

// ── Lookup ────────────────────────────────────────────────────────────────────

func TestTryGet_MissIsNil(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Init())

	v, err := c.TryGet(beans.TypeOf[*ServiceB]())
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = c.TryGetNamed(storeType, "nope")
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestGetByType_Miss(t *testing.T) {
	c := newContainer(t)

	_, err := c.GetByType(beans.TypeOf[*ServiceB]())
	assert.ErrorIs(t, err, beans.ErrNoSuchDefinition)
}

func TestGetByType_AmbiguousWithoutPrimary(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		memStoreDef().Named("a").Definition(),
		diskStoreDef().Named("b").Definition(),
	))

	_, err := c.GetByType(storeType)
	require.ErrorIs(t, err, beans.ErrNoSuchDefinition)
	assert.Contains(t, err.Error(), "2 candidates")
}

func TestGet_ByIDAndAlias(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(memStoreDef().ID("main-store").Definition()))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "store", TargetID: "main-store"}))
	require.NoError(t, c.Init())

	byID, err := c.Get("main-store")
	require.NoError(t, err)
	byAlias, err := c.Get("store")
	require.NoError(t, err)
	assert.Same(t, byID, byAlias)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, beans.ErrNoSuchDefinition)
}

func TestGetNamed_FallsBackToID(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		memStoreDef().ID("cache").Definition(),
		diskStoreDef().Named("archive").Definition(),
	))

	s, err := container.ResolveNamed[Store](c, "cache")
	require.NoError(t, err)
	assert.Equal(t, "mem", s.Name())

	s, err = container.ResolveNamed[Store](c, "archive")
	require.NoError(t, err)
	assert.Equal(t, "disk", s.Name())
}

func TestOverride_LaterDefinitionWins(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		memStoreDef().Named("main").Definition(),
		diskStoreDef().Named("main").Override().Definition(),
	))

	s, err := container.ResolveNamed[Store](c, "main")
	require.NoError(t, err)
	assert.Equal(t, "disk", s.Name())
}

func TestOverride_ReplacedDefinitionIsNeverBuilt(t *testing.T) {
	var built atomic.Int64
	c := newContainer(t)
	require.NoError(t, c.Register(
		memStoreDef().ID("old").Named("x").Constructor(func() *memStore {
			built.Add(1)
			return &memStore{name: "old"}
		}).Definition(),
		diskStoreDef().ID("new").Named("x").Override().Definition(),
	))
	require.NoError(t, c.Init())

	assert.Zero(t, built.Load())
	_, err := c.Get("old")
	assert.ErrorIs(t, err, beans.ErrNoSuchDefinition)
	s, err := c.Get("new")
	require.NoError(t, err)
	assert.Equal(t, "disk", s.(Store).Name())
	assert.Len(t, c.Describe(), 1)
}

func TestRegister_TwoPrimariesFail(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(memStoreDef().Primary().Definition()))

	err := c.Register(diskStoreDef().Primary().Definition())
	assert.ErrorIs(t, err, beans.ErrDefinition)
}

func TestRegister_AfterInitFails(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Init())

	err := c.Register(beans.DefineOf[*ServiceB]().Definition())
	assert.ErrorIs(t, err, beans.ErrDefinition)
}

// ── Scopes ────────────────────────────────────────────────────────────────────

func TestPrototype_FreshInstances(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().Constructor(newTicket).Prototype().Definition()))
	require.NoError(t, c.Init())

	first := container.MustResolve[*ticket](c)
	second := container.MustResolve[*ticket](c)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.n, second.n)
}

func TestSingleton_ConcurrentResolveBuildsOnce(t *testing.T) {
	var built atomic.Int32
	slow := func() *ticket {
		built.Add(1)
		time.Sleep(5 * time.Millisecond)
		return newTicket()
	}

	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().Constructor(slow).Lazy().Definition()))
	require.NoError(t, c.Init())
	assert.Zero(t, built.Load(), "lazy singleton built during Init")

	const workers = 32
	got := make([]*ticket, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = container.MustResolve[*ticket](c)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, built.Load())
	for _, tk := range got {
		assert.Same(t, got[0], tk)
	}
}

func TestInit_BuildsEagerSingletonsInSortOrder(t *testing.T) {
	var order []string
	record := func(name string) func() *ServiceB {
		return func() *ServiceB {
			order = append(order, name)
			return &ServiceB{id: name}
		}
	}

	c := newContainer(t)
	require.NoError(t, c.Register(
		beans.DefineOf[*ServiceB]().Named("late").Order(200).Constructor(record("late")).Definition(),
		beans.DefineOf[*ServiceB]().Named("early").Order(10).Constructor(record("early")).Definition(),
		beans.DefineOf[*ServiceB]().Named("lazy").Order(1).Lazy().Constructor(record("lazy")).Definition(),
	))
	require.NoError(t, c.Init())

	assert.Equal(t, []string{"early", "late"}, order)
	require.NoError(t, c.Init())
	assert.Len(t, order, 2, "second Init must not rebuild")
}

// ── Construction ──────────────────────────────────────────────────────────────

type report struct {
	store Store
	cfg   config.Config
	c     *container.Container
}

func newReport(s Store, cfg config.Config, c *container.Container) *report {
	return &report{store: s, cfg: cfg, c: c}
}

func TestConstructor_ResolvesParametersByType(t *testing.T) {
	repo := config.NewRepository()
	c := newContainer(t, container.WithConfig(repo))
	require.NoError(t, c.Register(
		memStoreDef().Definition(),
		beans.DefineOf[*report]().Constructor(newReport).Definition(),
	))

	r, err := container.Resolve[*report](c)
	require.NoError(t, err)
	assert.Equal(t, "mem", r.store.Name())
	assert.Same(t, repo, r.cfg)
	assert.Same(t, c, r.c)
}

type greeting struct {
	text  string
	times int
}

func newGreeting(text string, times int) *greeting { return &greeting{text: text, times: times} }

func TestConstructor_ExplicitArgumentsAreCoerced(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*greeting]().
		Constructor(newGreeting).
		Args(beans.Arg(beans.Literal("hi")), beans.Arg(beans.Literal("3"))).
		Definition()))

	g, err := container.Resolve[*greeting](c)
	require.NoError(t, err)
	assert.Equal(t, &greeting{text: "hi", times: 3}, g)
}

func TestConstructor_PrefersParameterless(t *testing.T) {
	withStore := func(s Store) *ticket { return &ticket{label: s.Name()} }
	plain := func() *ticket { return &ticket{label: "plain"} }

	c := newContainer(t)
	require.NoError(t, c.Register(
		memStoreDef().Definition(),
		beans.DefineOf[*ticket]().Constructor(withStore, plain).Definition(),
	))

	tk, err := container.Resolve[*ticket](c)
	require.NoError(t, err)
	assert.Equal(t, "plain", tk.label)
}

func TestConstructor_ErrorBecomesConstructionError(t *testing.T) {
	boom := errors.New("boom")
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().
		Constructor(func() (*ticket, error) { return nil, boom }).
		ID("broken").
		Definition()))

	_, err := c.Get("broken")
	require.ErrorIs(t, err, beans.ErrConstruction)
	assert.ErrorIs(t, err, boom)

	var ce *beans.ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "broken", ce.Definition.ID)
}

func TestConstructor_PanicBecomesConstructionError(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().
		Constructor(func() *ticket { panic("exploded") }).
		Definition()))

	_, err := container.Resolve[*ticket](c)
	require.ErrorIs(t, err, beans.ErrConstruction)
	assert.Contains(t, err.Error(), "exploded")
}

type ticketMachine struct{ prefix string }

func (m *ticketMachine) Issue(label string) *ticket {
	return &ticket{label: m.prefix + label}
}

func TestFactory_FuncAndMethod(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		beans.DefineOf[*ticketMachine]().ID("machine").Property("prefix", beans.Literal("#")).Definition(),
		beans.DefineOf[*ticket]().Named("vip").
			FactoryMethod(beans.Ref("machine"), "Issue", beans.Arg(beans.Literal("vip"))).
			Definition(),
		beans.DefineOf[*ticket]().Named("free").
			FactoryFunc(func(m *ticketMachine) *ticket { return m.Issue("free") }).
			Definition(),
	))

	vip, err := container.ResolveNamed[*ticket](c, "vip")
	require.NoError(t, err)
	assert.Equal(t, "#vip", vip.label)

	free, err := container.ResolveNamed[*ticket](c, "free")
	require.NoError(t, err)
	assert.Equal(t, "#free", free.label)
}

func TestValue_AggregateIsCoerced(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		beans.DefineOf[[]int]().Value(beans.ListOf(beans.Literal("1"), beans.Literal(2))).Definition(),
		beans.DefineOf[map[string]bool]().Value(beans.SetOf(beans.Literal("a"), beans.Literal("a"), beans.Literal("b"))).Definition(),
	))

	ints, err := container.Resolve[[]int](c)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ints)

	set, err := container.Resolve[map[string]bool](c)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, set)
}

func TestValue_NestedBeanIsMemoized(t *testing.T) {
	inner := beans.DefineOf[*ticket]().Constructor(newTicket).Prototype().Definition()

	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().
		Value(beans.Nested(inner)).
		Prototype().
		Definition()))

	first := container.MustResolve[*ticket](c)
	second := container.MustResolve[*ticket](c)
	assert.Same(t, first, second)
}

func TestValue_SupplierIsReevaluated(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ticket]().
		Value(beans.Supply(func() (any, error) { return newTicket(), nil })).
		Prototype().
		Definition()))

	first := container.MustResolve[*ticket](c)
	second := container.MustResolve[*ticket](c)
	assert.NotSame(t, first, second)
}

// ── Collections ───────────────────────────────────────────────────────────────

type Hook interface{ Run() string }

type namedHook struct{ name string }

func (h *namedHook) Run() string { return h.name }

type hookRunner struct {
	All    []Hook          `autowire:"@"`
	Fast   []Hook          `autowire:"@,qualifier=fast"`
	ByName map[string]Hook `autowire:"@"`
	None   []Store         `autowire:"@,optional"`
}

func hookDef(name string, order int, qualifiers ...string) *beans.BeanDefinition {
	return beans.DefineOf[Hook]().Named(name).Order(order).Qualify(qualifiers...).
		Instance(&namedHook{name: name}).Definition()
}

func runAll(hooks []Hook) []string {
	out := make([]string, len(hooks))
	for i, h := range hooks {
		out[i] = h.Run()
	}
	return out
}

func registerHooks(t *testing.T, c *container.Container) {
	t.Helper()
	require.NoError(t, c.Register(
		hookDef("a", 20),
		hookDef("b", 10, "fast"),
		hookDef("c", beans.DefaultSortOrder, "fast"),
	))
}

func TestInject_CollectionsAndMaps(t *testing.T) {
	c := newContainer(t)
	registerHooks(t, c)
	require.NoError(t, c.Register(beans.DefineOf[*hookRunner]().Definition()))

	r, err := container.Resolve[*hookRunner](c)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, runAll(r.All))
	assert.Equal(t, []string{"b", "c"}, runAll(r.Fast))
	require.Len(t, r.ByName, 3)
	assert.Equal(t, "a", r.ByName["a"].Run())
	assert.Nil(t, r.None)
}

func TestGetAll_Variants(t *testing.T) {
	c := newContainer(t)
	registerHooks(t, c)

	all, err := container.All[Hook](c)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, runAll(all))

	fast, err := c.GetAllQualified(beans.TypeOf[Hook](), "fast")
	require.NoError(t, err)
	assert.Len(t, fast, 2)

	named, err := c.GetNamedBeans(beans.TypeOf[Hook]())
	require.NoError(t, err)
	assert.Len(t, named, 3)
	assert.Contains(t, named, "b")
}

// ── Create / Inject / AddBean ─────────────────────────────────────────────────

func TestCreate_BypassesSingletonCache(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ServiceB]().Constructor(func() *ServiceB { return &ServiceB{id: "b"} }).Definition()))

	cached := container.MustResolve[*ServiceB](c)
	fresh, err := c.Create(beans.TypeOf[*ServiceB]())
	require.NoError(t, err)
	assert.NotSame(t, cached, fresh)
	assert.Same(t, cached, container.MustResolve[*ServiceB](c))
}

func TestCreate_UnregisteredTypeIsWired(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ServiceB]().Definition()))

	v, err := c.Create(beans.TypeOf[*ServiceA]())
	require.NoError(t, err)
	a := v.(*ServiceA)
	assert.Same(t, container.MustResolve[*ServiceB](c), a.B)

	_, err = c.GetByType(beans.TypeOf[*ServiceA]())
	assert.ErrorIs(t, err, beans.ErrNoSuchDefinition, "Create must not register anything")
}

func TestInject_ExternalObject(t *testing.T) {
	repo := config.NewRepository()
	repo.Set("app.name", "beans")

	c := newContainer(t, container.WithConfig(repo))
	require.NoError(t, c.Register(memStoreDef().Definition()))

	var holder struct {
		Store Store  `autowire:"@"`
		Name  string `config:"app.name"`
	}
	require.NoError(t, c.Inject(&holder))
	assert.Equal(t, "mem", holder.Store.Name())
	assert.Equal(t, "beans", holder.Name)

	assert.Error(t, c.Inject(holder))
}

func TestAddBean_PreBuiltInstance(t *testing.T) {
	c := newContainer(t)
	pre := &memStore{name: "pre"}
	require.NoError(t, c.AddBean(storeType, pre, true))
	require.NoError(t, c.Register(diskStoreDef().Named("disk").Definition()))
	require.NoError(t, c.Init())

	s, err := container.Resolve[Store](c)
	require.NoError(t, err)
	assert.Same(t, pre, s)

	info, ok := c.DescribeBean(c.Catalog().Primary(storeType).Key())
	require.True(t, ok)
	assert.True(t, info.Instantiated)
	assert.Equal(t, "READY", info.State)

	assert.ErrorIs(t, c.AddBean(storeType, &ServiceB{}, false), beans.ErrDefinition)
}

// ── Generics / shutdown ───────────────────────────────────────────────────────

func TestMustResolve_PanicsOnMiss(t *testing.T) {
	c := newContainer(t)
	assert.Panics(t, func() { container.MustResolve[*ServiceB](c) })
}

func TestClosed_RejectsResolution(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(beans.DefineOf[*ServiceB]().Definition()))
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())

	_, err := container.Resolve[*ServiceB](c)
	assert.ErrorIs(t, err, container.ErrClosed)
	_, err = c.Create(beans.TypeOf[*ServiceB]())
	assert.ErrorIs(t, err, container.ErrClosed)
}

func TestDescribe_ListsDefinitions(t *testing.T) {
	c := newContainer(t)
	require.NoError(t, c.Register(
		beans.DefineOf[*ServiceB]().ID("b").Definition(),
		beans.DefineOf[*ticket]().Constructor(newTicket).Prototype().Definition(),
	))

	infos := c.Describe()
	require.Len(t, infos, 2)
	assert.Equal(t, "b", infos[0].ID)
	assert.Equal(t, "singleton", infos[0].Scope)
	assert.False(t, infos[0].Instantiated)
	assert.Equal(t, "prototype", infos[1].Scope)
	assert.Equal(t, "type", infos[1].Construction)
	assert.NotEmpty(t, infos[1].Key)

	container.MustResolve[*ServiceB](c)
	info, ok := c.DescribeBean("b")
	require.True(t, ok)
	assert.True(t, info.Instantiated)

	_, ok = c.DescribeBean("unknown")
	assert.False(t, ok)
}
