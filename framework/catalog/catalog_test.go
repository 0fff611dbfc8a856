package catalog_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/catalog"
	"github.com/km-arc/go-beans/framework/logging"
)

type Store interface{ Name() string }

type memStore struct{ name string }

func (m *memStore) Name() string { return m.name }

type diskStore struct{}

func (d *diskStore) Name() string { return "disk" }

var storeType = beans.TypeOf[Store]()

func storeDef() *beans.Builder {
	return beans.DefineOf[Store]().Implementation(beans.TypeOf[*memStore]())
}

func newCatalog() *catalog.Catalog {
	return catalog.New(logging.Discard())
}

// ── Add / Find ────────────────────────────────────────────────────────────────

func TestFind_SingleCandidate(t *testing.T) {
	c := newCatalog()
	def := storeDef().Definition()
	require.NoError(t, c.Add(def))

	assert.Same(t, def, c.Find(storeType))
}

func TestFind_AmbiguousWithoutPrimary(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().Named("a").Definition()))
	require.NoError(t, c.Add(storeDef().Named("b").Definition()))

	assert.Nil(t, c.Find(storeType))
	assert.Len(t, c.ByType(storeType), 2)
}

func TestFind_PrimaryWins(t *testing.T) {
	c := newCatalog()
	named := storeDef().Named("x").Definition()
	primary := storeDef().Primary().Definition()
	require.NoError(t, c.Add(named))
	require.NoError(t, c.Add(primary))

	assert.Same(t, primary, c.Find(storeType))
	assert.Same(t, named, c.FindNamed(storeType, "x"))
}

func TestFind_UnknownType(t *testing.T) {
	c := newCatalog()
	assert.Nil(t, c.Find(storeType))
	assert.Nil(t, c.FindNamed(storeType, "x"))
	assert.Nil(t, c.Get("nope"))
}

func TestByType_OrderedBySortOrder(t *testing.T) {
	c := newCatalog()
	late := storeDef().Named("late").Order(300).Definition()
	early := storeDef().Named("early").Order(10).Definition()
	middle := storeDef().Named("middle").Definition()
	for _, d := range []*beans.BeanDefinition{late, early, middle} {
		require.NoError(t, c.Add(d))
	}

	assert.Equal(t, []*beans.BeanDefinition{early, middle, late}, c.ByType(storeType))
}

func TestAdd_AdditionalTypeDefinitions(t *testing.T) {
	type Marker interface{}
	markerType := beans.TypeOf[Marker]()

	c := newCatalog()
	def := storeDef().Named("main").Also(markerType, "marked").Definition()
	require.NoError(t, c.Add(def))

	assert.Same(t, def, c.FindNamed(storeType, "main"))
	assert.Same(t, def, c.FindNamed(markerType, "marked"))
	assert.Same(t, def, c.Find(markerType))
	assert.Nil(t, c.FindNamed(markerType, "main"))
}

func TestAdd_InvalidDefinition(t *testing.T) {
	c := newCatalog()
	def := beans.DefineOf[Store]().Definition() // interface, no constructor

	err := c.Add(def)
	assert.ErrorIs(t, err, beans.ErrDefinition)
	assert.Equal(t, 0, c.Len())
}

func TestAdd_SealedCatalogRejects(t *testing.T) {
	c := newCatalog()
	c.Seal()

	err := c.Add(storeDef().Definition())
	assert.ErrorIs(t, err, beans.ErrDefinition)
	assert.True(t, c.Sealed())
}

// ── Conflicts ─────────────────────────────────────────────────────────────────

func TestAdd_DuplicateID(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().ID("store").Definition()))

	err := c.Add(storeDef().ID("store").Override().Definition())

	var dup *beans.DuplicateDefinitionError
	require.ErrorAs(t, err, &dup)
	assert.ErrorIs(t, err, beans.ErrDefinition)
}

func TestAdd_DuplicateNameWithoutOverrideFails(t *testing.T) {
	c := newCatalog()
	first := storeDef().Named("x").Definition()
	require.NoError(t, c.Add(first))

	err := c.Add(storeDef().Named("x").Definition())
	assert.ErrorIs(t, err, beans.ErrDuplicateDefinition)
	assert.Same(t, first, c.FindNamed(storeType, "x"))
	assert.Equal(t, 1, c.Len(), "failed Add must not leave partial state")
}

func TestAdd_IncomingOverrideReplaces(t *testing.T) {
	c := newCatalog()
	first := storeDef().Named("x").Definition()
	second := storeDef().Named("x").Override().Definition()
	require.NoError(t, c.Add(first))
	require.NoError(t, c.Add(second))

	assert.Same(t, second, c.FindNamed(storeType, "x"))
	assert.Equal(t, []*beans.BeanDefinition{second}, c.ByType(storeType))
	assert.Equal(t, []*beans.BeanDefinition{second}, c.Definitions())
}

func TestAdd_ReplacedDefinitionLeavesCatalog(t *testing.T) {
	c := newCatalog()
	old := storeDef().ID("old").Named("x").Definition()
	replacement := beans.DefineOf[Store]().
		ID("new").
		Named("x").
		Implementation(beans.TypeOf[*diskStore]()).
		Override().
		Definition()
	require.NoError(t, c.Add(old))
	require.NoError(t, c.Add(replacement))

	assert.Nil(t, c.Get("old"))
	assert.Same(t, replacement, c.Get("new"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []*beans.BeanDefinition{replacement}, c.Definitions())
	assert.Equal(t, []*beans.BeanDefinition{replacement}, c.ByType(storeType))
}

func TestAdd_LosingAdditionalNameKeepsDefinition(t *testing.T) {
	c := newCatalog()
	owner := beans.DefineOf[*memStore]().ID("owner").Also(storeType, "x").Definition()
	require.NoError(t, c.Add(owner))
	require.NoError(t, c.Add(storeDef().Named("x").Override().Definition()))

	assert.Same(t, owner, c.Get("owner"))
	assert.Equal(t, 2, c.Len())
}

func TestAdd_ExistingOverrideIsKept(t *testing.T) {
	c := newCatalog()
	first := storeDef().Named("x").Override().Definition()
	require.NoError(t, c.Add(first))
	require.NoError(t, c.Add(storeDef().Named("x").Definition()))

	assert.Same(t, first, c.FindNamed(storeType, "x"))
	assert.Len(t, c.ByType(storeType), 1)
}

func TestAdd_BothOverrideHigherSortOrderWins(t *testing.T) {
	tests := []struct {
		name       string
		first      int
		second     int
		wantSecond bool
	}{
		{name: "incoming higher", first: 100, second: 200, wantSecond: true},
		{name: "existing higher", first: 200, second: 100, wantSecond: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalog()
			first := storeDef().Named("x").Override().Order(tt.first).Definition()
			second := storeDef().Named("x").Override().Order(tt.second).Definition()
			require.NoError(t, c.Add(first))
			require.NoError(t, c.Add(second))

			want := first
			if tt.wantSecond {
				want = second
			}
			assert.Same(t, want, c.FindNamed(storeType, "x"))
		})
	}
}

func TestAdd_EqualSortOrderWarnsAndKeepsLater(t *testing.T) {
	var buf bytes.Buffer
	c := catalog.New(logging.New(&buf, logrus.WarnLevel))

	first := storeDef().Named("x").Override().Definition()
	second := storeDef().Named("x").Override().Definition()
	require.NoError(t, c.Add(first))
	require.NoError(t, c.Add(second))

	assert.Same(t, second, c.FindNamed(storeType, "x"))
	assert.Contains(t, buf.String(), "ambiguous override")
}

func TestAdd_DuplicatePrimaryFails(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().Primary().Definition()))

	err := c.Add(storeDef().Primary().Definition())
	assert.ErrorIs(t, err, beans.ErrDefinition)
}

func TestAdd_PrimaryOverridePrecedence(t *testing.T) {
	c := newCatalog()
	first := storeDef().Primary().Override().Order(50).Definition()
	second := storeDef().Primary().Override().Order(60).Definition()
	require.NoError(t, c.Add(first))
	require.NoError(t, c.Add(second))

	assert.Same(t, second, c.Primary(storeType))
	assert.Len(t, c.ByType(storeType), 2, "losing the primary slot keeps the definition registered")
}

func TestAdd_DefaultOverrideIsReplaceable(t *testing.T) {
	c := newCatalog()
	fallback := storeDef().Named("x").DefaultOverride().Definition()
	custom := storeDef().Named("x").Definition()
	require.NoError(t, c.Add(fallback))
	require.NoError(t, c.Add(custom))

	assert.Same(t, custom, c.FindNamed(storeType, "x"))
}

func TestAdd_DeclarativeReplacedByExternalDefault(t *testing.T) {
	c := newCatalog()
	scanned := storeDef().Named("x").From(beans.Source{Kind: beans.SourceDeclarative, Origin: "memStore"}).Definition()
	markup := storeDef().Named("x").DefaultOverride().From(beans.Source{Kind: beans.SourceMarkup, Origin: "beans.yaml"}).Definition()
	require.NoError(t, c.Add(scanned))
	require.NoError(t, c.Add(markup))

	assert.Same(t, markup, c.FindNamed(storeType, "x"))
}

// ── Aliases ───────────────────────────────────────────────────────────────────

func TestAlias_ToID(t *testing.T) {
	c := newCatalog()
	def := storeDef().ID("primary-store").Definition()
	require.NoError(t, c.Add(def))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "store", TargetID: "primary-store"}))

	assert.Same(t, def, c.Get("store"))
	assert.Same(t, def, c.FindNamed(storeType, "store"))
}

func TestAlias_ToTypeAndName(t *testing.T) {
	c := newCatalog()
	def := storeDef().Named("memory").Definition()
	require.NoError(t, c.Add(def))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "mem", TargetName: "memory"}))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "m", TargetType: storeType, TargetName: "memory"}))

	assert.Same(t, def, c.FindNamed(storeType, "mem"))
	assert.Same(t, def, c.Get("m"))
}

func TestAlias_OneLevelOnly(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().Named("memory").Definition()))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "a1", TargetName: "memory"}))
	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "a2", TargetName: "a1"}))

	assert.NotNil(t, c.FindNamed(storeType, "a1"))
	assert.Nil(t, c.FindNamed(storeType, "a2"))
}

func TestAlias_Invalid(t *testing.T) {
	c := newCatalog()
	assert.Error(t, c.AddAlias(catalog.Alias{Alias: "x"}))
	assert.Error(t, c.AddAlias(catalog.Alias{Alias: "x", TargetID: "x"}))

	require.NoError(t, c.AddAlias(catalog.Alias{Alias: "x", TargetID: "y"}))
	assert.Error(t, c.AddAlias(catalog.Alias{Alias: "x", TargetID: "z"}))
	assert.Len(t, c.Aliases(), 1)
}

// ── Removal ───────────────────────────────────────────────────────────────────

func TestRemove(t *testing.T) {
	c := newCatalog()
	byID := storeDef().ID("one").Primary().Definition()
	byName := storeDef().Named("two").Definition()
	disk := storeDef().Named("three").Implementation(beans.TypeOf[*diskStore]()).Definition()
	for _, d := range []*beans.BeanDefinition{byID, byName, disk} {
		require.NoError(t, c.Add(d))
	}

	ok, err := c.RemoveByID("one")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, c.Get("one"))
	assert.Nil(t, c.Primary(storeType))

	ok, err = c.RemoveByTypeAndName(storeType, "two")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, c.FindNamed(storeType, "two"))

	n, err := c.RemoveByTypeAndImplementation(storeType, beans.TypeOf[*diskStore]())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, c.ByType(storeType))
	assert.Equal(t, 0, c.Len())

	ok, err = c.RemoveByID("one")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemove_SealedFails(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().ID("one").Definition()))
	c.Seal()

	_, err := c.RemoveByID("one")
	assert.ErrorIs(t, err, beans.ErrDefinition)
}

// ── Qualifiers / proxies ──────────────────────────────────────────────────────

func TestByQualifier(t *testing.T) {
	c := newCatalog()
	fast := storeDef().Named("fast").Qualify("hot").Definition()
	require.NoError(t, c.Add(fast))
	require.NoError(t, c.Add(storeDef().Named("slow").Qualify("cold").Definition()))

	assert.Equal(t, []*beans.BeanDefinition{fast}, c.ByQualifier(storeType, "hot"))
	assert.Empty(t, c.ByQualifier(storeType, "warm"))
}

func TestFindProxy_SelectorOrder(t *testing.T) {
	c := newCatalog()
	target := storeDef().ID("target").Named("t").Primary().Definition()
	require.NoError(t, c.Add(target))

	typed := storeDef().ProxyFor(beans.ProxySpec{Typed: true}).Definition()
	require.NoError(t, c.Add(typed))
	assert.Same(t, typed, c.FindProxy(target))

	primary := storeDef().ProxyFor(beans.ProxySpec{Primary: true}).Definition()
	require.NoError(t, c.Add(primary))
	assert.Same(t, primary, c.FindProxy(target))

	named := storeDef().ProxyFor(beans.ProxySpec{TargetName: "t"}).Definition()
	require.NoError(t, c.Add(named))
	assert.Same(t, named, c.FindProxy(target))

	byID := storeDef().ProxyFor(beans.ProxySpec{TargetID: "target"}).Definition()
	require.NoError(t, c.Add(byID))
	assert.Same(t, byID, c.FindProxy(target))

	assert.Same(t, typed, c.TypedProxy(storeType))
	assert.Equal(t, 1, c.Len(), "proxies are not regular definitions")
}

func TestAddProxy_Duplicate(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.Add(storeDef().ProxyFor(beans.ProxySpec{TargetID: "x"}).Definition()))

	err := c.Add(storeDef().ProxyFor(beans.ProxySpec{TargetID: "x"}).Definition())
	assert.ErrorIs(t, err, beans.ErrDuplicateDefinition)
}
