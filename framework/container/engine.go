package container

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
)

var (
	containerType   = reflect.TypeOf((*Container)(nil))
	beanFactoryType = beans.TypeOf[BeanFactory]()
	configType      = beans.TypeOf[config.Config]()
	errorType       = beans.TypeOf[error]()
)

// ── Singleton slots ───────────────────────────────────────────────────────────

// slot caches the instance of one singleton definition. value and raw are
// written before done is set, so a reader seeing done sees both.
type slot struct {
	mu    sync.Mutex
	done  atomic.Bool
	def   *beans.BeanDefinition
	value any // what callers receive, the outermost proxy if any
	raw   any // the target instance, used for destruction
	state State
	owned bool // built by the container, destroyed on Close
}

func (c *Container) slotFor(def *beans.BeanDefinition) *slot {
	if s, ok := c.slots.Load(def); ok {
		return s.(*slot)
	}
	s, _ := c.slots.LoadOrStore(def, &slot{def: def})
	return s.(*slot)
}

// ── Resolution ────────────────────────────────────────────────────────────────

// resolve returns the instance of def, building it when needed.
func (c *Container) resolve(def *beans.BeanDefinition, ch *chain) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	if !def.Singleton {
		if n := ch.find(def); n != nil {
			if n.hasEarly {
				return n.early, nil
			}
			return nil, ch.cycle(def)
		}
		_, out, _, err := c.produce(def, ch)
		return out, err
	}

	s := c.slotFor(def)
	if s.done.Load() {
		return s.value, nil
	}

	// The guard runs before the slot lock: re-entering def on this chain
	// would otherwise block on a lock the chain already holds.
	if n := ch.find(def); n != nil {
		if n.hasEarly {
			return n.early, nil
		}
		return nil, ch.cycle(def)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() {
		return s.value, nil
	}

	raw, out, state, err := c.produce(def, ch)
	if err != nil {
		return nil, err
	}

	// Close stores closed before it snapshots created under c.mu, so an
	// instance finished after the snapshot is destroyed here instead.
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		if err := destroy(def, raw); err != nil {
			c.log.WithField("bean", def.String()).Errorf("destroy failed: %v", err)
		}
		return nil, ErrClosed
	}
	s.raw, s.value, s.state, s.owned = raw, out, state, true
	s.done.Store(true)
	c.created = append(c.created, s)
	c.mu.Unlock()
	c.log.WithField("bean", def.String()).Debug("singleton ready")
	return out, nil
}

// produce builds a fresh instance of def and wraps it in its proxies.
func (c *Container) produce(def *beans.BeanDefinition, ch *chain) (raw, out any, state State, err error) {
	node := ch.push(def)
	defer node.finish()
	raw, state, err = c.build(def, node)
	if err != nil {
		return nil, nil, state, err
	}
	out, err = c.wrap(def, raw, node)
	if err != nil {
		return nil, nil, state, err
	}
	return raw, out, state, nil
}

// build instantiates def and runs it through the lifecycle.
func (c *Container) build(def *beans.BeanDefinition, node *chain) (instance any, state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &beans.ConstructionError{Definition: def, Cause: errors.Errorf("panic: %v", r)}
		}
	}()

	instance, deref, err := c.instantiate(def, node)
	if err != nil {
		return nil, Created, constructionError(def, err)
	}
	if def.EarlyReference {
		node.publish(instance)
	}

	lc := &lifecycle{c: c, def: def, node: node, instance: instance}
	if err := lc.run(); err != nil {
		return nil, lc.state, constructionError(def, err)
	}

	if deref {
		instance = reflect.ValueOf(instance).Elem().Interface()
	}
	if instance != nil && !reflect.TypeOf(instance).AssignableTo(def.Type) {
		return nil, lc.state, &beans.ConstructionError{
			Definition: def,
			Cause:      errors.Errorf("built %T, which is not assignable to %v", instance, def.Type),
		}
	}
	return instance, lc.state, nil
}

// constructionError wraps a raw cause. Errors that already carry a
// definition are passed through so the innermost failure stays visible.
func constructionError(def *beans.BeanDefinition, err error) error {
	var (
		ce *beans.ConstructionError
		cd *beans.CircularDependencyError
		ns *beans.NoSuchDefinitionError
		ve *beans.ValidationError
		de *beans.DefinitionError
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &cd), errors.As(err, &ns),
		errors.As(err, &ve), errors.As(err, &de), errors.Is(err, beans.ErrNotLoaded),
		errors.Is(err, ErrClosed):
		return err
	}
	return &beans.ConstructionError{Definition: def, Cause: errors.WithStack(err)}
}

// ── Proxies ───────────────────────────────────────────────────────────────────

// wrap applies the proxy selected for def, then the typed proxy of def's type
// when the first one was not already typed.
func (c *Container) wrap(def *beans.BeanDefinition, target any, node *chain) (any, error) {
	proxy := c.catalog.FindProxy(def)
	if proxy == nil {
		return target, nil
	}

	out, err := c.buildProxy(proxy, target, node)
	if err != nil {
		return nil, err
	}

	if !proxy.Proxy.Typed {
		if typed := c.catalog.TypedProxy(def.Type); typed != nil && typed != proxy {
			return c.buildProxy(typed, out, node)
		}
	}
	return out, nil
}

func (c *Container) buildProxy(proxy *beans.BeanDefinition, target any, node *chain) (any, error) {
	if node.find(proxy) != nil {
		return nil, node.cycle(proxy)
	}
	pnode := node.wrapping(proxy, target)
	defer pnode.finish()
	out, _, err := c.build(proxy, pnode)
	if err != nil {
		return nil, err
	}
	c.log.WithField("proxy", proxy.String()).Debugf("wrapped %T", target)
	return out, nil
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// query is one dependency request: by type, optionally narrowed by name,
// qualifier or the primary flag.
type query struct {
	typ       reflect.Type
	name      string
	qualifier string
	primary   bool
	optional  bool
}

func (q query) String() string {
	s := q.typ.String()
	switch {
	case q.name != "":
		s += "#" + q.name
	case q.qualifier != "":
		s += " qualified '" + q.qualifier + "'"
	case q.primary:
		s = "primary " + s
	}
	return s
}

// match selects the single definition answering q.
func (c *Container) match(q query) (*beans.BeanDefinition, error) {
	switch {
	case q.name != "":
		if def := c.catalog.FindNamed(q.typ, q.name); def != nil {
			return def, nil
		}
		if def := c.catalog.Get(q.name); def != nil && def.Exposes(q.typ) {
			return def, nil
		}

	case q.qualifier != "":
		candidates := c.catalog.ByQualifier(q.typ, q.qualifier)
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		for _, def := range candidates {
			if c.catalog.Primary(q.typ) == def {
				return def, nil
			}
		}
		if len(candidates) > 1 {
			return nil, &beans.NoSuchDefinitionError{Query: fmt.Sprintf("%s (%d candidates, none primary)", q, len(candidates))}
		}

	case q.primary:
		if def := c.catalog.Primary(q.typ); def != nil {
			return def, nil
		}

	default:
		if def := c.catalog.Find(q.typ); def != nil {
			return def, nil
		}
		if n := len(c.definitionsOf(q.typ)); n > 1 {
			return nil, &beans.NoSuchDefinitionError{Query: fmt.Sprintf("%s (%d candidates, none primary)", q, n)}
		}
	}
	return nil, &beans.NoSuchDefinitionError{Query: q.String()}
}

// lookup resolves q. An optional miss yields nil without error.
func (c *Container) lookup(q query, ch *chain) (any, error) {
	switch q.typ {
	case containerType, beanFactoryType:
		return c, nil
	case configType:
		if c.cfg != nil && len(c.definitionsOf(configType)) == 0 {
			return c.cfg, nil
		}
	}

	def, err := c.match(q)
	if err != nil {
		if q.optional && errors.Is(err, beans.ErrNoSuchDefinition) {
			return nil, nil
		}
		return nil, err
	}
	return c.resolve(def, ch)
}

// resolveReference resolves a reference held by a value definition.
func (c *Container) resolveReference(ref beans.Reference, ch *chain) (any, error) {
	if ref.ID == "" {
		if ref.Type == nil {
			return nil, &beans.NoSuchDefinitionError{Query: ref.String()}
		}
		return c.lookup(query{typ: ref.Type, name: ref.Name, qualifier: ref.Qualifier, optional: ref.Optional}, ch)
	}

	def := c.catalog.Get(ref.ID)
	if def == nil && ref.Type != nil {
		def = c.catalog.FindNamed(ref.Type, ref.ID)
	}
	if def == nil {
		if ref.Optional {
			return nil, nil
		}
		return nil, &beans.NoSuchDefinitionError{Query: ref.String()}
	}
	return c.resolve(def, ch)
}

// resolver binds value resolution to one construction chain.
type resolver struct {
	c  *Container
	ch *chain
}

func (r resolver) ResolveReference(ref beans.Reference) (any, error) {
	return r.c.resolveReference(ref, r.ch)
}

func (r resolver) ResolveBean(def *beans.BeanDefinition) (any, error) {
	return r.c.resolve(def, r.ch)
}

// ── Type lists ────────────────────────────────────────────────────────────────

// definitionsOf returns the definitions exposed under typ. Once the catalog
// is sealed the list is computed once per type and shared.
func (c *Container) definitionsOf(typ reflect.Type) []*beans.BeanDefinition {
	if !c.catalog.Sealed() {
		return c.catalog.ByType(typ)
	}
	if cached, ok := c.lists.Load(typ); ok {
		return cached.([]*beans.BeanDefinition)
	}
	v, _, _ := c.listGroup.Do(fmt.Sprintf("%v@%p", typ, typ), func() (any, error) {
		defs := c.catalog.ByType(typ)
		c.lists.Store(typ, defs)
		return defs, nil
	})
	return v.([]*beans.BeanDefinition)
}

// all resolves every definition of typ, optionally restricted to qualifier,
// in sortOrder. Singletons that refuse to load are left out.
func (c *Container) all(typ reflect.Type, qualifier string, ch *chain) ([]any, error) {
	defs := c.definitionsOf(typ)
	out := make([]any, 0, len(defs))
	for _, def := range defs {
		if qualifier != "" && !def.HasQualifier(qualifier) {
			continue
		}
		inst, err := c.resolve(def, ch)
		if errors.Is(err, beans.ErrNotLoaded) {
			c.log.WithField("bean", def.String()).Debug("not loaded, left out of list")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// named resolves the definitions of typ that carry a name (or id) for it.
func (c *Container) named(typ reflect.Type, qualifier string, ch *chain) (map[string]any, error) {
	out := make(map[string]any)
	for _, def := range c.definitionsOf(typ) {
		if qualifier != "" && !def.HasQualifier(qualifier) {
			continue
		}
		name := def.NameFor(typ)
		if name == "" {
			name = def.ID
		}
		if name == "" {
			continue
		}
		inst, err := c.resolve(def, ch)
		if errors.Is(err, beans.ErrNotLoaded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = inst
	}
	return out, nil
}
