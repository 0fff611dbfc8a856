package container

import (
	"io"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/validation"
)

// State is a step of the bean lifecycle. Every instance moves through the
// states in order; Loaded is only entered by Loadable singletons.
type State int

const (
	Created State = iota
	Aware
	Configured
	Injected
	Invoked
	Initialized
	Loaded
	Validated
	Ready
)

var stateNames = [...]string{"CREATED", "AWARE", "CONFIGURED", "INJECTED", "INVOKED", "INITIALIZED", "LOADED", "VALIDATED", "READY"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// lifecycle drives one instance from Created to Ready.
type lifecycle struct {
	c        *Container
	def      *beans.BeanDefinition
	node     *chain
	instance any
	state    State
}

func (l *lifecycle) run() error {
	steps := []struct {
		to State
		fn func() (bool, error)
	}{
		{Aware, l.aware},
		{Configured, l.configure},
		{Injected, l.inject},
		{Invoked, l.invoke},
		{Initialized, l.initialize},
		{Loaded, l.load},
		{Validated, l.validate},
	}
	for _, step := range steps {
		entered, err := step.fn()
		if err != nil {
			return errors.Wrapf(err, "entering %s", step.to)
		}
		if entered || step.to != Loaded {
			l.state = step.to
		}
	}
	l.state = Ready
	return nil
}

// target returns the struct the instance points to.
func (l *lifecycle) target() (reflect.Value, bool) {
	return structValue(l.instance)
}

func structValue(instance any) (reflect.Value, bool) {
	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv.Elem(), true
}

// ── AWARE ─────────────────────────────────────────────────────────────────────

func (l *lifecycle) aware() (bool, error) {
	inst := l.instance
	if l.node != nil && l.node.hasTarget {
		if p, ok := inst.(ProxyTargetAware); ok {
			p.SetProxyTarget(l.node.target)
		}
	}
	if a, ok := inst.(NameAware); ok {
		name := l.def.Name
		if name == "" {
			name = l.def.ID
		}
		a.SetBeanName(name)
	}
	if a, ok := inst.(PrimaryAware); ok {
		a.SetPrimary(l.def.Primary)
	}
	if a, ok := inst.(FactoryAware); ok {
		a.SetBeanFactory(l.c)
	}
	if a, ok := inst.(ContainerAware); ok {
		a.SetContainer(l.c)
	}
	if a, ok := inst.(ConfigAware); ok {
		cfg, err := l.c.configFor(l.node)
		if err != nil {
			return false, err
		}
		if cfg != nil {
			a.SetConfig(cfg)
		}
	}
	return true, nil
}

// ── CONFIGURED ────────────────────────────────────────────────────────────────

func (l *lifecycle) configure() (bool, error) {
	sv, ok := l.target()
	if !ok || len(inspect(sv.Type()).configured) == 0 {
		return true, nil
	}
	cfg, err := l.c.configFor(l.node)
	if err != nil {
		return false, err
	}
	if cfg == nil {
		l.c.log.WithField("bean", l.def.String()).Debug("no config available, config fields left unset")
		return true, nil
	}
	return true, bindConfig(cfg, sv, l.def.ConfigPrefix)
}

// configFor returns the Config collaborator: the one given to New, else a
// registered config.Config bean.
func (c *Container) configFor(ch *chain) (config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	def := c.catalog.Find(configType)
	if def == nil {
		return nil, nil
	}
	v, err := c.resolve(def, ch)
	if err != nil {
		return nil, err
	}
	cfg, _ := v.(config.Config)
	return cfg, nil
}

var reloadableType = beans.TypeOf[config.Reloadable]()

// reloadableField is implemented by *config.Value[T].
type reloadableField interface {
	Bind(r config.Reloadable)
	ElemType() reflect.Type
}

// bindConfig assigns every `config` field of sv from cfg.
func bindConfig(cfg config.Config, sv reflect.Value, prefix string) error {
	for _, f := range inspect(sv.Type()).configured {
		fv := settable(sv.Field(f.index))
		if err := bindField(cfg, fv, f, prefix); err != nil {
			return errors.Wrapf(err, "config field %s", f.field.Name)
		}
	}
	return nil
}

func bindField(cfg config.Config, fv reflect.Value, f configField, prefix string) error {
	t := fv.Type()
	keys := f.candidates(prefix)

	if rf, ok := fv.Addr().Interface().(reloadableField); ok {
		for _, key := range keys {
			if r, ok := cfg.GetDynaProperty(key, rf.ElemType()); ok {
				rf.Bind(r)
				return nil
			}
		}
		return nil
	}

	if t == reloadableType {
		for _, key := range keys {
			if r, ok := cfg.GetDynaProperty(key, reflect.TypeOf("")); ok {
				fv.Set(reflect.ValueOf(r))
				return nil
			}
		}
		return nil
	}

	if st, ok := structType(t); ok && !config.Convertible(t) && len(inspect(st).configured) > 0 {
		nested := f.nestedPrefix(prefix)
		if t.Kind() == reflect.Ptr {
			if fv.IsNil() {
				fv.Set(reflect.New(st))
			}
			return bindConfig(cfg, fv.Elem(), nested)
		}
		return bindConfig(cfg, fv, nested)
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		for _, key := range keys {
			list, ok := cfg.GetArrayProperty(key)
			if !ok {
				continue
			}
			items := make(beans.List, len(list))
			for i, s := range list {
				items[i] = s
			}
			v, err := coerce(items, t)
			if err != nil {
				return errors.Wrapf(err, "key %s", key)
			}
			fv.Set(v)
			return nil
		}
		return nil
	}

	for _, key := range keys {
		raw, ok := cfg.GetProperty(key)
		if !ok {
			continue
		}
		v, err := config.Convert(raw, t)
		if err != nil {
			return errors.Wrapf(err, "key %s", key)
		}
		fv.Set(reflect.ValueOf(v))
		return nil
	}
	return nil
}

// ── INJECTED ──────────────────────────────────────────────────────────────────

func (l *lifecycle) inject() (bool, error) {
	if err := l.assignProperties(); err != nil {
		return false, err
	}
	sv, ok := l.target()
	if !ok {
		return true, nil
	}
	return true, l.c.injectFields(sv, l.node)
}

// assignProperties applies the declared property values, in order, to the
// field of that name or else to the SetName method.
func (l *lifecycle) assignProperties() error {
	for _, p := range l.def.Properties {
		v, err := p.Value.Resolve(resolver{c: l.c, ch: l.node})
		if err != nil {
			return errors.Wrapf(err, "property %s", p.Name)
		}

		if sv, ok := l.target(); ok {
			if f, ok := sv.Type().FieldByName(p.Name); ok && len(f.Index) == 1 {
				cv, err := coerce(v, f.Type)
				if err != nil {
					return errors.Wrapf(err, "property %s", p.Name)
				}
				settable(sv.Field(f.Index[0])).Set(cv)
				continue
			}
		}

		setter := reflect.ValueOf(l.instance).MethodByName("Set" + strings.ToUpper(p.Name[:1]) + p.Name[1:])
		if !setter.IsValid() || setter.Type().NumIn() != 1 {
			return errors.Errorf("%T has no field or setter for property %s", l.instance, p.Name)
		}
		cv, err := coerce(v, setter.Type().In(0))
		if err != nil {
			return errors.Wrapf(err, "property %s", p.Name)
		}
		setter.Call([]reflect.Value{cv})
	}
	return nil
}

// injectFields fills every zero `autowire` field of sv.
func (c *Container) injectFields(sv reflect.Value, node *chain) error {
	for _, f := range inspect(sv.Type()).autowired {
		fv := sv.Field(f.index)
		if !fv.IsZero() {
			continue
		}
		q := query{typ: f.field.Type, name: f.name, qualifier: f.qualifier, primary: f.primary, optional: f.optional}
		v, ok, err := c.injectValue(q, node)
		if err != nil {
			return errors.Wrapf(err, "autowire %s.%s", sv.Type(), f.field.Name)
		}
		if ok {
			settable(fv).Set(v)
		}
	}
	return nil
}

// injectValue resolves q into a value of q.typ: a proxy target, a lazy
// handle, a registered bean, or an aggregate of beans for slice, array and
// map[string]T targets. ok is false for an optional miss.
func (c *Container) injectValue(q query, node *chain) (v reflect.Value, ok bool, err error) {
	t := q.typ

	if node != nil && node.hasTarget && node.target != nil && reflect.TypeOf(node.target).AssignableTo(t) && q.name == "" {
		return reflect.ValueOf(node.target), true, nil
	}

	if isLazy(t) {
		return newLazy(c, q, node), true, nil
	}

	registered := len(c.definitionsOf(t)) > 0 || t == containerType || t == beanFactoryType || t == configType
	if !registered && q.name == "" {
		switch {
		case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
			items, err := c.all(t.Elem(), q.qualifier, node)
			if err != nil {
				return reflect.Value{}, false, err
			}
			if len(items) == 0 && q.optional {
				return reflect.Value{}, false, nil
			}
			v, err := coerceItems(items, t)
			return v, err == nil, err

		case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
			named, err := c.named(t.Elem(), q.qualifier, node)
			if err != nil {
				return reflect.Value{}, false, err
			}
			out := reflect.MakeMapWithSize(t, len(named))
			for name, inst := range named {
				ev, err := coerce(inst, t.Elem())
				if err != nil {
					return reflect.Value{}, false, err
				}
				out.SetMapIndex(reflect.ValueOf(name).Convert(t.Key()), ev)
			}
			return out, true, nil
		}
	}

	inst, err := c.lookup(q, node)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if inst == nil {
		if q.optional {
			return reflect.Value{}, false, nil
		}
		return reflect.Zero(t), true, nil
	}
	v, err = coerce(inst, t)
	return v, err == nil, err
}

// ── INVOKED ───────────────────────────────────────────────────────────────────

func (l *lifecycle) invoke() (bool, error) {
	if len(l.def.Invokes) == 0 {
		return true, nil
	}
	rv := reflect.ValueOf(l.instance)
	for _, inv := range l.def.Invokes {
		m := rv.MethodByName(inv.Method)
		if !m.IsValid() {
			return false, errors.Errorf("%T has no method %s", l.instance, inv.Method)
		}
		out, err := l.c.invokeFunc(m, inv.Args, l.def, l.node)
		if err == nil {
			err = trailingError(out)
		}
		if err != nil {
			return false, errors.Wrapf(err, "invoke %s", inv.Method)
		}
	}
	return true, nil
}

// ── INITIALIZED ───────────────────────────────────────────────────────────────

// initialize runs the first applicable of: the init hook, the method marked
// by the lifecycle tag, Initializable.
func (l *lifecycle) initialize() (bool, error) {
	if h := l.def.InitHook; h != nil {
		return true, runHook(h, l.instance)
	}
	if sv, ok := l.target(); ok {
		if m := inspect(sv.Type()).initMethod; m != "" {
			return true, callMethod(l.instance, m)
		}
	}
	if i, ok := l.instance.(Initializable); ok {
		return true, i.Init()
	}
	return true, nil
}

// ── LOADED / VALIDATED ────────────────────────────────────────────────────────

func (l *lifecycle) load() (bool, error) {
	if !l.def.Singleton {
		return false, nil
	}
	ld, ok := l.instance.(Loadable)
	if !ok {
		return false, nil
	}
	if !ld.Load() {
		return false, errors.Wrapf(beans.ErrNotLoaded, "%s", l.def)
	}
	return true, nil
}

func (l *lifecycle) validate() (bool, error) {
	if !l.def.Singleton || l.instance == nil || !validation.HasRules(reflect.TypeOf(l.instance)) {
		return true, nil
	}
	if errs := validation.Struct(l.instance); errs.Has() {
		return false, &beans.ValidationError{Definition: l.def, Fields: errs.Bag}
	}
	return true, nil
}

// ── Destruction ───────────────────────────────────────────────────────────────

// destroy runs the first applicable of: the destroy hook, Disposable,
// io.Closer, the method marked by the lifecycle tag.
func destroy(def *beans.BeanDefinition, instance any) error {
	if h := def.DestroyHook; h != nil {
		return runHook(h, instance)
	}
	switch d := instance.(type) {
	case Disposable:
		return d.Destroy()
	case io.Closer:
		return d.Close()
	}
	if sv, ok := structValue(instance); ok {
		if m := inspect(sv.Type()).destroyMethod; m != "" {
			return callMethod(instance, m)
		}
	}
	return nil
}

func runHook(h *beans.HookDefinition, instance any) error {
	if h.Func != nil {
		return h.Func(instance)
	}
	return callMethod(instance, h.Method)
}

// callMethod calls a parameterless method by name. A trailing error result
// is returned.
func callMethod(instance any, name string) error {
	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return errors.Errorf("%T has no method %s", instance, name)
	}
	if m.Type().NumIn() != 0 {
		return errors.Errorf("%T.%s must take no arguments", instance, name)
	}
	return trailingError(m.Call(nil))
}

func trailingError(out []reflect.Value) error {
	if n := len(out); n > 0 && out[n-1].Type() == errorType && !out[n-1].IsNil() {
		return out[n-1].Interface().(error)
	}
	return nil
}
