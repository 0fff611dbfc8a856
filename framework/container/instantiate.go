package container

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/config"
)

// instantiate produces the raw instance of def. deref reports that the
// instance is a pointer standing in for a struct value and must be
// dereferenced once the lifecycle has run.
func (c *Container) instantiate(def *beans.BeanDefinition, node *chain) (instance any, deref bool, err error) {
	switch def.Kind() {
	case beans.ConstructByValue:
		v, err := def.Value.Resolve(resolver{c: c, ch: node})
		if err != nil {
			return nil, false, err
		}
		out, err := coerce(v, def.Type)
		if err != nil {
			return nil, false, err
		}
		return out.Interface(), false, nil

	case beans.ConstructByFactory:
		v, err := c.callFactory(def, node)
		return v, false, err
	}

	if len(def.Constructors) == 0 {
		if len(def.Arguments) > 0 {
			return nil, false, errors.New("constructor arguments declared without a constructor")
		}
		return allocate(def)
	}

	ctor, err := c.selectConstructor(def, node)
	if err != nil {
		return nil, false, err
	}
	v, err := c.call(reflect.ValueOf(ctor), def.Arguments, def, node)
	return v, false, err
}

func allocate(def *beans.BeanDefinition) (any, bool, error) {
	impl := def.ImplementationType
	if impl == nil {
		impl = def.Type
	}
	switch {
	case impl.Kind() == reflect.Ptr && impl.Elem().Kind() == reflect.Struct:
		return reflect.New(impl.Elem()).Interface(), false, nil
	case impl.Kind() == reflect.Struct:
		return reflect.New(impl).Interface(), true, nil
	}
	return nil, false, errors.Errorf("cannot allocate %v", impl)
}

// selectConstructor picks the constructor to call: the one matching the
// explicit arguments, the only one, the only parameterless one, or the only
// one whose parameters can all be resolved.
func (c *Container) selectConstructor(def *beans.BeanDefinition, node *chain) (any, error) {
	ctors := def.Constructors

	if len(def.Arguments) > 0 {
		positions := beans.Positions(def.Arguments)
		var matched []any
		for _, ctor := range ctors {
			if argsFit(reflect.TypeOf(ctor), positions) {
				matched = append(matched, ctor)
			}
		}
		if len(matched) != 1 {
			return nil, errors.Errorf("%d constructors match %d explicit arguments", len(matched), len(def.Arguments))
		}
		return matched[0], nil
	}

	if len(ctors) == 1 {
		return ctors[0], nil
	}

	var zero, resolvable []any
	for _, ctor := range ctors {
		ct := reflect.TypeOf(ctor)
		if ct.NumIn() == 0 {
			zero = append(zero, ctor)
			continue
		}
		if c.canResolveAll(ct, node) {
			resolvable = append(resolvable, ctor)
		}
	}
	if len(zero) == 1 {
		return zero[0], nil
	}
	if len(zero) == 0 && len(resolvable) == 1 {
		return resolvable[0], nil
	}
	return nil, errors.Errorf("no unique constructor among %d candidates", len(ctors))
}

func argsFit(ct reflect.Type, positions map[int]*beans.ArgumentDefinition) bool {
	if ct.NumIn() != len(positions) {
		return false
	}
	for i, arg := range positions {
		if i >= ct.NumIn() {
			return false
		}
		if arg.Type != nil && !arg.Type.AssignableTo(ct.In(i)) {
			return false
		}
	}
	return true
}

// canResolveAll reports whether every parameter of ct has a candidate,
// without building anything.
func (c *Container) canResolveAll(ct reflect.Type, node *chain) bool {
	for i := 0; i < ct.NumIn(); i++ {
		pt := ct.In(i)
		switch {
		case node.hasTarget && reflect.TypeOf(node.target) != nil && reflect.TypeOf(node.target).AssignableTo(pt):
		case pt == containerType, pt == beanFactoryType:
		case pt == configType && c.cfg != nil:
		case isLazy(pt):
		case hasConfigTags(pt):
		case pt.Kind() == reflect.Slice, pt.Kind() == reflect.Map && pt.Key().Kind() == reflect.String:
		case c.catalog.Find(pt) != nil:
		default:
			return false
		}
	}
	return true
}

// callFactory invokes a free factory function or a method on a factory bean.
func (c *Container) callFactory(def *beans.BeanDefinition, node *chain) (any, error) {
	f := def.Factory
	if f.Func != nil {
		return c.call(reflect.ValueOf(f.Func), f.Args, def, node)
	}

	bean, err := f.Bean.Resolve(resolver{c: c, ch: node})
	if err != nil {
		return nil, err
	}
	if bean == nil {
		return nil, errors.Errorf("factory bean for method %s resolved to nil", f.Method)
	}
	m := reflect.ValueOf(bean).MethodByName(f.Method)
	if !m.IsValid() {
		return nil, errors.Errorf("factory bean %T has no method %s", bean, f.Method)
	}
	return c.call(m, f.Args, def, node)
}

// call invokes fn and returns its first result, or its trailing error.
func (c *Container) call(fn reflect.Value, args []*beans.ArgumentDefinition, def *beans.BeanDefinition, node *chain) (any, error) {
	out, err := c.invokeFunc(fn, args, def, node)
	if err != nil {
		return nil, err
	}
	return results(out)
}

// invokeFunc calls fn, binding explicit arguments by position and resolving
// the remaining parameters from the container.
func (c *Container) invokeFunc(fn reflect.Value, args []*beans.ArgumentDefinition, def *beans.BeanDefinition, node *chain) ([]reflect.Value, error) {
	ft := fn.Type()
	positions := beans.Positions(args)
	in := make([]reflect.Value, ft.NumIn())
	targetUsed := false

	for i := range in {
		pt := ft.In(i)
		if arg, ok := positions[i]; ok {
			v, err := arg.Value.Resolve(resolver{c: c, ch: node})
			if err != nil {
				return nil, errors.Wrapf(err, "argument %d", i)
			}
			cv, err := coerce(v, pt)
			if err != nil {
				return nil, errors.Wrapf(err, "argument %d", i)
			}
			in[i] = cv
			continue
		}

		v, err := c.resolveParam(pt, def, node, &targetUsed)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %d (%v)", i, pt)
		}
		in[i] = v
	}

	if ft.IsVariadic() {
		return fn.CallSlice(in), nil
	}
	return fn.Call(in), nil
}

// resolveParam resolves one unbound parameter: the proxy target first, then a
// configuration-bound struct, then dependency injection by type.
func (c *Container) resolveParam(pt reflect.Type, def *beans.BeanDefinition, node *chain, targetUsed *bool) (reflect.Value, error) {
	if node.hasTarget && !*targetUsed && node.target != nil && reflect.TypeOf(node.target).AssignableTo(pt) {
		*targetUsed = true
		return reflect.ValueOf(node.target), nil
	}

	if hasConfigTags(pt) && len(c.definitionsOf(pt)) == 0 {
		return c.newConfigured(pt, def.ConfigPrefix, node)
	}

	v, ok, err := c.injectValue(query{typ: pt}, node)
	if err != nil {
		return reflect.Value{}, err
	}
	if !ok {
		return reflect.Zero(pt), nil
	}
	return v, nil
}

// newConfigured allocates a struct of type t (or *struct) and binds its
// `config` fields under prefix.
func (c *Container) newConfigured(t reflect.Type, prefix string, node *chain) (reflect.Value, error) {
	st, _ := structType(t)
	ptr := reflect.New(st)
	cfg, err := c.configFor(node)
	if err != nil {
		return reflect.Value{}, err
	}
	if cfg != nil {
		if err := bindConfig(cfg, ptr.Elem(), prefix); err != nil {
			return reflect.Value{}, err
		}
	}
	if t.Kind() == reflect.Ptr {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

func results(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, errors.New("function returned no value")
	}
	last := out[len(out)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
	}
	first := out[0]
	if (first.Kind() == reflect.Ptr || first.Kind() == reflect.Interface) && first.IsNil() {
		return nil, nil
	}
	return first.Interface(), nil
}

// ── Coercion ──────────────────────────────────────────────────────────────────

// coerce converts a resolved value into t. Aggregates become slices, arrays
// or maps of t's element type; strings are parsed into scalars.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}

	switch items := v.(type) {
	case beans.List:
		return coerceItems(items, t)
	case beans.Set:
		return coerceItems(items, t)
	case beans.Array:
		return coerceItems(items, t)
	case beans.Map:
		return coerceMap(items, t)
	case string:
		if config.Convertible(t) {
			parsed, err := config.Convert(items, t)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(parsed), nil
		}
	}

	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %v", v, t)
}

func coerceItems(items []any, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, len(items))
		for i, item := range items {
			ev, err := coerce(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	case reflect.Array:
		if len(items) > t.Len() {
			return reflect.Value{}, fmt.Errorf("%d values do not fit %v", len(items), t)
		}
		out := reflect.New(t).Elem()
		for i, item := range items {
			ev, err := coerce(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	case reflect.Map:
		// a set: map[T]struct{} or map[T]bool
		out := reflect.MakeMapWithSize(t, len(items))
		present, err := setMember(t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		for i, item := range items {
			kv, err := coerce(item, t.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.SetMapIndex(kv, present)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use a list as %v", t)
}

func coerceMap(items beans.Map, t reflect.Type) (reflect.Value, error) {
	if t.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("cannot use a map as %v", t)
	}
	out := reflect.MakeMapWithSize(t, len(items))
	for _, item := range items {
		kv, err := coerce(item.Key, t.Key())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %v: %w", item.Key, err)
		}
		vv, err := coerce(item.Value, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value of %v: %w", item.Key, err)
		}
		out.SetMapIndex(kv, vv)
	}
	return out, nil
}

func setMember(t reflect.Type) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.Bool:
		return reflect.ValueOf(true).Convert(t), nil
	case t.Kind() == reflect.Struct && t.NumField() == 0:
		return reflect.Zero(t), nil
	}
	return reflect.Value{}, fmt.Errorf("map value type %v cannot mark set membership", t)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
