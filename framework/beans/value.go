package beans

import (
	"fmt"
	"reflect"
	"sync"
)

// Resolver is what a ValueDefinition calls back into when it holds a
// reference or a nested definition.
type Resolver interface {
	ResolveReference(ref Reference) (any, error)
	ResolveBean(def *BeanDefinition) (any, error)
}

// Reference points at another bean by id, by type+name, or by type (primary
// or the only candidate).
type Reference struct {
	ID        string
	Type      reflect.Type
	Name      string
	Primary   bool
	Qualifier string
	Optional  bool
}

func (r Reference) String() string {
	switch {
	case r.ID != "":
		return "ref '" + r.ID + "'"
	case r.Type == nil:
		return "ref <empty>"
	case r.Name != "":
		return fmt.Sprintf("ref %v#%s", r.Type, r.Name)
	default:
		return fmt.Sprintf("ref %v", r.Type)
	}
}

// Supplier is a value that is re-evaluated on every resolution instead of
// being memoized.
type Supplier interface {
	Supply() (any, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func() (any, error)

func (f SupplierFunc) Supply() (any, error) { return f() }

// Aggregate results. The container coerces them into the concrete slice,
// array or map type of the injection target.
type (
	List  []any
	Set   []any
	Array []any
	Map   []MapItem
)

// MapItem is one resolved entry of a Map, in declaration order.
type MapItem struct {
	Key   any
	Value any
}

// MapEntry is one unresolved entry of a map value.
type MapEntry struct {
	Key   *ValueDefinition
	Value *ValueDefinition
}

type exprKind int

const (
	exprLiteral exprKind = iota
	exprReference
	exprBean
	exprList
	exprSet
	exprArray
	exprMap
)

type memoState int

const (
	unresolved memoState = iota
	resolved
	supplied
)

// ValueDefinition is a deferred value expression. The first resolution
// computes the value and stores it in place; a value that is a Supplier is
// stored as such and invoked on every later resolution.
type ValueDefinition struct {
	expr    exprKind
	ref     Reference
	bean    *BeanDefinition
	items   []*ValueDefinition
	entries []MapEntry

	mu       sync.Mutex
	state    memoState
	value    any
	supplier Supplier
}

// Literal wraps an already-known value.
func Literal(v any) *ValueDefinition {
	vd := &ValueDefinition{expr: exprLiteral}
	if s, ok := v.(Supplier); ok {
		vd.state, vd.supplier = supplied, s
	} else {
		vd.state, vd.value = resolved, v
	}
	return vd
}

// Supply wraps a function evaluated on each resolution.
func Supply(fn func() (any, error)) *ValueDefinition {
	return Literal(SupplierFunc(fn))
}

// Ref references a bean by id.
func Ref(id string) *ValueDefinition {
	return RefTo(Reference{ID: id})
}

// RefType references the primary (or only) bean of typ.
func RefType(typ reflect.Type) *ValueDefinition {
	return RefTo(Reference{Type: typ, Primary: true})
}

// RefNamed references the bean registered under typ and name.
func RefNamed(typ reflect.Type, name string) *ValueDefinition {
	return RefTo(Reference{Type: typ, Name: name})
}

// RefTo wraps an arbitrary reference.
func RefTo(ref Reference) *ValueDefinition {
	return &ValueDefinition{expr: exprReference, ref: ref}
}

// Nested wraps an inner definition that is built on resolution.
func Nested(def *BeanDefinition) *ValueDefinition {
	return &ValueDefinition{expr: exprBean, bean: def}
}

// ListOf aggregates values into a List.
func ListOf(items ...*ValueDefinition) *ValueDefinition {
	return &ValueDefinition{expr: exprList, items: items}
}

// SetOf aggregates values into a Set; duplicates are dropped.
func SetOf(items ...*ValueDefinition) *ValueDefinition {
	return &ValueDefinition{expr: exprSet, items: items}
}

// ArrayOf aggregates values into an Array.
func ArrayOf(items ...*ValueDefinition) *ValueDefinition {
	return &ValueDefinition{expr: exprArray, items: items}
}

// MapOf aggregates entries into a Map.
func MapOf(entries ...MapEntry) *ValueDefinition {
	return &ValueDefinition{expr: exprMap, entries: entries}
}

// Reference returns the reference held by the value, if any.
func (v *ValueDefinition) Reference() (Reference, bool) {
	return v.ref, v.expr == exprReference
}

// Bean returns the nested definition held by the value, if any.
func (v *ValueDefinition) Bean() (*BeanDefinition, bool) {
	return v.bean, v.expr == exprBean
}

// Resolved reports whether the value has been memoized.
func (v *ValueDefinition) Resolved() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state != unresolved
}

// Resolve evaluates the expression once and memoizes the result. Concurrent
// first resolutions may both evaluate; the first stored result wins.
func (v *ValueDefinition) Resolve(r Resolver) (any, error) {
	v.mu.Lock()
	switch v.state {
	case resolved:
		val := v.value
		v.mu.Unlock()
		return val, nil
	case supplied:
		s := v.supplier
		v.mu.Unlock()
		return s.Supply()
	}
	v.mu.Unlock()

	val, err := v.evaluate(r)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.state == unresolved {
		if s, ok := val.(Supplier); ok {
			v.state, v.supplier = supplied, s
		} else {
			v.state, v.value = resolved, val
		}
	}
	state, stored, s := v.state, v.value, v.supplier
	v.mu.Unlock()

	if state == supplied {
		return s.Supply()
	}
	return stored, nil
}

func (v *ValueDefinition) evaluate(r Resolver) (any, error) {
	switch v.expr {
	case exprReference:
		return r.ResolveReference(v.ref)
	case exprBean:
		return r.ResolveBean(v.bean)
	case exprList, exprArray:
		out, err := resolveAll(r, v.items)
		if err != nil {
			return nil, err
		}
		if v.expr == exprArray {
			return Array(out), nil
		}
		return List(out), nil
	case exprSet:
		out, err := resolveAll(r, v.items)
		if err != nil {
			return nil, err
		}
		return dedupe(out), nil
	case exprMap:
		out := make(Map, 0, len(v.entries))
		for _, e := range v.entries {
			k, err := e.Key.Resolve(r)
			if err != nil {
				return nil, err
			}
			val, err := e.Value.Resolve(r)
			if err != nil {
				return nil, err
			}
			out = append(out, MapItem{Key: k, Value: val})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value expression %d", v.expr)
}

func resolveAll(r Resolver, items []*ValueDefinition) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		val, err := item.Resolve(r)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func dedupe(values []any) Set {
	out := make(Set, 0, len(values))
	seen := make(map[any]bool, len(values))
	for _, val := range values {
		if val != nil && reflect.ValueOf(val).Comparable() {
			if seen[val] {
				continue
			}
			seen[val] = true
		}
		out = append(out, val)
	}
	return out
}
