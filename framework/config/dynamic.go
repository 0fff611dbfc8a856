package config

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Reloadable is a configuration value that may change after a reload.
type Reloadable interface {
	Key() string
	Get() any
	// OnChange registers fn to be called with the new value after every
	// change.
	OnChange(fn func(value any))
}

// DynamicValue is the Repository's Reloadable.
type DynamicValue struct {
	key string
	typ reflect.Type
	val atomic.Value

	mu        sync.Mutex
	listeners []func(any)
}

func newDynamicValue(key string, typ reflect.Type, val any) *DynamicValue {
	d := &DynamicValue{key: key, typ: typ}
	d.val.Store(box{val})
	return d
}

// box lets atomic.Value hold values of differing concrete types.
type box struct{ v any }

func (d *DynamicValue) Key() string { return d.key }

func (d *DynamicValue) Get() any { return d.val.Load().(box).v }

func (d *DynamicValue) OnChange(fn func(value any)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *DynamicValue) update(val any) {
	if reflect.DeepEqual(d.Get(), val) {
		return
	}
	d.val.Store(box{val})

	d.mu.Lock()
	listeners := append([]func(any){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(val)
	}
}

// Value is a typed view over a Reloadable.
//
//	timeout, _ := config.Dynamic[time.Duration](repo, "http.timeout")
//	ctx, cancel := context.WithTimeout(ctx, timeout.Get())
type Value[T any] struct {
	r Reloadable
}

// ValueOf wraps r.
func ValueOf[T any](r Reloadable) Value[T] { return Value[T]{r: r} }

// Dynamic looks up key in cfg as a typed reloadable value.
func Dynamic[T any](cfg Config, key string) (Value[T], bool) {
	r, ok := cfg.GetDynaProperty(key, reflect.TypeOf((*T)(nil)).Elem())
	if !ok {
		return Value[T]{}, false
	}
	return Value[T]{r: r}, true
}

// Bind attaches r. The container calls it for `config` fields of type
// Value[T].
func (v *Value[T]) Bind(r Reloadable) { v.r = r }

// ElemType is the reflect.Type of T.
func (Value[T]) ElemType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Bound reports whether the value is backed by a Reloadable.
func (v Value[T]) Bound() bool { return v.r != nil }

func (v Value[T]) Key() string {
	if v.r == nil {
		return ""
	}
	return v.r.Key()
}

// Get returns the current value, or the zero value when unbound.
func (v Value[T]) Get() T {
	if v.r == nil {
		var zero T
		return zero
	}
	t, _ := v.r.Get().(T)
	return t
}

func (v Value[T]) OnChange(fn func(T)) {
	if v.r == nil {
		return
	}
	v.r.OnChange(func(val any) {
		t, _ := val.(T)
		fn(t)
	})
}
