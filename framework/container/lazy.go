package container

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/km-arc/go-beans/framework/beans"
)

// lazyHandle is implemented by *Lazy[T] and *LazyList[T].
type lazyHandle interface {
	bindLazy(c *Container, q query, origin *chain)
}

var lazyHandleType = beans.TypeOf[lazyHandle]()

func isLazy(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct:
		return reflect.PointerTo(t).Implements(lazyHandleType)
	case reflect.Ptr:
		return t.Elem().Kind() == reflect.Struct && t.Implements(lazyHandleType)
	}
	return false
}

// newLazy returns a bound handle of type q.typ (Lazy[T] or *Lazy[T]).
func newLazy(c *Container, q query, origin *chain) reflect.Value {
	t := q.typ
	if t.Kind() == reflect.Ptr {
		p := reflect.New(t.Elem())
		p.Interface().(lazyHandle).bindLazy(c, q, origin)
		return p
	}
	p := reflect.New(t)
	p.Interface().(lazyHandle).bindLazy(c, q, origin)
	return p.Elem()
}

// ErrUnboundLazy is returned by handles the container never injected.
var ErrUnboundLazy = errors.New("lazy handle is not bound to a container")

// Lazy defers the lookup of a T until Get is first called. A successful
// lookup is remembered; a failed one is retried on the next Get.
//
//	type Mailer struct {
//	    Queue container.Lazy[*Queue] `autowire:"@"`
//	}
//
//	q, err := m.Queue.Get()
//
// Lazy edges are how dependency cycles are broken: Queue may depend on
// *Mailer eagerly as long as Mailer only dereferences Queue after it is
// ready.
type Lazy[T any] struct {
	c      *Container
	q      query
	origin *chain

	mu    sync.Mutex
	done  bool
	value T
}

func (l *Lazy[T]) bindLazy(c *Container, q query, origin *chain) {
	l.c, l.q, l.origin = c, q, origin
	l.q.typ = beans.TypeOf[T]()
}

// Get performs the lookup the eager injection would have performed.
func (l *Lazy[T]) Get() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if l.done {
		return l.value, nil
	}
	if l.c == nil {
		return zero, ErrUnboundLazy
	}

	v, ok, err := l.c.injectValue(l.q, l.origin.live())
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, nil
	}
	l.value, _ = v.Interface().(T)
	l.done = true
	return l.value, nil
}

// MustGet is Get that panics on error.
func (l *Lazy[T]) MustGet() T {
	v, err := l.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Bound reports whether the container injected the handle.
func (l *Lazy[T]) Bound() bool { return l.c != nil }

// LazyList defers collecting every bean of type T.
//
//	type Dispatcher struct {
//	    Handlers container.LazyList[Handler] `autowire:"@,qualifier=async"`
//	}
type LazyList[T any] struct {
	c      *Container
	q      query
	origin *chain

	mu    sync.Mutex
	done  bool
	value []T
}

func (l *LazyList[T]) bindLazy(c *Container, q query, origin *chain) {
	l.c, l.q, l.origin = c, q, origin
	l.q.typ = beans.TypeOf[T]()
}

// Get resolves every bean of T in sortOrder.
func (l *LazyList[T]) Get() ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.value, nil
	}
	if l.c == nil {
		return nil, ErrUnboundLazy
	}

	items, err := l.c.all(l.q.typ, l.q.qualifier, l.origin.live())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		t, ok := item.(T)
		if !ok {
			return nil, errors.Errorf("bean %T is not a %v", item, l.q.typ)
		}
		out = append(out, t)
	}
	l.value, l.done = out, true
	return out, nil
}

// Bound reports whether the container injected the handle.
func (l *LazyList[T]) Bound() bool { return l.c != nil }
