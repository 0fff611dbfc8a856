package container

import (
	"io"
	"reflect"

	"github.com/km-arc/go-beans/framework/config"
)

// BeanFactory is the read side of the container handed to FactoryAware
// beans. TryGet and TryGetNamed return a nil instance on a lookup miss and
// an error only when a candidate exists but cannot be built.
type BeanFactory interface {
	Get(id string) (any, error)
	GetByType(typ reflect.Type) (any, error)
	TryGet(typ reflect.Type) (any, error)
	TryGetNamed(typ reflect.Type, name string) (any, error)
	GetAll(typ reflect.Type) ([]any, error)
}

// ── Aware capabilities ────────────────────────────────────────────────────────

type FactoryAware interface {
	SetBeanFactory(f BeanFactory)
}

type ContainerAware interface {
	SetContainer(c *Container)
}

type ConfigAware interface {
	SetConfig(cfg config.Config)
}

// NameAware receives the name the bean was registered under, or its id when
// it has no name.
type NameAware interface {
	SetBeanName(name string)
}

type PrimaryAware interface {
	SetPrimary(primary bool)
}

// ProxyTargetAware is the wrapping contract: a proxy implementing it gets
// the instance it wraps before any other lifecycle step.
type ProxyTargetAware interface {
	SetProxyTarget(target any)
}

// ── Lifecycle capabilities ────────────────────────────────────────────────────

// Initializable is called after injection when no init hook or init marker
// applies.
type Initializable interface {
	Init() error
}

// Loadable lets a singleton refuse to become ready. Returning false discards
// the instance; the next lookup tries again.
type Loadable interface {
	Load() bool
}

// Disposable is called on Close when no destroy hook applies.
type Disposable interface {
	Destroy() error
}

var (
	_ io.Closer   = (*Container)(nil)
	_ BeanFactory = (*Container)(nil)
)
