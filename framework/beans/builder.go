package beans

import "reflect"

// Builder implements the fluent definition API.
//
//	def := beans.DefineOf[UserRepository]().
//	    Named("primary-db").
//	    Constructor(NewSQLUserRepository).
//	    Property("Table", beans.Literal("users")).
//	    Definition()
type Builder struct {
	def *BeanDefinition
}

// Define starts a singleton definition declared under typ.
func Define(typ reflect.Type) *Builder {
	return &Builder{def: NewDefinition(typ)}
}

// DefineOf starts a singleton definition declared under T.
func DefineOf[T any]() *Builder {
	return Define(TypeOf[T]())
}

// Definition returns the built definition.
func (b *Builder) Definition() *BeanDefinition { return b.def }

// ── Identity ──────────────────────────────────────────────────────────────────

func (b *Builder) ID(id string) *Builder {
	b.def.ID = id
	return b
}

func (b *Builder) Named(name string) *Builder {
	b.def.Name = name
	return b
}

func (b *Builder) Primary() *Builder {
	b.def.Primary = true
	return b
}

func (b *Builder) Qualify(qualifiers ...string) *Builder {
	b.def.Qualifiers = append(b.def.Qualifiers, qualifiers...)
	return b
}

func (b *Builder) Order(sortOrder int) *Builder {
	b.def.SortOrder = sortOrder
	return b
}

func (b *Builder) Override() *Builder {
	b.def.Override = true
	return b
}

func (b *Builder) DefaultOverride() *Builder {
	b.def.DefaultOverride = true
	return b
}

func (b *Builder) From(src Source) *Builder {
	b.def.Source = src
	return b
}

// Also exposes the definition under an additional type, optionally named.
//
//	beans.DefineOf[*Cache]().Also(beans.TypeOf[io.Closer](), "cache")
func (b *Builder) Also(typ reflect.Type, name string) *Builder {
	b.def.TypeDefs = append(b.def.TypeDefs, TypeDefinition{Type: typ, Name: name})
	return b
}

// AlsoAs exposes the definition under a fully specified identity.
func (b *Builder) AlsoAs(td TypeDefinition) *Builder {
	b.def.TypeDefs = append(b.def.TypeDefs, td)
	return b
}

// ── Scope ─────────────────────────────────────────────────────────────────────

func (b *Builder) Prototype() *Builder {
	b.def.Singleton = false
	return b
}

func (b *Builder) Lazy() *Builder {
	b.def.LazyInit = true
	return b
}

func (b *Builder) EarlyReference() *Builder {
	b.def.EarlyReference = true
	return b
}

// ── Construction ──────────────────────────────────────────────────────────────

// Implementation sets the concrete type to allocate when no constructor is
// given.
func (b *Builder) Implementation(typ reflect.Type) *Builder {
	b.def.ImplementationType = typ
	return b
}

// Constructor registers candidate constructor functions.
func (b *Builder) Constructor(fns ...any) *Builder {
	b.def.Constructors = append(b.def.Constructors, fns...)
	return b
}

// Args declares explicit constructor arguments.
func (b *Builder) Args(args ...*ArgumentDefinition) *Builder {
	b.def.Arguments = append(b.def.Arguments, args...)
	return b
}

// FactoryFunc builds the instance by calling fn.
func (b *Builder) FactoryFunc(fn any, args ...*ArgumentDefinition) *Builder {
	b.def.Factory = &FactoryDefinition{Func: fn, Args: args}
	return b
}

// FactoryMethod builds the instance by calling method on the bean.
func (b *Builder) FactoryMethod(bean *ValueDefinition, method string, args ...*ArgumentDefinition) *Builder {
	b.def.Factory = &FactoryDefinition{Bean: bean, Method: method, Args: args}
	return b
}

// Value builds the instance by resolving v.
func (b *Builder) Value(v *ValueDefinition) *Builder {
	b.def.Value = v
	return b
}

// Instance registers an already-built value.
func (b *Builder) Instance(v any) *Builder {
	return b.Value(Literal(v))
}

// ── Wiring ────────────────────────────────────────────────────────────────────

func (b *Builder) Property(name string, v *ValueDefinition) *Builder {
	b.def.Properties = append(b.def.Properties, &PropertyDefinition{Name: name, Value: v})
	return b
}

func (b *Builder) Invoke(method string, args ...*ArgumentDefinition) *Builder {
	b.def.Invokes = append(b.def.Invokes, &InvokeDefinition{Method: method, Args: args})
	return b
}

func (b *Builder) ConfigPrefix(prefix string) *Builder {
	b.def.ConfigPrefix = prefix
	return b
}

// ── Hooks ─────────────────────────────────────────────────────────────────────

func (b *Builder) InitWith(fn func(instance any) error) *Builder {
	b.def.InitHook = &HookDefinition{Func: fn}
	return b
}

func (b *Builder) InitMethod(method string) *Builder {
	b.def.InitHook = &HookDefinition{Method: method}
	return b
}

func (b *Builder) DestroyWith(fn func(instance any) error) *Builder {
	b.def.DestroyHook = &HookDefinition{Func: fn}
	return b
}

func (b *Builder) DestroyMethod(method string) *Builder {
	b.def.DestroyHook = &HookDefinition{Method: method}
	return b
}

// ── Proxies ───────────────────────────────────────────────────────────────────

// ProxyFor turns the definition into a wrapper selected by spec.
//
//	beans.DefineOf[Greeter]().
//	    Constructor(NewTracingGreeter). // func(inner Greeter) Greeter
//	    ProxyFor(beans.ProxySpec{TargetID: "greeter"})
func (b *Builder) ProxyFor(spec ProxySpec) *Builder {
	b.def.Proxy = &spec
	return b
}
