package beans

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// DefaultSortOrder is the priority a definition gets when none is declared.
const DefaultSortOrder = 100

// SourceKind tells which loader produced a definition.
type SourceKind int

const (
	SourceProgrammatic SourceKind = iota
	SourceDeclarative
	SourceMarkup
)

func (k SourceKind) String() string {
	switch k {
	case SourceDeclarative:
		return "declarative"
	case SourceMarkup:
		return "markup"
	default:
		return "programmatic"
	}
}

// Source is an opaque origin marker used in diagnostics.
type Source struct {
	Kind   SourceKind
	Origin string
}

func (s Source) String() string {
	if s.Origin == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ":" + s.Origin
}

// TypeDefinition is one identity under which a definition can be found.
type TypeDefinition struct {
	Type     reflect.Type
	Name     string
	Primary  bool
	Override bool
}

func (td TypeDefinition) String() string {
	if td.Name == "" {
		return td.Type.String()
	}
	return td.Type.String() + "#" + td.Name
}

// ConstructionKind is the single way a definition builds its instance.
type ConstructionKind int

const (
	ConstructByType ConstructionKind = iota
	ConstructByFactory
	ConstructByValue
)

func (k ConstructionKind) String() string {
	switch k {
	case ConstructByFactory:
		return "factory"
	case ConstructByValue:
		return "value"
	default:
		return "type"
	}
}

// FactoryDefinition builds an instance through a function call. Either Func
// is a free function, or Bean references a bean and Method names one of its
// methods.
type FactoryDefinition struct {
	Func   any
	Bean   *ValueDefinition
	Method string
	Args   []*ArgumentDefinition
}

// HookDefinition names an init or destroy hook: a function taking the
// instance, or the name of a parameterless method on it.
type HookDefinition struct {
	Method string
	Func   func(instance any) error
}

// ProxySpec marks a definition as a wrapper and selects what it wraps.
// Exactly one selector is used, checked in this order: TargetID, TargetName,
// Primary, Typed.
type ProxySpec struct {
	TargetID   string
	TargetName string
	Primary    bool
	Typed      bool
}

// BeanDefinition is the declared shape of one constructible component.
// Definitions are mutated only while they are being registered.
type BeanDefinition struct {
	ID                 string
	Name               string
	Type               reflect.Type
	ImplementationType reflect.Type

	Singleton       bool
	LazyInit        bool
	Primary         bool
	Qualifiers      []string
	SortOrder       int
	Override        bool
	DefaultOverride bool
	Source          Source

	// construction: exactly one of Constructors/Arguments, Factory or Value
	Constructors []any
	Arguments    []*ArgumentDefinition
	Factory      *FactoryDefinition
	Value        *ValueDefinition

	Properties []*PropertyDefinition
	Invokes    []*InvokeDefinition

	InitHook     *HookDefinition
	DestroyHook  *HookDefinition
	ConfigPrefix string

	// additional identities besides the primary one
	TypeDefs []TypeDefinition

	Proxy *ProxySpec

	// EarlyReference publishes the raw instance to its own construction chain
	// right after instantiation.
	EarlyReference bool

	keyOnce sync.Once
	key     string
}

// NewDefinition creates a singleton definition for typ with default settings.
func NewDefinition(typ reflect.Type) *BeanDefinition {
	return &BeanDefinition{
		Type:               typ,
		ImplementationType: typ,
		Singleton:          true,
		SortOrder:          DefaultSortOrder,
	}
}

// Key is a process-unique identifier; the id when present, otherwise a
// generated uuid.
func (d *BeanDefinition) Key() string {
	d.keyOnce.Do(func() {
		if d.ID != "" {
			d.key = d.ID
			return
		}
		d.key = uuid.NewString()
	})
	return d.key
}

// Kind reports the construction kind.
func (d *BeanDefinition) Kind() ConstructionKind {
	switch {
	case d.Value != nil:
		return ConstructByValue
	case d.Factory != nil:
		return ConstructByFactory
	default:
		return ConstructByType
	}
}

// IsProxy reports whether the definition wraps other definitions.
func (d *BeanDefinition) IsProxy() bool { return d.Proxy != nil }

// PrimaryTypeDef is the identity carried by the definition itself.
func (d *BeanDefinition) PrimaryTypeDef() TypeDefinition {
	return TypeDefinition{Type: d.Type, Name: d.Name, Primary: d.Primary, Override: d.Override}
}

// TypeDefinitions returns the definition's own identity followed by the
// additional ones.
func (d *BeanDefinition) TypeDefinitions() []TypeDefinition {
	out := make([]TypeDefinition, 0, 1+len(d.TypeDefs))
	out = append(out, d.PrimaryTypeDef())
	return append(out, d.TypeDefs...)
}

// HasQualifier reports whether q is one of the definition's qualifiers.
func (d *BeanDefinition) HasQualifier(q string) bool {
	for _, v := range d.Qualifiers {
		if v == q {
			return true
		}
	}
	return false
}

// Exposes reports whether the definition can be found under typ.
func (d *BeanDefinition) Exposes(typ reflect.Type) bool {
	for _, td := range d.TypeDefinitions() {
		if td.Type == typ {
			return true
		}
	}
	return false
}

// NameFor returns the name the definition carries for typ.
func (d *BeanDefinition) NameFor(typ reflect.Type) string {
	for _, td := range d.TypeDefinitions() {
		if td.Type == typ {
			return td.Name
		}
	}
	return ""
}

// Validate checks the structural invariants of a definition.
func (d *BeanDefinition) Validate() error {
	if d.Type == nil {
		return NewDefinitionError(d, "declared type is missing")
	}

	kinds := 0
	if len(d.Constructors) > 0 || len(d.Arguments) > 0 {
		kinds++
	}
	if d.Factory != nil {
		kinds++
	}
	if d.Value != nil {
		kinds++
	}
	if kinds > 1 {
		return NewDefinitionError(d, "more than one construction spec declared")
	}

	if d.Kind() == ConstructByType {
		impl := d.ImplementationType
		if impl == nil {
			impl = d.Type
		}
		if len(d.Constructors) == 0 && !isStructShape(impl) {
			return NewDefinitionError(d, "implementation type %v is neither a struct nor has a constructor", impl)
		}
		for _, ctor := range d.Constructors {
			ct := reflect.TypeOf(ctor)
			if ct == nil || ct.Kind() != reflect.Func || ct.NumOut() == 0 || ct.NumOut() > 2 {
				return NewDefinitionError(d, "constructor %T must be func(...) T or func(...) (T, error)", ctor)
			}
		}
	}

	if d.Factory != nil {
		if d.Factory.Func == nil && (d.Factory.Bean == nil || d.Factory.Method == "") {
			return NewDefinitionError(d, "factory needs a function or a bean and method")
		}
		if d.Factory.Func != nil && reflect.TypeOf(d.Factory.Func).Kind() != reflect.Func {
			return NewDefinitionError(d, "factory %T is not a function", d.Factory.Func)
		}
	}

	for _, p := range d.Properties {
		if p.Name == "" || p.Value == nil {
			return NewDefinitionError(d, "property needs a name and a value")
		}
	}

	for _, td := range d.TypeDefs {
		if td.Type == nil {
			return NewDefinitionError(d, "additional type definition without type")
		}
	}

	if d.Proxy != nil && d.Proxy.TargetID == "" && d.Proxy.TargetName == "" && !d.Proxy.Primary && !d.Proxy.Typed {
		return NewDefinitionError(d, "proxy selects no target")
	}

	return nil
}

func (d *BeanDefinition) String() string {
	switch {
	case d.ID != "":
		return fmt.Sprintf("bean '%s'", d.ID)
	case d.Type == nil:
		return "bean <untyped>"
	case d.Name != "":
		return fmt.Sprintf("bean %v#%s", d.Type, d.Name)
	default:
		return fmt.Sprintf("bean %v", d.Type)
	}
}

func isStructShape(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
