package catalog

import (
	"reflect"

	"github.com/km-arc/go-beans/framework/beans"
)

// proxyIndex holds wrapper definitions, keyed by the selector they use.
type proxyIndex struct {
	byID    map[string]*beans.BeanDefinition
	byName  map[nameKey]*beans.BeanDefinition
	primary map[reflect.Type]*beans.BeanDefinition
	typed   map[reflect.Type]*beans.BeanDefinition
}

func newProxyIndex() proxyIndex {
	return proxyIndex{
		byID:    make(map[string]*beans.BeanDefinition),
		byName:  make(map[nameKey]*beans.BeanDefinition),
		primary: make(map[reflect.Type]*beans.BeanDefinition),
		typed:   make(map[reflect.Type]*beans.BeanDefinition),
	}
}

func (c *Catalog) addProxy(def *beans.BeanDefinition) error {
	spec := def.Proxy
	td := def.PrimaryTypeDef()

	put := func(existing *beans.BeanDefinition, ok bool, label string, store func()) error {
		if ok {
			switch c.decide(existing, def, td, "proxy "+label) {
			case outcomeFail:
				return &beans.DuplicateDefinitionError{Key: "proxy " + label, Existing: existing, Incoming: def}
			case outcomeKeep:
				return nil
			}
		}
		store()
		return nil
	}

	switch {
	case spec.TargetID != "":
		existing, ok := c.proxies.byID[spec.TargetID]
		return put(existing, ok, "id '"+spec.TargetID+"'", func() { c.proxies.byID[spec.TargetID] = def })
	case spec.TargetName != "":
		k := nameKey{def.Type, spec.TargetName}
		existing, ok := c.proxies.byName[k]
		return put(existing, ok, td.Type.String()+"#"+spec.TargetName, func() { c.proxies.byName[k] = def })
	case spec.Primary:
		existing, ok := c.proxies.primary[def.Type]
		return put(existing, ok, "primary "+def.Type.String(), func() { c.proxies.primary[def.Type] = def })
	default:
		existing, ok := c.proxies.typed[def.Type]
		return put(existing, ok, "typed "+def.Type.String(), func() { c.proxies.typed[def.Type] = def })
	}
}

// FindProxy returns the wrapper applying to def: by id, then by name, then as
// primary of its type, then the typed proxy of its type.
func (c *Catalog) FindProxy(def *beans.BeanDefinition) *beans.BeanDefinition {
	if def.ID != "" {
		if p, ok := c.proxies.byID[def.ID]; ok {
			return p
		}
	}
	if def.Name != "" {
		if p, ok := c.proxies.byName[nameKey{def.Type, def.Name}]; ok {
			return p
		}
	}
	if c.primary[def.Type] == def {
		if p, ok := c.proxies.primary[def.Type]; ok {
			return p
		}
	}
	return c.proxies.typed[def.Type]
}

// TypedProxy returns the typed proxy registered for typ.
func (c *Catalog) TypedProxy(typ reflect.Type) *beans.BeanDefinition {
	return c.proxies.typed[typ]
}
