package container

import (
	"github.com/km-arc/go-beans/framework/beans"
)

// BeanInfo is a read-only snapshot of one definition and its cache slot.
type BeanInfo struct {
	Key            string   `json:"key"`
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name,omitempty"`
	Type           string   `json:"type"`
	Implementation string   `json:"implementation,omitempty"`
	Scope          string   `json:"scope"`
	Construction   string   `json:"construction"`
	Primary        bool     `json:"primary"`
	Lazy           bool     `json:"lazy"`
	Qualifiers     []string `json:"qualifiers,omitempty"`
	SortOrder      int      `json:"sortOrder"`
	Source         string   `json:"source"`
	Instantiated   bool     `json:"instantiated"`
	State          string   `json:"state,omitempty"`
}

// Describe lists every reachable definition in registration order.
func (c *Container) Describe() []BeanInfo {
	defs := c.catalog.Definitions()
	out := make([]BeanInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, c.describe(def))
	}
	return out
}

// DescribeBean returns the snapshot of the definition whose key (or alias)
// is key.
func (c *Container) DescribeBean(key string) (BeanInfo, bool) {
	if def := c.catalog.Get(key); def != nil {
		return c.describe(def), true
	}
	for _, def := range c.catalog.Definitions() {
		if def.Key() == key {
			return c.describe(def), true
		}
	}
	return BeanInfo{}, false
}

func (c *Container) describe(def *beans.BeanDefinition) BeanInfo {
	info := BeanInfo{
		Key:          def.Key(),
		ID:           def.ID,
		Name:         def.Name,
		Type:         def.Type.String(),
		Scope:        "singleton",
		Construction: def.Kind().String(),
		Primary:      def.Primary,
		Lazy:         def.LazyInit,
		Qualifiers:   def.Qualifiers,
		SortOrder:    def.SortOrder,
		Source:       def.Source.String(),
	}
	if !def.Singleton {
		info.Scope = "prototype"
	}
	if def.ImplementationType != nil && def.ImplementationType != def.Type {
		info.Implementation = def.ImplementationType.String()
	}
	if v, ok := c.slots.Load(def); ok {
		if s := v.(*slot); s.done.Load() {
			info.Instantiated = true
			info.State = s.state.String()
		}
	}
	return info
}
