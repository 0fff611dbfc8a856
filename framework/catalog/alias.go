package catalog

import (
	"reflect"

	"github.com/km-arc/go-beans/framework/beans"
)

// Alias maps an alternative name either to an id or to a (type, name) pair.
// A nil TargetType means "the type being looked up".
type Alias struct {
	Alias      string
	TargetID   string
	TargetType reflect.Type
	TargetName string
}

// AddAlias registers an alias. Aliases are resolved one level deep only.
//
//	cat.AddAlias(catalog.Alias{Alias: "db", TargetID: "primary-db"})
//	cat.AddAlias(catalog.Alias{Alias: "cache", TargetType: cacheType, TargetName: "redis"})
func (c *Catalog) AddAlias(alias Alias) error {
	if c.sealed {
		return beans.NewDefinitionError(nil, "catalog is sealed, alias '%s' rejected", alias.Alias)
	}
	if alias.Alias == "" {
		return beans.NewDefinitionError(nil, "alias without name")
	}
	if alias.TargetID == "" && alias.TargetName == "" {
		return beans.NewDefinitionError(nil, "alias '%s' has no target", alias.Alias)
	}
	if alias.Alias == alias.TargetID || (alias.TargetID == "" && alias.Alias == alias.TargetName && alias.TargetType == nil) {
		return beans.NewDefinitionError(nil, "alias '%s' points to itself", alias.Alias)
	}
	if existing, ok := c.aliases[alias.Alias]; ok && existing != alias {
		return beans.NewDefinitionError(nil, "alias '%s' is already registered", alias.Alias)
	}
	c.aliases[alias.Alias] = alias
	return nil
}

// Aliases returns a copy of the alias table.
func (c *Catalog) Aliases() map[string]Alias {
	out := make(map[string]Alias, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}
