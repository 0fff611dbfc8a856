// Package catalog stores bean definitions and answers lookups against them.
//
// A Catalog is filled sequentially by loaders, then sealed. Writes are not
// guarded; after Seal it is read-only and safe for concurrent readers.
package catalog

import (
	"reflect"
	"sort"

	"github.com/km-arc/go-beans/framework/beans"
	"github.com/km-arc/go-beans/framework/logging"
)

type nameKey struct {
	typ  reflect.Type
	name string
}

// Catalog is indexed storage of bean definitions.
type Catalog struct {
	log    logging.Logger
	sealed bool

	// id → definition
	byID map[string]*beans.BeanDefinition

	// (type, name) → definition
	byName map[nameKey]*beans.BeanDefinition

	// type → definitions ordered by sortOrder, then arrival
	byType map[reflect.Type][]*beans.BeanDefinition

	// type → primary definition
	primary map[reflect.Type]*beans.BeanDefinition

	// alias → target
	aliases map[string]Alias

	// every accepted definition in arrival order
	all []*beans.BeanDefinition

	proxies proxyIndex
}

// New creates an empty catalog.
func New(log logging.Logger) *Catalog {
	if log == nil {
		log = logging.Discard()
	}
	return &Catalog{
		log:     log.WithField("component", "catalog"),
		byID:    make(map[string]*beans.BeanDefinition),
		byName:  make(map[nameKey]*beans.BeanDefinition),
		byType:  make(map[reflect.Type][]*beans.BeanDefinition),
		primary: make(map[reflect.Type]*beans.BeanDefinition),
		aliases: make(map[string]Alias),
		proxies: newProxyIndex(),
	}
}

// Seal ends the registration phase.
func (c *Catalog) Seal() { c.sealed = true }

// Sealed reports whether Seal has been called.
func (c *Catalog) Sealed() bool { return c.sealed }

// ── Registration ──────────────────────────────────────────────────────────────

// slotPlan is the outcome of conflict resolution for one identity.
type slotPlan struct {
	td         beans.TypeDefinition
	skip       bool                  // name slot kept by an existing definition
	evict      *beans.BeanDefinition // existing definition losing the name slot
	setPrimary bool
}

// Add registers def under every identity it exposes. Conflicts are resolved
// before anything is indexed, so a failing Add leaves the catalog unchanged.
func (c *Catalog) Add(def *beans.BeanDefinition) error {
	if c.sealed {
		return beans.NewDefinitionError(def, "catalog is sealed")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if def.IsProxy() {
		return c.addProxy(def)
	}

	if def.ID != "" {
		if existing, ok := c.byID[def.ID]; ok {
			return &beans.DuplicateDefinitionError{Key: "id '" + def.ID + "'", Existing: existing, Incoming: def}
		}
	}

	plans := make([]slotPlan, 0, 1+len(def.TypeDefs))
	for _, td := range def.TypeDefinitions() {
		plan := slotPlan{td: td}

		if td.Name != "" {
			if existing, ok := c.byName[nameKey{td.Type, td.Name}]; ok {
				switch c.decide(existing, def, td, "name "+td.String()) {
				case outcomeFail:
					return &beans.DuplicateDefinitionError{Key: td.String(), Existing: existing, Incoming: def}
				case outcomeKeep:
					plan.skip = true
				case outcomeReplace:
					plan.evict = existing
				}
			}
		}

		if td.Primary && !plan.skip {
			existing, ok := c.primary[td.Type]
			if ok && existing == plan.evict {
				ok = false
			}
			if !ok {
				plan.setPrimary = true
			} else {
				switch c.decide(existing, def, td, "primary "+td.Type.String()) {
				case outcomeFail:
					return &beans.DuplicateDefinitionError{Key: "primary " + td.Type.String(), Existing: existing, Incoming: def}
				case outcomeReplace:
					plan.setPrimary = true
				}
			}
		}

		plans = append(plans, plan)
	}

	if def.ID != "" {
		c.byID[def.ID] = def
	}
	for _, plan := range plans {
		if plan.skip {
			c.log.Debugf("%s keeps %s, %s ignored for it", c.byName[nameKey{plan.td.Type, plan.td.Name}], plan.td, def)
			continue
		}
		if plan.evict != nil {
			c.evict(plan.evict, plan.td)
		}
		if plan.td.Name != "" {
			c.byName[nameKey{plan.td.Type, plan.td.Name}] = def
		}
		if plan.setPrimary {
			c.primary[plan.td.Type] = def
		}
		c.insertByType(plan.td.Type, def)
	}
	c.all = append(c.all, def)

	return nil
}

type outcome int

const (
	outcomeFail outcome = iota
	outcomeKeep
	outcomeReplace
)

// decide applies the override precedence for one contested slot:
//
//   - neither override: fail, unless the existing one is a default
//     (defaultOverride, or declarative while the incoming one is external and
//     marked defaultOverride)
//   - only incoming override: incoming replaces
//   - only existing override: existing stays
//   - both override: higher sortOrder wins, a tie goes to the incoming one
//     with a warning
func (c *Catalog) decide(existing, incoming *beans.BeanDefinition, td beans.TypeDefinition, slot string) outcome {
	existingOverride := existing.Override || overridesFor(existing, td.Type)
	incomingOverride := td.Override

	switch {
	case !existingOverride && !incomingOverride:
		if existing.DefaultOverride {
			return outcomeReplace
		}
		if existing.Source.Kind == beans.SourceDeclarative &&
			incoming.Source.Kind != beans.SourceDeclarative && incoming.DefaultOverride {
			return outcomeReplace
		}
		return outcomeFail
	case incomingOverride && !existingOverride:
		return outcomeReplace
	case existingOverride && !incomingOverride:
		return outcomeKeep
	}

	switch {
	case incoming.SortOrder > existing.SortOrder:
		return outcomeReplace
	case incoming.SortOrder < existing.SortOrder:
		return outcomeKeep
	}

	c.log.WithFields(map[string]any{
		"slot":      slot,
		"existing":  existing.String(),
		"incoming":  incoming.String(),
		"sortOrder": incoming.SortOrder,
	}).Warn("ambiguous override with equal sortOrder, keeping the later definition")
	return outcomeReplace
}

func overridesFor(def *beans.BeanDefinition, typ reflect.Type) bool {
	for _, td := range def.TypeDefinitions() {
		if td.Type == typ && td.Override {
			return true
		}
	}
	return false
}

func (c *Catalog) insertByType(typ reflect.Type, def *beans.BeanDefinition) {
	list := append(c.byType[typ], def)
	sort.SliceStable(list, func(i, j int) bool { return list[i].SortOrder < list[j].SortOrder })
	c.byType[typ] = list
}

// evict takes td away from def. A definition that loses its own identity is
// replaced and leaves the catalog; losing an additional identity only drops
// that type.
func (c *Catalog) evict(def *beans.BeanDefinition, td beans.TypeDefinition) {
	if td.Type != def.Type || td.Name != def.Name {
		c.unindexType(def, td.Type)
		return
	}
	c.log.Debugf("%s replaced by an override of %s", def, td)
	c.deregister(def)
}

// unindexType removes def from every index of typ.
func (c *Catalog) unindexType(def *beans.BeanDefinition, typ reflect.Type) {
	list := c.byType[typ]
	for i, d := range list {
		if d == def {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.byType, typ)
	} else {
		c.byType[typ] = list
	}
	if c.primary[typ] == def {
		delete(c.primary, typ)
	}
	for k, d := range c.byName {
		if d == def && k.typ == typ {
			delete(c.byName, k)
		}
	}
}

// ── Removal ───────────────────────────────────────────────────────────────────

// RemoveByID deregisters the definition with id.
func (c *Catalog) RemoveByID(id string) (bool, error) {
	def, ok := c.byID[id]
	if !ok {
		return false, nil
	}
	return true, c.remove(def)
}

// RemoveByTypeAndName deregisters the definition found under (typ, name).
func (c *Catalog) RemoveByTypeAndName(typ reflect.Type, name string) (bool, error) {
	def, ok := c.byName[nameKey{typ, name}]
	if !ok {
		return false, nil
	}
	return true, c.remove(def)
}

// RemoveByTypeAndImplementation deregisters every definition under typ whose
// implementation type is impl.
func (c *Catalog) RemoveByTypeAndImplementation(typ, impl reflect.Type) (int, error) {
	var matched []*beans.BeanDefinition
	for _, def := range c.byType[typ] {
		if def.ImplementationType == impl {
			matched = append(matched, def)
		}
	}
	for _, def := range matched {
		if err := c.remove(def); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

func (c *Catalog) remove(def *beans.BeanDefinition) error {
	if c.sealed {
		return beans.NewDefinitionError(def, "catalog is sealed")
	}
	c.deregister(def)
	return nil
}

func (c *Catalog) deregister(def *beans.BeanDefinition) {
	if def.ID != "" && c.byID[def.ID] == def {
		delete(c.byID, def.ID)
	}
	for _, td := range def.TypeDefinitions() {
		c.unindexType(def, td.Type)
	}
	for i, d := range c.all {
		if d == def {
			c.all = append(c.all[:i:i], c.all[i+1:]...)
			break
		}
	}
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// Find returns the primary definition of typ, or the only one if exactly one
// is registered. It returns nil when the type is unknown or ambiguous.
func (c *Catalog) Find(typ reflect.Type) *beans.BeanDefinition {
	if def, ok := c.primary[typ]; ok {
		return def
	}
	if list := c.byType[typ]; len(list) == 1 {
		return list[0]
	}
	return nil
}

// FindNamed returns the definition registered under (typ, name), following
// one level of alias indirection.
func (c *Catalog) FindNamed(typ reflect.Type, name string) *beans.BeanDefinition {
	if def, ok := c.byName[nameKey{typ, name}]; ok {
		return def
	}
	alias, ok := c.aliases[name]
	if !ok {
		return nil
	}
	if alias.TargetID != "" {
		if def, ok := c.byID[alias.TargetID]; ok && def.Exposes(typ) {
			return def
		}
		return nil
	}
	target := alias.TargetType
	if target == nil {
		target = typ
	}
	if target != typ {
		return nil
	}
	return c.byName[nameKey{target, alias.TargetName}]
}

// Get returns the definition with id, following one level of alias
// indirection.
func (c *Catalog) Get(id string) *beans.BeanDefinition {
	if def, ok := c.byID[id]; ok {
		return def
	}
	alias, ok := c.aliases[id]
	if !ok {
		return nil
	}
	if alias.TargetID != "" {
		return c.byID[alias.TargetID]
	}
	if alias.TargetType != nil {
		return c.byName[nameKey{alias.TargetType, alias.TargetName}]
	}
	return nil
}

// ByType returns every definition exposed under typ, ordered by sortOrder.
func (c *Catalog) ByType(typ reflect.Type) []*beans.BeanDefinition {
	list := c.byType[typ]
	out := make([]*beans.BeanDefinition, len(list))
	copy(out, list)
	return out
}

// ByQualifier returns the definitions under typ carrying qualifier.
func (c *Catalog) ByQualifier(typ reflect.Type, qualifier string) []*beans.BeanDefinition {
	var out []*beans.BeanDefinition
	for _, def := range c.byType[typ] {
		if def.HasQualifier(qualifier) {
			out = append(out, def)
		}
	}
	return out
}

// Primary returns the primary definition of typ without the single-candidate
// fallback.
func (c *Catalog) Primary(typ reflect.Type) *beans.BeanDefinition {
	return c.primary[typ]
}

// Definitions returns every definition still reachable through an index,
// in arrival order. Definitions that lost all their slots to overrides are
// left out.
func (c *Catalog) Definitions() []*beans.BeanDefinition {
	out := make([]*beans.BeanDefinition, 0, len(c.all))
	for _, def := range c.all {
		if c.active(def) {
			out = append(out, def)
		}
	}
	return out
}

// Len is the number of reachable non-proxy definitions.
func (c *Catalog) Len() int { return len(c.Definitions()) }

func (c *Catalog) active(def *beans.BeanDefinition) bool {
	if def.ID != "" && c.byID[def.ID] == def {
		return true
	}
	for _, td := range def.TypeDefinitions() {
		for _, d := range c.byType[td.Type] {
			if d == def {
				return true
			}
		}
	}
	return false
}
