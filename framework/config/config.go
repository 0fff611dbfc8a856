// Package config provides the property repository the container binds
// configuration values from.
//
// Lookups walk the sources in the order they were added; the first source
// holding a key wins. In-memory values set with Set always come first.
//
//	repo := config.Load(".env")                    // .env + process environment
//	repo.AddSource(config.MustYAMLFile("app.yaml")) // lower precedence than env
//	name, ok := repo.GetProperty("app.name")        // APP_NAME, then app.name in YAML
package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/km-arc/go-beans/framework/logging"
)

// Config is the contract the container reads configuration through.
type Config interface {
	GetProperty(key string) (string, bool)
	GetArrayProperty(key string) ([]string, bool)
	GetDynaProperty(key string, typ reflect.Type) (Reloadable, bool)
}

// Source is one layer of properties. Values are either string or []string.
type Source interface {
	Name() string
	Lookup(key string) (any, bool)
}

// Reloader is a Source that can re-read its backing storage.
type Reloader interface {
	Source
	Reload() error
}

// Repository is a layered, reloadable Config.
type Repository struct {
	mu      sync.RWMutex
	memory  *MapSource
	sources []Source
	dynamic map[dynamicKey]*DynamicValue
	log     logging.Logger

	watchMu sync.Mutex
	watch   *watcher
}

// dynamicKey identifies one handle; a key read as two types has two handles.
type dynamicKey struct {
	key string
	typ reflect.Type
}

// NewRepository creates a repository over sources, highest precedence first.
func NewRepository(sources ...Source) *Repository {
	return &Repository{
		memory:  NewMapSource("memory", nil),
		sources: sources,
		dynamic: make(map[dynamicKey]*DynamicValue),
		log:     logging.Discard(),
	}
}

// Load builds a repository from .env files (default ".env") and the process
// environment. Missing files are not an error.
func Load(envFiles ...string) *Repository {
	return NewRepository(NewEnvSource(envFiles...))
}

// SetLogger replaces the repository logger.
func (r *Repository) SetLogger(log logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = log.WithField("component", "config")
}

// AddSource appends a source with the lowest precedence so far.
func (r *Repository) AddSource(s Source) {
	r.mu.Lock()
	r.sources = append(r.sources, s)
	r.mu.Unlock()
	r.refresh()
}

// Set stores an in-memory value that shadows every source.
func (r *Repository) Set(key, value string) {
	r.memory.Set(key, value)
	r.refresh()
}

// Sources returns the sources in precedence order, memory first.
func (r *Repository) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources)+1)
	out = append(out, r.memory)
	return append(out, r.sources...)
}

func (r *Repository) lookup(key string) (any, bool) {
	for _, s := range r.Sources() {
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// GetProperty returns the scalar value of key. List values are joined with
// commas.
func (r *Repository) GetProperty(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ","), true
	case string:
		return val, true
	}
	return "", false
}

// GetArrayProperty returns the list value of key. Scalar values are split
// on commas.
func (r *Repository) GetArrayProperty(key string) ([]string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return nil, false
	}
	switch val := v.(type) {
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out, true
	case string:
		return SplitList(val), true
	}
	return nil, false
}

// GetDynaProperty returns a reloadable handle for key converted to typ. The
// same handle is returned for the same key and type.
func (r *Repository) GetDynaProperty(key string, typ reflect.Type) (Reloadable, bool) {
	raw, ok := r.GetProperty(key)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := dynamicKey{key, typ}
	if d, ok := r.dynamic[id]; ok {
		return d, true
	}
	val, err := Convert(raw, typ)
	if err != nil {
		r.log.WithField("key", key).Warnf("dynamic property not convertible to %v: %v", typ, err)
		return nil, false
	}
	d := newDynamicValue(key, typ, val)
	r.dynamic[id] = d
	return d, true
}

// Reload re-reads every reloadable source and pushes changed values to the
// dynamic handles.
func (r *Repository) Reload() error {
	for _, s := range r.Sources() {
		if rl, ok := s.(Reloader); ok {
			if err := rl.Reload(); err != nil {
				return err
			}
		}
	}
	r.refresh()
	return nil
}

func (r *Repository) refresh() {
	r.mu.RLock()
	handles := make([]*DynamicValue, 0, len(r.dynamic))
	for _, d := range r.dynamic {
		handles = append(handles, d)
	}
	log := r.log
	r.mu.RUnlock()

	for _, d := range handles {
		raw, ok := r.GetProperty(d.key)
		if !ok {
			continue
		}
		val, err := Convert(raw, d.typ)
		if err != nil {
			log.WithField("key", d.key).Warnf("reloaded value not convertible to %v: %v", d.typ, err)
			continue
		}
		d.update(val)
	}
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
