package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ── In-memory ─────────────────────────────────────────────────────────────────

// MapSource holds properties in memory.
type MapSource struct {
	name   string
	mu     sync.RWMutex
	values map[string]any
}

// NewMapSource creates a source from a flat key → value map.
func NewMapSource(name string, values map[string]string) *MapSource {
	m := &MapSource{name: name, values: make(map[string]any, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MapSource) Name() string { return m.name }

func (m *MapSource) Lookup(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores a scalar value.
func (m *MapSource) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// SetList stores a list value.
func (m *MapSource) SetList(key string, values []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = values
}

// ── Environment ───────────────────────────────────────────────────────────────

// EnvSource reads .env files and the process environment. Dotted keys map to
// upper-case underscored names: "app.name" → APP_NAME. Process variables win
// over file values, like godotenv.Load.
type EnvSource struct {
	files []string
	mu    sync.RWMutex
	file  map[string]string
}

// NewEnvSource creates an env source over files (default ".env").
func NewEnvSource(files ...string) *EnvSource {
	if len(files) == 0 {
		files = []string{".env"}
	}
	e := &EnvSource{files: files}
	_ = e.Reload() // missing .env files are normal in production
	return e
}

func (e *EnvSource) Name() string { return "env" }

// Reload re-reads the .env files that exist.
func (e *EnvSource) Reload() error {
	values := make(map[string]string)
	for _, f := range e.files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		read, err := godotenv.Read(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range read {
			if _, exists := values[k]; !exists {
				values[k] = v
			}
		}
	}

	e.mu.Lock()
	e.file = values
	e.mu.Unlock()
	return nil
}

func (e *EnvSource) Lookup(key string) (any, bool) {
	name := EnvName(key)
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.file[name]
	return v, ok
}

// EnvName converts a property key into an environment variable name.
func EnvName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(r.Replace(key))
}

// ── YAML ──────────────────────────────────────────────────────────────────────

// YAMLSource reads a YAML document and flattens nested mappings into dotted
// keys. Sequences of scalars become list values.
//
//	app:
//	  name: demo        # app.name = "demo"
//	  tags: [a, b]      # app.tags = ["a", "b"]
type YAMLSource struct {
	path   string
	mu     sync.RWMutex
	values map[string]any
}

// NewYAMLFile reads path once.
func NewYAMLFile(path string) (*YAMLSource, error) {
	y := &YAMLSource{path: path}
	if err := y.Reload(); err != nil {
		return nil, err
	}
	return y, nil
}

// MustYAMLFile is NewYAMLFile that panics on error.
func MustYAMLFile(path string) *YAMLSource {
	y, err := NewYAMLFile(path)
	if err != nil {
		panic(err)
	}
	return y
}

// ParseYAML builds an in-memory YAML source.
func ParseYAML(name string, doc []byte) (*YAMLSource, error) {
	values, err := flattenYAML(doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &YAMLSource{path: name, values: values}, nil
}

func (y *YAMLSource) Name() string { return "yaml:" + y.path }

// Path is the file backing the source.
func (y *YAMLSource) Path() string { return y.path }

// Reload re-reads the YAML file.
func (y *YAMLSource) Reload() error {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", y.path, err)
	}
	values, err := flattenYAML(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", y.path, err)
	}
	y.mu.Lock()
	y.values = values
	y.mu.Unlock()
	return nil
}

func (y *YAMLSource) Lookup(key string) (any, bool) {
	y.mu.RLock()
	defer y.mu.RUnlock()
	v, ok := y.values[key]
	return v, ok
}

func flattenYAML(doc []byte) (map[string]any, error) {
	var root map[string]any
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	flatten("", root, out)
	return out, nil
}

func flatten(prefix string, node any, out map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			list = append(list, fmt.Sprint(item))
		}
		out[prefix] = list
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
