package container

import (
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unsafe"
)

// Struct tags understood by the container.
//
//	type OrderService struct {
//	    _       struct{}       `lifecycle:"init=Open,destroy=Shutdown"`
//	    Repo    OrderRepo      `autowire:"@"`
//	    Audit   Auditor        `autowire:"audit,optional"`
//	    Sinks   []Sink         `autowire:"@,qualifier=fast"`
//	    Mailer  Lazy[*Mailer]  `autowire:"@"`
//	    Timeout time.Duration  `config:""`
//	    Hosts   []string       `config:"hosts|servers"`
//	    Retry   RetryPolicy    `config:"retry"`
//	    Region  string         `config:"" validate:"required"`
//	}
const (
	AutowireTag  = "autowire"
	ConfigTag    = "config"
	LifecycleTag = "lifecycle"
)

// autowireField is a parsed `autowire` tag.
type autowireField struct {
	index     int
	field     reflect.StructField
	name      string // "" means by type
	qualifier string
	primary   bool
	optional  bool
}

// configField is a parsed `config` tag.
type configField struct {
	index int
	field reflect.StructField
	keys  []string // explicit keys, tried before the derived ones
}

// candidates returns the keys to try, in order: explicit keys, the field
// name, its hyphenated form, its underscored form.
func (f configField) candidates(prefix string) []string {
	keys := make([]string, 0, len(f.keys)+3)
	keys = append(keys, f.keys...)
	keys = append(keys, f.field.Name, hyphenate(f.field.Name), underscore(f.field.Name))

	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, joinKey(prefix, k))
	}
	return out
}

// nestedPrefix is the prefix a nested configuration struct is bound with.
func (f configField) nestedPrefix(prefix string) string {
	if len(f.keys) > 0 {
		return joinKey(prefix, f.keys[0])
	}
	return joinKey(prefix, hyphenate(f.field.Name))
}

type typeInfo struct {
	autowired     []autowireField
	configured    []configField
	initMethod    string
	destroyMethod string
}

var typeInfos sync.Map // reflect.Type → *typeInfo

// inspect parses the container tags of a struct type once.
func inspect(t reflect.Type) *typeInfo {
	if cached, ok := typeInfos.Load(t); ok {
		return cached.(*typeInfo)
	}

	info := &typeInfo{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if tag, ok := f.Tag.Lookup(LifecycleTag); ok {
			for _, part := range strings.Split(tag, ",") {
				k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
				switch k {
				case "init":
					info.initMethod = v
				case "destroy":
					info.destroyMethod = v
				}
			}
		}

		if tag, ok := f.Tag.Lookup(AutowireTag); ok && tag != "-" {
			info.autowired = append(info.autowired, parseAutowire(i, f, tag))
		}

		if tag, ok := f.Tag.Lookup(ConfigTag); ok && tag != "-" {
			cf := configField{index: i, field: f}
			for _, k := range strings.Split(tag, "|") {
				if k = strings.TrimSpace(k); k != "" {
					cf.keys = append(cf.keys, k)
				}
			}
			info.configured = append(info.configured, cf)
		}
	}

	actual, _ := typeInfos.LoadOrStore(t, info)
	return actual.(*typeInfo)
}

func parseAutowire(i int, f reflect.StructField, tag string) autowireField {
	parts := strings.Split(tag, ",")
	af := autowireField{index: i, field: f}
	if name := strings.TrimSpace(parts[0]); name != "@" {
		af.name = name
	}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "optional":
			af.optional = true
		case opt == "primary":
			af.primary = true
		case strings.HasPrefix(opt, "qualifier="):
			af.qualifier = strings.TrimPrefix(opt, "qualifier=")
		}
	}
	return af
}

// structType returns the struct behind t, through one pointer.
func structType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// hasConfigTags reports whether t (struct or pointer to struct) binds any
// configuration value.
func hasConfigTags(t reflect.Type) bool {
	st, ok := structType(t)
	if !ok {
		return false
	}
	return len(inspect(st).configured) > 0
}

// settable returns fv made writable, unexported fields included.
func settable(fv reflect.Value) reflect.Value {
	if fv.CanSet() {
		return fv
	}
	return reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
}

// hyphenate turns MaxIdleConns into max-idle-conns and HTTPPort into
// http-port.
func hyphenate(name string) string { return splitWords(name, '-') }

func underscore(name string) string { return splitWords(name, '_') }

func splitWords(name string, sep rune) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteRune(sep)
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
