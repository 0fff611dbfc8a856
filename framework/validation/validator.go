package validation

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// TagName is the struct tag holding field rules.
const TagName = "validate"

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors keyed by field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"Email": "required|email", "Port": "required|min:1|max:65535"}
type Rules map[string]string

// value is one field under validation. Size-based rules compare the number
// for numeric fields, the element count for collections and the rune count
// for everything else.
type value struct {
	text    string
	empty   bool
	size    float64
	numeric bool
	items   bool
}

func stringValue(s string) value {
	return value{text: s, empty: strings.TrimSpace(s) == "", size: float64(utf8.RuneCountInString(s))}
}

// ── Validator ────────────────────────────────────────────────────────────────

// Validator checks a set of field values against rules.
type Validator struct {
	data   map[string]value
	rules  Rules
	errors *Errors
}

// Make creates a Validator over flat string input.
func Make(data map[string]string, rules Rules) *Validator {
	values := make(map[string]value, len(data))
	for k, v := range data {
		values[k] = stringValue(v)
	}
	return &Validator{data: values, rules: rules, errors: &Errors{}}
}

// Struct validates the `validate` tags of obj, a struct or pointer to struct.
// Nested structs are validated too; their fields are reported as
// "Outer.Inner".
//
//	type Pool struct {
//	    DSN  string `validate:"required"`
//	    Size int    `validate:"gte:1|lte:64"`
//	}
func Struct(obj any) *Errors {
	v := &Validator{data: make(map[string]value), rules: make(Rules), errors: &Errors{}}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return v.errors
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return v.errors
	}
	v.collect("", rv)
	v.Fails()
	return v.Errors()
}

// HasRules reports whether typ (or a nested struct of it) declares any
// validate tag. Results are cached per type.
func HasRules(typ reflect.Type) bool {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return false
	}
	if cached, ok := ruleCache.Load(typ); ok {
		return cached.(bool)
	}
	has := false
	for i := 0; i < typ.NumField() && !has; i++ {
		f := typ.Field(i)
		if _, ok := f.Tag.Lookup(TagName); ok {
			has = true
		} else if f.Type.Kind() == reflect.Struct && f.Type != typ {
			has = HasRules(f.Type)
		}
	}
	ruleCache.Store(typ, has)
	return has
}

var ruleCache sync.Map

func (v *Validator) collect(prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		fv := rv.Field(i)
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}

		rule, tagged := f.Tag.Lookup(TagName)
		if tagged && rule != "-" {
			v.data[name] = fieldValue(fv)
			v.rules[name] = rule
		}

		if f.Type.Kind() == reflect.Struct && rule != "-" && HasRules(f.Type) {
			v.collect(name, fv)
		}
	}
}

func fieldValue(fv reflect.Value) value {
	switch fv.Kind() {
	case reflect.String:
		return stringValue(fv.String())
	case reflect.Bool:
		return value{text: strconv.FormatBool(fv.Bool())}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := fv.Int()
		return value{text: strconv.FormatInt(n, 10), empty: n == 0, size: float64(n), numeric: true}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := fv.Uint()
		return value{text: strconv.FormatUint(n, 10), empty: n == 0, size: float64(n), numeric: true}
	case reflect.Float32, reflect.Float64:
		f := fv.Float()
		return value{text: strconv.FormatFloat(f, 'g', -1, 64), empty: f == 0, size: f, numeric: true}
	case reflect.Slice, reflect.Map, reflect.Array:
		return value{text: fmt.Sprint(fv.Len()), empty: fv.Len() == 0, size: float64(fv.Len()), items: true}
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		if fv.IsNil() {
			return value{empty: true}
		}
		if fv.Kind() == reflect.Ptr && fv.Elem().Kind() != reflect.Struct {
			return fieldValue(fv.Elem())
		}
		return value{text: fv.Type().String()}
	}
	// unexported fields cannot be read through Interface
	if !fv.CanInterface() {
		return value{text: fv.Type().String(), empty: fv.IsZero()}
	}
	return value{text: fmt.Sprint(fv.Interface()), empty: fv.IsZero()}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors { return v.errors }

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) validate() {
	v.errors = &Errors{}
	for field, ruleStr := range v.rules {
		val := v.data[field]
		for _, rule := range strings.Split(ruleStr, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}

			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			if !v.applyRule(field, val, name, param) {
				break // bail on first failure
			}
		}
	}
}

func (v *Validator) number(val value) (float64, bool) {
	if val.numeric {
		return val.size, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val.text), 64)
	return f, err == nil
}

// applyRule returns true if the rule passes.
func (v *Validator) applyRule(field string, val value, rule, param string) bool {
	switch rule {
	case "required":
		if val.empty {
			v.errors.add(field, fmt.Sprintf("The %s field is required.", field))
			return false
		}

	case "nullable":
		// stops further rules on empty values
		if val.empty {
			return false
		}

	case "numeric":
		if _, ok := v.number(val); !ok {
			v.errors.add(field, fmt.Sprintf("The %s must be a number.", field))
			return false
		}

	case "integer":
		if _, err := strconv.Atoi(val.text); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be an integer.", field))
			return false
		}

	case "boolean":
		switch strings.ToLower(val.text) {
		case "true", "false", "1", "0", "yes", "no":
		default:
			v.errors.add(field, fmt.Sprintf("The %s field must be true or false.", field))
			return false
		}

	case "email":
		if _, err := mail.ParseAddress(val.text); err != nil {
			v.errors.add(field, fmt.Sprintf("The %s must be a valid email address.", field))
			return false
		}

	case "url":
		if !urlPattern.MatchString(val.text) {
			v.errors.add(field, fmt.Sprintf("The %s must be a valid URL.", field))
			return false
		}

	case "min":
		n, _ := strconv.ParseFloat(param, 64)
		if val.size < n {
			v.errors.add(field, fmt.Sprintf("The %s must be at least %s%s.", field, param, unit(val)))
			return false
		}

	case "max":
		n, _ := strconv.ParseFloat(param, 64)
		if val.size > n {
			v.errors.add(field, fmt.Sprintf("The %s may not be greater than %s%s.", field, param, unit(val)))
			return false
		}

	case "size":
		n, _ := strconv.ParseFloat(param, 64)
		if val.size != n {
			v.errors.add(field, fmt.Sprintf("The %s must be %s%s.", field, param, unit(val)))
			return false
		}

	case "between":
		lo, hi, ok := strings.Cut(param, ",")
		if !ok {
			break
		}
		min, _ := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		max, _ := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if val.size < min || val.size > max {
			v.errors.add(field, fmt.Sprintf("The %s must be between %s and %s%s.", field, strings.TrimSpace(lo), strings.TrimSpace(hi), unit(val)))
			return false
		}

	case "in", "not_in":
		found := false
		for _, a := range strings.Split(param, ",") {
			if strings.TrimSpace(a) == val.text {
				found = true
				break
			}
		}
		if found != (rule == "in") {
			v.errors.add(field, fmt.Sprintf("The selected %s is invalid.", field))
			return false
		}

	case "same":
		if v.data[param].text != val.text {
			v.errors.add(field, fmt.Sprintf("The %s and %s must match.", field, param))
			return false
		}

	case "different":
		if v.data[param].text == val.text {
			v.errors.add(field, fmt.Sprintf("The %s and %s must be different.", field, param))
			return false
		}

	case "alpha":
		if !alphaPattern.MatchString(val.text) {
			v.errors.add(field, fmt.Sprintf("The %s may only contain letters.", field))
			return false
		}

	case "alpha_num":
		if !alphaNumPattern.MatchString(val.text) {
			v.errors.add(field, fmt.Sprintf("The %s may only contain letters and numbers.", field))
			return false
		}

	case "alpha_dash":
		if !alphaDashPattern.MatchString(val.text) {
			v.errors.add(field, fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field))
			return false
		}

	case "regex":
		re, err := regexp.Compile(param)
		if err != nil || !re.MatchString(val.text) {
			v.errors.add(field, fmt.Sprintf("The %s format is invalid.", field))
			return false
		}

	case "gt", "gte", "lt", "lte":
		f, ok := v.number(val)
		t, _ := strconv.ParseFloat(param, 64)
		if !ok || !compare(rule, f, t) {
			v.errors.add(field, fmt.Sprintf("The %s must be %s %s.", field, comparisons[rule], param))
			return false
		}
	}

	return true
}

var (
	urlPattern       = regexp.MustCompile(`^https?://`)
	alphaPattern     = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

var comparisons = map[string]string{
	"gt":  "greater than",
	"gte": "greater than or equal to",
	"lt":  "less than",
	"lte": "less than or equal to",
}

func compare(op string, f, t float64) bool {
	switch op {
	case "gt":
		return f > t
	case "gte":
		return f >= t
	case "lt":
		return f < t
	}
	return f <= t
}

func unit(val value) string {
	switch {
	case val.numeric:
		return ""
	case val.items:
		return " items"
	}
	return " characters"
}
