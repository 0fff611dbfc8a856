package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Convert parses raw into a value of typ. Supported kinds are string, bool,
// the integer and float kinds, time.Duration and slices of those (comma
// separated).
func Convert(raw string, typ reflect.Type) (any, error) {
	v, err := convertValue(raw, typ)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ConvertList converts each element of raw into typ's element type. typ must
// be a slice type.
func ConvertList(raw []string, typ reflect.Type) (any, error) {
	if typ.Kind() != reflect.Slice {
		return nil, fmt.Errorf("cannot convert list to %v", typ)
	}
	out := reflect.MakeSlice(typ, 0, len(raw))
	for _, s := range raw {
		ev, err := convertValue(s, typ.Elem())
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, ev)
	}
	return out.Interface(), nil
}

func convertValue(raw string, typ reflect.Type) (reflect.Value, error) {
	if typ == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}

	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		out.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetFloat(f)
	case reflect.Slice:
		list, err := ConvertList(SplitList(raw), typ)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(list), nil
	case reflect.Interface:
		if !reflect.TypeOf(raw).AssignableTo(typ) {
			return reflect.Value{}, fmt.Errorf("cannot convert string to %v", typ)
		}
		out.Set(reflect.ValueOf(raw))
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert string to %v", typ)
	}
	return out, nil
}

// Convertible reports whether Convert supports typ.
func Convertible(typ reflect.Type) bool {
	if typ == durationType {
		return true
	}
	switch typ.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return Convertible(typ.Elem())
	}
	return false
}
