package beans

import "reflect"

// ArgumentDefinition binds a value to a constructor, factory or method
// parameter. Index < 0 means "next position".
type ArgumentDefinition struct {
	Index int
	Type  reflect.Type
	Value *ValueDefinition
}

// Arg binds value to the next positional parameter.
func Arg(value *ValueDefinition) *ArgumentDefinition {
	return &ArgumentDefinition{Index: -1, Value: value}
}

// ArgAt binds value to parameter i.
func ArgAt(i int, value *ValueDefinition) *ArgumentDefinition {
	return &ArgumentDefinition{Index: i, Value: value}
}

// PropertyDefinition assigns a value to a struct field, or to a SetXxx
// method when no such field exists.
type PropertyDefinition struct {
	Name  string
	Value *ValueDefinition
}

// InvokeDefinition is a method call executed once after injection.
type InvokeDefinition struct {
	Method string
	Args   []*ArgumentDefinition
}

// Positions maps explicit arguments onto parameter indexes.
func Positions(args []*ArgumentDefinition) map[int]*ArgumentDefinition {
	out := make(map[int]*ArgumentDefinition, len(args))
	next := 0
	for _, a := range args {
		i := a.Index
		if i < 0 {
			i = next
		}
		out[i] = a
		next = i + 1
	}
	return out
}
