package beans

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDefinition          = errors.New("invalid bean definition")
	ErrDuplicateDefinition = errors.New("duplicate bean definition")
	ErrNoSuchDefinition    = errors.New("no such bean definition")
	ErrCircularDependency  = errors.New("circular dependency")
	ErrConstruction        = errors.New("bean construction failed")
	ErrValidation          = errors.New("bean validation failed")
	ErrNotLoaded           = errors.New("bean refused to load")
)

// DefinitionError reports a malformed or conflicting declaration.
type DefinitionError struct {
	Definition *BeanDefinition
	Msg        string
}

func (e *DefinitionError) Error() string {
	if e.Definition == nil {
		return fmt.Sprintf("%v: %s", ErrDefinition, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s (source: %s)", ErrDefinition, e.Definition, e.Msg, e.Definition.Source)
}

func (e *DefinitionError) Is(target error) bool { return target == ErrDefinition }

// NewDefinitionError builds a DefinitionError with a formatted message.
func NewDefinitionError(def *BeanDefinition, format string, args ...any) error {
	return &DefinitionError{Definition: def, Msg: fmt.Sprintf(format, args...)}
}

// DuplicateDefinitionError is raised when two definitions claim the same
// identity and the override rules cannot pick one.
type DuplicateDefinitionError struct {
	Key      string
	Existing *BeanDefinition
	Incoming *BeanDefinition
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("%v: %s is claimed by %s (source: %s) and %s (source: %s)",
		ErrDuplicateDefinition, e.Key,
		e.Existing, e.Existing.Source, e.Incoming, e.Incoming.Source)
}

func (e *DuplicateDefinitionError) Is(target error) bool {
	return target == ErrDuplicateDefinition || target == ErrDefinition
}

// NoSuchDefinitionError is a lookup miss.
type NoSuchDefinitionError struct {
	Query string
}

func (e *NoSuchDefinitionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNoSuchDefinition, e.Query)
}

func (e *NoSuchDefinitionError) Is(target error) bool { return target == ErrNoSuchDefinition }

// CircularDependencyError carries the construction chain that looped.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCircularDependency, strings.Join(e.Chain, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// ConstructionError wraps a build failure with the definition that caused it.
type ConstructionError struct {
	Definition *BeanDefinition
	Cause      error
}

func (e *ConstructionError) Error() string {
	if e.Definition == nil {
		return fmt.Sprintf("%v: %v", ErrConstruction, e.Cause)
	}
	return fmt.Sprintf("%v: %s (source: %s): %v", ErrConstruction, e.Definition, e.Definition.Source, e.Cause)
}

func (e *ConstructionError) Is(target error) bool { return target == ErrConstruction }

func (e *ConstructionError) Unwrap() error { return e.Cause }

// ValidationError lists the violated field rules of a singleton.
type ValidationError struct {
	Definition *BeanDefinition
	Fields     map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], "; "))
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Definition, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
