package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Layout errors. The typed errors below unwrap to these sentinels so callers
// can use errors.Is without caring about the details.
var (
	ErrInvalidEntity     = errors.New("invalid entity definition")
	ErrDuplicateEntity   = errors.New("duplicate entity")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrMalformedValue    = errors.New("malformed entity value")
	ErrInvalidQuery      = errors.New("invalid query definition")
	ErrDuplicateQuery    = errors.New("duplicate query")
	ErrUnknownQuery      = errors.New("unknown query")
	ErrPatternSyntax     = errors.New("invalid path pattern")
	ErrNoMatchingPattern = errors.New("no matching path pattern")
)

// DuplicateEntityError is returned when an entity name is registered twice.
type DuplicateEntityError struct {
	Name string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %q is already registered", e.Name)
}

func (e *DuplicateEntityError) Unwrap() error { return ErrDuplicateEntity }

// UnknownEntityError is returned when an entity name is not registered.
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("entity %q is not registered", e.Name)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }

// MalformedValueError is returned when a captured value cannot be coerced
// to the entity's dtype.
type MalformedValueError struct {
	Entity string
	Value  string
	Dtype  Dtype
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("entity %q: value %q is not a valid %s", e.Entity, e.Value, e.Dtype)
}

func (e *MalformedValueError) Unwrap() error { return ErrMalformedValue }

// UnknownQueryError is returned when a namespace/name pair is not in the catalog.
type UnknownQueryError struct {
	Namespace string
	Name      string
}

func (e *UnknownQueryError) Error() string {
	return fmt.Sprintf("query %s/%s not found", e.Namespace, e.Name)
}

func (e *UnknownQueryError) Unwrap() error { return ErrUnknownQuery }

// PatternSyntaxError reports a malformed path template.
type PatternSyntaxError struct {
	Template string
	Pos      int
	Msg      string
}

func (e *PatternSyntaxError) Error() string {
	return fmt.Sprintf("pattern %q: %s at offset %d", e.Template, e.Msg, e.Pos)
}

func (e *PatternSyntaxError) Unwrap() error { return ErrPatternSyntax }

// NoMatchingPatternError is returned by Generate when no pattern can be
// rendered from the bound entities.
type NoMatchingPatternError struct {
	Bound []string // sorted names of the bound entities
}

func (e *NoMatchingPatternError) Error() string {
	if len(e.Bound) == 0 {
		return "no path pattern can be generated without bound entities"
	}
	return fmt.Sprintf("no path pattern satisfied by entities [%s]", strings.Join(e.Bound, ", "))
}

func (e *NoMatchingPatternError) Unwrap() error { return ErrNoMatchingPattern }
