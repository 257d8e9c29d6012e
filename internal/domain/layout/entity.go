package layout

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strconv"
)

// Dtype is the value type an entity's captured text is coerced to.
type Dtype int

const (
	// DtypeString keeps the captured text as is.
	DtypeString Dtype = iota
	// DtypeInt parses the captured text as a base-10 integer.
	DtypeInt
)

// String returns the name used for the dtype in specification documents.
func (d Dtype) String() string {
	switch d {
	case DtypeString:
		return "str"
	case DtypeInt:
		return "int"
	default:
		return "unknown"
	}
}

// ParseDtype converts a document dtype name. An empty name means string.
func ParseDtype(s string) (Dtype, error) {
	switch s {
	case "", "str", "string":
		return DtypeString, nil
	case "int":
		return DtypeInt, nil
	default:
		return DtypeString, fmt.Errorf("%w: unsupported dtype %q", ErrInvalidEntity, s)
	}
}

// Entity is a named filename component with a single-group extraction pattern.
type Entity struct {
	name    string
	pattern *regexp.Regexp
	value   *regexp.Regexp // the capture group alone, anchored
	dtype   Dtype
}

// NewEntity compiles pattern and checks that it has exactly one capture group.
func NewEntity(name, pattern string, dtype Dtype) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: entity name cannot be empty", ErrInvalidEntity)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: entity %q: %w", ErrInvalidEntity, name, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("%w: entity %q: pattern must have exactly one capture group, found %d",
			ErrInvalidEntity, name, re.NumSubexp())
	}

	return &Entity{
		name:    name,
		pattern: re,
		value:   captureRegexp(pattern),
		dtype:   dtype,
	}, nil
}

// captureRegexp compiles the body of the pattern's capture group as an
// anchored expression. It returns nil when the body cannot be isolated.
func captureRegexp(pattern string) *regexp.Regexp {
	tree, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil
	}
	group := findCapture(tree)
	if group == nil || len(group.Sub) != 1 {
		return nil
	}
	re, err := regexp.Compile("^(?:" + group.Sub[0].String() + ")$")
	if err != nil {
		return nil
	}
	return re
}

func findCapture(re *syntax.Regexp) *syntax.Regexp {
	if re.Op == syntax.OpCapture {
		return re
	}
	for _, sub := range re.Sub {
		if found := findCapture(sub); found != nil {
			return found
		}
	}
	return nil
}

// Name returns the entity name.
func (e *Entity) Name() string {
	return e.name
}

// Pattern returns the source of the extraction pattern.
func (e *Entity) Pattern() string {
	return e.pattern.String()
}

// Accepts reports whether text is a value the entity's capture group could
// produce on its own.
func (e *Entity) Accepts(text string) bool {
	return e.value == nil || e.value.MatchString(text)
}

// Dtype returns the entity's value type.
func (e *Entity) Dtype() Dtype {
	return e.dtype
}

// Extract searches text for the entity (a search, not a full match) and
// returns the coerced capture. ok is false when the pattern does not occur.
func (e *Entity) Extract(text string) (value any, ok bool, err error) {
	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false, nil
	}

	value, err = e.Coerce(m[1])
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Coerce converts raw text to the entity's dtype.
func (e *Entity) Coerce(raw string) (any, error) {
	if e.dtype != DtypeInt {
		return raw, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &MalformedValueError{Entity: e.name, Value: raw, Dtype: e.dtype}
	}
	return n, nil
}
