package layout

import (
	"fmt"
	"sort"
	"strings"
)

// Query namespaces.
const (
	NamespaceDerivatives = "derivatives"
	NamespaceTransforms  = "transforms"
)

// ConstraintKind distinguishes the three constraint forms.
type ConstraintKind int

const (
	// Absent requires the field to be missing.
	Absent ConstraintKind = iota
	// Equal requires the field to equal a literal.
	Equal
	// OneOf requires the field to equal one of several alternatives.
	OneOf
)

func (k ConstraintKind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Equal:
		return "equal"
	case OneOf:
		return "one_of"
	default:
		return "unknown"
	}
}

// Constraint restricts one field of a candidate file.
type Constraint struct {
	kind        ConstraintKind
	value       any
	values      []any
	allowAbsent bool
}

// MustBeAbsent returns a constraint satisfied only by a missing field.
func MustBeAbsent() Constraint {
	return Constraint{kind: Absent}
}

// EqualTo returns a constraint satisfied by a field equal to v.
func EqualTo(v any) Constraint {
	return Constraint{kind: Equal, value: v}
}

// OneOfValues returns a constraint satisfied by a field equal to any of
// values, or by a missing field when allowAbsent is set. An empty values
// list with allowAbsent unset matches nothing.
func OneOfValues(values []any, allowAbsent bool) Constraint {
	cp := make([]any, len(values))
	copy(cp, values)
	return Constraint{kind: OneOf, values: cp, allowAbsent: allowAbsent}
}

// Kind returns the constraint form.
func (c Constraint) Kind() ConstraintKind { return c.kind }

// Value returns the literal of an Equal constraint.
func (c Constraint) Value() any { return c.value }

// Values returns the alternatives of a OneOf constraint.
func (c Constraint) Values() []any { return c.values }

// AllowsAbsent reports whether a missing field satisfies the constraint.
func (c Constraint) AllowsAbsent() bool {
	return c.kind == Absent || (c.kind == OneOf && c.allowAbsent)
}

// Satisfied reports whether a field with value v (present=false when the
// field is missing) satisfies the constraint.
func (c Constraint) Satisfied(v any, present bool) bool {
	if !present {
		return c.AllowsAbsent()
	}
	switch c.kind {
	case Equal:
		return valuesEqual(c.value, v)
	case OneOf:
		for _, alt := range c.values {
			if valuesEqual(alt, v) {
				return true
			}
		}
	}
	return false
}

func (c Constraint) String() string {
	switch c.kind {
	case Absent:
		return "null"
	case Equal:
		return FormatValue(c.value)
	default:
		parts := make([]string, 0, len(c.values)+1)
		for _, v := range c.values {
			parts = append(parts, FormatValue(v))
		}
		if c.allowAbsent {
			parts = append(parts, "null")
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

// Query is a named set of field constraints. Fields without a constraint
// are wildcards.
type Query struct {
	namespace   string
	name        string
	constraints map[string]Constraint
}

// NewQuery builds a query. The constraints map is copied.
func NewQuery(namespace, name string, constraints map[string]Constraint) Query {
	cp := make(map[string]Constraint, len(constraints))
	for k, v := range constraints {
		cp[k] = v
	}
	return Query{namespace: namespace, name: name, constraints: cp}
}

// Namespace returns the query namespace.
func (q Query) Namespace() string { return q.namespace }

// Name returns the query name.
func (q Query) Name() string { return q.name }

// Fields returns the constrained field names in sorted order.
func (q Query) Fields() []string {
	fields := make([]string, 0, len(q.constraints))
	for k := range q.constraints {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Constraint returns the constraint on field, if any.
func (q Query) Constraint(field string) (Constraint, bool) {
	c, ok := q.constraints[field]
	return c, ok
}

// With returns a copy of q with field constrained by c.
func (q Query) With(field string, c Constraint) Query {
	cp := NewQuery(q.namespace, q.name, q.constraints)
	cp.constraints[field] = c
	return cp
}

// Underlay returns a copy of q in which each bound entity of base becomes an
// Equal constraint, unless q already constrains that field.
func (q Query) Underlay(base Entities) Query {
	cp := NewQuery(q.namespace, q.name, q.constraints)
	for k, v := range base {
		if _, exists := cp.constraints[k]; exists {
			continue
		}
		if !base.Bound(k) {
			continue
		}
		cp.constraints[k] = EqualTo(v)
	}
	return cp
}

// Matches reports whether candidate satisfies every constraint.
func (q Query) Matches(candidate Entities) bool {
	for field, c := range q.constraints {
		v, ok := candidate[field]
		present := ok && candidate.Bound(field)
		if !c.Satisfied(v, present) {
			return false
		}
	}
	return true
}

// Catalog holds queries grouped by namespace.
type Catalog struct {
	queries map[string]map[string]Query
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{queries: make(map[string]map[string]Query)}
}

// Add registers a query. Namespace/name pairs are unique.
func (c *Catalog) Add(q Query) error {
	if q.namespace == "" || q.name == "" {
		return fmt.Errorf("%w: namespace and name are required", ErrInvalidQuery)
	}
	ns, ok := c.queries[q.namespace]
	if !ok {
		ns = make(map[string]Query)
		c.queries[q.namespace] = ns
	}
	if _, exists := ns[q.name]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateQuery, q.namespace, q.name)
	}
	ns[q.name] = q
	return nil
}

// Resolve returns the query registered under namespace and name.
func (c *Catalog) Resolve(namespace, name string) (Query, error) {
	ns, ok := c.queries[namespace]
	if !ok {
		return Query{}, &UnknownQueryError{Namespace: namespace, Name: name}
	}
	q, ok := ns[name]
	if !ok {
		return Query{}, &UnknownQueryError{Namespace: namespace, Name: name}
	}
	return q, nil
}

// Matches reports whether candidate satisfies q.
func (c *Catalog) Matches(q Query, candidate Entities) bool {
	return q.Matches(candidate)
}

// Namespaces returns the namespaces holding at least one query, sorted.
func (c *Catalog) Namespaces() []string {
	out := make([]string, 0, len(c.queries))
	for ns := range c.queries {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Names returns the query names in namespace, sorted.
func (c *Catalog) Names(namespace string) []string {
	ns := c.queries[namespace]
	out := make([]string, 0, len(ns))
	for name := range ns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Queries returns the queries in namespace, sorted by name.
func (c *Catalog) Queries(namespace string) []Query {
	names := c.Names(namespace)
	out := make([]Query, len(names))
	for i, name := range names {
		out[i] = c.queries[namespace][name]
	}
	return out
}
