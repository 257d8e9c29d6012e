package layout

import (
	"fmt"
	"sort"
	"strconv"
)

// Entities maps entity names to values. Values are strings, or ints for
// entities registered with DtypeInt.
type Entities map[string]any

// Bound reports whether name has a non-empty value.
func (e Entities) Bound(name string) bool {
	v, ok := e[name]
	if !ok || v == nil {
		return false
	}
	return FormatValue(v) != ""
}

// BoundNames returns the sorted names of all bound entities.
func (e Entities) BoundNames() []string {
	names := make([]string, 0, len(e))
	for k := range e {
		if e.Bound(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy.
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge returns a copy of e with every key of over written on top.
func (e Entities) Merge(over Entities) Entities {
	out := e.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// FormatValue renders an entity value the way it appears in a path.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func isIntType(v any) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

// valuesEqual compares two entity values. When either side is an integer the
// comparison is numeric, so run 1 equals "01"; otherwise values compare as
// rendered strings.
func valuesEqual(a, b any) bool {
	if isIntType(a) || isIntType(b) {
		x, okA := asInt(a)
		y, okB := asInt(b)
		if okA && okB {
			return x == y
		}
	}
	return FormatValue(a) == FormatValue(b)
}

// CommonEntities extracts entities from every path and merges them. A key
// with a single distinct value maps to that value; a key with several
// distinct values maps to a sorted []any.
func CommonEntities(r *Registry, paths ...string) (Entities, error) {
	collected := make(map[string][]any)
	for _, p := range paths {
		ents, err := r.ExtractAll(p)
		if err != nil {
			return nil, fmt.Errorf("extract entities from %s: %w", p, err)
		}
		for k, v := range ents {
			if !containsValue(collected[k], v) {
				collected[k] = append(collected[k], v)
			}
		}
	}

	out := make(Entities, len(collected))
	for k, vals := range collected {
		if len(vals) == 1 {
			out[k] = vals[0]
			continue
		}
		sortValues(vals)
		out[k] = vals
	}
	return out, nil
}

func containsValue(vals []any, v any) bool {
	for _, existing := range vals {
		if valuesEqual(existing, v) {
			return true
		}
	}
	return false
}

func sortValues(vals []any) {
	sort.SliceStable(vals, func(i, j int) bool {
		x, okX := asInt(vals[i])
		y, okY := asInt(vals[j])
		if okX && okY && isIntType(vals[i]) && isIntType(vals[j]) {
			return x < y
		}
		return FormatValue(vals[i]) < FormatValue(vals[j])
	})
}
