package sqlite

import (
	"strconv"
	"strings"

	"github.com/zjrosen/smripost/internal/domain/layout"
)

// QueryBuilder converts a layout.Query into a SQL condition over the files
// table (aliased f). The condition accepts exactly the files whose stored
// entities satisfy layout.Query.Matches.
type QueryBuilder struct {
	query  layout.Query
	params []any
}

// NewQueryBuilder creates a builder for the query.
func NewQueryBuilder(q layout.Query) *QueryBuilder {
	return &QueryBuilder{query: q}
}

// Build returns the WHERE condition and its parameters. A query without
// constraints yields "1".
func (b *QueryBuilder) Build() (where string, params []any) {
	fields := b.query.Fields()
	if len(fields) == 0 {
		return "1", nil
	}

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		c, _ := b.query.Constraint(field)
		parts = append(parts, b.buildConstraint(field, c))
	}
	return strings.Join(parts, " AND "), b.params
}

func (b *QueryBuilder) buildConstraint(field string, c layout.Constraint) string {
	switch c.Kind() {
	case layout.Absent:
		return b.absent(field)

	case layout.Equal:
		cond, args := equalCond(c.Value())
		return b.exists(field, cond, args)

	case layout.OneOf:
		var alts []string
		if values := c.Values(); len(values) > 0 {
			conds := make([]string, 0, len(values))
			var args []any
			for _, v := range values {
				cond, a := equalCond(v)
				conds = append(conds, cond)
				args = append(args, a...)
			}
			alts = append(alts, b.exists(field, strings.Join(conds, " OR "), args))
		}
		if c.AllowsAbsent() {
			alts = append(alts, b.absent(field))
		}
		if len(alts) == 0 {
			// [] matches nothing.
			return "0"
		}
		return "(" + strings.Join(alts, " OR ") + ")"
	}

	return "0"
}

func (b *QueryBuilder) absent(field string) string {
	b.params = append(b.params, field)
	return "NOT EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ?)"
}

func (b *QueryBuilder) exists(field, cond string, args []any) string {
	b.params = append(b.params, field)
	b.params = append(b.params, args...)
	return "EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ? AND (" + cond + "))"
}

// equalCond mirrors the value comparison of layout.Constraint: integers
// compare numerically, everything else as rendered text.
func equalCond(v any) (string, []any) {
	switch x := v.(type) {
	case int:
		return "e.int_value = ?", []any{int64(x)}
	case int64:
		return "e.int_value = ?", []any{x}
	}

	s := layout.FormatValue(v)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return "(e.value = ? OR (e.is_int = 1 AND e.int_value = ?))", []any{s, n}
	}
	return "e.value = ?", []any{s}
}
