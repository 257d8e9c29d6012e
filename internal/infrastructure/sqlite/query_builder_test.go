package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/smripost/internal/domain/layout"
)

func TestQueryBuilder_Build(t *testing.T) {
	tests := []struct {
		name       string
		c          layout.Constraint
		wantWhere  string
		wantParams []any
	}{
		{
			name:       "absent",
			c:          layout.MustBeAbsent(),
			wantWhere:  "NOT EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ?)",
			wantParams: []any{"desc"},
		},
		{
			name:       "equal text",
			c:          layout.EqualTo("preproc"),
			wantWhere:  "EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ? AND (e.value = ?))",
			wantParams: []any{"desc", "preproc"},
		},
		{
			name:       "equal numeric text",
			c:          layout.EqualTo("01"),
			wantWhere:  "EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ? AND ((e.value = ? OR (e.is_int = 1 AND e.int_value = ?))))",
			wantParams: []any{"desc", "01", int64(1)},
		},
		{
			name:       "equal int",
			c:          layout.EqualTo(3),
			wantWhere:  "EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ? AND (e.int_value = ?))",
			wantParams: []any{"desc", int64(3)},
		},
		{
			name: "one of with absent",
			c:    layout.OneOfValues([]any{"a", "b"}, true),
			wantWhere: "(EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ? AND (e.value = ? OR e.value = ?))" +
				" OR NOT EXISTS (SELECT 1 FROM file_entities e WHERE e.file_id = f.id AND e.name = ?))",
			wantParams: []any{"desc", "a", "b", "desc"},
		},
		{
			name:      "empty one of",
			c:         layout.OneOfValues(nil, false),
			wantWhere: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := layout.NewQuery(layout.NamespaceDerivatives, "q", map[string]layout.Constraint{"desc": tt.c})
			where, params := NewQueryBuilder(q).Build()
			require.Equal(t, tt.wantWhere, where)
			require.Equal(t, tt.wantParams, params)
		})
	}
}

func TestQueryBuilder_NoConstraints(t *testing.T) {
	where, params := NewQueryBuilder(layout.NewQuery(layout.NamespaceDerivatives, "q", nil)).Build()

	require.Equal(t, "1", where)
	require.Empty(t, params)
}

func TestQueryBuilder_FieldsJoinedInOrder(t *testing.T) {
	q := layout.NewQuery(layout.NamespaceDerivatives, "q", map[string]layout.Constraint{
		"suffix": layout.EqualTo("T1w"),
		"desc":   layout.MustBeAbsent(),
	})

	where, params := NewQueryBuilder(q).Build()

	require.Contains(t, where, ") AND EXISTS")
	require.Equal(t, []any{"desc", "suffix", "T1w"}, params)
}
