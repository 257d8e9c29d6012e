package sqlite

import (
	"strconv"
	"time"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/index/domain"
)

// RunModel represents a row of the index_runs table.
// Times are stored as Unix milliseconds.
type RunModel struct {
	ID             string
	Dataset        string
	DatasetType    string
	StartedAt      int64
	FinishedAt     int64
	FileCount      int
	UnmatchedCount int
}

func toRunModel(r domain.Run) *RunModel {
	return &RunModel{
		ID:             r.ID,
		Dataset:        r.Dataset,
		DatasetType:    r.DatasetType,
		StartedAt:      r.StartedAt.UnixMilli(),
		FinishedAt:     r.FinishedAt.UnixMilli(),
		FileCount:      r.FileCount,
		UnmatchedCount: r.UnmatchedCount,
	}
}

func (m *RunModel) toDomain() *domain.Run {
	return &domain.Run{
		ID:             m.ID,
		Dataset:        m.Dataset,
		DatasetType:    m.DatasetType,
		StartedAt:      time.UnixMilli(m.StartedAt),
		FinishedAt:     time.UnixMilli(m.FinishedAt),
		FileCount:      m.FileCount,
		UnmatchedCount: m.UnmatchedCount,
	}
}

// EntityModel represents a row of the file_entities table.
type EntityModel struct {
	Name     string
	Value    string
	IntValue *int64 // nullable, set when Value reads as an integer
	IsInt    bool
}

// toEntityModels flattens the bound entities of a file. Unbound values are
// not stored so that a missing row means "absent".
func toEntityModels(ents layout.Entities) []EntityModel {
	names := ents.BoundNames()
	out := make([]EntityModel, 0, len(names))
	for _, name := range names {
		v := ents[name]
		m := EntityModel{Name: name, Value: layout.FormatValue(v)}
		if n, err := strconv.ParseInt(m.Value, 10, 64); err == nil {
			m.IntValue = &n
		}
		switch v.(type) {
		case int, int64:
			m.IsInt = true
		}
		out = append(out, m)
	}
	return out
}

// value returns the entity value as the pattern engine produced it.
func (m EntityModel) value() any {
	if m.IsInt && m.IntValue != nil {
		return int(*m.IntValue)
	}
	return m.Value
}
