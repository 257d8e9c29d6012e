package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/zjrosen/smripost/internal/domain/layout"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Table is a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabular values can be rendered as a table.
type Tabular interface {
	Table() Table
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"})
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#4B5563"})
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a formatter writing format ("json" or "table").
// An empty format means json.
func NewFormatter(writer io.Writer, format string) *Formatter {
	if format == "" {
		format = FormatJSON
	}
	return &Formatter{
		writer: writer,
		format: format,
	}
}

// Format writes v in the formatter's format.
func (f *Formatter) Format(v Tabular) error {
	switch f.format {
	case FormatJSON:
		return f.JSON(v)
	case FormatTable:
		return f.Table(v.Table())
	default:
		return fmt.Errorf("unknown output format %q", f.format)
	}
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Table writes t with a rounded border.
func (f *Formatter) Table(t Table) error {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(f.writer, tbl.Render())
	return err
}

func keyValues(kv ...string) Table {
	t := Table{Headers: []string{"Field", "Value"}}
	for i := 0; i+1 < len(kv); i += 2 {
		t.Rows = append(t.Rows, []string{kv[i], kv[i+1]})
	}
	return t
}

func sortedKeys(e layout.Entities) []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatAny(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = layout.FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return layout.FormatValue(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
