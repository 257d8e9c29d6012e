// Package iospec loads specification documents: the entity definitions,
// named queries and default path patterns that drive path resolution.
package iospec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/smripost/internal/domain/layout"
	"github.com/zjrosen/smripost/internal/log"
)

// ErrInvalidDocument is returned when a document is structurally wrong.
var ErrInvalidDocument = errors.New("invalid specification document")

// EntityDef is one element of the "entities" array.
type EntityDef struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Dtype   string `yaml:"dtype,omitempty"`
}

// Document is the decoded form of a specification document. JSON documents
// are decoded with the YAML decoder, which accepts them as is.
//
// Query constraints stay as yaml.Node so that an explicit null can be told
// apart from a missing key.
type Document struct {
	Entities            []EntityDef                                `yaml:"entities"`
	Queries             map[string]map[string]map[string]yaml.Node `yaml:"queries"`
	DefaultPathPatterns []string                                   `yaml:"default_path_patterns"`
}

// Spec is a loaded, immutable specification.
type Spec struct {
	Registry *layout.Registry
	Catalog  *layout.Catalog
	Patterns *layout.Patterns
}

// Parse decodes and builds a specification from JSON or YAML bytes.
func Parse(data []byte) (*Spec, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc.Build()
}

// LoadFile reads a specification document from disk.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config or --spec
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	log.Info(log.CatSpec, "Loaded specification", "path", path,
		"entities", spec.Registry.Len(), "patterns", spec.Patterns.Len())
	return spec, nil
}

// LoadFS reads a specification document from fsys.
func LoadFS(fsys fs.FS, name string) (*Spec, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return spec, nil
}

// Build validates the document and compiles it.
func (d *Document) Build() (*Spec, error) {
	reg := layout.NewRegistry()
	for i, def := range d.Entities {
		dtype, err := layout.ParseDtype(def.Dtype)
		if err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
		e, err := layout.NewEntity(def.Name, def.Pattern, dtype)
		if err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
		if err := reg.Register(e); err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
	}

	catalog := layout.NewCatalog()
	for ns, queries := range d.Queries {
		for name, fields := range queries {
			constraints := make(map[string]layout.Constraint, len(fields))
			for field, node := range fields {
				c, err := constraintFromNode(&node)
				if err != nil {
					return nil, fmt.Errorf("queries.%s.%s.%s: %w", ns, name, field, err)
				}
				constraints[field] = c
			}
			if err := catalog.Add(layout.NewQuery(ns, name, constraints)); err != nil {
				return nil, fmt.Errorf("queries.%s.%s: %w", ns, name, err)
			}
		}
	}

	if len(d.DefaultPathPatterns) == 0 {
		return nil, fmt.Errorf("%w: default_path_patterns is empty", ErrInvalidDocument)
	}
	patterns, err := layout.NewPatterns(reg, d.DefaultPathPatterns...)
	if err != nil {
		return nil, fmt.Errorf("default_path_patterns: %w", err)
	}

	log.Debug(log.CatSpec, "Built specification",
		"entities", reg.Len(), "namespaces", len(catalog.Namespaces()), "patterns", patterns.Len())

	return &Spec{Registry: reg, Catalog: catalog, Patterns: patterns}, nil
}

// constraintFromNode maps null to Absent, a scalar to Equal and a sequence
// to OneOf (a null element allows absence).
func constraintFromNode(n *yaml.Node) (layout.Constraint, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return layout.MustBeAbsent(), nil
		}
		return layout.EqualTo(scalarValue(n)), nil
	case yaml.SequenceNode:
		values := make([]any, 0, len(n.Content))
		allowAbsent := false
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return layout.Constraint{}, fmt.Errorf("%w: list elements must be scalars (line %d)", ErrInvalidDocument, item.Line)
			}
			if item.Tag == "!!null" {
				allowAbsent = true
				continue
			}
			values = append(values, scalarValue(item))
		}
		return layout.OneOfValues(values, allowAbsent), nil
	default:
		return layout.Constraint{}, fmt.Errorf("%w: constraint must be null, a scalar or a list (line %d)", ErrInvalidDocument, n.Line)
	}
}

func scalarValue(n *yaml.Node) any {
	if n.Tag == "!!int" {
		if v, err := strconv.Atoi(n.Value); err == nil {
			return v
		}
	}
	return n.Value
}
