package layout

import (
	"regexp"
	"sort"
	"strings"
)

// Value classes used when a placeholder has no choice list.
const (
	labelClass     = `[a-zA-Z0-9+]+`
	intClass       = `[0-9]+`
	extensionClass = `\.[a-zA-Z0-9.]+`
)

// Pattern is a compiled path template.
type Pattern struct {
	template string
	segments []segment
	re       *regexp.Regexp
	groups   []string // placeholder name of each capture group
	names    []string // distinct placeholder names, first appearance order
	classes  map[string]*regexp.Regexp
	registry *Registry
}

// CompilePattern parses template and builds its matching regex. reg supplies
// entity dtypes and may be nil, in which case every value is a string.
func CompilePattern(template string, reg *Registry) (*Pattern, error) {
	segs, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		template: template,
		segments: segs,
		classes:  make(map[string]*regexp.Regexp),
		registry: reg,
	}

	var b strings.Builder
	b.WriteString("^")
	p.writeRegex(&b, segs)
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &PatternSyntaxError{Template: template, Msg: err.Error()}
	}
	p.re = re
	return p, nil
}

func (p *Pattern) writeRegex(b *strings.Builder, segs []segment) {
	for _, s := range segs {
		switch s := s.(type) {
		case literal:
			b.WriteString(regexp.QuoteMeta(s.text))
		case placeholder:
			p.groups = append(p.groups, s.name)
			if _, seen := p.classes[s.name]; !seen {
				p.names = append(p.names, s.name)
				p.classes[s.name] = regexp.MustCompile("^(?:" + p.valueClass(s.name) + ")$")
			}
			b.WriteString("(")
			if len(s.choices) > 0 {
				b.WriteString(alternation(s.choices))
			} else {
				b.WriteString(p.valueClass(s.name))
			}
			b.WriteString(")")
		case optional:
			b.WriteString("(?:")
			p.writeRegex(b, s.children)
			b.WriteString(")?")
		}
	}
}

func (p *Pattern) valueClass(name string) string {
	if name == "extension" {
		return extensionClass
	}
	if p.registry != nil {
		if e, ok := p.registry.Lookup(name); ok && e.Dtype() == DtypeInt {
			return intClass
		}
	}
	return labelClass
}

// alternation quotes choices and orders them longest first so that ".nii.gz"
// is tried before ".nii".
func alternation(choices []string) string {
	sorted := make([]string, len(choices))
	copy(sorted, choices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	for i, c := range sorted {
		sorted[i] = regexp.QuoteMeta(c)
	}
	return strings.Join(sorted, "|")
}

// Template returns the source template.
func (p *Pattern) Template() string {
	return p.template
}

// String implements fmt.Stringer.
func (p *Pattern) String() string {
	return p.template
}

// Names returns the distinct placeholder names in order of first appearance.
func (p *Pattern) Names() []string {
	return p.names
}

// Has reports whether the template has a placeholder called name.
func (p *Pattern) Has(name string) bool {
	_, ok := p.classes[name]
	return ok
}

// Required returns the names of placeholders outside every optional group
// that have no default.
func (p *Pattern) Required() []string {
	var out []string
	for _, s := range p.segments {
		if ph, ok := s.(placeholder); ok && !ph.hasDefault && !containsString(out, ph.name) {
			out = append(out, ph.name)
		}
	}
	return out
}

type renderState int

const (
	rendered renderState = iota
	unbound
	invalid
)

// Render fills the template from values. ok is false when a required
// placeholder is unbound or a bound value is not acceptable to its
// placeholder.
func (p *Pattern) Render(values Entities) (string, bool) {
	var b strings.Builder
	if p.render(&b, p.segments, values, false) != rendered {
		return "", false
	}
	return b.String(), true
}

// render writes segs to b. Inside an optional group defaults are ignored:
// the group renders only when each of its own placeholders is bound.
func (p *Pattern) render(b *strings.Builder, segs []segment, values Entities, inOptional bool) renderState {
	state := rendered
	for _, s := range segs {
		switch s := s.(type) {
		case literal:
			b.WriteString(s.text)
		case placeholder:
			if values.Bound(s.name) {
				v := FormatValue(values[s.name])
				if !p.accepts(s, v) {
					return invalid
				}
				b.WriteString(v)
				continue
			}
			if !inOptional && s.hasDefault {
				b.WriteString(s.def)
				continue
			}
			state = unbound
		case optional:
			var inner strings.Builder
			switch p.render(&inner, s.children, values, true) {
			case rendered:
				b.WriteString(inner.String())
			case invalid:
				return invalid
			}
		}
	}
	return state
}

func (p *Pattern) accepts(ph placeholder, v string) bool {
	if len(ph.choices) > 0 {
		return containsString(ph.choices, v)
	}
	return p.classes[ph.name].MatchString(v) && p.entityAccepts(ph.name, v)
}

// entityAccepts applies the registered entity's own value pattern, which
// may be narrower than the placeholder's generic class.
func (p *Pattern) entityAccepts(name, v string) bool {
	if p.registry == nil {
		return true
	}
	e, ok := p.registry.Lookup(name)
	return !ok || e.Accepts(v)
}

// Parse matches path against the whole template. Backslashes are treated as
// path separators.
func (p *Pattern) Parse(path string) (Entities, bool) {
	path = strings.ReplaceAll(path, `\`, "/")
	idx := p.re.FindStringSubmatchIndex(path)
	if idx == nil {
		return nil, false
	}

	out := make(Entities)
	raw := make(map[string]string, len(p.groups))
	for i, name := range p.groups {
		start, end := idx[2*(i+1)], idx[2*(i+1)+1]
		if start < 0 {
			continue
		}
		text := path[start:end]
		if prev, seen := raw[name]; seen {
			if prev != text {
				return nil, false
			}
			continue
		}
		raw[name] = text
		if !p.entityAccepts(name, text) {
			return nil, false
		}

		v, err := p.registry.Coerce(name, text)
		if err != nil {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}

// GenerateOption configures Patterns.Generate.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	strict bool
}

// Strict requires every bound entity to appear in the chosen pattern.
func Strict() GenerateOption {
	return func(o *generateOptions) {
		o.strict = true
	}
}

// Patterns is an ordered list of compiled templates.
type Patterns struct {
	patterns []*Pattern
}

// NewPatterns compiles templates in order.
func NewPatterns(reg *Registry, templates ...string) (*Patterns, error) {
	ps := &Patterns{patterns: make([]*Pattern, 0, len(templates))}
	for _, t := range templates {
		p, err := CompilePattern(t, reg)
		if err != nil {
			return nil, err
		}
		ps.patterns = append(ps.patterns, p)
	}
	return ps, nil
}

// List returns the patterns in declared order.
func (ps *Patterns) List() []*Pattern {
	return ps.patterns
}

// Len returns the number of patterns.
func (ps *Patterns) Len() int {
	return len(ps.patterns)
}

// Generate renders the first pattern satisfiable by values.
func (ps *Patterns) Generate(values Entities, opts ...GenerateOption) (string, error) {
	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	bound := values.BoundNames()
	for _, p := range ps.patterns {
		if o.strict && !coversAll(p, bound) {
			continue
		}
		if path, ok := p.Render(values); ok {
			return path, nil
		}
	}
	return "", &NoMatchingPatternError{Bound: bound}
}

func coversAll(p *Pattern, names []string) bool {
	for _, n := range names {
		if !p.Has(n) {
			return false
		}
	}
	return true
}

// Parse returns the entities of the first pattern that fully matches path.
func (ps *Patterns) Parse(path string) (Entities, bool) {
	ents, _, ok := ps.Match(path)
	return ents, ok
}

// Match is Parse that also returns the matching pattern.
func (ps *Patterns) Match(path string) (Entities, *Pattern, bool) {
	for _, p := range ps.patterns {
		if ents, ok := p.Parse(path); ok {
			return ents, p, true
		}
	}
	return nil, nil, false
}
