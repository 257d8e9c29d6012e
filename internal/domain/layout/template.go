package layout

import (
	"regexp"
	"strings"
)

// segment is one node of a compiled path template.
type segment interface {
	isSegment()
}

// literal is fixed text.
type literal struct {
	text string
}

// placeholder is "{name}", "{name<a|b>}", "{name<a|b>|default}" or "{name|default}".
type placeholder struct {
	name       string
	choices    []string
	def        string
	hasDefault bool
}

// optional is "[...]".
type optional struct {
	children []segment
}

func (literal) isSegment()     {}
func (placeholder) isSegment() {}
func (optional) isSegment()    {}

var placeholderNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type templateParser struct {
	src string
	pos int
}

// parseTemplate turns a template string into its segment tree.
func parseTemplate(src string) ([]segment, error) {
	p := &templateParser{src: src}
	segs, err := p.parseSequence(0)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, p.fail("empty template")
	}
	return segs, nil
}

func (p *templateParser) fail(msg string) error {
	return &PatternSyntaxError{Template: p.src, Pos: p.pos, Msg: msg}
}

// parseSequence reads segments until end of input or, at depth > 0, the
// closing bracket of the enclosing optional group.
func (p *templateParser) parseSequence(depth int) ([]segment, error) {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, literal{text: lit.String()})
			lit.Reset()
		}
	}

	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		switch ch {
		case '{':
			flush()
			ph, err := p.parsePlaceholder()
			if err != nil {
				return nil, err
			}
			segs = append(segs, ph)
		case '[':
			flush()
			start := p.pos
			p.pos++
			children, err := p.parseSequence(depth + 1)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ']' {
				p.pos = start
				return nil, p.fail("unterminated optional group")
			}
			p.pos++
			if len(children) == 0 {
				p.pos = start
				return nil, p.fail("empty optional group")
			}
			segs = append(segs, optional{children: children})
		case ']':
			if depth == 0 {
				return nil, p.fail("unbalanced ']'")
			}
			flush()
			return segs, nil
		case '}':
			return nil, p.fail("unbalanced '}'")
		default:
			lit.WriteByte(ch)
			p.pos++
		}
	}

	flush()
	return segs, nil
}

func (p *templateParser) parsePlaceholder() (placeholder, error) {
	start := p.pos
	end := strings.IndexByte(p.src[start:], '}')
	if end < 0 {
		return placeholder{}, p.fail("unterminated placeholder")
	}
	body := p.src[start+1 : start+end]
	p.pos = start + end + 1

	var ph placeholder
	rest := body

	if i := strings.IndexAny(rest, "<|"); i >= 0 {
		ph.name = rest[:i]
		rest = rest[i:]
	} else {
		ph.name = rest
		rest = ""
	}

	if !placeholderNameRe.MatchString(ph.name) {
		p.pos = start
		return placeholder{}, p.fail("invalid placeholder name " + quote(ph.name))
	}

	if strings.HasPrefix(rest, "<") {
		closeIdx := strings.IndexByte(rest, '>')
		if closeIdx < 0 {
			p.pos = start
			return placeholder{}, p.fail("unterminated choice list in " + quote(ph.name))
		}
		for _, choice := range strings.Split(rest[1:closeIdx], "|") {
			if choice == "" {
				p.pos = start
				return placeholder{}, p.fail("empty choice in " + quote(ph.name))
			}
			ph.choices = append(ph.choices, choice)
		}
		rest = rest[closeIdx+1:]
	}

	if rest != "" {
		if !strings.HasPrefix(rest, "|") || len(rest) == 1 {
			p.pos = start
			return placeholder{}, p.fail("malformed default in " + quote(ph.name))
		}
		ph.def = rest[1:]
		ph.hasDefault = true
		if len(ph.choices) > 0 && !containsString(ph.choices, ph.def) {
			p.pos = start
			return placeholder{}, p.fail("default " + quote(ph.def) + " is not one of the choices of " + quote(ph.name))
		}
	}

	return ph, nil
}

func quote(s string) string {
	return `"` + s + `"`
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
