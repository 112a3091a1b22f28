package expression

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect is the selector language an expression is written in.
type Dialect int

const (
	Literal Dialect = iota
	CSS
	XPath
	JSON
	JS
	Regex
	Logical
)

var dialectNames = map[Dialect]string{
	Literal: "literal",
	CSS:     "css",
	XPath:   "xpath",
	JSON:    "json",
	JS:      "js",
	Regex:   "regex",
	Logical: "logical",
}

func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// MarshalText renders the dialect by name.
func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the names produced by String.
func (d *Dialect) UnmarshalText(text []byte) error {
	for dialect, name := range dialectNames {
		if name == string(text) {
			*d = dialect
			return nil
		}
	}
	return fmt.Errorf("unknown dialect %q", text)
}

// Prefix returns the canonical tag for d. Literal and Logical have none.
func (d Dialect) Prefix() string {
	switch d {
	case CSS:
		return "@css:"
	case XPath:
		return "@xpath:"
	case JSON:
		return "@json:"
	case JS:
		return "@js:"
	case Regex:
		return "@regex:"
	case Literal, Logical:
		return ""
	}
	return ""
}

type prefixSpelling struct {
	text    string
	dialect Dialect
}

// Accepted prefixes, including the legacy spellings.
var prefixes = []prefixSpelling{
	{"@css:", CSS},
	{"@xpath:", XPath},
	{"@XPath:", XPath},
	{"@json:", JSON},
	{"@js:", JS},
	{"@regex:", Regex},
	{"@filter:", Regex},
}

var (
	cssShape    = regexp.MustCompile(`^[.#\[]`)
	cssTagShape = regexp.MustCompile(`(?i)^[a-z]+[.#\[]`)
)

func matchPrefix(s string) (prefixSpelling, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p.text) {
			return p, true
		}
	}
	return prefixSpelling{}, false
}

func isJSTag(s string) bool {
	return strings.HasPrefix(s, "<js>") && strings.Contains(s, "</js>")
}

// detectOperand classifies a single operand by prefix and shape.
func detectOperand(s string) Dialect {
	s = strings.TrimSpace(s)
	if p, ok := matchPrefix(s); ok {
		return p.dialect
	}

	switch {
	case strings.HasPrefix(s, "//"), strings.HasPrefix(s, "(/"):
		return XPath
	case strings.HasPrefix(s, "$."), strings.HasPrefix(s, "$["):
		return JSON
	case isJSTag(s):
		return JS
	case cssShape.MatchString(s), cssTagShape.MatchString(s):
		return CSS
	}
	return Literal
}

// Detect classifies text. It never fails: text with a top-level && or ||
// is Logical, anything unrecognized is Literal.
func Detect(text string) Dialect {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Literal
	}
	if ops, err := split(trimmed); err == nil && len(ops) > 1 {
		return Logical
	}
	return detectOperand(trimmed)
}

// MapOperands applies fn to every top-level operand of a logical chain,
// keeping operators and the whitespace around them. Text that does not
// split cleanly is passed to fn whole.
func MapOperands(text string, fn func(string) string) string {
	ops, err := split(text)
	if err != nil || len(ops) < 2 {
		return fn(text)
	}

	var b strings.Builder
	last := 0
	for _, op := range ops {
		b.WriteString(text[last:op.start])
		b.WriteString(fn(text[op.start:op.end]))
		last = op.end
	}
	b.WriteString(text[last:])
	return b.String()
}

func normalizeOperand(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return trimmed
	}

	if p, ok := matchPrefix(trimmed); ok {
		canonical := p.dialect.Prefix()
		if p.text == canonical {
			return trimmed
		}
		return canonical + trimmed[len(p.text):]
	}

	switch detectOperand(trimmed) {
	case XPath:
		return XPath.Prefix() + trimmed
	case JSON:
		return JSON.Prefix() + trimmed
	case JS:
		end := strings.Index(trimmed, "</js>")
		return JS.Prefix() + strings.TrimSpace(trimmed[len("<js>"):end]) + trimmed[end+len("</js>"):]
	case CSS:
		if cssShape.MatchString(trimmed) {
			return CSS.Prefix() + trimmed
		}
	case Literal, Regex, Logical:
	}
	return trimmed
}

// Normalize rewrites each operand to its canonical prefix: @XPath: and
// @filter: become @xpath: and @regex:, implicit XPath, JSONPath and
// <js> forms gain explicit prefixes, and selectors starting with . # or [
// gain @css:.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return MapOperands(strings.TrimSpace(text), func(op string) string {
		lead, trail := Surrounding(op)
		return lead + normalizeOperand(op) + trail
	})
}

// Minimize drops a canonical prefix wherever the bare remainder normalizes
// back to the same text. It is the inverse of Normalize for implicit
// shapes.
func Minimize(text string) string {
	return MapOperands(text, func(op string) string {
		lead, trail := Surrounding(op)
		trimmed := strings.TrimSpace(op)
		p, ok := matchPrefix(trimmed)
		if !ok || p.text != p.dialect.Prefix() {
			return op
		}
		rest := trimmed[len(p.text):]
		if rest != "" && normalizeOperand(rest) == trimmed {
			return lead + rest + trail
		}
		return op
	})
}

// StripPrefix removes a leading dialect prefix, or unwraps a <js> tag.
func StripPrefix(text string) string {
	trimmed := strings.TrimSpace(text)
	if p, ok := matchPrefix(trimmed); ok {
		return trimmed[len(p.text):]
	}
	if isJSTag(trimmed) {
		end := strings.Index(trimmed, "</js>")
		return trimmed[len("<js>"):end]
	}
	return trimmed
}

// Surrounding returns the whitespace before and after the trimmed text of s.
func Surrounding(s string) (string, string) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s, ""
	}
	start := strings.Index(s, trimmed)
	return s[:start], s[start+len(trimmed):]
}
