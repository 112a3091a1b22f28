// Package jsoup rewrites Legado's positional "Default" selector grammar,
// e.g. class.odd.0@tag.a.0@text, into CSS or XPath expressions.
package jsoup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SegmentType is the kind of one @-separated segment.
type SegmentType string

const (
	SegmentClass    SegmentType = "class"
	SegmentID       SegmentType = "id"
	SegmentTag      SegmentType = "tag"
	SegmentText     SegmentType = "text"
	SegmentChildren SegmentType = "children"
	SegmentAttr     SegmentType = "attr"
)

// Target selects the output dialect.
type Target string

const (
	TargetCSS   Target = "css"
	TargetXPath Target = "xpath"
)

// Segment is one parsed step. Index is nil when the step selects every
// match; negative positions count from the end.
type Segment struct {
	Type  SegmentType
	Name  string
	Index *int
	Attr  string
}

var attrKeywords = map[string]bool{
	"text":      true,
	"html":      true,
	"innerhtml": true,
	"outerhtml": true,
	"href":      true,
	"src":       true,
	"alt":       true,
	"title":     true,
}

var defaultSyntax = regexp.MustCompile(`(?i)^(class|id|tag|text|children)\.`)

var attrName = regexp.MustCompile(`^[A-Za-z_][\w:.-]*$`)

var shapedPrefixes = []string{"@css:", "@xpath:", "@XPath:", "@json:", "@js:", "//", "$.", "<js>"}

// IsDefaultSyntax reports whether expr is written in the Default grammar.
// Text that already carries a dialect prefix or shape never is.
func IsDefaultSyntax(expr string) bool {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return false
	}
	for _, prefix := range shapedPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return false
		}
	}
	return defaultSyntax.MatchString(trimmed)
}

func parseIndex(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// splitTail cuts a trailing ##replace chain or @js: script off a
// Default-grammar selector. Both are carried over verbatim.
func splitTail(expr string) (string, string) {
	cut := len(expr)
	for _, marker := range []string{"##", "@js:"} {
		if i := strings.Index(expr, marker); i >= 0 && i < cut {
			cut = i
		}
	}
	return expr[:cut], expr[cut:]
}

// ParseSegments splits expr into segments. Unknown segment words are
// dropped, except the last one, which names the attribute to extract
// (tag.img@data-src).
func ParseSegments(expr string) []Segment {
	var segments []Segment
	parts := strings.Split(strings.TrimSpace(expr), "@")
	for i, part := range parts {
		if part == "" {
			continue
		}
		fields := strings.Split(part, ".")
		kind := strings.ToLower(fields[0])

		switch SegmentType(kind) {
		case SegmentClass, SegmentID, SegmentTag:
			seg := Segment{Type: SegmentType(kind)}
			if len(fields) > 1 {
				seg.Name = fields[1]
			}
			if len(fields) > 2 {
				seg.Index = parseIndex(fields[2])
			}
			segments = append(segments, seg)
		case SegmentText:
			// A bare trailing "text" is the default attribute; text.name
			// matches elements by their own text.
			if len(fields) > 1 && fields[1] != "" {
				segments = append(segments, Segment{Type: SegmentText, Name: strings.Join(fields[1:], ".")})
			} else {
				segments = append(segments, Segment{Type: SegmentAttr, Attr: "text"})
			}
		case SegmentChildren:
			segments = append(segments, Segment{Type: SegmentChildren})
		default:
			switch {
			case attrKeywords[kind]:
				segments = append(segments, Segment{Type: SegmentAttr, Attr: kind})
			case i == len(parts)-1 && attrName.MatchString(part):
				segments = append(segments, Segment{Type: SegmentAttr, Attr: part})
			}
		}
	}
	return segments
}

func cssPosition(index *int) string {
	if index == nil {
		return ""
	}
	if *index < 0 {
		return fmt.Sprintf(":nth-last-child(%d)", -*index)
	}
	return fmt.Sprintf(":nth-child(%d)", *index+1)
}

func xpathPosition(index int) string {
	switch {
	case index >= 0:
		return strconv.Itoa(index + 1)
	case index == -1:
		return "last()"
	}
	return fmt.Sprintf("last()-%d", -index-1)
}

// ToCSS converts a Default-grammar expression to @css: form. Text that is
// not Default grammar is returned unchanged. A ##replace or @js: tail is
// kept after the attribute.
func ToCSS(expr string) string {
	if !IsDefaultSyntax(expr) {
		return expr
	}
	body, tail := splitTail(strings.TrimSpace(expr))

	var css strings.Builder
	attr := "text"
	for _, seg := range ParseSegments(body) {
		switch seg.Type {
		case SegmentClass:
			if seg.Name != "" {
				css.WriteString(" ." + seg.Name + cssPosition(seg.Index))
			}
		case SegmentID:
			if seg.Name != "" {
				css.WriteString(" #" + seg.Name)
			}
		case SegmentTag:
			if seg.Name != "" {
				css.WriteString(" " + seg.Name + cssPosition(seg.Index))
			}
		case SegmentText:
			css.WriteString(fmt.Sprintf(" *:containsOwn(%q)", seg.Name))
		case SegmentChildren:
			css.WriteString(" > *")
		case SegmentAttr:
			attr = seg.Attr
		}
	}

	return "@css:" + strings.TrimSpace(css.String()) + "@" + attr + tail
}

// ToXPath converts a Default-grammar expression to @xpath: form.
func ToXPath(expr string) string {
	if !IsDefaultSyntax(expr) {
		return expr
	}

	body, tail := splitTail(strings.TrimSpace(expr))

	xpath := ""
	attr := "text"
	for _, seg := range ParseSegments(body) {
		switch seg.Type {
		case SegmentClass:
			if seg.Name != "" {
				xpath += fmt.Sprintf(`//*[contains(@class, %q)]`, seg.Name)
				if seg.Index != nil {
					xpath = fmt.Sprintf("(%s)[%s]", xpath, xpathPosition(*seg.Index))
				}
			}
		case SegmentID:
			if seg.Name != "" {
				xpath += fmt.Sprintf(`//*[@id=%q]`, seg.Name)
			}
		case SegmentTag:
			if seg.Name != "" {
				xpath += "//" + seg.Name
				if seg.Index != nil {
					xpath = fmt.Sprintf("(%s)[%s]", xpath, xpathPosition(*seg.Index))
				}
			}
		case SegmentText:
			xpath += fmt.Sprintf(`//*[contains(text(), %q)]`, seg.Name)
		case SegmentChildren:
			xpath += "/*"
		case SegmentAttr:
			attr = seg.Attr
		}
	}

	if attr == "text" {
		xpath += "/text()"
	} else {
		xpath += "/@" + attr
	}
	return "@xpath:" + xpath + tail
}

// Convert rewrites Default grammar as CSS.
func Convert(expr string) string {
	return ConvertTo(expr, TargetCSS)
}

// ConvertTo rewrites Default grammar into the requested dialect.
func ConvertTo(expr string, target Target) string {
	if target == TargetXPath {
		return ToXPath(expr)
	}
	return ToCSS(expr)
}

// ConvertAll converts every Default-grammar value of exprs into CSS and
// copies the others as they are.
func ConvertAll(exprs map[string]string) map[string]string {
	out := make(map[string]string, len(exprs))
	for key, value := range exprs {
		out[key] = Convert(value)
	}
	return out
}
