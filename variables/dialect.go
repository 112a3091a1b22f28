package variables

import (
	"regexp"
	"strings"

	"github.com/pevans/booksource/rule"
)

// ReverseSuffix is the canonical reverse-order marker of a list field.
const ReverseSuffix = "@reverse"

const (
	jsPrefix   = "@js:"
	jsOpenTag  = "<js>"
	jsCloseTag = "</js>"
)

// HandleReverse strips a reverse-order marker, either Legado's leading "-"
// or the canonical trailing "@reverse".
func HandleReverse(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasSuffix(trimmed, ReverseSuffix):
		return strings.TrimSuffix(trimmed, ReverseSuffix), true
	case len(trimmed) > 1 && trimmed[0] == '-':
		return trimmed[1:], true
	}
	return text, false
}

// AddReverse writes the reverse-order marker back in the spelling the
// format expects.
func AddReverse(text string, format rule.Format) string {
	if format == rule.FormatLegado {
		return "-" + text
	}
	return text + ReverseSuffix
}

var jsTagPattern = regexp.MustCompile(`(?s)<js>(.*?)</js>`)

// LegadoJSTagToPrefix rewrites <js>code</js> blocks as @js:code.
func LegadoJSTagToPrefix(text string) string {
	if !strings.Contains(text, jsOpenTag) {
		return text
	}
	return jsTagPattern.ReplaceAllString(text, jsPrefix+"$1")
}

// PrefixToLegadoJSTag wraps the script after the first @js: in a <js> tag.
// Text without a script is returned unchanged.
func PrefixToLegadoJSTag(text string) string {
	i := strings.Index(text, jsPrefix)
	if i < 0 {
		return text
	}
	return text[:i] + jsOpenTag + text[i+len(jsPrefix):] + jsCloseTag
}

// NormalizeAnyReader converts any-reader placeholders and the @filter:
// prefix to canonical spelling.
func NormalizeAnyReader(text string) string {
	text = FromDialect(text, rule.FormatAnyReader)
	return strings.ReplaceAll(text, "@filter:", "@regex:")
}

// DenormalizeAnyReader is the inverse of NormalizeAnyReader.
func DenormalizeAnyReader(text string) string {
	text = ToDialect(text, rule.FormatAnyReader)
	return strings.ReplaceAll(text, "@regex:", "@filter:")
}

// NormalizeLegado converts Legado placeholders, <js> tags and the
// upper-case @XPath: prefix to canonical spelling.
func NormalizeLegado(text string) string {
	text = FromDialect(text, rule.FormatLegado)
	text = LegadoJSTagToPrefix(text)
	return strings.ReplaceAll(text, "@XPath:", "@xpath:")
}

// DenormalizeLegado converts canonical placeholders back to Legado
// spelling. Script tags are handled by the caller, which knows how the
// field was originally written.
func DenormalizeLegado(text string) string {
	return ToDialect(text, rule.FormatLegado)
}
