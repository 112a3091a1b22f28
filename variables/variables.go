// Package variables maps placeholder tokens between the any-reader and
// Legado dialects and the canonical {{name}} form, and resolves dotted
// context paths at run time.
package variables

import (
	"regexp"
	"strings"

	"github.com/pevans/booksource/rule"
)

// Variable is one entry of the static placeholder table. A dialect
// spelling left empty means the dialect uses the canonical {{name}} form.
type Variable struct {
	Name      string
	AnyReader string
	Legado    string
}

// Token returns the canonical spelling.
func (v Variable) Token() string {
	return "{{" + v.Name + "}}"
}

// Spelling returns the token used by the given format.
func (v Variable) Spelling(format rule.Format) string {
	switch format {
	case rule.FormatAnyReader:
		if v.AnyReader != "" {
			return v.AnyReader
		}
	case rule.FormatLegado:
		if v.Legado != "" {
			return v.Legado
		}
	}
	return v.Token()
}

// Canonical variable names.
const (
	Host         = "host"
	Keyword      = "keyword"
	Page         = "page"
	BaseURL      = "baseUrl"
	CurrentURL   = "currentUrl"
	Result       = "result"
	ResultURL    = "result.url"
	ResultName   = "result.name"
	ResultCover  = "result.cover"
	ResultAuthor = "result.author"
	Timestamp    = "timestamp"
	Date         = "date"
	Cookie       = "cookie"
	UserAgent    = "userAgent"
)

// Table is the fixed placeholder table. Legado's {{baseUrl}} is the
// site origin, so it maps to canonical {{host}}; the canonical {{baseUrl}}
// has no separate Legado spelling.
var Table = []Variable{
	{Name: Host, AnyReader: "$host", Legado: "{{baseUrl}}"},
	{Name: Keyword, AnyReader: "$keyword", Legado: "{{key}}"},
	{Name: Page, AnyReader: "$page", Legado: "{{page}}"},
	{Name: BaseURL},
	{Name: CurrentURL},
	{Name: Result},
	{Name: ResultURL},
	{Name: ResultName},
	{Name: ResultCover},
	{Name: ResultAuthor},
	{Name: Timestamp},
	{Name: Date},
	{Name: Cookie},
	{Name: UserAgent},
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(Table))
	for _, v := range Table {
		m[v.Name] = true
	}
	return m
}()

// IsKnown reports whether name is in the canonical table.
func IsKnown(name string) bool {
	return known[name]
}

// placeholderPattern matches {{...}} without nesting.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// namePattern matches a dotted identifier path, which is what a variable
// reference looks like; anything else inside braces is inline code.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// substitution is a compiled one-way token mapping for one format.
type substitution struct {
	pattern *regexp.Regexp
	lookup  map[string]string
}

func newSubstitution(pairs map[string]string) substitution {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	// Longest first so leftmost-first alternation prefers the longer token.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && (len(keys[j]) > len(keys[j-1]) || (len(keys[j]) == len(keys[j-1]) && keys[j] < keys[j-1])); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return substitution{
		pattern: regexp.MustCompile(strings.Join(quoted, "|")),
		lookup:  pairs,
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// apply replaces every token in one pass. A token ending in an identifier
// character is only replaced when the next character is not one, and a
// replacement ending in an identifier character is skipped when the
// following text would extend it.
func (s substitution) apply(text string) string {
	matches := s.pattern.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		token := text[m[0]:m[1]]
		replacement := s.lookup[token]
		next := m[1] < len(text) && isIdentByte(text[m[1]])
		if next && (isIdentByte(token[len(token)-1]) || isIdentByte(replacement[len(replacement)-1])) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(replacement)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

var (
	fromAnyReader = buildFrom(rule.FormatAnyReader)
	toAnyReader   = buildTo(rule.FormatAnyReader)
	fromLegado    = buildFrom(rule.FormatLegado)
	toLegado      = buildTo(rule.FormatLegado)
)

func buildFrom(format rule.Format) substitution {
	pairs := make(map[string]string)
	for _, v := range Table {
		if spelled := v.Spelling(format); spelled != v.Token() {
			pairs[spelled] = v.Token()
		}
	}
	return newSubstitution(pairs)
}

func buildTo(format rule.Format) substitution {
	pairs := make(map[string]string)
	for _, v := range Table {
		if spelled := v.Spelling(format); spelled != v.Token() {
			pairs[v.Token()] = spelled
		}
	}
	return newSubstitution(pairs)
}

// FromDialect rewrites every dialect-specific placeholder in text into the
// canonical {{name}} form.
func FromDialect(text string, format rule.Format) string {
	if text == "" {
		return text
	}
	switch format {
	case rule.FormatAnyReader:
		return fromAnyReader.apply(text)
	case rule.FormatLegado:
		return fromLegado.apply(text)
	}
	return text
}

// ToDialect is the inverse of FromDialect.
func ToDialect(text string, format rule.Format) string {
	if text == "" {
		return text
	}
	switch format {
	case rule.FormatAnyReader:
		return toAnyReader.apply(text)
	case rule.FormatLegado:
		return toLegado.apply(text)
	}
	return text
}

// ExtractNames returns every placeholder name in text, known or not, in
// first-seen order.
func ExtractNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Extract returns the canonical tokens present in text, in first-seen
// order.
func Extract(text string) []string {
	var tokens []string
	for _, name := range ExtractNames(text) {
		if known[name] {
			tokens = append(tokens, "{{"+name+"}}")
		}
	}
	return tokens
}

// ValidationResult reports placeholders outside the canonical table.
type ValidationResult struct {
	Valid   bool
	Unknown []string
}

// Validate flags every {{name}} whose name is a variable reference but not
// a canonical variable. Inline code inside braces, such as Legado's
// {{$.id}} or {{java.x()}}, is not a variable reference and is ignored.
func Validate(text string) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, name := range ExtractNames(text) {
		if !namePattern.MatchString(name) || known[name] {
			continue
		}
		result.Valid = false
		result.Unknown = append(result.Unknown, name)
	}
	return result
}
