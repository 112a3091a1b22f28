package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/dop251/goja"

	"github.com/pevans/booksource/variables"
)

// ErrorKind classifies a validation error.
type ErrorKind string

const (
	KindSyntax   ErrorKind = "syntax"
	KindVariable ErrorKind = "variable"
	KindType     ErrorKind = "type"
	KindBracket  ErrorKind = "bracket"
)

// WarningKind classifies a validation warning.
type WarningKind string

const (
	WarnDeprecated    WarningKind = "deprecated"
	WarnPerformance   WarningKind = "performance"
	WarnCompatibility WarningKind = "compatibility"
)

// Span is a byte range in the validated text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ValidationError is a problem that makes the expression invalid.
type ValidationError struct {
	Kind     ErrorKind `json:"type"`
	Message  string    `json:"message"`
	Position *Span     `json:"position,omitempty"`
}

// ValidationWarning is advisory.
type ValidationWarning struct {
	Kind    WarningKind `json:"type"`
	Message string      `json:"message"`
}

// ValidationResult is the outcome of Validate. Valid is true when Errors is
// empty; warnings never affect it.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Dialect  Dialect             `json:"expressionType"`
}

// Validator checks raw expression text without requiring it to parse.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs every check and accumulates the findings.
func (v *Validator) Validate(text string) ValidationResult {
	result := ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
		Dialect:  Detect(text),
	}
	if strings.TrimSpace(text) == "" {
		result.Valid = true
		result.Dialect = Literal
		return result
	}

	if err := checkBrackets(text); err != nil {
		result.Errors = append(result.Errors, *err)
	}

	if vars := variables.Validate(text); !vars.Valid {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Kind:    WarnCompatibility,
			Message: "unknown variables: " + strings.Join(vars.Unknown, ", "),
		})
	}

	for _, body := range operandTexts(text) {
		errs, warns := checkOperand(body)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	result.Warnings = append(result.Warnings, checkDeprecated(text)...)
	result.Valid = len(result.Errors) == 0
	return result
}

// IsValid reports whether text has no validation errors.
func (v *Validator) IsValid(text string) bool {
	return v.Validate(text).Valid
}

// DialectOf reports the detected dialect of text.
func (v *Validator) DialectOf(text string) Dialect {
	return Detect(text)
}

// FormatResult renders a result for terminal output.
func (v *Validator) FormatResult(result ValidationResult) string {
	var lines []string
	if result.Valid {
		lines = append(lines, fmt.Sprintf("✓ Expression is valid (type: %s)", result.Dialect))
	} else {
		lines = append(lines, fmt.Sprintf("✗ Expression is invalid (type: %s)", result.Dialect))
	}

	if len(result.Errors) > 0 {
		lines = append(lines, "Errors:")
		for _, e := range result.Errors {
			pos := ""
			if e.Position != nil {
				pos = fmt.Sprintf(" [position: %d]", e.Position.Start)
			}
			lines = append(lines, fmt.Sprintf("  - [%s] %s%s", e.Kind, e.Message, pos))
		}
	}

	if len(result.Warnings) > 0 {
		lines = append(lines, "Warnings:")
		for _, w := range result.Warnings {
			lines = append(lines, fmt.Sprintf("  - [%s] %s", w.Kind, w.Message))
		}
	}

	return strings.Join(lines, "\n")
}

var openers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// checkBrackets reports the first mismatched closer, or failing that the
// first opener left unclosed. Quoted runs inside brackets are skipped.
func checkBrackets(text string) *ValidationError {
	var stack []int
	var quote byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '"' || c == '\'') && (i == 0 || text[i-1] != '\\') && (quote != 0 || len(stack) > 0) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
			continue
		}
		if quote != 0 {
			continue
		}

		if _, ok := openers[c]; ok {
			stack = append(stack, i)
			continue
		}
		if want, ok := closers[c]; ok {
			if len(stack) == 0 || text[stack[len(stack)-1]] != want {
				return &ValidationError{
					Kind:     KindBracket,
					Message:  fmt.Sprintf("mismatched %q at position %d", c, i),
					Position: &Span{Start: i, End: i + 1},
				}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		pos := stack[0]
		return &ValidationError{
			Kind:     KindBracket,
			Message:  fmt.Sprintf("unclosed %q at position %d", text[pos], pos),
			Position: &Span{Start: pos, End: pos + 1},
		}
	}
	return nil
}

// operandTexts returns each top-level operand, or the whole text when it
// does not split.
func operandTexts(text string) []string {
	ops, err := split(text)
	if err != nil {
		return []string{strings.TrimSpace(text)}
	}
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, text[op.start:op.end])
	}
	return out
}

func checkOperand(text string) ([]ValidationError, []ValidationWarning) {
	text = strings.TrimSuffix(strings.TrimSpace(text), variables.ReverseSuffix)
	dialect := detectOperand(text)
	body := StripPrefix(text)

	switch dialect {
	case CSS:
		return checkCSS(body)
	case XPath:
		return checkXPath(body), nil
	case JSON:
		return checkJSONPath(body), nil
	case JS:
		return checkScript(body), nil
	case Regex:
		return checkRegex(body), nil
	case Literal, Logical:
	}
	return nil, nil
}

func syntaxError(format string, args ...any) ValidationError {
	return ValidationError{Kind: KindSyntax, Message: fmt.Sprintf(format, args...)}
}

func checkCSS(body string) ([]ValidationError, []ValidationWarning) {
	if strings.TrimSpace(body) == "" {
		return []ValidationError{syntaxError("CSS selector must not be empty")}, nil
	}

	var errs []ValidationError
	if strings.Contains(body, "//") {
		errs = append(errs, syntaxError(`CSS selector must not contain "//", which is XPath syntax`))
	}

	selector := cssSelector(body)
	if selector == "" {
		return errs, nil
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return errs, []ValidationWarning{{
			Kind:    WarnCompatibility,
			Message: fmt.Sprintf("selector %q is not standard CSS: %v", selector, err),
		}}
	}
	return errs, nil
}

// cssSelector strips the replace, attr and index suffixes from a CSS body.
func cssSelector(body string) string {
	value, _ := stripReplace(body)
	if m := attrSuffix.FindStringSubmatch(value); m != nil {
		value = value[:len(value)-len(m[0])]
	}
	if m := indexSuffix.FindStringSubmatch(value); m != nil {
		value = value[:len(value)-len(m[0])]
	}
	return strings.TrimSpace(value)
}

func checkXPath(body string) []ValidationError {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return []ValidationError{syntaxError("XPath must not be empty")}
	}
	if !strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "(") {
		return []ValidationError{syntaxError(`XPath must start with "/" or "("`)}
	}

	path, _ := stripReplace(trimmed)
	if _, err := xpath.Compile(path); err != nil {
		return []ValidationError{syntaxError("XPath syntax error: %v", err)}
	}
	return nil
}

func checkJSONPath(body string) []ValidationError {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return []ValidationError{syntaxError("JSONPath must not be empty")}
	}
	if !strings.HasPrefix(trimmed, "$") {
		return []ValidationError{syntaxError(`JSONPath must start with "$"`)}
	}
	return nil
}

func checkScript(body string) []ValidationError {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if _, err := goja.Compile("expression", "(function(){\n"+body+"\n})", false); err != nil {
		return []ValidationError{syntaxError("JavaScript syntax error: %v", err)}
	}
	return nil
}

func checkRegex(body string) []ValidationError {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if _, err := regexp.Compile(body); err != nil {
		return []ValidationError{syntaxError("regular expression syntax error: %v", err)}
	}
	return nil
}

func checkDeprecated(text string) []ValidationWarning {
	var warnings []ValidationWarning
	if strings.Contains(text, "@XPath:") {
		warnings = append(warnings, ValidationWarning{Kind: WarnDeprecated, Message: "use @xpath: instead of @XPath:"})
	}
	if strings.Contains(text, "@filter:") {
		warnings = append(warnings, ValidationWarning{Kind: WarnDeprecated, Message: "use @regex: instead of @filter:"})
	}
	if strings.Contains(text, "<js>") {
		warnings = append(warnings, ValidationWarning{Kind: WarnDeprecated, Message: "use the @js: prefix instead of <js></js> tags"})
	}
	return warnings
}
