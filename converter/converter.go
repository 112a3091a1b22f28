// Package converter maps whole rule documents between the any-reader and
// Legado dialects and the canonical rule.UniversalRule.
package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
)

// Custom errors for conversion
var (
	ErrUnknownFormat   = errors.New("unrecognized rule format")
	ErrNotObject       = errors.New("rule document is not a JSON object")
	ErrMissingIdentity = errors.New("rule is missing an identity field")
)

// ConversionError wraps a failure to convert one rule. Index is the
// rule's position in a batch, or -1 outside a batch.
type ConversionError struct {
	Index  int
	Format rule.Format
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("rule %d (%s): %v", e.Index, e.Format, e.Err)
	}
	return fmt.Sprintf("%s rule: %v", e.Format, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Options control a conversion.
type Options struct {
	// PreserveOriginal keeps the raw document under _meta.originalData so
	// unmodeled fields survive a conversion back to the same dialect.
	PreserveOriginal bool `json:"preserveOriginal" yaml:"preserve_original"`

	// Strict turns an expression field that fails validation into an
	// error instead of passing it through.
	Strict bool `json:"strict" yaml:"strict"`

	// JsoupTarget selects what Legado Default-grammar selectors become.
	// Empty means CSS.
	JsoupTarget jsoup.Target `json:"jsoupTarget,omitempty" yaml:"jsoup_target"`
}

// Validation codes.
const (
	CodeRequiredField     = "REQUIRED_FIELD"
	CodeRecommendedField  = "RECOMMENDED_FIELD"
	CodeMissingRule       = "MISSING_RULE"
	CodeInvalidExpression = "INVALID_EXPRESSION"
	CodeFieldType         = "FIELD_TYPE"
)

// ValidationIssue is one finding about a rule document.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult collects structural findings about a rule document.
// Warnings never affect Valid.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

func newValidationResult() ValidationResult {
	return ValidationResult{Valid: true, Errors: []ValidationIssue{}, Warnings: []ValidationIssue{}}
}

func (r *ValidationResult) addError(field, message, code string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Message: message, Code: code})
}

func (r *ValidationResult) addWarning(field, message, code string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Message: message, Code: code})
}

// RuleConverter converts one dialect to and from the canonical rule.
type RuleConverter interface {
	Format() rule.Format
	Detect(raw map[string]any) bool
	ToUniversal(raw map[string]any, opts Options) (*rule.UniversalRule, error)
	FromUniversal(r *rule.UniversalRule, opts Options) (map[string]any, error)
	Validate(raw map[string]any) ValidationResult
}

// decode copies a generic document into a typed one, coercing values
// whose JSON type does not match first. The coercions are returned.
func decode(raw map[string]any, v any) ([]ValidationIssue, error) {
	coerced, issues := coerceFields(raw, reflect.TypeOf(v), "")
	data, err := json.Marshal(coerced)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return issues, nil
}

// encode renders a typed document as a generic one.
func encode(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return out, nil
}

// jsonKeys lists the top-level JSON keys a struct type models.
func jsonKeys(v any) map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// restoreUnmodeled copies keys the typed document does not model from the
// preserved original into out. Only originals of the same format apply.
func restoreUnmodeled(out map[string]any, r *rule.UniversalRule, format rule.Format, modeled map[string]bool) {
	if r.Meta == nil || r.Meta.OriginFormat != format || r.Meta.OriginalData == nil {
		return
	}
	for k, v := range r.Meta.OriginalData {
		if modeled[k] {
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
