package converter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/pevans/booksource/rule"
)

// BatchResult is the outcome for one document of a batch. A failed
// document never affects its neighbours.
type BatchResult struct {
	Success       bool           `json:"success"`
	Rule          map[string]any `json:"rule,omitempty"`
	Error         string         `json:"error,omitempty"`
	OriginalIndex int            `json:"originalIndex"`

	Err error `json:"-"`
}

// Dispatcher detects document formats and routes them to the matching
// converter.
type Dispatcher struct {
	converters []RuleConverter
	opts       Options
}

// NewDispatcher returns a dispatcher for the Legado and any-reader
// dialects. Legado is checked first.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		converters: []RuleConverter{NewLegadoConverter(), NewAnyReaderConverter()},
		opts:       opts,
	}
}

// Options returns the options every conversion uses.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Converter returns the converter for a dialect.
func (d *Dispatcher) Converter(format rule.Format) (RuleConverter, bool) {
	for _, c := range d.converters {
		if c.Format() == format {
			return c, true
		}
	}
	return nil, false
}

// Detect reports the format of a decoded document.
func (d *Dispatcher) Detect(raw any) rule.Format {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return rule.FormatUnknown
	}
	for _, c := range d.converters {
		if c.Detect(obj) {
			return c.Format()
		}
	}
	if meta, ok := obj["_meta"].(map[string]any); ok && meta["sourceFormat"] == string(rule.FormatUniversal) {
		return rule.FormatUniversal
	}
	return rule.FormatUnknown
}

// DetectJSON reports the format of an encoded document without decoding
// all of it. It agrees with Detect.
func DetectJSON(data []byte) rule.Format {
	if !gjson.ValidBytes(data) {
		return rule.FormatUnknown
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return rule.FormatUnknown
	}

	bookSourceURL := doc.Get("bookSourceUrl")
	bookSourceName := doc.Get("bookSourceName")
	if bookSourceURL.Type == gjson.String && bookSourceName.Type == gjson.String {
		return rule.FormatLegado
	}

	if doc.Get("id").Type == gjson.String &&
		doc.Get("name").Type == gjson.String &&
		doc.Get("contentType").Type == gjson.Number &&
		!bookSourceURL.Exists() && !bookSourceName.Exists() {
		return rule.FormatAnyReader
	}

	meta := doc.Get("_meta")
	if meta.IsObject() {
		format := meta.Get("sourceFormat")
		if format.Type == gjson.String && format.Str == string(rule.FormatUniversal) {
			return rule.FormatUniversal
		}
	}
	return rule.FormatUnknown
}

// DecodeDocuments splits input into documents: the elements of a top-level
// array, or the single top-level object.
func DecodeDocuments(data []byte) ([]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON input")
	}
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		elems := doc.Array()
		docs := make([]any, 0, len(elems))
		for _, e := range elems {
			docs = append(docs, e.Value())
		}
		return docs, nil
	case doc.IsObject():
		return []any{doc.Value()}, nil
	}
	return nil, ErrNotObject
}

// ToUniversal converts a document of any recognized format. Canonical
// documents are decoded as they are.
func (d *Dispatcher) ToUniversal(raw any) (*rule.UniversalRule, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ConversionError{Index: -1, Format: rule.FormatUnknown, Err: ErrNotObject}
	}

	format := d.Detect(obj)
	switch format {
	case rule.FormatUniversal:
		var r rule.UniversalRule
		if _, err := decode(obj, &r); err != nil {
			return nil, &ConversionError{Index: -1, Format: format, Err: err}
		}
		return &r, nil
	case rule.FormatUnknown:
		return nil, &ConversionError{Index: -1, Format: format, Err: ErrUnknownFormat}
	case rule.FormatAnyReader, rule.FormatLegado:
	}

	c, _ := d.Converter(format)
	r, err := c.ToUniversal(obj, d.opts)
	if err != nil {
		return nil, &ConversionError{Index: -1, Format: format, Err: err}
	}
	return r, nil
}

// FromUniversal renders r in the target format.
func (d *Dispatcher) FromUniversal(r *rule.UniversalRule, target rule.Format) (map[string]any, error) {
	if target == rule.FormatUniversal {
		out, err := encode(r)
		if err != nil {
			return nil, &ConversionError{Index: -1, Format: target, Err: err}
		}
		return out, nil
	}

	c, ok := d.Converter(target)
	if !ok {
		return nil, &ConversionError{Index: -1, Format: target, Err: ErrUnknownFormat}
	}
	out, err := c.FromUniversal(r, d.opts)
	if err != nil {
		return nil, &ConversionError{Index: -1, Format: target, Err: err}
	}
	return out, nil
}

// Convert detects raw's format and renders it in the target format.
func (d *Dispatcher) Convert(raw any, target rule.Format) (map[string]any, error) {
	r, err := d.ToUniversal(raw)
	if err != nil {
		return nil, err
	}
	return d.FromUniversal(r, target)
}

// ConvertBatch converts every document independently.
func (d *Dispatcher) ConvertBatch(raws []any, target rule.Format) []BatchResult {
	results := make([]BatchResult, 0, len(raws))
	for i, raw := range raws {
		out, err := d.Convert(raw, target)
		if err != nil {
			var ce *ConversionError
			if errors.As(err, &ce) {
				ce.Index = i
			}
			results = append(results, BatchResult{
				OriginalIndex: i,
				Error:         err.Error(),
				Err:           err,
			})
			continue
		}
		results = append(results, BatchResult{Success: true, Rule: out, OriginalIndex: i})
	}
	return results
}

// ConvertJSON decodes data, converts every document and returns the
// results.
func (d *Dispatcher) ConvertJSON(data []byte, target rule.Format) ([]BatchResult, error) {
	docs, err := DecodeDocuments(data)
	if err != nil {
		return nil, err
	}
	return d.ConvertBatch(docs, target), nil
}

// Validate runs the structural checks of the document's dialect.
func (d *Dispatcher) Validate(raw any) (rule.Format, ValidationResult, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return rule.FormatUnknown, ValidationResult{}, ErrNotObject
	}
	format := d.Detect(obj)
	c, ok := d.Converter(format)
	if !ok {
		if format == rule.FormatUniversal {
			r, err := d.ToUniversal(obj)
			if err != nil {
				return format, ValidationResult{}, err
			}
			return format, validateUniversal(r), nil
		}
		return format, ValidationResult{}, ErrUnknownFormat
	}
	return format, c.Validate(obj), nil
}

func validateUniversal(r *rule.UniversalRule) ValidationResult {
	result := newValidationResult()
	if r.ID == "" {
		result.addError("id", "rule id is required", CodeRequiredField)
	}
	if r.Name == "" {
		result.addError("name", "rule name is required", CodeRequiredField)
	}
	if r.Host == "" {
		result.addWarning("host", "host is recommended", CodeRecommendedField)
	}
	for _, missing := range rule.Completeness(r) {
		result.addWarning(missing, missing+" is recommended", CodeRecommendedField)
	}
	return result
}

// MarshalIndent renders a converted document for output.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
