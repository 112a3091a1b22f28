package converter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// coerceFields returns a copy of raw whose values fit the JSON types of t's
// fields. Exported sources often write numbers and booleans as strings, or
// the reverse; those are converted. A value that cannot be converted is
// dropped. Either way the field is reported. raw is not modified.
func coerceFields(raw map[string]any, t reflect.Type, prefix string) (map[string]any, []ValidationIssue) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	if t.Kind() != reflect.Struct {
		return out, nil
	}

	var issues []ValidationIssue
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		v, ok := out[name]
		if !ok || v == nil {
			continue
		}

		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		coerced, keep, found := coerceValue(v, field.Type, path)
		issues = append(issues, found...)
		if keep {
			out[name] = coerced
		} else {
			delete(out, name)
		}
	}
	return out, issues
}

func typeIssue(path string, v any, want string, dropped bool) ValidationIssue {
	msg := fmt.Sprintf("expected %s, got %s", want, jsonType(v))
	if dropped {
		msg += "; value ignored"
	}
	return ValidationIssue{Field: path, Message: msg, Code: CodeFieldType}
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

// coerceValue fits v to t. keep is false when v has to be dropped.
func coerceValue(v any, t reflect.Type, path string) (any, bool, []ValidationIssue) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return v, true, nil
	}

	switch t.Kind() {
	case reflect.String:
		switch x := v.(type) {
		case string:
			return v, true, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true, []ValidationIssue{typeIssue(path, v, "string", false)}
		case bool:
			return strconv.FormatBool(x), true, []ValidationIssue{typeIssue(path, v, "string", false)}
		}
		return nil, false, []ValidationIssue{typeIssue(path, v, "string", true)}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch x := v.(type) {
		case float64:
			if x == math.Trunc(x) {
				return v, true, nil
			}
			return math.Trunc(x), true, []ValidationIssue{typeIssue(path, v, "integer", false)}
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return math.Trunc(n), true, []ValidationIssue{typeIssue(path, v, "integer", false)}
			}
		}
		return nil, false, []ValidationIssue{typeIssue(path, v, "integer", true)}

	case reflect.Float32, reflect.Float64:
		switch x := v.(type) {
		case float64:
			return v, true, nil
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return n, true, []ValidationIssue{typeIssue(path, v, "number", false)}
			}
		}
		return nil, false, []ValidationIssue{typeIssue(path, v, "number", true)}

	case reflect.Bool:
		switch x := v.(type) {
		case bool:
			return v, true, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, true, []ValidationIssue{typeIssue(path, v, "boolean", false)}
			}
		case float64:
			return x != 0, true, []ValidationIssue{typeIssue(path, v, "boolean", false)}
		}
		return nil, false, []ValidationIssue{typeIssue(path, v, "boolean", true)}

	case reflect.Struct:
		switch x := v.(type) {
		case map[string]any:
			out, issues := coerceFields(x, t, path)
			return out, true, issues
		case string:
			// Some Legado exports nest rule groups as JSON text.
			var m map[string]any
			if err := json.Unmarshal([]byte(x), &m); err == nil && m != nil {
				out, issues := coerceFields(m, t, path)
				return out, true, append([]ValidationIssue{typeIssue(path, v, "object", false)}, issues...)
			}
		}
		return nil, false, []ValidationIssue{typeIssue(path, v, "object", true)}

	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			return nil, false, []ValidationIssue{typeIssue(path, v, "array", true)}
		}
		elem := t.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return v, true, nil
		}
		var issues []ValidationIssue
		out := make([]any, 0, len(items))
		for i, item := range items {
			coerced, keep, found := coerceValue(item, elem, fmt.Sprintf("%s[%d]", path, i))
			issues = append(issues, found...)
			if keep {
				out = append(out, coerced)
			}
		}
		return out, true, issues

	case reflect.Map:
		if _, ok := v.(map[string]any); !ok {
			return nil, false, []ValidationIssue{typeIssue(path, v, "object", true)}
		}
	}
	return v, true, nil
}
