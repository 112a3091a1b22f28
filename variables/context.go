package variables

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseContextVariable splits a {{a.b.c}} token, or a bare a.b.c path, into
// its segments. It reports false for anything that is not a dotted path.
func ParseContextVariable(token string) ([]string, bool) {
	name := strings.TrimSpace(token)
	if strings.HasPrefix(name, "{{") && strings.HasSuffix(name, "}}") {
		name = strings.TrimSpace(name[2 : len(name)-2])
	}
	if !namePattern.MatchString(name) {
		return nil, false
	}
	return strings.Split(name, "."), true
}

// ResolveContextVariable walks a dotted path through ctx. Maps are indexed
// by key, slices by numeric segment.
func ResolveContextVariable(path string, ctx map[string]any) (any, bool) {
	segments, ok := ParseContextVariable(path)
	if !ok || ctx == nil {
		return nil, false
	}

	var current any = ctx
	for _, segment := range segments {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(current any, segment string) (any, bool) {
	switch v := current.(type) {
	case map[string]any:
		next, ok := v[segment]
		return next, ok
	case map[string]string:
		next, ok := v[segment]
		return next, ok
	case []any:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case []string:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	}
	return nil, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}

// ReplaceVariables substitutes every {{path}} that resolves against ctx.
// Placeholders that do not resolve are left as written.
func ReplaceVariables(text string, ctx map[string]any) string {
	if ctx == nil || !strings.Contains(text, "{{") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		value, ok := ResolveContextVariable(token, ctx)
		if !ok {
			return token
		}
		return stringify(value)
	})
}
