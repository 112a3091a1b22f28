package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompare verifies the empty, numeric and ignored-field rules
func TestCompare(t *testing.T) {
	original := map[string]any{
		"name":           "A",
		"sort":           float64(2),
		"icon":           "",
		"bookSourceUrl":  "https://a.com",
		"lastUpdateTime": float64(1),
		"ruleToc": map[string]any{
			"chapterList": "*",
			"enabled":     true,
		},
		"tags": []any{"a", "b"},
	}
	roundtrip := map[string]any{
		"name":          "A",
		"sort":          "2",
		"author":        nil,
		"bookSourceUrl": "https://b.com",
		"ruleToc": map[string]any{
			"chapterList": "@css:*",
		},
		"tags":  []any{"a", "c"},
		"extra": true,
	}

	diffs := Compare(original, roundtrip)
	fields := make([]string, 0, len(diffs))
	for _, d := range diffs {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{"extra", "ruleToc.chapterList", "tags"}, fields)

	require.Len(t, diffs, 3)
	assert.Equal(t, "*", diffs[1].Original)
	assert.Equal(t, "@css:*", diffs[1].Roundtrip)
}

// TestCompare_TypeMismatch verifies differing types are reported unless
// they are a number and its text
func TestCompare_TypeMismatch(t *testing.T) {
	diffs := Compare(
		map[string]any{"a": true, "b": float64(1), "c": "x"},
		map[string]any{"a": "true", "b": "1.0", "c": map[string]any{}},
	)
	require.Len(t, diffs, 3)
	assert.Equal(t, "a", diffs[0].Field)
	assert.Equal(t, "b", diffs[1].Field)
	assert.Equal(t, "c", diffs[2].Field)

	assert.Empty(t, Compare(map[string]any{"n": "3"}, map[string]any{"n": float64(3)}))
}

// TestCompare_IgnoredPrefix verifies an ignored name does not hide fields
// that only start with it
func TestCompare_IgnoredPrefix(t *testing.T) {
	diffs := Compare(
		map[string]any{"idLabel": "a", "enabledSearch": true, "_meta": map[string]any{"v": "1"}, "id": "x"},
		map[string]any{"idLabel": "b", "enabledSearch": false, "_meta": map[string]any{"v": "2"}, "id": "y"},
	)
	fields := make([]string, 0, len(diffs))
	for _, d := range diffs {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{"enabledSearch", "idLabel"}, fields)
}
