package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/booksource/rule"
)

func issueFields(issues []ValidationIssue) []string {
	fields := []string{}
	for _, i := range issues {
		fields = append(fields, i.Field)
	}
	return fields
}

// TestAnyReaderConverter_Validate verifies required and recommended fields
func TestAnyReaderConverter_Validate(t *testing.T) {
	c := NewAnyReaderConverter()

	_, raw := loadFixture(t, "anyreader.json")
	result := c.Validate(raw)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)

	result = c.Validate(map[string]any{
		"id":             "",
		"name":           "",
		"contentType":    float64(1),
		"enableSearch":   true,
		"enableDiscover": true,
	})
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"id", "name", "searchUrl", "discoverUrl"}, issueFields(result.Errors))
	assert.Equal(t, []string{"host", "searchList"}, issueFields(result.Warnings))
	assert.Equal(t, CodeRequiredField, result.Errors[0].Code)
	assert.Equal(t, CodeRecommendedField, result.Warnings[0].Code)
}

// TestLegadoConverter_Validate verifies required fields and rule warnings
func TestLegadoConverter_Validate(t *testing.T) {
	c := NewLegadoConverter()

	_, raw := loadFixture(t, "legado.json")
	result := c.Validate(raw)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)

	result = c.Validate(map[string]any{
		"bookSourceUrl":  "https://a.com",
		"bookSourceName": "",
		"searchUrl":      "/s?q={{key}}",
	})
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"bookSourceName"}, issueFields(result.Errors))
	assert.Equal(t, []string{"ruleSearch", "ruleToc.chapterList", "ruleContent.content"}, issueFields(result.Warnings))
	assert.Equal(t, CodeMissingRule, result.Warnings[0].Code)
}

// TestValidate_FieldTypes verifies mistyped scalars are coerced with a
// warning instead of failing the document
func TestValidate_FieldTypes(t *testing.T) {
	_, raw := loadFixture(t, "legado.json")
	raw["customOrder"] = "3"
	raw["enabled"] = "true"
	raw["weight"] = "heavy"

	result := NewLegadoConverter().Validate(raw)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.ElementsMatch(t, []string{"customOrder", "enabled", "weight"}, issueFields(result.Warnings))
	for _, w := range result.Warnings {
		assert.Equal(t, CodeFieldType, w.Code)
	}

	_, raw = loadFixture(t, "anyreader.json")
	raw["sort"] = "2"
	raw["contentType"] = 1.0
	result = NewAnyReaderConverter().Validate(raw)
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"sort"}, issueFields(result.Warnings))
}

// TestDispatcher_Validate verifies routing by detected format
func TestDispatcher_Validate(t *testing.T) {
	d := NewDispatcher(Options{})

	_, raw := loadFixture(t, "legado.json")
	format, result, err := d.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, rule.FormatLegado, format)
	assert.True(t, result.Valid)

	universal, err := d.Convert(raw, rule.FormatUniversal)
	require.NoError(t, err)
	format, result, err = d.Validate(universal)
	require.NoError(t, err)
	assert.Equal(t, rule.FormatUniversal, format)
	assert.True(t, result.Valid)

	_, _, err = d.Validate(map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

// TestExtractHost verifies origins are taken from source URLs
func TestExtractHost(t *testing.T) {
	assert.Equal(t, "https://www.aaawz.cc", extractHost("https://www.aaawz.cc"))
	assert.Equal(t, "https://a.com", extractHost("https://a.com/path?q=1#group"))
	assert.Equal(t, "plain", extractHost("plain"))
}

// TestParseHeader verifies string and object headers
func TestParseHeader(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, parseHeader(`{"a":"1"}`))
	assert.Equal(t, map[string]string{"n": "2"}, parseHeader(map[string]any{"n": float64(2)}))
	assert.Nil(t, parseHeader("User-Agent: x"))
	assert.Nil(t, parseHeader(nil))
	assert.Equal(t, `{"a":"<b>"}`, marshalHeader(map[string]string{"a": "<b>"}))
}
