package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pevans/booksource/rule"
)

// TestNormalizeExpression verifies the per-dialect inbound pipeline
func TestNormalizeExpression(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		format   rule.Format
		expected string
	}{
		{"any-reader css", ".n2@text", rule.FormatAnyReader, "@css:.n2@text"},
		{"any-reader filter", "@filter:\\d+", rule.FormatAnyReader, "@regex:\\d+"},
		{"any-reader variable", "$host/book/$result", rule.FormatAnyReader, "{{host}}/book/$result"},
		{"legado js tag", "<js>result</js>", rule.FormatLegado, "@js:result"},
		{"legado default grammar", "class.odd.0@tag.a.0@text", rule.FormatLegado, "@css:.odd:nth-child(1) a:nth-child(1)@text"},
		{"legado star", "*", rule.FormatLegado, "@css:*"},
		{"legado upper xpath", "@XPath://div", rule.FormatLegado, "@xpath://div"},
		{"legado chain", "class.a@text&&$.b", rule.FormatLegado, "@css:.a@text&&@json:$.b"},
		{"legado default replace", "class.content@html##广告.*", rule.FormatLegado, "@css:.content@html##广告.*"},
		{"legado default data attr", "tag.img@data-src", rule.FormatLegado, "@css:img@data-src"},
		{"legado default meta", "tag.meta@content", rule.FormatLegado, "@css:meta@content"},
		{"legado default script", "class.x@text@js:result.trim()", rule.FormatLegado, "@css:.x@text@js:result.trim()"},
		{"empty", "", rule.FormatLegado, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeExpression(tt.input, tt.format))
		})
	}
}

// TestDenormalizeExpression verifies the per-dialect outbound pipeline
func TestDenormalizeExpression(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		format   rule.Format
		expected string
	}{
		{"any-reader css", "@css:.n2@text", rule.FormatAnyReader, ".n2@text"},
		{"any-reader regex", "@regex:\\d+", rule.FormatAnyReader, "@filter:\\d+"},
		{"any-reader star", "@css:*", rule.FormatAnyReader, "@css:*"},
		{"legado star", "@css:*", rule.FormatLegado, "*"},
		{"legado script", "@js:result", rule.FormatLegado, "<js>result</js>"},
		{"legado literal with script", "tid@js:result", rule.FormatLegado, "tid@js:result"},
		{"legado variable", "{{host}}/s?q={{keyword}}", rule.FormatLegado, "{{baseUrl}}/s?q={{key}}"},
		{"legado xpath", "@xpath://a/@href", rule.FormatLegado, "//a/@href"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DenormalizeExpression(tt.input, tt.format))
		})
	}
}

// TestConvertExpression_DefaultGrammarTails verifies Legado selectors with
// replace chains, scripts and custom attributes reach any-reader intact
func TestConvertExpression_DefaultGrammarTails(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"class.content@html##广告.*", ".content@html##广告.*"},
		{"tag.img@data-src", "@css:img@data-src"},
		{"tag.meta@content", "@css:meta@content"},
		{"class.x@text@js:result.trim()", ".x@text@js:result.trim()"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			canonical := NormalizeExpression(tt.input, rule.FormatLegado)
			assert.Equal(t, tt.expected, DenormalizeExpression(canonical, rule.FormatAnyReader))
		})
	}
}

// TestExpressionConverter_All verifies the map helpers
func TestExpressionConverter_All(t *testing.T) {
	c := NewExpressionConverter(rule.FormatAnyReader, Options{})
	assert.Equal(t, rule.FormatAnyReader, c.Format)

	normalized := c.NormalizeAll(map[string]string{
		"list": "//li",
		"name": "text",
	})
	assert.Equal(t, map[string]string{"list": "@xpath://li", "name": "text"}, normalized)
	assert.Equal(t, map[string]string{"list": "//li", "name": "text"}, c.DenormalizeAll(normalized))
}

// TestValidateExpressions verifies every expression field is checked
func TestValidateExpressions(t *testing.T) {
	r := &rule.UniversalRule{
		ID:   "x",
		Name: "X",
		Search: &rule.SearchRule{
			List: "@xpath://li",
			Name: "@css:div//a",
		},
		Content: &rule.ContentRule{Items: "@regex:("},
	}

	result := ValidateExpressions(r)
	assert.False(t, result.Valid)
	fields := map[string]bool{}
	for _, e := range result.Errors {
		assert.Equal(t, CodeInvalidExpression, e.Code)
		fields[e.Field] = true
	}
	assert.Equal(t, map[string]bool{"content.items": true, "search.name": true}, fields)
}
