package converter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
)

func loadFixture(t *testing.T, name string) ([]byte, map[string]any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	return data, raw
}

// TestRoundTrip_AnyReader verifies an any-reader source survives a round
// trip through the canonical form
func TestRoundTrip_AnyReader(t *testing.T) {
	_, raw := loadFixture(t, "anyreader.json")
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, rule.ContentNovel, universal.ContentType)
	assert.Equal(t, "@xpath://*[@class=\"left\"]/section/ul/li[position()>1]", universal.Search.List)
	assert.Equal(t, "@css:.n2@text", universal.Search.Name)
	assert.Equal(t, "https://www.ixs.cc/search.htm?keyword={{keyword}}&pn={{page}}", universal.Search.URL)
	assert.Equal(t, "text", universal.Chapter.Name)
	require.NotNil(t, universal.Meta)
	assert.Equal(t, rule.FormatUniversal, universal.Meta.SourceFormat)
	assert.Equal(t, rule.FormatAnyReader, universal.Meta.OriginFormat)

	back, err := d.FromUniversal(universal, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.Empty(t, Compare(raw, back))
	assert.Equal(t, raw["discoverUrl"], back["discoverUrl"])
}

// TestRoundTrip_Legado verifies a Legado source survives a round trip,
// including script spelling and the "*" list shorthand
func TestRoundTrip_Legado(t *testing.T) {
	_, raw := loadFixture(t, "legado.json")
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://www.aaawz.cc", universal.Host)
	assert.Equal(t, "@css:*", universal.Chapter.List)
	assert.Equal(t, "@js:result", universal.Content.Items)
	assert.Equal(t, "https://www.aaawz.cc/", universal.Headers["referer"])
	assert.Equal(t, int64(1756047901346), universal.Meta.UpdatedAt)
	assert.Contains(t, universal.Search.URL, "keyword={{keyword}}&page={{page}}")
	require.NotNil(t, universal.Detail)
	assert.True(t, universal.Detail.Enabled)

	back, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Empty(t, Compare(raw, back))
	assert.Equal(t, raw["header"], back["header"])
	assert.Equal(t, "@js:result", back["ruleContent"].(map[string]any)["content"])
}

// TestRoundTrip_ThroughJSON verifies recorded spellings survive storing
// the canonical rule as JSON
func TestRoundTrip_ThroughJSON(t *testing.T) {
	_, raw := loadFixture(t, "legado.json")
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)

	stored, err := json.Marshal(universal)
	require.NoError(t, err)
	assert.Equal(t, rule.FormatUniversal, DetectJSON(stored))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stored, &decoded))
	back, err := d.Convert(decoded, rule.FormatLegado)
	require.NoError(t, err)
	assert.Empty(t, Compare(raw, back))
}

// TestConvert_LegadoToAnyReader verifies cross-dialect output
func TestConvert_LegadoToAnyReader(t *testing.T) {
	_, raw := loadFixture(t, "legado.json")
	d := NewDispatcher(Options{})

	out, err := d.Convert(raw, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.Equal(t, "@css:*", out["chapterList"])
	assert.Equal(t, "@js:result", out["contentItems"])
	assert.Equal(t, "3A小说", out["name"])
	assert.Equal(t, float64(1), out["contentType"])
	assert.Equal(t, rule.FormatAnyReader, d.Detect(out))

	// Legado source URLs become stable UUIDs.
	again, err := d.Convert(raw, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.Equal(t, out["id"], again["id"])
	assert.NotEqual(t, raw["bookSourceUrl"], out["id"])
}

// TestConvert_AnyReaderToLegado verifies placeholder and script spelling
// on the way into Legado
func TestConvert_AnyReaderToLegado(t *testing.T) {
	raw := map[string]any{
		"id":           "a8b7e1f2-0000-4000-8000-000000000001",
		"name":         "Example",
		"host":         "https://example.com",
		"contentType":  float64(1),
		"enableSearch": true,
		"searchUrl":    "$host/search?q=$keyword",
		"searchList":   ".list li",
		"contentItems": "@js:result.trim()",
	}
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, "{{host}}/search?q={{keyword}}", universal.Search.URL)

	out, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "{{baseUrl}}/search?q={{key}}", out["searchUrl"])
	assert.Equal(t, "https://example.com", out["bookSourceUrl"])
	assert.Equal(t, "<js>result.trim()</js>", out["ruleContent"].(map[string]any)["content"])
	assert.Equal(t, ".list li", out["ruleSearch"].(map[string]any)["bookList"])
}

// TestConvert_Reverse verifies list reverse markers change spelling
// between dialects
func TestConvert_Reverse(t *testing.T) {
	raw := map[string]any{
		"bookSourceUrl":  "https://example.com",
		"bookSourceName": "Example",
		"ruleToc": map[string]any{
			"chapterList": "-class.chapter@tag.a@href",
		},
	}
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, "@css:.chapter a@href@reverse", universal.Chapter.List)

	same, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "-class.chapter@tag.a@href", same["ruleToc"].(map[string]any)["chapterList"])

	universal.FieldSources = nil
	fresh, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "-.chapter a@href", fresh["ruleToc"].(map[string]any)["chapterList"])

	other, err := d.FromUniversal(universal, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.Equal(t, ".chapter a@href@reverse", other["chapterList"])
}

// TestConvert_ReplaceRegex verifies Legado body cleanup becomes canonical
// replace rules and keeps its spelling on the way back
func TestConvert_ReplaceRegex(t *testing.T) {
	raw := map[string]any{
		"bookSourceUrl":  "https://example.com",
		"bookSourceName": "Example",
		"ruleContent": map[string]any{
			"content":      "id.content@html",
			"replaceRegex": "##广告|本章完##",
		},
	}
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, []rule.ReplaceRule{{Pattern: "广告|本章完", IsRegex: true}}, universal.Content.ReplaceRules)
	assert.Nil(t, universal.Content.Legado)

	same, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "##广告|本章完##", same["ruleContent"].(map[string]any)["replaceRegex"])

	universal.FieldSources = nil
	universal.Content.ReplaceRules = []rule.ReplaceRule{
		{Pattern: "\\s+", Replacement: " ", IsRegex: true},
		{Pattern: "a.b"},
	}
	fresh, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "##\\s+## ##a\\.b", fresh["ruleContent"].(map[string]any)["replaceRegex"])
}

// TestConvert_StringNumbers verifies numbers and booleans written as
// strings still convert
func TestConvert_StringNumbers(t *testing.T) {
	d := NewDispatcher(Options{})

	_, raw := loadFixture(t, "legado.json")
	raw["customOrder"] = "3"
	raw["ruleBookInfo"] = map[string]any{"name": "class.title@text", "canReName": "true"}

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	require.NotNil(t, universal.Sort)
	assert.Equal(t, 3, *universal.Sort)
	require.NotNil(t, universal.Detail)
	require.NotNil(t, universal.Detail.CanRename)
	assert.True(t, *universal.Detail.CanRename)
	assert.Equal(t, "3", raw["customOrder"], "input is not modified")

	_, raw = loadFixture(t, "anyreader.json")
	raw["sort"] = "2"
	raw["enableSearch"] = float64(1)

	universal, err = d.ToUniversal(raw)
	require.NoError(t, err)
	require.NotNil(t, universal.Sort)
	assert.Equal(t, 2, *universal.Sort)
	require.NotNil(t, universal.Search)
	assert.True(t, universal.Search.Enabled)
}

// TestConvert_EditedFieldDropsSpelling verifies a recorded spelling is
// only reused while the canonical value still matches it
func TestConvert_EditedFieldDropsSpelling(t *testing.T) {
	_, raw := loadFixture(t, "legado.json")
	d := NewDispatcher(Options{})

	universal, err := d.ToUniversal(raw)
	require.NoError(t, err)
	universal.Content.Items = "@js:result.replace(/\\s+/g, '')"

	out, err := d.FromUniversal(universal, rule.FormatLegado)
	require.NoError(t, err)
	assert.Equal(t, "<js>result.replace(/\\s+/g, '')</js>", out["ruleContent"].(map[string]any)["content"])
}

// TestConvert_JsoupTarget verifies Default-grammar selectors follow the
// configured target
func TestConvert_JsoupTarget(t *testing.T) {
	raw := map[string]any{
		"bookSourceUrl":  "https://example.com",
		"bookSourceName": "Example",
		"ruleContent":    map[string]any{"content": "id.content@text"},
	}

	css, err := NewDispatcher(Options{}).ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, "@css:#content@text", css.Content.Items)

	xp, err := NewDispatcher(Options{JsoupTarget: jsoup.TargetXPath}).ToUniversal(raw)
	require.NoError(t, err)
	assert.Equal(t, jsoup.ToXPath("id.content@text"), xp.Content.Items)
}

// TestConvert_PreserveOriginal verifies unmodeled keys come back only when
// the original is kept
func TestConvert_PreserveOriginal(t *testing.T) {
	_, raw := loadFixture(t, "anyreader.json")
	raw["customField"] = "kept"

	out, err := NewDispatcher(Options{}).Convert(raw, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.NotContains(t, out, "customField")

	out, err = NewDispatcher(Options{PreserveOriginal: true}).Convert(raw, rule.FormatAnyReader)
	require.NoError(t, err)
	assert.Equal(t, "kept", out["customField"])

	out, err = NewDispatcher(Options{PreserveOriginal: true}).Convert(raw, rule.FormatLegado)
	require.NoError(t, err)
	assert.NotContains(t, out, "customField", "originals only apply to their own format")
}

// TestConvert_Strict verifies invalid expressions fail only in strict mode
func TestConvert_Strict(t *testing.T) {
	raw := map[string]any{
		"bookSourceUrl":  "https://example.com",
		"bookSourceName": "Example",
		"ruleSearch":     map[string]any{"name": "@css:div//a"},
	}

	_, err := NewDispatcher(Options{}).ToUniversal(raw)
	require.NoError(t, err)

	_, err = NewDispatcher(Options{Strict: true}).ToUniversal(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.name")
}

// TestConvert_Errors verifies structurally impossible input
func TestConvert_Errors(t *testing.T) {
	d := NewDispatcher(Options{})

	_, err := d.ToUniversal([]any{1, 2})
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = d.ToUniversal(map[string]any{"title": "nothing"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = d.ToUniversal(map[string]any{"bookSourceUrl": "", "bookSourceName": "x"})
	assert.ErrorIs(t, err, ErrMissingIdentity)

	_, err = d.FromUniversal(&rule.UniversalRule{ID: "x", Name: "y"}, rule.FormatUnknown)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

// TestConvertBatch verifies one bad document does not affect the others
func TestConvertBatch(t *testing.T) {
	_, ar := loadFixture(t, "anyreader.json")
	_, lg := loadFixture(t, "legado.json")
	d := NewDispatcher(Options{})

	results := d.ConvertBatch([]any{ar, "not a rule", lg, map[string]any{}}, rule.FormatUniversal)
	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.False(t, results[3].Success)

	for i, r := range results {
		assert.Equal(t, i, r.OriginalIndex)
	}

	var ce *ConversionError
	require.True(t, errors.As(results[1].Err, &ce))
	assert.Equal(t, 1, ce.Index)
	assert.ErrorIs(t, results[3].Err, ErrUnknownFormat)

	meta := results[2].Rule["_meta"].(map[string]any)
	assert.Equal(t, "universal", meta["sourceFormat"])
}

// TestDetectJSON verifies the byte-level detector agrees with Detect
func TestDetectJSON(t *testing.T) {
	d := NewDispatcher(Options{})
	docs := []string{
		`{"bookSourceUrl":"https://a.com","bookSourceName":"A"}`,
		`{"id":"x","name":"X","contentType":1}`,
		`{"id":"x","name":"X","contentType":"1"}`,
		`{"id":"x","name":"X","contentType":1,"bookSourceName":2}`,
		`{"_meta":{"sourceFormat":"universal"},"id":"x"}`,
		`{"_meta":{"sourceFormat":"legado"}}`,
		`[1,2]`,
		`not json`,
	}
	expected := []rule.Format{
		rule.FormatLegado,
		rule.FormatAnyReader,
		rule.FormatUnknown,
		rule.FormatUnknown,
		rule.FormatUniversal,
		rule.FormatUnknown,
		rule.FormatUnknown,
		rule.FormatUnknown,
	}

	for i, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			assert.Equal(t, expected[i], DetectJSON([]byte(doc)))

			var raw any
			if json.Unmarshal([]byte(doc), &raw) == nil {
				assert.Equal(t, expected[i], d.Detect(raw))
			}
		})
	}
}

// TestDecodeDocuments verifies arrays and single objects
func TestDecodeDocuments(t *testing.T) {
	docs, err := DecodeDocuments([]byte(`[{"a":1},{"b":2}]`))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = DecodeDocuments([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"a": float64(1)}}, docs)

	_, err = DecodeDocuments([]byte(`"text"`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeDocuments([]byte(`{`))
	assert.Error(t, err)
}
