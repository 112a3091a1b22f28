package expression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetect verifies detection precedence over prefixes, shapes and the
// CSS heuristic
func TestDetect(t *testing.T) {
	tests := []struct {
		input    string
		expected Dialect
	}{
		{"@css:.title", CSS},
		{"@xpath://div", XPath},
		{"@XPath://div", XPath},
		{"@json:$.name", JSON},
		{"@js:result", JS},
		{"@regex:\\d+", Regex},
		{"@filter:\\d+", Regex},
		{"//*[@class=\"mulu\"]/li", XPath},
		{"(//li)[1]", XPath},
		{"$.data.books", JSON},
		{"$[0].name", JSON},
		{"<js>result</js>", JS},
		{"<js>result", Literal},
		{".c2 a@href", CSS},
		{"#content", CSS},
		{"[data-id]", CSS},
		{"div.content@text", CSS},
		{"text", Literal},
		{"href", Literal},
		{"https://www.ixs.cc/sort/{{page}}.html", Literal},
		{".a && .b", Logical},
		{"lastchapter&&lastupdate##\\n##·", Logical},
		{"", Literal},
		{"a[b)", CSS},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect(tt.input))
		})
	}
}

// TestDialect_String verifies every dialect has a stable name
func TestDialect_String(t *testing.T) {
	names := []string{}
	for _, d := range []Dialect{CSS, XPath, JSON, JS, Regex, Literal, Logical} {
		names = append(names, d.String())
	}
	assert.Equal(t, []string{"css", "xpath", "json", "js", "regex", "literal", "logical"}, names)

	var d Dialect
	require.NoError(t, d.UnmarshalText([]byte("xpath")))
	assert.Equal(t, XPath, d)
	assert.Error(t, d.UnmarshalText([]byte("sql")))
}

// TestNormalize verifies prefix canonicalization
func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@XPath://div/text()", "@xpath://div/text()"},
		{"@filter:\\d+", "@regex:\\d+"},
		{"//div/a/@href", "@xpath://div/a/@href"},
		{"(//li)[2]", "@xpath:(//li)[2]"},
		{"$.data.books", "@json:$.data.books"},
		{"<js> result.trim() </js>", "@js:result.trim()"},
		{".content,.text@text", "@css:.content,.text@text"},
		{"  #list dd a@href ", "@css:#list dd a@href"},
		{"div.content@text", "div.content@text"},
		{"@css:div.content", "@css:div.content"},
		{"text", "text"},
		{"//a/@href && $.url", "@xpath://a/@href && @json:$.url"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

// TestMinimize verifies Minimize undoes Normalize for implicit shapes and
// keeps prefixes that carry meaning
func TestMinimize(t *testing.T) {
	for _, raw := range []string{
		"//*[@class=\"left\"]/section/ul/li[position()>1]",
		".n2@text",
		".c2 a@href##\\d+\\.html",
		"$.data.books",
		"//a/@href || .link@href",
		"text",
	} {
		assert.Equal(t, raw, Minimize(Normalize(raw)), raw)
	}

	assert.Equal(t, "@js:result", Minimize("@js:result"))
	assert.Equal(t, "@css:div a", Minimize("@css:div a"))
	assert.Equal(t, "@regex:\\d+", Minimize("@regex:\\d+"))
}

// TestStripPrefix verifies prefix and tag removal
func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "//div", StripPrefix("@XPath://div"))
	assert.Equal(t, "\\d+", StripPrefix("@filter:\\d+"))
	assert.Equal(t, "result", StripPrefix("<js>result</js>"))
	assert.Equal(t, ".x", StripPrefix(" .x "))
}

// TestParse_RegexSuffix verifies the attr and replace suffixes of a CSS
// operand
func TestParse_RegexSuffix(t *testing.T) {
	node, err := Parse(".t@text##<em>##")
	require.NoError(t, err)

	expr, ok := node.(*Expression)
	require.True(t, ok)
	assert.Equal(t, CSS, expr.Dialect)
	assert.Equal(t, ".t", expr.Value)
	require.NotNil(t, expr.PostProcess)
	assert.Equal(t, "text", expr.PostProcess.Attr)
	assert.Equal(t, []ReplaceRule{{Pattern: "<em>", Replacement: ""}}, expr.PostProcess.Replace)
	assert.Nil(t, expr.PostProcess.Index)
}

// TestParse_ReplaceSpellings verifies a lone ##pattern and a trailing
// ##pattern## both delete matches, and chained pairs stay ordered
func TestParse_ReplaceSpellings(t *testing.T) {
	tests := []struct {
		input    string
		value    string
		expected []ReplaceRule
	}{
		{"articlename##<\\/?em>", "articlename", []ReplaceRule{{Pattern: "<\\/?em>"}}},
		{"articlename##<\\/?em>##", "articlename", []ReplaceRule{{Pattern: "<\\/?em>"}}},
		{"title##a##b##c##d", "title", []ReplaceRule{{Pattern: "a", Replacement: "b"}, {Pattern: "c", Replacement: "d"}}},
		{"title##a##b##c", "title", []ReplaceRule{{Pattern: "a", Replacement: "b"}, {Pattern: "c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			require.NoError(t, err)
			expr := node.(*Expression)
			assert.Equal(t, CSS, expr.Dialect, "a word followed by # reads as a tag selector")
			assert.Equal(t, tt.value, expr.Value)
			assert.Equal(t, tt.expected, expr.PostProcess.Replace)
		})
	}
}

// TestParse_Index verifies positive and negative index suffixes
func TestParse_Index(t *testing.T) {
	node, err := Parse("@css:.list li[-1]@text")
	require.NoError(t, err)
	expr := node.(*Expression)
	assert.Equal(t, ".list li", expr.Value)
	assert.Equal(t, "text", expr.PostProcess.Attr)
	assert.Equal(t, Position(-1), expr.PostProcess.Index)

	node, err = Parse("(//li)[2]")
	require.NoError(t, err)
	expr = node.(*Expression)
	assert.Equal(t, XPath, expr.Dialect)
	assert.Equal(t, "(//li)", expr.Value)
	assert.Equal(t, Position(2), expr.PostProcess.Index)
}

// TestParse_AttrOnlyForCSS verifies @attr is not stripped from other
// dialects
func TestParse_AttrOnlyForCSS(t *testing.T) {
	node, err := Parse("//a/@href")
	require.NoError(t, err)
	expr := node.(*Expression)
	assert.Equal(t, "//a/@href", expr.Value)
	assert.Nil(t, expr.PostProcess)
}

// TestParse_Script verifies script bodies keep their suffix-like text
func TestParse_Script(t *testing.T) {
	node, err := Parse("@js:result[0] && other")
	require.NoError(t, err)
	expr, ok := node.(*Expression)
	require.True(t, ok, "@js: consumes the rest of the text")
	assert.Equal(t, JS, expr.Dialect)
	assert.Equal(t, "result[0] && other", expr.Value)
}

// TestParse_Logical verifies chains fold to the left
func TestParse_Logical(t *testing.T) {
	node, err := Parse(".a@text && //b || $.c")
	require.NoError(t, err)

	root, ok := node.(*LogicalNode)
	require.True(t, ok)
	assert.Equal(t, Or, root.Operator)

	left, ok := root.Left.(*LogicalNode)
	require.True(t, ok)
	assert.Equal(t, And, left.Operator)
	assert.Equal(t, CSS, left.Left.(*Expression).Dialect)
	assert.Equal(t, XPath, left.Right.(*Expression).Dialect)
	assert.Equal(t, JSON, root.Right.(*Expression).Dialect)

	assert.Equal(t, "@css:.a@text && @xpath://b || @json:$.c", Serialize(node))
}

// TestParse_OperatorsInsideBrackets verifies nested and quoted operators
// do not split
func TestParse_OperatorsInsideBrackets(t *testing.T) {
	for _, input := range []string{
		"//a[@x and (b || c)]",
		`.a[title="x && y"]`,
		"@css:.x##a&&b",
	} {
		_, isLogical := mustParse(t, input).(*LogicalNode)
		assert.Equal(t, input == "@css:.x##a&&b", isLogical, input)
	}
}

// TestParse_Apostrophe verifies a quote outside brackets is plain text
func TestParse_Apostrophe(t *testing.T) {
	node := mustParse(t, "it's && .a")
	root, ok := node.(*LogicalNode)
	require.True(t, ok)
	assert.Equal(t, And, root.Operator)
	assert.Equal(t, &Expression{Dialect: Literal, Value: "it's"}, root.Left)
	assert.Equal(t, CSS, root.Right.(*Expression).Dialect)

	assert.Equal(t, Logical, Detect("it's && .a"))
	assert.Equal(t, Logical, Detect(`say "hi || .b`))

	_, isLogical := mustParse(t, `.a[title='x && y']`).(*LogicalNode)
	assert.False(t, isLogical, "quotes inside brackets still hide operators")
}

// TestParse_Reverse verifies the list reverse marker is read off every
// dialect and written back last
func TestParse_Reverse(t *testing.T) {
	expr := mustParse(t, "@css:.list li@text@reverse").(*Expression)
	assert.Equal(t, CSS, expr.Dialect)
	assert.Equal(t, ".list li", expr.Value)
	require.NotNil(t, expr.PostProcess)
	assert.Equal(t, "text", expr.PostProcess.Attr)
	assert.True(t, expr.PostProcess.Reverse)
	assert.Equal(t, "@css:.list li@text@reverse", Serialize(expr))

	expr = mustParse(t, "@xpath://li/a@reverse").(*Expression)
	assert.Equal(t, "//li/a", expr.Value)
	assert.Equal(t, &PostProcess{Reverse: true}, expr.PostProcess)

	expr = mustParse(t, "@css:.a@text##x##y@reverse").(*Expression)
	assert.Equal(t, []ReplaceRule{{Pattern: "x", Replacement: "y"}}, expr.PostProcess.Replace)
	assert.True(t, expr.PostProcess.Reverse)
	assert.Equal(t, "@css:.a@text##x##y@reverse", Serialize(expr))
}

func mustParse(t *testing.T, input string) Node {
	t.Helper()
	node, err := Parse(input)
	require.NoError(t, err, input)
	return node
}

// TestParse_Errors verifies malformed input is rejected with an offset
func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input  string
		offset int
	}{
		{"", 0},
		{"   ", 0},
		{"a[b", 1},
		{"a]", 1},
		{".a &&", 5},
		{"&& .a", 0},
		{".a && && .b", 6},
		{"@css:", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.offset, perr.Offset)
		})
	}
}

// TestSerialize_RoundTrip verifies serialize(parse(x)) is equivalent to x
func TestSerialize_RoundTrip(t *testing.T) {
	for _, input := range []string{
		".c2 a@href##\\d+\\.html",
		"//*[@class=\"mulu\"]/li/*[@rel=\"nofollow\"]",
		"@css:.list li[-1]@text",
		"$.data.books",
		"@XPath://div",
		"articlename##<\\/?em>",
		"lastchapter&&lastupdate##\\n##·",
		"@json:$.chapters[*]@reverse",
	} {
		t.Run(input, func(t *testing.T) {
			first := mustParse(t, input)
			again := mustParse(t, Serialize(first))
			assert.Equal(t, first, again)
			assert.Equal(t, Normalize(Serialize(first)), Serialize(again))
		})
	}
}

// TestSerialize_Next verifies the cascading link is written after the
// post-processing suffixes
func TestSerialize_Next(t *testing.T) {
	expr := NewCSS(".title", "text")
	expr.PostProcess.Replace = []ReplaceRule{{Pattern: "\\s+"}}
	expr.Next = NewXPath("//h1/text()")

	assert.Equal(t, "@css:.title@text##\\s+## && @xpath://h1/text()", Serialize(expr))
	assert.Equal(t, "@json:$.name", Serialize(NewJSONPath("$.name")))
	assert.Equal(t, "@js:result", Serialize(NewScript("result")))
	assert.Equal(t, "", Serialize(nil))
}

// TestMergeReplaceRules verifies de-duplication keeps the first of each
func TestMergeReplaceRules(t *testing.T) {
	merged := MergeReplaceRules([]ReplaceRule{
		{Pattern: "a", Replacement: "b"},
		{Pattern: "c", Replacement: ""},
		{Pattern: "a", Replacement: "b", Flags: "g"},
		{Pattern: "a", Replacement: "x"},
	})
	assert.Equal(t, []ReplaceRule{
		{Pattern: "a", Replacement: "b"},
		{Pattern: "c", Replacement: ""},
		{Pattern: "a", Replacement: "x"},
	}, merged)
}

// TestNode_JSON verifies the tree renders with dialect names
func TestNode_JSON(t *testing.T) {
	data, err := json.Marshal(mustParse(t, ".a@text || $.b"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "logical", decoded["type"])
	assert.Equal(t, "||", decoded["operator"])
	left := decoded["left"].(map[string]any)
	assert.Equal(t, "css", left["type"])
	assert.Equal(t, ".a", left["value"])
}
