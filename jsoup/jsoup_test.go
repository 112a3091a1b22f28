package jsoup

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

// TestIsDefaultSyntax verifies detection of the Default grammar
func TestIsDefaultSyntax(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"class.odd.0@tag.a.0@text", true},
		{"id.list@tag.li", true},
		{"Tag.div@text", true},
		{"children.0@text", true},
		{"@css:.odd a", false},
		{"//div[@class='x']", false},
		{"$.data.books", false},
		{"<js>result</js>", false},
		{".content@text", false},
		{"classic", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDefaultSyntax(tt.input))
		})
	}
}

// TestParseSegments verifies names, indexes and attribute segments
func TestParseSegments(t *testing.T) {
	segments := ParseSegments("class.odd.0@tag.a@tag.li.-1@href")
	require.Len(t, segments, 4)
	assert.Equal(t, Segment{Type: SegmentClass, Name: "odd", Index: intPtr(0)}, segments[0])
	assert.Equal(t, Segment{Type: SegmentTag, Name: "a"}, segments[1])
	assert.Equal(t, Segment{Type: SegmentTag, Name: "li", Index: intPtr(-1)}, segments[2])
	assert.Equal(t, Segment{Type: SegmentAttr, Attr: "href"}, segments[3])

	segments = ParseSegments("tag.a.x@unknown@text")
	require.Len(t, segments, 2)
	assert.Nil(t, segments[0].Index, "non-numeric index selects all")
	assert.Equal(t, Segment{Type: SegmentAttr, Attr: "text"}, segments[1])

	segments = ParseSegments("tag.img@data-src")
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{Type: SegmentAttr, Attr: "data-src"}, segments[1])
}

// TestToCSS_Tails verifies replace chains, scripts and arbitrary attribute
// names survive conversion
func TestToCSS_Tails(t *testing.T) {
	tests := []struct {
		input string
		css   string
		xpath string
	}{
		{"class.content@html##广告.*", "@css:.content@html##广告.*", `@xpath://*[contains(@class, "content")]/@html##广告.*`},
		{"tag.img@data-src", "@css:img@data-src", "@xpath://img/@data-src"},
		{"tag.meta@content", "@css:meta@content", "@xpath://meta/@content"},
		{"class.x@text@js:result.trim()", "@css:.x@text@js:result.trim()", `@xpath://*[contains(@class, "x")]/text()@js:result.trim()`},
		{"class.x@text##a##b@js:result", "@css:.x@text##a##b@js:result", `@xpath://*[contains(@class, "x")]/text()##a##b@js:result`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.css, ToCSS(tt.input))
			assert.Equal(t, tt.xpath, ToXPath(tt.input))
		})
	}
}

// TestToCSS verifies Default grammar becomes CSS with 1-based positions
func TestToCSS(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"class.odd.0@tag.a.0@text", "@css:.odd:nth-child(1) a:nth-child(1)@text"},
		{"id.list@tag.dd@tag.a@href", "@css:#list dd a@href"},
		{"class.book@children@src", "@css:.book > *@src"},
		{"tag.li.-1@html", "@css:li:nth-last-child(1)@html"},
		{"class.intro", "@css:.intro@text"},
		{".already.css", ".already.css"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToCSS(tt.input))
		})
	}
}

// TestToXPath verifies Default grammar becomes XPath
func TestToXPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"class.odd.0@tag.a.0@text", `@xpath:((//*[contains(@class, "odd")])[1]//a)[1]/text()`},
		{"id.list@tag.a@href", `@xpath://*[@id="list"]//a/@href`},
		{"tag.li.-1", `@xpath:(//li)[last()]/text()`},
		{"tag.li.-2@text", `@xpath:(//li)[last()-1]/text()`},
		{"class.book@children", `@xpath://*[contains(@class, "book")]/*/text()`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToXPath(tt.input))
		})
	}
}

// TestConvertTo verifies CSS is preferred unless XPath is requested
func TestConvertTo(t *testing.T) {
	assert.Equal(t, "@css:#info h1@text", Convert("id.info@tag.h1@text"))
	assert.Equal(t, `@xpath://*[@id="info"]//h1/text()`, ConvertTo("id.info@tag.h1@text", TargetXPath))
	assert.Equal(t, "@json:$.name", ConvertTo("@json:$.name", TargetXPath))
}

// TestConvertAll verifies only Default grammar values change
func TestConvertAll(t *testing.T) {
	got := ConvertAll(map[string]string{
		"name":    "class.title@text",
		"author":  "@css:.author@text",
		"content": "",
	})
	assert.Equal(t, map[string]string{
		"name":    "@css:.title@text",
		"author":  "@css:.author@text",
		"content": "",
	}, got)
}

const sampleHTML = `<html><body>
<div id="info"><h1>Night Watch</h1><p class="author">Anon</p></div>
<ul class="list"><li>Chapter 1</li><li>Chapter 2</li><li>Chapter 3</li></ul>
</body></html>`

func splitCSS(expr string) (string, string) {
	body := strings.TrimPrefix(expr, "@css:")
	i := strings.LastIndex(body, "@")
	return body[:i], body[i+1:]
}

// TestCrossCheck verifies the CSS and XPath renderings select the same
// text in a sample document
func TestCrossCheck(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sampleHTML))
	require.NoError(t, err)
	root, err := htmlquery.Parse(strings.NewReader(sampleHTML))
	require.NoError(t, err)

	for _, expr := range []string{
		"id.info@tag.h1@text",
		"class.author@text",
		"class.list@tag.li.1@text",
		"class.list@tag.li.-1@text",
	} {
		t.Run(expr, func(t *testing.T) {
			selector, attr := splitCSS(ToCSS(expr))
			require.Equal(t, "text", attr)
			cssText := strings.TrimSpace(doc.Find(selector).First().Text())

			nodes, err := htmlquery.QueryAll(root, strings.TrimPrefix(ToXPath(expr), "@xpath:"))
			require.NoError(t, err)
			require.NotEmpty(t, nodes)
			xpathText := strings.TrimSpace(htmlquery.InnerText(nodes[0]))

			assert.NotEmpty(t, cssText)
			assert.Equal(t, cssText, xpathText)
		})
	}
}

// TestSelect verifies both targets extract the same values from a page
func TestSelect(t *testing.T) {
	for _, target := range []Target{TargetCSS, TargetXPath} {
		t.Run(string(target), func(t *testing.T) {
			got, err := Select(strings.NewReader(sampleHTML), "class.list@tag.li@text", target)
			require.NoError(t, err)
			assert.Equal(t, []string{"Chapter 1", "Chapter 2", "Chapter 3"}, got)

			got, err = Select(strings.NewReader(sampleHTML), "id.info@tag.h1@text", target)
			require.NoError(t, err)
			assert.Equal(t, []string{"Night Watch"}, got)
		})
	}
}

// TestSelect_Dialects verifies already-shaped selectors and rejections
func TestSelect_Dialects(t *testing.T) {
	got, err := Select(strings.NewReader(sampleHTML), "@css:.author@text", TargetXPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anon"}, got)

	got, err = Select(strings.NewReader(sampleHTML), "//p[@class='author']/@class", TargetCSS)
	require.NoError(t, err)
	assert.Equal(t, []string{"author"}, got)

	_, err = Select(strings.NewReader(sampleHTML), "@json:$.name", TargetCSS)
	assert.ErrorIs(t, err, ErrUnsupportedSelector)

	_, err = Select(strings.NewReader(sampleHTML), "@css:[[@text", TargetCSS)
	assert.Error(t, err)
}

// TestSelect_Tails verifies attribute names and replace chains are applied
func TestSelect_Tails(t *testing.T) {
	const page = `<html><head><meta name="k" content="Night"></head><body>
<img src="blank.gif" data-src="cover.jpg">
<div class="content">Chapter text 广告 buy now</div>
</body></html>`

	for _, target := range []Target{TargetCSS, TargetXPath} {
		t.Run(string(target), func(t *testing.T) {
			got, err := Select(strings.NewReader(page), "tag.img@data-src", target)
			require.NoError(t, err)
			assert.Equal(t, []string{"cover.jpg"}, got)

			got, err = Select(strings.NewReader(page), "tag.meta@content", target)
			require.NoError(t, err)
			assert.Equal(t, []string{"Night"}, got)

			got, err = Select(strings.NewReader(page), "class.content@text##\\s*广告.*", target)
			require.NoError(t, err)
			assert.Equal(t, []string{"Chapter text"}, got)

			_, err = Select(strings.NewReader(page), "class.content@text@js:result", target)
			assert.ErrorIs(t, err, ErrScriptTail)
		})
	}
}
