package jsoup

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
)

// ErrUnsupportedSelector is returned by Select for text that is neither
// Default grammar, CSS nor XPath.
var ErrUnsupportedSelector = errors.New("selector is not css or xpath")

// ErrScriptTail is returned by Select for selectors ending in an @js:
// post-script, which Select does not run.
var ErrScriptTail = errors.New("selector has a script tail")

// Select runs expr against an HTML page and returns the extracted values
// in document order. Default grammar is first rewritten for target. A
// trailing ##pattern##replacement chain is applied to every value.
func Select(page io.Reader, expr string, target Target) ([]string, error) {
	rendered, tail := splitTail(ConvertTo(strings.TrimSpace(expr), target))
	if strings.Contains(tail, "@js:") {
		return nil, fmt.Errorf("%w: %q", ErrScriptTail, expr)
	}
	rules, err := compileReplace(tail)
	if err != nil {
		return nil, err
	}

	var out []string
	switch {
	case strings.HasPrefix(rendered, "@css:"):
		out, err = selectCSS(page, strings.TrimPrefix(rendered, "@css:"))
	case strings.HasPrefix(rendered, "@xpath:"), strings.HasPrefix(rendered, "@XPath:"):
		out, err = selectXPath(page, rendered[len("@xpath:"):])
	case strings.HasPrefix(rendered, "//"):
		out, err = selectXPath(page, rendered)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSelector, expr)
	}
	if err != nil {
		return nil, err
	}

	for i, v := range out {
		for _, r := range rules {
			v = r.re.ReplaceAllString(v, r.with)
		}
		out[i] = v
	}
	return out, nil
}

type replacement struct {
	re   *regexp.Regexp
	with string
}

// compileReplace parses a ##pattern##replacement chain. A pattern with no
// replacement deletes its matches.
func compileReplace(tail string) ([]replacement, error) {
	if tail == "" {
		return nil, nil
	}
	parts := strings.Split(strings.TrimPrefix(tail, "##"), "##")

	var rules []replacement
	for i := 0; i < len(parts); i += 2 {
		re, err := regexp.Compile(parts[i])
		if err != nil {
			return nil, fmt.Errorf("invalid replace pattern %q: %w", parts[i], err)
		}
		r := replacement{re: re}
		if i+1 < len(parts) {
			r.with = parts[i+1]
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// splitAttr separates a trailing @attr from a CSS selector.
func splitAttr(body string) (string, string) {
	i := strings.LastIndex(body, "@")
	if i < 0 {
		return body, "text"
	}
	return body[:i], strings.ToLower(body[i+1:])
}

func selectCSS(page io.Reader, body string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	selector, attr := splitAttr(body)
	matcher, err := cascadia.Compile(strings.TrimSpace(selector))
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}

	var out []string
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		switch attr {
		case "text":
			out = append(out, strings.TrimSpace(s.Text()))
		case "html", "innerhtml":
			h, _ := s.Html()
			out = append(out, h)
		case "outerhtml":
			h, _ := goquery.OuterHtml(s)
			out = append(out, h)
		default:
			if v, ok := s.Attr(attr); ok {
				out = append(out, v)
			}
		}
	})
	return out, nil
}

func selectXPath(page io.Reader, expr string) ([]string, error) {
	root, err := htmlquery.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}

	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
	}
	return out, nil
}
