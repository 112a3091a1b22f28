package converter

import (
	"fmt"
	"sort"

	"github.com/pevans/booksource/expression"
	"github.com/pevans/booksource/rule"
)

// fieldCodec moves field values between a dialect document and the
// canonical rule. On the way in it records the raw spelling of every
// field whose default rendering would differ, and on the way out it
// restores that spelling while the canonical value still matches it.
type fieldCodec struct {
	exprs   *ExpressionConverter
	strict  bool
	sources map[string]string
	replay  bool
	err     error
}

func newInboundCodec(format rule.Format, opts Options) *fieldCodec {
	return &fieldCodec{
		exprs:   NewExpressionConverter(format, opts),
		strict:  opts.Strict,
		sources: make(map[string]string),
	}
}

func newOutboundCodec(format rule.Format, r *rule.UniversalRule, opts Options) *fieldCodec {
	c := &fieldCodec{exprs: NewExpressionConverter(format, opts)}
	if r.Meta != nil && r.Meta.OriginFormat == format && r.FieldSources != nil {
		c.sources = r.FieldSources
		c.replay = true
	}
	return c
}

// in normalizes raw and remembers its spelling when needed.
func (c *fieldCodec) in(path, raw string, kind fieldKind) string {
	if raw == "" {
		return ""
	}
	value := c.exprs.normalize(raw, kind)

	if c.strict && c.err == nil && (kind == kindExpr || kind == kindList) {
		if result := expression.NewValidator().Validate(value); !result.Valid {
			c.err = fmt.Errorf("field %s: invalid expression %q: %s", path, raw, result.Errors[0].Message)
		}
	}

	if c.exprs.denormalize(value, kind) != raw {
		c.sources[path] = raw
	}
	return value
}

// out denormalizes value, preferring the recorded spelling.
func (c *fieldCodec) out(path, value string, kind fieldKind) string {
	if value == "" {
		return ""
	}
	if c.replay {
		if raw, ok := c.sources[path]; ok && c.exprs.normalize(raw, kind) == value {
			return raw
		}
	}
	return c.exprs.denormalize(value, kind)
}

// flagIn reads an optional boolean, remembering an explicit false.
func (c *fieldCodec) flagIn(path string, raw *bool) bool {
	if raw == nil {
		return false
	}
	if !*raw {
		c.sources[path] = "false"
	}
	return *raw
}

// flagOut writes true, or false when the original said so explicitly.
func (c *fieldCodec) flagOut(path string, value bool) *bool {
	if value {
		return boolPtr(true)
	}
	if c.replay && c.sources[path] == "false" {
		return boolPtr(false)
	}
	return nil
}

// spelling returns the recorded raw text of path, if any.
func (c *fieldCodec) spelling(path string) (string, bool) {
	if !c.replay {
		return "", false
	}
	raw, ok := c.sources[path]
	return raw, ok
}

// fieldSources returns the recorded spellings, or nil when there are none.
func (c *fieldCodec) fieldSources() map[string]string {
	if len(c.sources) == 0 {
		return nil
	}
	return c.sources
}

// ExpressionFields lists the expression-bearing fields of r by dotted path.
func ExpressionFields(r *rule.UniversalRule) map[string]string {
	fields := make(map[string]string)
	add := func(path, value string) {
		if value != "" {
			fields[path] = value
		}
	}

	if s := r.Search; s != nil {
		add("search.list", s.List)
		add("search.name", s.Name)
		add("search.cover", s.Cover)
		add("search.author", s.Author)
		add("search.description", s.Description)
		add("search.latestChapter", s.LatestChapter)
		add("search.wordCount", s.WordCount)
		add("search.tags", s.Tags)
		add("search.result", s.Result)
	}
	if d := r.Detail; d != nil {
		add("detail.init", d.Init)
		add("detail.name", d.Name)
		add("detail.author", d.Author)
		add("detail.cover", d.Cover)
		add("detail.description", d.Description)
		add("detail.latestChapter", d.LatestChapter)
		add("detail.wordCount", d.WordCount)
		add("detail.tags", d.Tags)
		add("detail.tocUrl", d.TocURL)
	}
	if ch := r.Chapter; ch != nil {
		add("chapter.list", ch.List)
		add("chapter.name", ch.Name)
		add("chapter.cover", ch.Cover)
		add("chapter.time", ch.Time)
		add("chapter.result", ch.Result)
		add("chapter.nextUrl", ch.NextURL)
		add("chapter.isVip", ch.IsVip)
		add("chapter.isPay", ch.IsPay)
		if ch.MultiRoads != nil {
			add("chapter.multiRoads.roads", ch.MultiRoads.Roads)
			add("chapter.multiRoads.roadName", ch.MultiRoads.RoadName)
		}
	}
	if d := r.Discover; d != nil {
		add("discover.list", d.List)
		add("discover.name", d.Name)
		add("discover.cover", d.Cover)
		add("discover.author", d.Author)
		add("discover.description", d.Description)
		add("discover.tags", d.Tags)
		add("discover.latestChapter", d.LatestChapter)
		add("discover.wordCount", d.WordCount)
		add("discover.result", d.Result)
		add("discover.nextUrl", d.NextURL)
	}
	if ct := r.Content; ct != nil {
		add("content.items", ct.Items)
		add("content.nextUrl", ct.NextURL)
	}
	return fields
}

// ValidateExpressions runs the expression validator over every expression
// field of r. Invalid fields are errors; validator warnings are reported
// with the field they came from.
func ValidateExpressions(r *rule.UniversalRule) ValidationResult {
	result := newValidationResult()
	fields := ExpressionFields(r)

	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	validator := expression.NewValidator()
	for _, path := range paths {
		check := validator.Validate(fields[path])
		for _, e := range check.Errors {
			result.addError(path, e.Message, CodeInvalidExpression)
		}
		for _, w := range check.Warnings {
			result.addWarning(path, w.Message, string(w.Kind))
		}
	}
	return result
}
