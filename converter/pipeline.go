package converter

import (
	"strings"

	"github.com/pevans/booksource/expression"
	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
	"github.com/pevans/booksource/variables"
)

// fieldKind selects which rewriting steps apply to a document field.
type fieldKind int

const (
	// kindText fields are copied as they are.
	kindText fieldKind = iota
	// kindURL fields only have their placeholders rewritten.
	kindURL
	// kindExpr fields go through the whole expression pipeline.
	kindExpr
	// kindList fields are expressions that may carry a reverse marker.
	kindList
)

// ExpressionConverter rewrites expression text between one dialect and
// canonical form.
type ExpressionConverter struct {
	Format      rule.Format
	JsoupTarget jsoup.Target
}

// NewExpressionConverter returns a converter for format.
func NewExpressionConverter(format rule.Format, opts Options) *ExpressionConverter {
	target := opts.JsoupTarget
	if target == "" {
		target = jsoup.TargetCSS
	}
	return &ExpressionConverter{Format: format, JsoupTarget: target}
}

// NormalizeExpression rewrites one dialect expression into canonical form.
func NormalizeExpression(text string, format rule.Format) string {
	return NewExpressionConverter(format, Options{}).Normalize(text)
}

// DenormalizeExpression rewrites canonical text into the dialect spelling.
func DenormalizeExpression(text string, format rule.Format) string {
	return NewExpressionConverter(format, Options{}).Denormalize(text)
}

// Normalize rewrites one expression into canonical form.
func (c *ExpressionConverter) Normalize(text string) string {
	return c.normalize(text, kindExpr)
}

// Denormalize rewrites canonical text into the converter's dialect.
func (c *ExpressionConverter) Denormalize(text string) string {
	return c.denormalize(text, kindExpr)
}

// NormalizeAll normalizes every value of fields.
func (c *ExpressionConverter) NormalizeAll(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		out[key] = c.Normalize(value)
	}
	return out
}

// DenormalizeAll denormalizes every value of fields.
func (c *ExpressionConverter) DenormalizeAll(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		out[key] = c.Denormalize(value)
	}
	return out
}

func (c *ExpressionConverter) normalize(text string, kind fieldKind) string {
	if strings.TrimSpace(text) == "" || kind == kindText {
		return text
	}
	if kind == kindURL {
		return variables.FromDialect(text, c.Format)
	}

	reversed := false
	if kind == kindList && c.Format == rule.FormatLegado {
		text, reversed = variables.HandleReverse(text)
	}

	switch c.Format {
	case rule.FormatLegado:
		text = expression.MapOperands(text, c.legadoOperand)
		text = variables.NormalizeLegado(text)
	case rule.FormatAnyReader:
		text = variables.NormalizeAnyReader(text)
	case rule.FormatUniversal, rule.FormatUnknown:
	}
	text = expression.Normalize(text)

	if reversed {
		text = variables.AddReverse(text, rule.FormatUniversal)
	}
	return text
}

// legadoOperand expands Legado shorthands: a lone "*" selects every
// element, and Default-grammar selectors become CSS or XPath.
func (c *ExpressionConverter) legadoOperand(op string) string {
	lead, trail := expression.Surrounding(op)
	trimmed := strings.TrimSpace(op)
	switch {
	case trimmed == "*":
		return lead + expression.CSS.Prefix() + "*" + trail
	case jsoup.IsDefaultSyntax(trimmed):
		return lead + jsoup.ConvertTo(trimmed, c.JsoupTarget) + trail
	}
	return op
}

func (c *ExpressionConverter) denormalize(text string, kind fieldKind) string {
	if strings.TrimSpace(text) == "" || kind == kindText {
		return text
	}
	if kind == kindURL {
		return variables.ToDialect(text, c.Format)
	}

	reversed := false
	if kind == kindList {
		if trimmed := strings.TrimSpace(text); strings.HasSuffix(trimmed, variables.ReverseSuffix) {
			text, reversed = variables.HandleReverse(trimmed)
		}
	}

	switch c.Format {
	case rule.FormatLegado:
		text = variables.DenormalizeLegado(text)
		text = expression.Minimize(text)
		text = expression.MapOperands(text, func(op string) string {
			lead, trail := expression.Surrounding(op)
			if strings.TrimSpace(op) == expression.CSS.Prefix()+"*" {
				return lead + "*" + trail
			}
			return op
		})
		if expression.Detect(text) == expression.JS && strings.HasPrefix(strings.TrimSpace(text), "@js:") {
			text = variables.PrefixToLegadoJSTag(strings.TrimSpace(text))
		}
	case rule.FormatAnyReader:
		text = variables.DenormalizeAnyReader(text)
		text = expression.Minimize(text)
	case rule.FormatUniversal, rule.FormatUnknown:
	}

	if reversed {
		text = variables.AddReverse(text, c.Format)
	}
	return text
}
