// Package expression parses, normalizes, serializes and validates the
// selector expressions used inside book-source rules.
package expression

import "encoding/json"

// Node is either a single *Expression or a *LogicalNode.
type Node interface {
	node()
}

// Expression is one selector plus its post-processing.
//
// Next is the legacy cascading-field link. Parse never produces it; it is
// only set by callers building expressions directly, and Serialize writes
// it as " && " followed by the next expression.
type Expression struct {
	Dialect     Dialect      `json:"type"`
	Value       string       `json:"value"`
	PostProcess *PostProcess `json:"postProcess,omitempty"`
	Next        *Expression  `json:"next,omitempty"`
	Logical     *LogicalNode `json:"logical,omitempty"`
}

func (*Expression) node() {}

// PostProcess is applied to an expression's raw match.
type PostProcess struct {
	Attr    string        `json:"attr,omitempty"`
	Replace []ReplaceRule `json:"replace,omitempty"`
	Index   *Index        `json:"index,omitempty"`
	// Reverse marks a list whose matches are read in reverse order.
	Reverse bool `json:"reverse,omitempty"`
}

func (p *PostProcess) empty() bool {
	return p == nil || (p.Attr == "" && len(p.Replace) == 0 && p.Index == nil && !p.Reverse)
}

// Index keywords.
const (
	IndexFirst = "first"
	IndexLast  = "last"
	IndexAll   = "all"
)

// Index selects one match. Keyword is empty when Position applies.
type Index struct {
	Position int
	Keyword  string
}

// Position builds a numeric index.
func Position(n int) *Index {
	return &Index{Position: n}
}

// At resolves the index to a signed position. All has none.
func (i Index) At() (int, bool) {
	switch i.Keyword {
	case "":
		return i.Position, true
	case IndexFirst:
		return 0, true
	case IndexLast:
		return -1, true
	}
	return 0, false
}

// MarshalJSON writes positions as numbers and keywords as strings.
func (i Index) MarshalJSON() ([]byte, error) {
	if i.Keyword != "" {
		return json.Marshal(i.Keyword)
	}
	return json.Marshal(i.Position)
}

// UnmarshalJSON accepts a number or a keyword.
func (i *Index) UnmarshalJSON(data []byte) error {
	var keyword string
	if err := json.Unmarshal(data, &keyword); err == nil {
		*i = Index{Keyword: keyword}
		return nil
	}
	var position int
	if err := json.Unmarshal(data, &position); err != nil {
		return err
	}
	*i = Index{Position: position}
	return nil
}

// ReplaceRule is a regex substitution applied to a match. An empty
// Replacement deletes matches.
type ReplaceRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Flags       string `json:"flags,omitempty"`
}

// Operator joins two operands.
type Operator string

const (
	And Operator = "&&"
	Or  Operator = "||"
)

// LogicalNode joins two nodes. Chains fold to the left.
type LogicalNode struct {
	Operator Operator
	Left     Node
	Right    Node
}

func (*LogicalNode) node() {}

// MarshalJSON tags the node as logical.
func (n *LogicalNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Operator Operator `json:"operator"`
		Left     Node     `json:"left"`
		Right    Node     `json:"right"`
	}{"logical", n.Operator, n.Left, n.Right})
}

// MergeReplaceRules drops repeated (pattern, replacement) pairs, keeping
// the first of each in order.
func MergeReplaceRules(rules []ReplaceRule) []ReplaceRule {
	type key struct{ pattern, replacement string }
	seen := make(map[key]bool, len(rules))
	merged := make([]ReplaceRule, 0, len(rules))
	for _, r := range rules {
		k := key{r.Pattern, r.Replacement}
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, r)
	}
	return merged
}

// NewCSS builds a CSS expression, optionally extracting attr.
func NewCSS(selector, attr string) *Expression {
	e := &Expression{Dialect: CSS, Value: selector}
	if attr != "" {
		e.PostProcess = &PostProcess{Attr: attr}
	}
	return e
}

// NewXPath builds an XPath expression.
func NewXPath(path string) *Expression {
	return &Expression{Dialect: XPath, Value: path}
}

// NewJSONPath builds a JSONPath expression.
func NewJSONPath(path string) *Expression {
	return &Expression{Dialect: JSON, Value: path}
}

// NewScript builds an inline script expression.
func NewScript(code string) *Expression {
	return &Expression{Dialect: JS, Value: code}
}
