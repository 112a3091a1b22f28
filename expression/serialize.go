package expression

import (
	"strconv"
	"strings"

	"github.com/pevans/booksource/variables"
)

// Serialize renders a node back to canonical text: prefix and value, then
// [index], @attr, each ##pattern##replacement pair and the @reverse marker.
func Serialize(n Node) string {
	switch n := n.(type) {
	case *Expression:
		if n == nil {
			return ""
		}
		return serializeExpression(n)
	case *LogicalNode:
		if n == nil {
			return ""
		}
		return Serialize(n.Left) + " " + string(n.Operator) + " " + Serialize(n.Right)
	}
	return ""
}

func serializeExpression(e *Expression) string {
	if e.Logical != nil {
		return Serialize(e.Logical)
	}

	var b strings.Builder
	b.WriteString(e.Dialect.Prefix())
	b.WriteString(e.Value)

	if pp := e.PostProcess; pp != nil {
		if pp.Index != nil {
			if pos, ok := pp.Index.At(); ok {
				b.WriteString("[" + strconv.Itoa(pos) + "]")
			}
		}
		if pp.Attr != "" {
			b.WriteString("@" + pp.Attr)
		}
		for _, r := range pp.Replace {
			b.WriteString("##" + r.Pattern + "##" + r.Replacement)
		}
		if pp.Reverse {
			b.WriteString(variables.ReverseSuffix)
		}
	}

	if e.Next != nil {
		b.WriteString(" && ")
		b.WriteString(serializeExpression(e.Next))
	}
	return b.String()
}
