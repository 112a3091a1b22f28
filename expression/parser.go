package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pevans/booksource/variables"
)

// ParseError reports malformed expression text. Offset is a byte offset
// into the text passed to Parse.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// operand is a trimmed span of the source text. op is the operator that
// precedes it, empty for the first operand.
type operand struct {
	start, end int
	op         Operator
}

// split scans text once, tracking bracket depth and quotes, and cuts it at
// top-level && and ||. Quotes only count inside brackets, so an apostrophe
// in plain text does not swallow the rest of the chain. Everything after a
// top-level @js: belongs to the script, and <js>...</js> blocks are
// skipped whole.
func split(text string) ([]operand, error) {
	var (
		ops     []operand
		stack   []int
		quote   byte
		start   int
		pending Operator
	)

	cut := func(end int, next Operator, at int) error {
		s, e := trimSpan(text, start, end)
		if s == e {
			if pending != "" || next != "" {
				return &ParseError{Offset: at, Message: "missing operand"}
			}
			return &ParseError{Offset: at, Message: "empty expression"}
		}
		ops = append(ops, operand{start: s, end: e, op: pending})
		pending = next
		return nil
	}

	i := 0
scan:
	for i < len(text) {
		c := text[i]

		if quote != 0 {
			switch c {
			case '\\':
				i += 2
				continue
			case quote:
				quote = 0
			}
			i++
			continue
		}

		switch c {
		case '\\':
			i += 2
			continue
		case '"', '\'':
			if len(stack) > 0 {
				quote = c
			}
		case '(', '[', '{':
			stack = append(stack, i)
		case ')', ']', '}':
			if len(stack) == 0 || text[stack[len(stack)-1]] != closers[c] {
				return nil, &ParseError{Offset: i, Message: fmt.Sprintf("unbalanced %q", c)}
			}
			stack = stack[:len(stack)-1]
		case '@':
			if len(stack) == 0 && strings.HasPrefix(text[i:], "@js:") {
				break scan
			}
		case '<':
			if strings.HasPrefix(text[i:], "<js>") {
				if end := strings.Index(text[i:], "</js>"); end >= 0 {
					i += end + len("</js>")
					continue
				}
			}
		case '&', '|':
			if len(stack) == 0 && i+1 < len(text) && text[i+1] == c {
				if err := cut(i, Operator(text[i:i+2]), i); err != nil {
					return nil, err
				}
				i += 2
				start = i
				continue
			}
		}
		i++
	}

	if len(stack) > 0 {
		return nil, &ParseError{Offset: stack[0], Message: fmt.Sprintf("unclosed %q", text[stack[0]])}
	}
	if err := cut(len(text), "", len(text)); err != nil {
		return nil, err
	}
	return ops, nil
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Parse turns expression text into a tree. A single operand yields an
// *Expression; a chain of && and || yields a left-folded *LogicalNode.
func Parse(text string) (Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Offset: 0, Message: "empty expression"}
	}

	ops, err := split(text)
	if err != nil {
		return nil, err
	}

	var root Node
	for _, op := range ops {
		expr, err := parseOperand(text[op.start:op.end], op.start)
		if err != nil {
			return nil, err
		}
		if root == nil {
			root = expr
			continue
		}
		root = &LogicalNode{Operator: op.op, Left: root, Right: expr}
	}
	return root, nil
}

var (
	attrSuffix  = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_-]*)$`)
	indexSuffix = regexp.MustCompile(`\[(-?\d+)\]$`)
)

// parseOperand strips the prefix and then, from the tail inward, the
// @reverse marker, the ##pattern##replacement suffix, the CSS @attr suffix
// and the [n] index.
func parseOperand(s string, offset int) (*Expression, error) {
	dialect := detectOperand(s)
	value := StripPrefix(s)
	if dialect == JS && isJSTag(s) {
		// Text after </js> is not part of the script.
		end := strings.Index(s, "</js>")
		value = s[len("<js>"):end] + s[end+len("</js>"):]
	}

	expr := &Expression{Dialect: dialect}
	pp := &PostProcess{}

	if trimmed := strings.TrimRight(value, " \t\r\n"); strings.HasSuffix(trimmed, variables.ReverseSuffix) {
		value = strings.TrimSuffix(trimmed, variables.ReverseSuffix)
		pp.Reverse = true
	}

	if dialect != JS {
		value, pp.Replace = stripReplace(value)

		if dialect == CSS {
			if m := attrSuffix.FindStringSubmatch(value); m != nil {
				value = value[:len(value)-len(m[0])]
				pp.Attr = m[1]
			}
		}

		if m := indexSuffix.FindStringSubmatch(value); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				value = value[:len(value)-len(m[0])]
				pp.Index = Position(n)
			}
		}
	}

	if strings.TrimSpace(value) == "" && dialect != Literal {
		return nil, &ParseError{Offset: offset, Message: fmt.Sprintf("empty %s body", dialect)}
	}

	expr.Value = value
	if !pp.empty() {
		expr.PostProcess = pp
	}
	return expr, nil
}

// stripReplace splits off the first top-level ## and reads the rest as
// pattern/replacement pairs. A pattern without a partner deletes matches.
func stripReplace(value string) (string, []ReplaceRule) {
	at := topLevelIndex(value, "##")
	if at < 0 {
		return value, nil
	}

	parts := strings.Split(value[at+2:], "##")
	var rules []ReplaceRule
	for i := 0; i < len(parts); i += 2 {
		r := ReplaceRule{Pattern: parts[i]}
		if i+1 < len(parts) {
			r.Replacement = parts[i+1]
		}
		rules = append(rules, r)
	}
	return value[:at], rules
}

// topLevelIndex finds sep outside brackets and the quotes inside them.
func topLevelIndex(s, sep string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\\':
			i++
		case '"', '\'':
			if depth > 0 {
				quote = c
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				return i
			}
		}
	}
	return -1
}
