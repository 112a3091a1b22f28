package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/expression"
	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
)

func printExprUsage() {
	fmt.Println("booksource expr -- Inspect a single expression")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  booksource expr <action> [flags] <expression>")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  parse        Print the expression tree and its canonical text")
	fmt.Println("  validate     Check brackets, engines and variables")
	fmt.Println("  normalize    Translate from a dialect (--from) to canonical form")
	fmt.Println("  denormalize  Translate canonical form to a dialect (--to)")
	fmt.Println("  select       Run a selector against an HTML page (--html)")
	fmt.Println("  help         Show this help message")
}

func handleExprCommand(action string, s settings, args []string) {
	switch action {
	case "parse":
		handleExprParse(args)
	case "validate":
		handleExprValidate(args)
	case "normalize":
		handleExprTranslate(action, args, converter.NormalizeExpression)
	case "denormalize":
		handleExprTranslate(action, args, converter.DenormalizeExpression)
	case "select":
		handleExprSelect(s, args)
	case "help", "--help", "-h":
		printExprUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown expr command: %s\n\n", action)
		printExprUsage()
		os.Exit(1)
	}
}

// exprArg joins the remaining arguments so unquoted expressions with
// spaces still work.
func exprArg(fs *flag.FlagSet) string {
	if fs.NArg() == 0 {
		fail("expression is required")
	}
	return strings.Join(fs.Args(), " ")
}

func handleExprParse(args []string) {
	fs := flag.NewFlagSet("expr parse", flag.ExitOnError)
	fs.Parse(args)
	text := exprArg(fs)

	node, err := expression.Parse(text)
	if err != nil {
		fail("%v", err)
	}

	data, err := converter.MarshalIndent(node)
	if err != nil {
		fail("failed to marshal tree: %v", err)
	}
	fmt.Println(string(data))
	fmt.Printf("✓ Canonical: %s\n", expression.Serialize(node))
}

func handleExprValidate(args []string) {
	fs := flag.NewFlagSet("expr validate", flag.ExitOnError)
	fs.Parse(args)
	text := exprArg(fs)

	v := expression.NewValidator()
	result := v.Validate(text)
	fmt.Println(v.FormatResult(result))
	if !result.Valid {
		os.Exit(1)
	}
}

func handleExprTranslate(action string, args []string, translate func(string, rule.Format) string) {
	fs := flag.NewFlagSet("expr "+action, flag.ExitOnError)
	from := fs.String("from", "legado", "Source dialect (normalize)")
	to := fs.String("to", "legado", "Target dialect (denormalize)")
	fs.Parse(args)
	text := exprArg(fs)

	name := *from
	if action == "denormalize" {
		name = *to
	}
	format := mustFormat(name)
	if !format.IsDialect() {
		fail("%s needs a dialect: any-reader or legado", action)
	}

	fmt.Println(translate(text, format))
}

func handleExprSelect(s settings, args []string) {
	fs := flag.NewFlagSet("expr select", flag.ExitOnError)
	page := fs.String("html", "", "HTML file to query (default: stdin)")
	target := fs.String("target", string(s.Options.JsoupTarget), "Rendering for Default grammar (css or xpath)")
	fs.Parse(args)
	text := exprArg(fs)

	t := jsoup.Target(*target)
	if t != jsoup.TargetCSS && t != jsoup.TargetXPath {
		fail("unknown target %q: expected css or xpath", *target)
	}

	data, err := readInput(*page)
	if err != nil {
		fail("failed to read page: %v", err)
	}

	values, err := jsoup.Select(bytes.NewReader(data), text, t)
	if err != nil {
		fail("%v", err)
	}
	if len(values) == 0 {
		fmt.Fprintln(os.Stderr, "No matches.")
		os.Exit(1)
	}
	for _, v := range values {
		fmt.Println(v)
	}
}
