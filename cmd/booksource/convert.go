package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/rule"
)

func handleConvert(s settings, args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	to := fs.String("to", string(s.Target), "Target format (any-reader, legado, universal)")
	in := fs.String("in", "", "Input file (default: first argument or stdin)")
	out := fs.String("out", "", "Output file (default: stdout)")
	format := fs.String("format", "json", "Output encoding (json or yaml)")
	preserve := fs.Bool("preserve", s.Options.PreserveOriginal, "Keep the original document in converted rules")
	strict := fs.Bool("strict", s.Options.Strict, "Fail on invalid expressions")
	summary := fs.Bool("summary", false, "Print a per-rule summary table to stderr")
	fs.Parse(args)

	input := *in
	if input == "" && fs.NArg() > 0 {
		input = fs.Arg(0)
	}
	target := mustFormat(*to)

	opts := s.Options
	opts.PreserveOriginal = *preserve
	opts.Strict = *strict
	d := converter.NewDispatcher(opts)

	docs, data := loadDocuments(input)
	results := d.ConvertBatch(docs, target)

	failed := 0
	var output any
	if isArray(data) {
		converted := make([]map[string]any, 0, len(results))
		for _, r := range results {
			if !r.Success {
				failed++
				fmt.Fprintf(os.Stderr, "Error: %s\n", r.Error)
				continue
			}
			converted = append(converted, r.Rule)
		}
		output = converted
	} else {
		if !results[0].Success {
			fail("%s", results[0].Error)
		}
		output = results[0].Rule
	}

	encoded, err := encodeOutput(output, *format)
	if err != nil {
		fail("%v", err)
	}
	if err := writeOutput(*out, encoded); err != nil {
		fail("failed to write output: %v", err)
	}

	if *summary {
		renderBatchTable(os.Stderr, results)
	}
	if *out != "" && *out != "-" {
		fmt.Printf("✓ Converted %d of %d rule(s) to %s: %s\n", len(results)-failed, len(results), target, *out)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func handleDetect(args []string) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	fs.Parse(args)

	docs, _ := loadDocuments(fs.Arg(0))
	d := converter.NewDispatcher(converter.Options{})
	for i, doc := range docs {
		if len(docs) == 1 {
			fmt.Println(d.Detect(doc))
			continue
		}
		fmt.Printf("%d: %s\n", i, d.Detect(doc))
	}
}

func handleValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	expressions := fs.Bool("expressions", false, "Also validate every expression field")
	fs.Parse(args)

	docs, _ := loadDocuments(fs.Arg(0))
	d := converter.NewDispatcher(converter.Options{})

	invalid := false
	for i, doc := range docs {
		format, result, err := d.Validate(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: rule %d: %v\n", i, err)
			invalid = true
			continue
		}

		if *expressions {
			r, err := d.ToUniversal(doc)
			if err == nil {
				exprResult := converter.ValidateExpressions(r)
				result.Errors = append(result.Errors, exprResult.Errors...)
				result.Warnings = append(result.Warnings, exprResult.Warnings...)
				result.Valid = result.Valid && exprResult.Valid
			}
		}

		label := fmt.Sprintf("rule %d (%s)", i, format)
		if result.Valid {
			fmt.Printf("✓ %s is valid\n", label)
		} else {
			fmt.Printf("✗ %s is invalid\n", label)
			invalid = true
		}
		renderIssuesTable(os.Stdout, result)
	}

	if invalid {
		os.Exit(1)
	}
}

func handleSchema(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	out := fs.String("out", "", "Output file (default: stdout)")
	fs.Parse(args)

	data, err := rule.SchemaJSON()
	if err != nil {
		fail("failed to render schema: %v", err)
	}
	if err := writeOutput(*out, append(data, '\n')); err != nil {
		fail("failed to write schema: %v", err)
	}
}
