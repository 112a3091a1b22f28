package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/library"
	"github.com/pevans/booksource/rule"
	"github.com/pevans/booksource/sources"
)

func printSourcesUsage() {
	fmt.Println("booksource sources -- Manage the rule library")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  booksource sources <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List stored rules")
	fmt.Println("  show       Show a stored rule")
	fmt.Println("  import     Import rules from a file or a library directory")
	fmt.Println("  export     Render stored rules in a format")
	fmt.Println("  delete     Delete a stored rule")
	fmt.Println("  enable     Enable a stored rule")
	fmt.Println("  disable    Disable a stored rule")
	fmt.Println("  help       Show this help message")
}

func handleSourcesCommand(action string, s settings, args []string) {
	if action == "help" || action == "--help" || action == "-h" {
		printSourcesUsage()
		return
	}

	store, err := sources.NewSourceStore(s.SourcesDSN)
	if err != nil {
		fail("failed to open sources database: %v", err)
	}
	defer store.Close()

	switch action {
	case "list":
		handleSourcesList(store, args)
	case "show":
		handleSourcesShow(store, args)
	case "import":
		handleSourcesImport(store, s, args)
	case "export":
		handleSourcesExport(store, s, args)
	case "delete":
		handleSourcesDelete(store, args)
	case "enable":
		handleSourcesEnable(store, args, true)
	case "disable":
		handleSourcesEnable(store, args, false)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown sources command: %s\n\n", action)
		printSourcesUsage()
		os.Exit(1)
	}
}

// sourceIDArg parses the first positional argument as a source ID.
func sourceIDArg(action string, args []string) uuid.UUID {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: source ID is required\n")
		fmt.Fprintf(os.Stderr, "Usage: booksource sources %s <source-id>\n", action)
		os.Exit(1)
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		fail("invalid source ID: %v", err)
	}
	return id
}

func handleSourcesList(store *sources.SourceStore, args []string) {
	fs := flag.NewFlagSet("sources list", flag.ExitOnError)
	format := fs.String("format", "", "Only rules converted from this format")
	contentType := fs.String("type", "", "Only rules of this content type")
	group := fs.String("group", "", "Only rules in this group")
	enabledOnly := fs.Bool("enabled", false, "Only enabled rules")
	fs.Parse(args)

	filter := sources.SourceFilter{}
	if *format != "" {
		f := mustFormat(*format)
		filter.Format = &f
	}
	if *contentType != "" {
		ct := rule.ContentType(*contentType)
		if !ct.Valid() {
			fail("unknown content type %q", *contentType)
		}
		filter.ContentType = &ct
	}
	if *group != "" {
		filter.Group = group
	}
	if *enabledOnly {
		filter.Enabled = enabledOnly
	}

	list, err := store.ListSources(filter)
	if err != nil {
		fail("failed to list sources: %v", err)
	}

	if len(list) == 0 {
		fmt.Println("No rules stored.")
		return
	}

	renderSourcesTable(os.Stdout, list)
}

func handleSourcesShow(store *sources.SourceStore, args []string) {
	id := sourceIDArg("show", args)

	source, err := store.GetSource(id)
	if err != nil {
		fail("failed to get source: %v", err)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println(source.Name)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Rule ID:     %s\n", source.RuleID)
	fmt.Printf("Host:        %s\n", source.Host)
	fmt.Printf("Format:      %s\n", source.OriginFormat)
	fmt.Printf("Type:        %s\n", source.ContentType)
	if source.Group != "" {
		fmt.Printf("Group:       %s\n", source.Group)
	}
	fmt.Println()

	if source.EnabledAt != nil {
		fmt.Printf("Status:      ✓ Enabled (since %s)\n", source.EnabledAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Status:      ✗ Disabled")
	}
	fmt.Println()

	fmt.Println("Capabilities:")
	missing := map[string]bool{}
	for _, m := range rule.Completeness(source.Rule) {
		missing[m] = true
	}
	for _, capability := range []string{rule.MissingEntry, rule.MissingChapter, rule.MissingContent} {
		mark := "✓"
		if missing[capability] {
			mark = "✗"
		}
		fmt.Printf("  %s %s\n", mark, capability)
	}
	fmt.Println()

	fmt.Printf("Created:     %s\n", source.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", source.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func handleSourcesImport(store *sources.SourceStore, s settings, args []string) {
	fs := flag.NewFlagSet("sources import", flag.ExitOnError)
	strict := fs.Bool("strict", s.Options.Strict, "Fail on invalid expressions")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: input file or directory is required\n")
		fmt.Fprintf(os.Stderr, "Usage: booksource sources import <file|dir>\n")
		os.Exit(1)
	}
	path := fs.Arg(0)

	var docs []any
	if stat, err := os.Stat(path); err == nil && stat.IsDir() {
		lib, err := library.New(path)
		if err != nil {
			fail("%v", err)
		}
		result, err := lib.List()
		if err != nil {
			fail("failed to read library: %v", err)
		}
		for _, readErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "  ⚠ Skipped %s\n", readErr.Error())
		}
		for _, e := range result.Entries {
			docs = append(docs, e.Document)
		}
	} else {
		docs, _ = loadDocuments(path)
	}

	opts := s.Options
	opts.Strict = *strict
	results := store.Import(converter.NewDispatcher(opts), docs)

	imported := 0
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "  ✗ Rule %d: %s\n", r.Index, r.Error)
			continue
		}
		imported++
		fmt.Printf("  ✓ %s (%s)\n", r.Source.Name, r.Source.SourceID)
	}

	fmt.Println()
	fmt.Printf("✓ Imported %d of %d rule(s)\n", imported, len(results))
	if imported < len(results) {
		os.Exit(1)
	}
}

func handleSourcesExport(store *sources.SourceStore, s settings, args []string) {
	fs := flag.NewFlagSet("sources export", flag.ExitOnError)
	to := fs.String("to", string(s.Target), "Target format")
	out := fs.String("out", "", "Output file, or library directory with --all")
	all := fs.Bool("all", false, "Export every stored rule into a library directory")
	format := fs.String("format", "json", "Output encoding (json or yaml)")
	fs.Parse(args)

	target := mustFormat(*to)
	d := converter.NewDispatcher(s.Options)

	if *all {
		dir := *out
		if dir == "" {
			dir = s.LibraryDir
		}
		lib, err := library.New(dir)
		if err != nil {
			fail("%v", err)
		}

		list, err := store.ListSources(sources.SourceFilter{})
		if err != nil {
			fail("failed to list sources: %v", err)
		}
		for _, source := range list {
			doc, err := d.FromUniversal(source.Rule, target)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", source.Name, err)
				continue
			}
			if _, err := lib.Add(doc); err != nil {
				fail("%v", err)
			}
		}
		fmt.Printf("✓ Exported %d rule(s) to %s\n", len(list), lib.Dir())
		return
	}

	id := sourceIDArg("export", fs.Args())
	doc, err := store.Export(d, id, target)
	if err != nil {
		fail("failed to export source: %v", err)
	}

	encoded, err := encodeOutput(doc, *format)
	if err != nil {
		fail("%v", err)
	}
	if err := writeOutput(*out, encoded); err != nil {
		fail("failed to write output: %v", err)
	}
}

func handleSourcesDelete(store *sources.SourceStore, args []string) {
	id := sourceIDArg("delete", args)

	if err := store.DeleteSource(id); err != nil {
		fail("failed to delete source: %v", err)
	}

	fmt.Printf("✓ Deleted source: %s\n", id)
}

func handleSourcesEnable(store *sources.SourceStore, args []string, enable bool) {
	action := "disable"
	if enable {
		action = "enable"
	}
	id := sourceIDArg(action, args)

	update := sources.SourceUpdate{ClearEnabledAt: !enable}
	if enable {
		now := time.Now()
		update.EnabledAt = &now
	}

	if err := store.UpdateSource(id, update); err != nil {
		fail("failed to %s source: %v", action, err)
	}

	if enable {
		fmt.Printf("✓ Enabled source: %s\n", id)
	} else {
		fmt.Printf("✓ Disabled source: %s\n", id)
	}
}
