package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/sources"
)

// encodeOutput renders v as indented JSON or YAML.
func encodeOutput(v any, format string) ([]byte, error) {
	switch format {
	case "", "json":
		data, err := converter.MarshalIndent(v)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(v)
	}
	return nil, fmt.Errorf("unknown output format %q (want json or yaml)", format)
}

// renderSourcesTable prints library sources.
func renderSourcesTable(w io.Writer, list []sources.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Format", "Type", "Host", "Enabled"})

	for _, s := range list {
		enabled := "✗"
		if s.IsEnabled() {
			enabled = "✓"
		}
		t.AppendRow(table.Row{
			s.SourceID.String(),
			truncate(s.Name, 40),
			s.OriginFormat,
			s.ContentType,
			truncate(s.Host, 40),
			enabled,
		})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", len(list))})
	t.Render()
}

// renderIssuesTable prints validation errors and warnings.
func renderIssuesTable(w io.Writer, result converter.ValidationResult) {
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Level", "Field", "Code", "Message"})

	for _, e := range result.Errors {
		t.AppendRow(table.Row{"error", e.Field, e.Code, e.Message})
	}
	for _, warn := range result.Warnings {
		t.AppendRow(table.Row{"warning", warn.Field, warn.Code, warn.Message})
	}
	t.Render()
}

// renderBatchTable summarizes batch conversion results.
func renderBatchTable(w io.Writer, results []converter.BatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Status", "Name", "Error"})

	for _, r := range results {
		status := "✓"
		name := ""
		if !r.Success {
			status = "✗"
		}
		if r.Rule != nil {
			for _, key := range []string{"name", "bookSourceName"} {
				if n, ok := r.Rule[key].(string); ok {
					name = n
					break
				}
			}
		}
		t.AppendRow(table.Row{r.OriginalIndex, status, truncate(name, 40), r.Error})
	}
	t.Render()
}
