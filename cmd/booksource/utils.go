package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/rule"
)

// readInput reads a file, or stdin when path is empty or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes to a file, or stdout when path is empty or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// fail prints an error and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// mustFormat parses a format flag or exits.
func mustFormat(name string) rule.Format {
	f, err := rule.ParseFormat(name)
	if err != nil {
		fail("%v", err)
	}
	return f
}

// loadDocuments reads and splits an input file into rule documents.
func loadDocuments(path string) ([]any, []byte) {
	data, err := readInput(path)
	if err != nil {
		fail("failed to read input: %v", err)
	}
	docs, err := converter.DecodeDocuments(data)
	if err != nil {
		fail("failed to decode input: %v", err)
	}
	return docs, data
}

// isArray reports whether the JSON text is a top-level array.
func isArray(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "[")
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
