// Package library stores rule documents of any format as JSON files in a
// directory, one file per rule.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/rule"
)

// ErrRuleNotFound is returned when no file exists for a key.
var ErrRuleNotFound = errors.New("rule not found")

// Library is a directory of rule files.
type Library struct {
	storageDir string
}

// Entry is one rule file.
type Entry struct {
	Key      string         `json:"key"`
	Format   rule.Format    `json:"format"`
	Document map[string]any `json:"document"`
}

// ReadError describes a failure to read a single rule file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the results of listing rules, including any per-file
// errors that occurred during the operation.
type ListResult struct {
	Entries []Entry
	Errors  []ReadError
}

// New opens the library, creating the directory if needed.
func New(storageDir string) (*Library, error) {
	// 0700: owner-only access
	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Library{
		storageDir: storageDir,
	}, nil
}

// Dir returns the storage directory.
func (l *Library) Dir() string {
	return l.storageDir
}

// Key derives the file key for a document from its identity field: id for
// canonical and any-reader rules, bookSourceUrl for Legado rules. The same
// identity always yields the same key. Documents without an identity get a
// random key.
func Key(doc map[string]any) string {
	for _, field := range []string{"bookSourceUrl", "id"} {
		if id, ok := doc[field].(string); ok && id != "" {
			if parsed, err := uuid.Parse(id); err == nil {
				return parsed.String()
			}
			return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
		}
	}
	return uuid.New().String()
}

func (l *Library) path(key string) string {
	return filepath.Join(l.storageDir, key+".json")
}

// Add writes doc to the library, replacing any file with the same key, and
// returns the key.
func (l *Library) Add(doc map[string]any) (string, error) {
	key := Key(doc)

	data, err := converter.MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rule: %w", err)
	}

	// 0600: owner-only read/write
	if err := os.WriteFile(l.path(key), data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write rule: %w", err)
	}

	return key, nil
}

func readEntry(filename, key string) (*Entry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &Entry{
		Key:      key,
		Format:   converter.DetectJSON(data),
		Document: doc,
	}, nil
}

// List returns every rule in the library. Corrupted or invalid files are
// collected in the result's Errors slice rather than causing the entire
// operation to fail. A non-nil error return indicates a total failure
// (e.g., the storage directory is unreadable).
func (l *Library) List() (*ListResult, error) {
	entries, err := os.ReadDir(l.storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		key := strings.TrimSuffix(entry.Name(), ".json")
		e, err := readEntry(filepath.Join(l.storageDir, entry.Name()), key)
		if err != nil {
			result.Errors = append(result.Errors, ReadError{
				Filename: entry.Name(),
				Err:      err,
			})
			continue
		}

		result.Entries = append(result.Entries, *e)
	}

	return result, nil
}

// Get retrieves a rule by key.
func (l *Library) Get(key string) (*Entry, error) {
	e, err := readEntry(l.path(key), key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to read rule: %w", err)
	}
	return e, nil
}

// Delete removes a rule by key.
func (l *Library) Delete(key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}
