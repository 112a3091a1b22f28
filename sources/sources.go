// Package sources is the rule library: converted book-source rules kept in
// SQLite in canonical form, plus the HTTP API that manages and converts
// them.
package sources

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/rule"
)

// Custom errors for source operations
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrDuplicateSource = errors.New("source with this rule id already exists")
	ErrInvalidRule     = errors.New("rule must have an id and a name")
)

// SourceStore manages library rules using SQLite.
type SourceStore struct {
	db *sql.DB
}

// Source is one rule in the library.
type Source struct {
	SourceID     uuid.UUID           `json:"source_id"`
	RuleID       string              `json:"rule_id"`
	Name         string              `json:"name"`
	Host         string              `json:"host"`
	Group        string              `json:"group,omitempty"`
	OriginFormat rule.Format         `json:"origin_format"`
	ContentType  rule.ContentType    `json:"content_type"`
	EnabledAt    *time.Time          `json:"enabled_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Rule         *rule.UniversalRule `json:"rule"`
}

// IsEnabled returns true if the source is currently enabled.
func (s *Source) IsEnabled() bool {
	return s.EnabledAt != nil
}

// SourceUpdate represents fields that can be updated on a source.
type SourceUpdate struct {
	Name           *string
	Group          *string
	EnabledAt      *time.Time
	ClearEnabledAt bool // Set to true to set enabled_at to NULL
	Rule           *rule.UniversalRule
}

// SourceFilter represents filtering options for listing sources.
type SourceFilter struct {
	Format      *rule.Format
	ContentType *rule.ContentType
	Group       *string
	Enabled     *bool
	Limit       int
	Offset      int
}

// NewSourceStore creates a new source store with the given database path.
func NewSourceStore(dbPath string) (*SourceStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SourceStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the sources table if it doesn't exist.
func (s *SourceStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		source_id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		rule_group TEXT,
		origin_format TEXT NOT NULL,
		content_type TEXT NOT NULL,
		enabled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		rule TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

func originFormat(r *rule.UniversalRule) rule.Format {
	if r.Meta != nil && r.Meta.OriginFormat != "" {
		return r.Meta.OriginFormat
	}
	return rule.FormatUniversal
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "unique constraint")
}

// CreateSource stores a canonical rule.
func (s *SourceStore) CreateSource(r *rule.UniversalRule, enabledAt *time.Time) (*Source, error) {
	if r == nil || r.ID == "" || r.Name == "" {
		return nil, ErrInvalidRule
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule: %w", err)
	}

	now := time.Now()
	source := &Source{
		SourceID:     uuid.New(),
		RuleID:       r.ID,
		Name:         r.Name,
		Host:         r.Host,
		Group:        r.Group,
		OriginFormat: originFormat(r),
		ContentType:  r.ContentType,
		EnabledAt:    enabledAt,
		CreatedAt:    now,
		UpdatedAt:    now,
		Rule:         r,
	}

	query := `
		INSERT INTO sources (
			source_id, rule_id, name, host, rule_group, origin_format,
			content_type, enabled_at, created_at, updated_at, rule
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		source.SourceID.String(),
		source.RuleID,
		source.Name,
		source.Host,
		nullString(source.Group),
		string(source.OriginFormat),
		string(source.ContentType),
		formatTime(source.EnabledAt),
		formatTime(&source.CreatedAt),
		formatTime(&source.UpdatedAt),
		string(data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSource
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return source, nil
}

const selectColumns = `
	SELECT source_id, rule_id, name, host, rule_group, origin_format,
	       content_type, enabled_at, created_at, updated_at, rule
	FROM sources
`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// GetSource retrieves a source by ID.
func (s *SourceStore) GetSource(sourceID uuid.UUID) (*Source, error) {
	row := s.db.QueryRow(selectColumns+" WHERE source_id = ?", sourceID.String())
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, ErrSourceNotFound
	}
	return source, err
}

// GetSourceByRuleID retrieves a source by the id of the rule it holds.
func (s *SourceStore) GetSourceByRuleID(ruleID string) (*Source, error) {
	row := s.db.QueryRow(selectColumns+" WHERE rule_id = ?", ruleID)
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, ErrSourceNotFound
	}
	return source, err
}

// ListSources lists sources with optional filtering.
func (s *SourceStore) ListSources(filter SourceFilter) ([]Source, error) {
	query := selectColumns

	var whereClauses []string
	var args []any

	if filter.Format != nil {
		whereClauses = append(whereClauses, "origin_format = ?")
		args = append(args, string(*filter.Format))
	}
	if filter.ContentType != nil {
		whereClauses = append(whereClauses, "content_type = ?")
		args = append(args, string(*filter.ContentType))
	}
	if filter.Group != nil {
		whereClauses = append(whereClauses, "rule_group = ?")
		args = append(args, *filter.Group)
	}
	if filter.Enabled != nil {
		if *filter.Enabled {
			whereClauses = append(whereClauses, "enabled_at IS NOT NULL")
		} else {
			whereClauses = append(whereClauses, "enabled_at IS NULL")
		}
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	return sources, rows.Err()
}

// UpdateSource updates a source with the provided fields. Name and group
// changes are written through to the stored rule.
func (s *SourceStore) UpdateSource(sourceID uuid.UUID, update SourceUpdate) error {
	current, err := s.GetSource(sourceID)
	if err != nil {
		return err
	}

	r := current.Rule
	if update.Rule != nil {
		if update.Rule.ID == "" || update.Rule.Name == "" {
			return ErrInvalidRule
		}
		r = update.Rule
	}
	if update.Name != nil {
		r.Name = *update.Name
	}
	if update.Group != nil {
		r.Group = *update.Group
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	now := time.Now()
	setClauses := []string{
		"updated_at = ?", "rule = ?", "rule_id = ?", "name = ?", "host = ?",
		"rule_group = ?", "origin_format = ?", "content_type = ?",
	}
	args := []any{
		formatTime(&now), string(data), r.ID, r.Name, r.Host,
		nullString(r.Group), string(originFormat(r)), string(r.ContentType),
	}

	if update.ClearEnabledAt {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, nil)
	} else if update.EnabledAt != nil {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, formatTime(update.EnabledAt))
	}

	args = append(args, sourceID.String())

	query := fmt.Sprintf("UPDATE sources SET %s WHERE source_id = ?",
		strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSource
		}
		return fmt.Errorf("failed to update source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// DeleteSource deletes a source.
func (s *SourceStore) DeleteSource(sourceID uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE source_id = ?", sourceID.String())
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// ImportResult is the outcome of importing one document.
type ImportResult struct {
	Index  int     `json:"index"`
	Source *Source `json:"source,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Import converts every document to canonical form and stores it. Rules
// start enabled unless their own enabled flag says otherwise. A failing
// document is reported and skipped.
func (s *SourceStore) Import(d *converter.Dispatcher, docs []any) []ImportResult {
	results := make([]ImportResult, 0, len(docs))
	for i, doc := range docs {
		r, err := d.ToUniversal(doc)
		if err != nil {
			results = append(results, ImportResult{Index: i, Error: err.Error()})
			continue
		}

		var enabledAt *time.Time
		if rule.IsEnabled(r) {
			now := time.Now()
			enabledAt = &now
		}

		source, err := s.CreateSource(r, enabledAt)
		if err != nil {
			results = append(results, ImportResult{Index: i, Error: err.Error()})
			continue
		}
		results = append(results, ImportResult{Index: i, Source: source})
	}
	return results
}

// Export renders a stored rule in the target format.
func (s *SourceStore) Export(d *converter.Dispatcher, sourceID uuid.UUID, target rule.Format) (map[string]any, error) {
	source, err := s.GetSource(sourceID)
	if err != nil {
		return nil, err
	}
	return d.FromUniversal(source.Rule, target)
}

// scanSource parses one row into a Source.
func scanSource(row rowScanner) (*Source, error) {
	var sourceIDStr, ruleID, name, host, format, contentType, createdAtStr, updatedAtStr, ruleJSON string
	var group, enabledAtStr sql.NullString

	err := row.Scan(
		&sourceIDStr, &ruleID, &name, &host, &group, &format,
		&contentType, &enabledAtStr, &createdAtStr, &updatedAtStr, &ruleJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}

	sourceID, err := uuid.Parse(sourceIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}

	var r rule.UniversalRule
	if err := json.Unmarshal([]byte(ruleJSON), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule: %w", err)
	}

	source := &Source{
		SourceID:     sourceID,
		RuleID:       ruleID,
		Name:         name,
		Host:         host,
		Group:        group.String,
		OriginFormat: rule.Format(format),
		ContentType:  rule.ContentType(contentType),
		CreatedAt:    parseTime(createdAtStr),
		UpdatedAt:    parseTime(updatedAtStr),
		Rule:         &r,
	}

	if enabledAtStr.Valid {
		t := parseTime(enabledAtStr.String)
		source.EnabledAt = &t
	}

	return source, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
