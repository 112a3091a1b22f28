// Package config holds booksource configuration: the YAML config file and
// the SQLite-backed conversion defaults editable over the API.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/booksource/converter"
	"github.com/pevans/booksource/jsoup"
	"github.com/pevans/booksource/rule"
)

// ErrInvalidJsoupTarget is returned for a jsoup target other than css or
// xpath.
var ErrInvalidJsoupTarget = errors.New("jsoup_target must be css or xpath")

// ConfigStore manages user configuration using SQLite.
type ConfigStore struct {
	db *sql.DB
}

// Config represents the conversion defaults.
type Config struct {
	DefaultTarget    rule.Format  `json:"default_target"`
	PreserveOriginal bool         `json:"preserve_original"`
	Strict           bool         `json:"strict"`
	JsoupTarget      jsoup.Target `json:"jsoup_target"`
}

// DefaultConfig is returned for keys that were never set.
func DefaultConfig() Config {
	return Config{
		DefaultTarget: rule.FormatUniversal,
		JsoupTarget:   jsoup.TargetCSS,
	}
}

// Options converts the defaults to converter options.
func (c Config) Options() converter.Options {
	return converter.Options{
		PreserveOriginal: c.PreserveOriginal,
		Strict:           c.Strict,
		JsoupTarget:      c.JsoupTarget,
	}
}

// Validate checks the target and jsoup target names.
func (c Config) Validate() error {
	if _, err := rule.ParseFormat(string(c.DefaultTarget)); err != nil {
		return err
	}
	if c.JsoupTarget != jsoup.TargetCSS && c.JsoupTarget != jsoup.TargetXPath {
		return ErrInvalidJsoupTarget
	}
	return nil
}

// NewConfigStore creates a new config store with the given database path.
func NewConfigStore(dbPath string) (*ConfigStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &ConfigStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the config table if it doesn't exist.
func (c *ConfigStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *ConfigStore) Close() error {
	return c.db.Close()
}

// GetConfig retrieves the conversion defaults, filling unset keys from
// DefaultConfig.
func (c *ConfigStore) GetConfig() (*Config, error) {
	rows, err := c.db.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()

	cfg := DefaultConfig()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		switch key {
		case "default_target":
			cfg.DefaultTarget = rule.Format(value)
		case "preserve_original":
			cfg.PreserveOriginal, _ = strconv.ParseBool(value)
		case "strict":
			cfg.Strict, _ = strconv.ParseBool(value)
		case "jsoup_target":
			cfg.JsoupTarget = jsoup.Target(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	return &cfg, nil
}

// UpdateConfig updates user configuration.
func (c *ConfigStore) UpdateConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		"default_target":    string(cfg.DefaultTarget),
		"preserve_original": strconv.FormatBool(cfg.PreserveOriginal),
		"strict":            strconv.FormatBool(cfg.Strict),
		"jsoup_target":      string(cfg.JsoupTarget),
	}
	query := "INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)"
	for key, value := range values {
		if _, err := tx.Exec(query, key, value); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	return nil
}
