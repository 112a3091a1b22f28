package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Sources struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"sources"`
	Library struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"library"`
}

// ServerConfig configures booksource-api.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ConversionConfig holds conversion defaults. Unset fields fall back to
// the stored defaults.
type ConversionConfig struct {
	Target           string `yaml:"target"`
	PreserveOriginal *bool  `yaml:"preserve_original"`
	Strict           *bool  `yaml:"strict"`
	JsoupTarget      string `yaml:"jsoup_target"`
}

// FileConfig represents the structure of ~/.booksource/config.yaml.
type FileConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Conversion ConversionConfig `yaml:"conversion"`
}

// Dir returns ~/.booksource.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".booksource"), nil
}

// ConfigFilePath returns the path of the config file.
func ConfigFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.booksource/config.yaml.
// Returns nil if the file doesn't exist (not an error). Returns error if
// the file exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// DefaultFileConfig is written by `booksource init`.
func DefaultFileConfig(dir string) *FileConfig {
	cfg := &FileConfig{}
	cfg.Storage.Sources.Type = "sqlite"
	cfg.Storage.Sources.DSN = filepath.Join(dir, "sources.db")
	cfg.Storage.Library.Type = "file"
	cfg.Storage.Library.DSN = filepath.Join(dir, "library")
	cfg.Server.Address = ":8080"
	cfg.Conversion.Target = "universal"
	cfg.Conversion.JsoupTarget = "css"
	return cfg
}

// WriteDefaultConfigFile creates ~/.booksource/config.yaml unless it
// already exists, and returns its path and whether it was written.
func WriteDefaultConfigFile() (string, bool, error) {
	dir, err := Dir()
	if err != nil {
		return "", false, err
	}
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultFileConfig(dir))
	if err != nil {
		return "", false, fmt.Errorf("failed to encode config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, true, nil
}
