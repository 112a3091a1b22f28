package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setHome points HOME at a fresh temp dir for the duration of the test.
func setHome(t *testing.T) string {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	return tmpDir
}

func writeConfigFile(t *testing.T, home, content string) {
	dir := filepath.Join(home, ".booksource")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
}

func TestLoadConfigFile_NoFile(t *testing.T) {
	setHome(t)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

func TestLoadConfigFile_ValidConfig(t *testing.T) {
	home := setHome(t)
	writeConfigFile(t, home, `storage:
  sources:
    type: "sqlite"
    dsn: "/path/to/sources.db"
  library:
    type: "file"
    dsn: "/path/to/library"
server:
  address: ":9090"
conversion:
  target: "legado"
  strict: true
  jsoup_target: "xpath"
`)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.Storage.Sources.Type)
	assert.Equal(t, "/path/to/sources.db", cfg.Storage.Sources.DSN)
	assert.Equal(t, "file", cfg.Storage.Library.Type)
	assert.Equal(t, "/path/to/library", cfg.Storage.Library.DSN)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "legado", cfg.Conversion.Target)
	require.NotNil(t, cfg.Conversion.Strict)
	assert.True(t, *cfg.Conversion.Strict)
	assert.Nil(t, cfg.Conversion.PreserveOriginal, "Unspecified flags should stay unset")
	assert.Equal(t, "xpath", cfg.Conversion.JsoupTarget)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	home := setHome(t)
	writeConfigFile(t, home, `storage:
  sources:
    type: "sqlite"
  library:
    - this is invalid yaml because library should be an object not a list
`)

	cfg, err := LoadConfigFile()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFile_PartialConfig(t *testing.T) {
	home := setHome(t)
	writeConfigFile(t, home, `storage:
  sources:
    dsn: "/tmp/sources.db"
`)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/tmp/sources.db", cfg.Storage.Sources.DSN)
	assert.Equal(t, "", cfg.Storage.Library.DSN, "Unspecified library DSN should be empty string")
	assert.Equal(t, "", cfg.Server.Address)
}

func TestWriteDefaultConfigFile(t *testing.T) {
	home := setHome(t)

	path, written, err := WriteDefaultConfigFile()
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, filepath.Join(home, ".booksource", "config.yaml"), path)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(home, ".booksource", "sources.db"), cfg.Storage.Sources.DSN)
	assert.Equal(t, filepath.Join(home, ".booksource", "library"), cfg.Storage.Library.DSN)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "universal", cfg.Conversion.Target)

	_, written, err = WriteDefaultConfigFile()
	require.NoError(t, err)
	assert.False(t, written, "an existing file should not be overwritten")
}
