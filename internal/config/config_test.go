package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".excerpts"), cfg.NotebookDir)
	assert.Equal(t, "excerpts.db", cfg.Notebook)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, runtime.NumCPU(), cfg.Import.Workers)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notebook_dir: `+dir+`
notebook: reading
log:
  level: debug
  encoding: json
import:
  workers: 3
`), 0o600))
	t.Setenv("EXCERPTS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.NotebookDir)
	assert.Equal(t, "reading", cfg.Notebook)
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, 3, cfg.Import.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNotebookPath(t *testing.T) {
	cfg := Config{NotebookDir: "/data", Notebook: "main.db"}

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"default", "", "/data/main.db", false},
		{"adds extension", "reading", "/data/reading.db", false},
		{"keeps extension", "reading.db", "/data/reading.db", false},
		{"memory", ":memory:", ":memory:", false},
		{"traversal", "../etc", "", true},
		{"nested", "a/b", "", true},
		{"dot dot", "..", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.NotebookPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNotebookName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}
