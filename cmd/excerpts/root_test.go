package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestImportSearchExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EXCERPTS_NOTEBOOK_DIR", dir)
	t.Setenv("EXCERPTS_LOG_LEVEL", "error")

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("上善若水\n作者：老子\n#道家\n\n知足者富\n"), 0o600))

	out, err := run(t, "import", text)
	require.NoError(t, err)
	assert.Contains(t, out, `"excerpts_imported": 2`)

	out, err = run(t, "search", "若水")
	require.NoError(t, err)
	assert.Contains(t, out, "上善若水")
	assert.Contains(t, out, "1 excerpts")

	out, err = run(t, "tags")
	require.NoError(t, err)
	assert.Contains(t, out, "道家")

	out, err = run(t, "notebooks")
	require.NoError(t, err)
	assert.Contains(t, out, "excerpts.db")

	export := filepath.Join(dir, "out.json")
	_, err = run(t, "export", export)
	require.NoError(t, err)
	assert.FileExists(t, export)

	_, err = run(t, "--notebook", "copy", "import", "--json", export)
	require.NoError(t, err)
	out, err = run(t, "-n", "copy", "search", "知足")
	require.NoError(t, err)
	assert.Contains(t, out, "1 excerpts")
}

func TestResetRequiresConfirmation(t *testing.T) {
	t.Setenv("EXCERPTS_NOTEBOOK_DIR", t.TempDir())

	_, err := run(t, "reset")
	assert.Error(t, err)

	out, err := run(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "reset")
}
