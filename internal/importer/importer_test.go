package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/excerpts-mcp/internal/storage"
	"github.com/dshills/excerpts-mcp/pkg/types"
)

func setupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.MemoryPath, storage.WithRegistry(storage.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportTextFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	a := writeFile(t, dir, "a.txt", "床前明月光\n作者：李白\n#诗歌#唐代\n\n举头望明月\n#诗歌\n")
	b := writeFile(t, dir, "b.txt", "是的，我很重要。\n@我很重要\n\n#only tags\n")
	missing := filepath.Join(dir, "missing.txt")

	stats, err := New(store, nil).ImportTextFiles(ctx, []string{a, b, missing}, &Config{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesParsed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 1, stats.BlocksSkipped)
	assert.Equal(t, 3, stats.ExcerptsImported)
	assert.Equal(t, 2, stats.TagsImported)
	assert.Len(t, stats.ErrorMessages, 2)

	poetry, found, err := store.Tags().FindIDByName(ctx, "诗歌")
	require.NoError(t, err)
	require.True(t, found)
	n, err := store.Tags().ExcerptCountFor(ctx, poetry)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := store.Excerpts().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, e := range all {
		assert.True(t, e.HasTag(types.DefaultTagID))
	}

	byAuthor, err := store.Excerpts().ByAuthor(ctx, "李白")
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)
}

func TestImportTextFiles_Busy(t *testing.T) {
	store := setupTestStore(t)
	imp := New(store, nil)
	require.True(t, imp.lock.TryAcquire())
	defer imp.lock.Release()

	_, err := imp.ImportTextFiles(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrImportInProgress)

	_, err = imp.ImportJSON(context.Background(), strings.NewReader("{}"))
	assert.ErrorIs(t, err, ErrImportInProgress)
}

func TestExportAndImportJSON(t *testing.T) {
	ctx := context.Background()
	src := setupTestStore(t)

	_, err := src.Tags().CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)
	_, err = src.Excerpts().Create(ctx, types.Excerpt{Content: "moon", Author: "Li Bai", TagIDs: []string{"t1"}})
	require.NoError(t, err)
	_, err = src.Excerpts().Create(ctx, types.Excerpt{Content: "river"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	snap, err := New(src, nil).Export(ctx, path)
	require.NoError(t, err)
	assert.Len(t, snap.Tags, 2)
	assert.Len(t, snap.Excerpts, 2)
	assert.NotEmpty(t, snap.ExportDate)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "tags")
	assert.Contains(t, decoded, "excerpts")
	assert.Contains(t, decoded, "export_date")

	dst := setupTestStore(t)
	imp := New(dst, nil)
	for range 2 {
		stats, err := imp.ImportJSONFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.ExcerptsImported)
	}

	want, err := src.Excerpts().GetAll(ctx)
	require.NoError(t, err)
	got, err := dst.Excerpts().GetAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)

	tags, err := dst.Tags().ListOrdered(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestImportJSON_Invalid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := New(store, nil).ImportJSON(ctx, strings.NewReader("not json"))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New(store, nil).ImportJSON(ctx, strings.NewReader(`{"excerpts":[{"cid":"e1","content":""}]}`))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	n, err := store.Excerpts().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
