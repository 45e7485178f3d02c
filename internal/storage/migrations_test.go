package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, ApplyMigrations(ctx, db))
	// idempotent
	require.NoError(t, ApplyMigrations(ctx, db))

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	for _, def := range managedTables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", def.Name).Scan(&name)
		require.NoError(t, err, def.Name)
	}

	var indexes int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name LIKE 'idx_%'").Scan(&indexes))
	assert.Equal(t, 3, indexes)
}

func TestRollbackMigration(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, db))
	v, err = SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, db))
}

func TestTableDef_CreateSQL(t *testing.T) {
	sql := ExcerptTagsTable.CreateSQL()
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "excerpt_tags"`)
	assert.Contains(t, sql, `PRIMARY KEY ("excerpt_cid", "tag_cid")`)
	assert.Contains(t, sql, `REFERENCES "excerpts" ("cid") ON DELETE CASCADE`)

	sql = TagsTable.CreateSQL()
	assert.Contains(t, sql, `"cid" TEXT PRIMARY KEY`)
	assert.Contains(t, sql, `"orders" INTEGER NOT NULL`)
}
