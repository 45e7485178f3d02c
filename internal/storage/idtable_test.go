package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notesTable = TableDef{
	Name: "notes",
	Columns: []Column{
		{Name: "id", Type: Text},
		{Name: "body", Type: Text},
		{Name: "rank", Type: Integer},
	},
	PrimaryKey: []string{"id"},
}

func setupIDTable(t *testing.T) *IDTable {
	t.Helper()
	store := setupTestStore(t)
	table, err := NewIDTable(store, notesTable, "id")
	require.NoError(t, err)
	require.NoError(t, table.Create(context.Background()))
	return table
}

func TestNewIDTable_Validation(t *testing.T) {
	store := setupTestStore(t)

	_, err := NewIDTable(store, notesTable, "missing")
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = NewIDTable(store, notesTable, "rank")
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestIDTable_GetByID(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	require.NoError(t, table.Insert(ctx, []Record{{"id": "n1", "body": "first", "rank": 1}}))

	rec, err := table.GetByID(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "first", asString(rec["body"]))

	rec, err = table.GetByID(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIDTable_GetMany(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	require.NoError(t, table.Insert(ctx, []Record{
		{"id": "n1", "body": "a", "rank": 1},
		{"id": "n2", "body": "b", "rank": 2},
		{"id": "n3", "body": "c", "rank": 3},
	}))

	recs, err := table.GetMany(ctx, []string{"n1", "n3", "absent"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = table.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIDTable_Upsert(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	batch := []Record{
		{"id": "n1", "body": "a", "rank": 1},
		{"id": "n2", "body": "b", "rank": 2},
	}

	require.NoError(t, table.Upsert(ctx, batch))
	require.NoError(t, table.Upsert(ctx, batch))
	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, table.Upsert(ctx, []Record{{"id": "n2", "body": "changed", "rank": 5}}))
	rec, err := table.GetByID(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, "changed", asString(rec["body"]))
	assert.Equal(t, 5, asInt(rec["rank"]))

	err = table.Upsert(ctx, []Record{{"body": "no id"}})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	for _, later := range []Record{
		{"body": "no id", "rank": 3},
		{"id": nil, "body": "nil id", "rank": 3},
		{"id": "", "body": "empty id", "rank": 3},
	} {
		err = table.Upsert(ctx, []Record{{"id": "n3", "body": "c", "rank": 3}, later})
		assert.ErrorIs(t, err, ErrSchemaViolation)
	}
	n, err = table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIDTable_InsertOrUpdate(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	require.NoError(t, table.Insert(ctx, []Record{{"id": "n1", "body": "a", "rank": 1}}))

	err := table.InsertOrUpdate(ctx, []Record{
		{"id": "n1", "body": "updated", "rank": 1},
		{"id": "n2", "body": "new", "rank": 2},
	})
	require.NoError(t, err)

	rs, err := table.QueryAll(ctx, nil, `"id"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"updated", "new"}, rs.Strings("body"))
}

func TestIDTable_UpdatePairs(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	require.NoError(t, table.Insert(ctx, []Record{
		{"id": "n1", "body": "a", "rank": 0},
		{"id": "n2", "body": "b", "rank": 0},
		{"id": "n3", "body": "c", "rank": 7},
	}))

	require.NoError(t, table.UpdatePairs(ctx, map[string]any{"n2": 1, "n1": 2, "ghost": 3}, "rank"))

	rs, err := table.QueryAll(ctx, nil, `"id"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1", "7"}, rs.Strings("rank"))

	err = table.UpdatePairs(ctx, map[string]any{"n1": "x"}, "id")
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestIDTable_DeleteByID(t *testing.T) {
	table := setupIDTable(t)
	ctx := context.Background()
	require.NoError(t, table.Insert(ctx, []Record{{"id": "n1", "body": "a", "rank": 1}}))

	deleted, err := table.DeleteByID(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = table.DeleteByID(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, deleted)
}
