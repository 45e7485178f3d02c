package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/excerpts-mcp/pkg/types"
)

func tagIDs(tags []types.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

func TestTagRepository_DefaultCannotBeDeleted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Tags().Delete(ctx, types.DefaultTagID)
	assert.ErrorIs(t, err, types.ErrInvalidOperation)

	tag, err := store.Tags().Get(ctx, types.DefaultTagID)
	require.NoError(t, err)
	assert.NotNil(t, tag)
}

func TestTagRepository_CreateOrRename(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()

	created, err := tags.CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)
	assert.Equal(t, 2, created.Order)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, created.Color)

	_, err = tags.CreateOrRename(ctx, "t1", "verse")
	require.NoError(t, err)
	got, err := tags.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "verse", got.Name)

	n, err := tags.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTagRepository_CreateOrRenameRejects(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()

	_, err := tags.CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)

	_, err = tags.CreateOrRename(ctx, "t2", "poetry")
	assert.ErrorIs(t, err, types.ErrDuplicateTagName)

	_, err = tags.CreateOrRename(ctx, "t3", "   ")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	n, err := tags.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "rejected calls write nothing")
}

func TestTagRepository_Reorder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()
	require.NoError(t, tags.UpsertBatch(ctx, []types.Tag{
		{ID: "a", Name: "A", Order: 1},
		{ID: "b", Name: "B", Order: 2},
		{ID: "c", Name: "C", Order: 3},
	}))

	require.NoError(t, tags.Reorder(ctx, []string{"c", "a"}))

	ordered, err := tags.ListOrdered(ctx)
	require.NoError(t, err)
	// default keeps 0, c=1, a=2, b keeps 2 and follows a by insertion
	assert.Equal(t, []string{types.DefaultTagID, "c", "a", "b"}, tagIDs(ordered))
}

func TestTagRepository_Search(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()
	require.NoError(t, tags.UpsertBatch(ctx, []types.Tag{
		{ID: "a", Name: "Tang poetry", Order: 1},
		{ID: "b", Name: "Song poetry", Order: 2},
		{ID: "c", Name: "history", Order: 3},
	}))

	tests := []struct {
		name    string
		keyword string
		want    []string
	}{
		{"single term orders descending", "poetry", []string{"b", "a"}},
		{"terms are ANDed", "poetry tang", []string{"a"}},
		{"case insensitive", "HISTORY", []string{"c"}},
		{"no match", "novel", []string{}},
		{"blank", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tags.Search(ctx, tt.keyword)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tagIDs(got))
		})
	}
}

func TestTagRepository_DeleteMergesIntoDefault(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()

	_, err := tags.CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)
	id, err := store.Excerpts().Create(ctx, types.Excerpt{Content: "moon", TagIDs: []string{"t1"}})
	require.NoError(t, err)

	require.NoError(t, tags.Delete(ctx, "t1"))

	got, err := tags.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	e, err := store.Excerpts().GetWithTags(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{types.DefaultTagID}, e.TagIDs)

	ids, err := tags.ExcerptIDsFor(ctx, types.DefaultTagID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestTagRepository_FindIDByName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, found, err := store.Tags().FindIDByName(ctx, types.DefaultTagName)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, types.DefaultTagID, id)

	_, found, err = store.Tags().FindIDByName(ctx, "nothing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTagRepository_EnsureNames(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tags := store.Tags()
	_, err := tags.CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)

	ids, err := tags.EnsureNames(ctx, []string{"poetry", "history", "history", ""})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "t1", ids["poetry"])
	assert.NotEmpty(t, ids["history"])

	again, err := tags.EnsureNames(ctx, []string{"history"})
	require.NoError(t, err)
	assert.Equal(t, ids["history"], again["history"])

	n, err := tags.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTagRepository_ListWithCounts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.Tags().CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)
	_, err = store.Excerpts().Create(ctx, types.Excerpt{Content: "one", TagIDs: []string{"t1"}})
	require.NoError(t, err)
	_, err = store.Excerpts().Create(ctx, types.Excerpt{Content: "two"})
	require.NoError(t, err)

	counts, err := store.Tags().ListWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, types.DefaultTagID, counts[0].ID)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, "t1", counts[1].ID)
	assert.Equal(t, 1, counts[1].Count)

	n, err := store.Tags().ExcerptCountFor(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTagRepository_GetMany(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.Tags().CreateOrRename(ctx, "t1", "poetry")
	require.NoError(t, err)

	got, err := store.Tags().GetMany(ctx, []string{"t1", types.DefaultTagID, "ghost"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", types.DefaultTagID}, tagIDs(got))
}
