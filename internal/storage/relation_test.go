package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/excerpts-mcp/pkg/types"
)

// seedRelation stores tags a and b and excerpts e1..e3 without associations
func seedRelation(t *testing.T) (*Store, *ExcerptTags) {
	t.Helper()
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Tags().UpsertBatch(ctx, []types.Tag{
		{ID: "a", Name: "A", Order: 1},
		{ID: "b", Name: "B", Order: 2},
	}))
	excerpts, err := NewIDTable(store, ExcerptsTable, colCID)
	require.NoError(t, err)
	for _, id := range []string{"e1", "e2", "e3"} {
		e := types.MergeExcerpt(types.Excerpt{ID: id, Content: id}, nil, testNow)
		require.NoError(t, excerpts.Insert(ctx, []Record{excerptRecord(e)}))
	}
	return store, store.rel
}

func TestExcerptTags_AddTagsIsIdempotent(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()

	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a", "b"}))
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a"}))

	tags, err := rel.TagsOf(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestExcerptTags_ReplaceTags(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a"}))

	require.NoError(t, rel.ReplaceTags(ctx, "e1", types.KeepTags()))
	tags, err := rel.TagsOf(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tags, "unspecified keeps associations")

	require.NoError(t, rel.ReplaceTags(ctx, "e1", types.SetTags("b")))
	tags, err = rel.TagsOf(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tags)

	require.NoError(t, rel.ReplaceTags(ctx, "e1", types.SetTags()))
	tags, err = rel.TagsOf(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, tags, "empty selection clears")
}

func TestExcerptTags_MergeTag(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a", "b"}))
	require.NoError(t, rel.AddTags(ctx, "e2", []string{"a"}))
	require.NoError(t, rel.AddTags(ctx, "e3", []string{"b"}))

	require.NoError(t, rel.MergeTag(ctx, "a", "b"))

	n, err := rel.CountFor(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ids, err := rel.ExcerptsOf(ctx, "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2", "e3"}, ids)

	total, err := rel.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total, "the duplicate (e1, b) pair collapses")
}

func TestExcerptTags_MergeTagSameIsNoop(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a"}))

	require.NoError(t, rel.MergeTag(ctx, "a", "a"))
	n, err := rel.CountFor(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExcerptTags_TagsOfMany(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"b", "a"}))
	require.NoError(t, rel.AddTags(ctx, "e2", []string{"a"}))

	got, err := rel.TagsOfMany(ctx, []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got["e1"])
	assert.Equal(t, []string{"a"}, got["e2"])
	assert.Nil(t, got["e3"])
}

func TestExcerptTags_DeleteExcerpt(t *testing.T) {
	_, rel := seedRelation(t)
	ctx := context.Background()
	require.NoError(t, rel.AddTags(ctx, "e1", []string{"a", "b"}))
	require.NoError(t, rel.DeleteExcerpt(ctx, "e1"))

	tags, err := rel.TagsOf(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, tags)
}
