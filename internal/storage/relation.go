package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/dshills/excerpts-mcp/pkg/types"
)

// ExcerptTags is the excerpt↔tag relation accessor
type ExcerptTags struct {
	*Table
}

// NewExcerptTags creates the relation accessor over excerpt_tags
func NewExcerptTags(sess Session) (*ExcerptTags, error) {
	t, err := NewTable(sess, ExcerptTagsTable)
	if err != nil {
		return nil, err
	}
	return &ExcerptTags{Table: t}, nil
}

// AddTags associates excerptID with each tag. Existing pairs are ignored.
func (r *ExcerptTags) AddTags(ctx context.Context, excerptID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	records := make([]Record, len(tagIDs))
	for i, tagID := range tagIDs {
		records[i] = Record{colExcerptCID: excerptID, colTagCID: tagID}
	}
	return r.InsertOrIgnore(ctx, records)
}

// ReplaceTags swaps the excerpt's tag set for sel. An unspecified selection
// leaves the associations untouched; an empty one clears them.
func (r *ExcerptTags) ReplaceTags(ctx context.Context, excerptID string, sel types.TagSelection) error {
	if !sel.Specified() {
		return nil
	}
	if _, err := r.Delete(ctx, sq.Eq{quoteIdent(colExcerptCID): excerptID}); err != nil {
		return err
	}
	return r.AddTags(ctx, excerptID, sel.IDs())
}

// TagsOf returns the tag ids of an excerpt in association order
func (r *ExcerptTags) TagsOf(ctx context.Context, excerptID string) ([]string, error) {
	rs, err := r.Query(ctx, sq.Select(quoteIdent(colTagCID)).From(r.ident()).
		Where(sq.Eq{quoteIdent(colExcerptCID): excerptID}).OrderBy("rowid"))
	if err != nil {
		return nil, err
	}
	return rs.Strings(colTagCID), nil
}

// ExcerptsOf returns the ids of the excerpts carrying tagID
func (r *ExcerptTags) ExcerptsOf(ctx context.Context, tagID string) ([]string, error) {
	rs, err := r.Query(ctx, sq.Select(quoteIdent(colExcerptCID)).From(r.ident()).
		Where(sq.Eq{quoteIdent(colTagCID): tagID}).OrderBy("rowid"))
	if err != nil {
		return nil, err
	}
	return rs.Strings(colExcerptCID), nil
}

// CountFor returns the number of excerpts carrying tagID
func (r *ExcerptTags) CountFor(ctx context.Context, tagID string) (int, error) {
	return r.CountWhere(ctx, colTagCID, tagID)
}

// DeleteExcerpt removes every association of an excerpt
func (r *ExcerptTags) DeleteExcerpt(ctx context.Context, excerptID string) error {
	_, err := r.Delete(ctx, sq.Eq{quoteIdent(colExcerptCID): excerptID})
	return err
}

// MergeTag moves every association from src to dst, skipping pairs dst
// already has, then drops what is left of src
func (r *ExcerptTags) MergeTag(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	sel := sq.Select(quoteIdent(colExcerptCID)).Column("?", dst).From(r.ident()).
		Where(sq.Eq{quoteIdent(colTagCID): src})
	insert := sq.Insert(r.ident()).Options("OR IGNORE").
		Columns(quoteIdent(colExcerptCID), quoteIdent(colTagCID)).
		Select(sel)

	if _, err := r.execBuilder(ctx, insert); err != nil {
		return err
	}
	_, err := r.Delete(ctx, sq.Eq{quoteIdent(colTagCID): src})
	return err
}

// TagsOfMany returns the tag ids of each listed excerpt in association order
func (r *ExcerptTags) TagsOfMany(ctx context.Context, excerptIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(excerptIDs))
	for start := 0; start < len(excerptIDs); start += maxBatchKeys {
		batch := excerptIDs[start:min(start+maxBatchKeys, len(excerptIDs))]
		rs, err := r.Query(ctx, sq.Select(quoteIdent(colExcerptCID), quoteIdent(colTagCID)).From(r.ident()).
			Where(sq.Eq{quoteIdent(colExcerptCID): batch}).OrderBy("rowid"))
		if err != nil {
			return nil, err
		}
		for _, rec := range rs.Records {
			id := asString(rec[colExcerptCID])
			out[id] = append(out[id], asString(rec[colTagCID]))
		}
	}
	return out, nil
}
