package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/dshills/excerpts-mcp/internal/validation"
	"github.com/dshills/excerpts-mcp/pkg/types"
)

// TagRepository manages tags and their excerpt associations
type TagRepository struct {
	table     *IDTable
	rel       *ExcerptTags
	validator *validation.Validator
}

// NewTagRepository creates a tag repository over the session
func NewTagRepository(sess Session, rel *ExcerptTags, v *validation.Validator) (*TagRepository, error) {
	table, err := NewIDTable(sess, TagsTable, colCID)
	if err != nil {
		return nil, err
	}
	return &TagRepository{table: table, rel: rel, validator: v}, nil
}

// TagCount pairs a tag with the number of excerpts carrying it
type TagCount struct {
	types.Tag
	Count int `json:"count"`
}

func tagRecord(t types.Tag) Record {
	return Record{
		colCID:    t.ID,
		colName:   t.Name,
		colColor:  t.Color,
		colOrders: t.Order,
	}
}

func tagFromRecord(rec Record) types.Tag {
	return types.Tag{
		ID:    asString(rec[colCID]),
		Name:  asString(rec[colName]),
		Color: asString(rec[colColor]),
		Order: asInt(rec[colOrders]),
	}
}

func tagsFromResult(rs *ResultSet) []types.Tag {
	tags := make([]types.Tag, 0, rs.Len())
	for _, rec := range rs.Records {
		tags = append(tags, tagFromRecord(rec))
	}
	return tags
}

// ensureDefault creates the default tag if it is missing
func (r *TagRepository) ensureDefault(ctx context.Context) error {
	n, err := r.table.CountWhere(ctx, colCID, types.DefaultTagID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.table.Insert(ctx, []Record{tagRecord(types.NewTag(types.DefaultTagID, types.DefaultTagName, 0))})
}

// Count returns the number of tags, the default tag included
func (r *TagRepository) Count(ctx context.Context) (int, error) {
	return r.table.Count(ctx)
}

// ListOrdered returns every tag by ascending sort order
func (r *TagRepository) ListOrdered(ctx context.Context) ([]types.Tag, error) {
	rs, err := r.table.QueryAll(ctx, nil, quoteIdent(colOrders)+" ASC", "rowid ASC")
	if err != nil {
		return nil, err
	}
	return tagsFromResult(rs), nil
}

// ListWithCounts returns every tag by ascending sort order together with
// its excerpt count
func (r *TagRepository) ListWithCounts(ctx context.Context) ([]TagCount, error) {
	t := quoteIdent(TagsTable.Name)
	rel := quoteIdent(ExcerptTagsTable.Name)
	b := sq.Select(
		t+"."+quoteIdent(colCID),
		t+"."+quoteIdent(colName),
		t+"."+quoteIdent(colColor),
		t+"."+quoteIdent(colOrders),
		"COUNT("+rel+"."+quoteIdent(colExcerptCID)+") AS "+quoteIdent("count"),
	).
		From(t).
		LeftJoin(rel + " ON " + rel + "." + quoteIdent(colTagCID) + " = " + t + "." + quoteIdent(colCID)).
		GroupBy(t + "." + quoteIdent(colCID)).
		OrderBy(t + "." + quoteIdent(colOrders) + " ASC")

	rs, err := r.table.Query(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([]TagCount, 0, rs.Len())
	for _, rec := range rs.Records {
		out = append(out, TagCount{Tag: tagFromRecord(rec), Count: asInt(rec["count"])})
	}
	return out, nil
}

// Get returns the tag with the given id, or nil
func (r *TagRepository) Get(ctx context.Context, id string) (*types.Tag, error) {
	rec, err := r.table.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	tag := tagFromRecord(rec)
	return &tag, nil
}

// GetMany returns the stored tags among ids
func (r *TagRepository) GetMany(ctx context.Context, ids []string) ([]types.Tag, error) {
	recs, err := r.table.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	tags := make([]types.Tag, 0, len(recs))
	for _, rec := range recs {
		tags = append(tags, tagFromRecord(rec))
	}
	return tags, nil
}

// Reorder gives each listed id the sort order of its 1-based position.
// Tags not listed keep their order.
func (r *TagRepository) Reorder(ctx context.Context, ids []string) error {
	pairs := make(map[string]any, len(ids))
	for i, id := range ids {
		pairs[id] = i + 1
	}
	return r.table.UpdatePairs(ctx, pairs, colOrders)
}

// CreateOrRename stores a tag under id with a fresh random color and the
// next sort order. Another tag already using name is a conflict.
func (r *TagRepository) CreateOrRename(ctx context.Context, id, name string) (types.Tag, error) {
	name = strings.TrimSpace(name)
	n, err := r.table.Count(ctx)
	if err != nil {
		return types.Tag{}, err
	}
	tag := types.NewTag(id, name, n+1)
	if err := r.validator.Validate(tag); err != nil {
		return types.Tag{}, err
	}

	owner, found, err := r.FindIDByName(ctx, name)
	if err != nil {
		return types.Tag{}, err
	}
	if found && owner != id {
		return types.Tag{}, fmt.Errorf("%w: %q", types.ErrDuplicateTagName, name)
	}

	if err := r.table.Upsert(ctx, []Record{tagRecord(tag)}); err != nil {
		return types.Tag{}, err
	}
	return tag, nil
}

// UpsertBatch writes complete tag records as given
func (r *TagRepository) UpsertBatch(ctx context.Context, tags []types.Tag) error {
	records := make([]Record, 0, len(tags))
	for _, t := range tags {
		if t.Color == "" {
			t.Color = types.RandomColor()
		}
		if err := r.validator.Validate(t); err != nil {
			return err
		}
		records = append(records, tagRecord(t))
	}
	return r.table.Upsert(ctx, records)
}

// EnsureNames resolves tag names to ids, creating a tag for each unknown
// name. Blank names are skipped.
func (r *TagRepository) EnsureNames(ctx context.Context, names []string) (map[string]string, error) {
	ids := make(map[string]string, len(names))
	var missing []types.Tag

	n, err := r.table.Count(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := ids[name]; ok {
			continue
		}
		id, found, err := r.FindIDByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			n++
			tag := types.NewTag(types.NewTagID(), name, n)
			missing = append(missing, tag)
			id = tag.ID
		}
		ids[name] = id
	}

	if err := r.UpsertBatch(ctx, missing); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes a tag, moving its excerpts to the default tag first.
// The default tag itself cannot be deleted.
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	if id == types.DefaultTagID {
		return fmt.Errorf("%w: the default tag cannot be deleted", types.ErrInvalidOperation)
	}
	if err := r.rel.MergeTag(ctx, id, types.DefaultTagID); err != nil {
		return err
	}
	_, err := r.table.DeleteByID(ctx, id)
	return err
}

// ExcerptIDsFor returns the ids of the excerpts carrying the tag
func (r *TagRepository) ExcerptIDsFor(ctx context.Context, id string) ([]string, error) {
	return r.rel.ExcerptsOf(ctx, id)
}

// ExcerptCountFor returns the number of excerpts carrying the tag
func (r *TagRepository) ExcerptCountFor(ctx context.Context, id string) (int, error) {
	return r.rel.CountFor(ctx, id)
}

// FindIDByName returns the id of the tag named name
func (r *TagRepository) FindIDByName(ctx context.Context, name string) (string, bool, error) {
	rs, err := r.table.Query(ctx, sq.Select(quoteIdent(colCID)).From(r.table.ident()).
		Where(sq.Eq{quoteIdent(colName): name}).Limit(1))
	if err != nil {
		return "", false, err
	}
	if rs.Len() == 0 {
		return "", false, nil
	}
	return asString(rs.Records[0][colCID]), true, nil
}

// Search returns the tags whose name contains every whitespace-separated
// term of keyword, by descending sort order. A blank keyword matches nothing.
func (r *TagRepository) Search(ctx context.Context, keyword string) ([]types.Tag, error) {
	terms := strings.Fields(keyword)
	if len(terms) == 0 {
		return []types.Tag{}, nil
	}
	where := sq.And{}
	for _, term := range terms {
		where = append(where, sq.Like{quoteIdent(colName): "%" + term + "%"})
	}
	rs, err := r.table.QueryAll(ctx, where, quoteIdent(colOrders)+" DESC")
	if err != nil {
		return nil, err
	}
	return tagsFromResult(rs), nil
}
