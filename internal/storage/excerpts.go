package storage

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dshills/excerpts-mcp/internal/validation"
	"github.com/dshills/excerpts-mcp/pkg/types"
)

// searchColumns are matched by ExcerptRepository.Search
var searchColumns = []string{colContent, colTitle, colAuthor, colNote, colSource}

// ExcerptRepository manages excerpts and their tag associations
type ExcerptRepository struct {
	table     *IDTable
	rel       *ExcerptTags
	validator *validation.Validator
	now       func() time.Time
}

// NewExcerptRepository creates an excerpt repository over the session
func NewExcerptRepository(sess Session, rel *ExcerptTags, v *validation.Validator, now func() time.Time) (*ExcerptRepository, error) {
	table, err := NewIDTable(sess, ExcerptsTable, colCID)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &ExcerptRepository{table: table, rel: rel, validator: v, now: now}, nil
}

func excerptRecord(e types.Excerpt) Record {
	return Record{
		colCID:       e.ID,
		colContent:   e.Content,
		colSource:    e.Source,
		colTitle:     e.Title,
		colAuthor:    e.Author,
		colNote:      e.Note,
		colCreatedAt: e.CreatedAt,
	}
}

func excerptFromRecord(rec Record) types.Excerpt {
	return types.Excerpt{
		ID:        asString(rec[colCID]),
		Content:   asString(rec[colContent]),
		Source:    asString(rec[colSource]),
		Title:     asString(rec[colTitle]),
		Author:    asString(rec[colAuthor]),
		Note:      asString(rec[colNote]),
		CreatedAt: asString(rec[colCreatedAt]),
		TagIDs:    []string{},
	}
}

// hydrate converts rows into excerpts carrying their tag ids. The rows
// must be fully read before the association lookup runs.
func (r *ExcerptRepository) hydrate(ctx context.Context, recs []Record) ([]types.Excerpt, error) {
	out := make([]types.Excerpt, 0, len(recs))
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		e := excerptFromRecord(rec)
		out = append(out, e)
		ids = append(ids, e.ID)
	}
	tags, err := r.rel.TagsOfMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if t := tags[out[i].ID]; t != nil {
			out[i].TagIDs = t
		}
	}
	return out, nil
}

func (r *ExcerptRepository) stamp() time.Time {
	return r.now().UTC()
}

// Count returns the number of excerpts
func (r *ExcerptRepository) Count(ctx context.Context) (int, error) {
	return r.table.Count(ctx)
}

// Create stores a new excerpt under a fresh id and returns the id. Empty
// source, title and author receive placeholders; no tags means the default
// tag only.
func (r *ExcerptRepository) Create(ctx context.Context, e types.Excerpt) (string, error) {
	if err := r.validator.Validate(e); err != nil {
		return "", err
	}
	e.ID = ""
	e.CreatedAt = ""
	merged := types.MergeExcerpt(e, nil, r.stamp())

	if err := r.table.Insert(ctx, []Record{excerptRecord(merged)}); err != nil {
		return "", err
	}
	if err := r.rel.AddTags(ctx, merged.ID, merged.TagIDs); err != nil {
		return "", err
	}
	return merged.ID, nil
}

// Update applies the non-empty fields of patch to the excerpt. A specified
// tag selection replaces the associations, with the default tag kept; an
// unspecified one leaves them alone. It reports false if id is not stored.
func (r *ExcerptRepository) Update(ctx context.Context, id string, patch types.ExcerptPatch) (bool, error) {
	rec, err := r.table.GetByID(ctx, id)
	if err != nil || rec == nil {
		return false, err
	}

	fields := Record{}
	for col, v := range map[string]string{
		colContent: patch.Content,
		colSource:  patch.Source,
		colTitle:   patch.Title,
		colAuthor:  patch.Author,
		colNote:    patch.Note,
	} {
		if v != "" {
			fields[col] = v
		}
	}
	if len(fields) > 0 {
		if _, err := r.table.Update(ctx, fields, r.table.idEq(id)); err != nil {
			return false, err
		}
	}

	if patch.Tags.Specified() {
		if err := r.rel.ReplaceTags(ctx, id, types.SetTags(patch.Tags.WithDefault()...)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Save merges next over old (nil for a new excerpt) and writes the result,
// replacing the stored tag set
func (r *ExcerptRepository) Save(ctx context.Context, next types.Excerpt, old *types.Excerpt) (types.Excerpt, error) {
	merged := types.MergeExcerpt(next, old, r.stamp())
	if err := r.validator.Validate(merged); err != nil {
		return types.Excerpt{}, err
	}
	if err := r.UpsertBatch(ctx, []types.Excerpt{merged}); err != nil {
		return types.Excerpt{}, err
	}
	return merged, nil
}

// InsertMany normalises each record as a new excerpt, keeping any id and
// timestamp it carries, then upserts them. Timestamps in another ISO-8601
// form are rewritten to TimeLayout.
func (r *ExcerptRepository) InsertMany(ctx context.Context, records []types.Excerpt) ([]types.Excerpt, error) {
	now := r.stamp()
	merged := make([]types.Excerpt, len(records))
	for i, rec := range records {
		if t, ok := DecodeTime(rec.CreatedAt); ok && rec.CreatedAt != "" {
			rec.CreatedAt = asString(Coerce(t))
		}
		merged[i] = types.MergeExcerpt(rec, nil, now)
	}
	if err := r.UpsertBatch(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// UpsertBatch writes the rows of records with one prepared upsert, then
// replaces each record's associations. Every record is validated before
// anything is written.
func (r *ExcerptRepository) UpsertBatch(ctx context.Context, records []types.Excerpt) error {
	rows := make([]Record, 0, len(records))
	for _, e := range records {
		if err := r.validator.Validate(e); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = types.NewExcerptID()
		}
		if e.CreatedAt == "" {
			e.CreatedAt = r.stamp().Format(types.TimeLayout)
		}
		rows = append(rows, excerptRecord(e))
	}
	if err := r.table.Upsert(ctx, rows); err != nil {
		return err
	}
	for i, e := range records {
		id := asString(rows[i][colCID])
		if err := r.rel.ReplaceTags(ctx, id, types.SetTags(types.EnsureDefaultTag(e.TagIDs)...)); err != nil {
			return err
		}
	}
	return nil
}

// GetWithTags returns the excerpt with its tag ids, or nil
func (r *ExcerptRepository) GetWithTags(ctx context.Context, id string) (*types.Excerpt, error) {
	rec, err := r.table.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	out, err := r.hydrate(ctx, []Record{rec})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// GetMany returns the stored excerpts among ids
func (r *ExcerptRepository) GetMany(ctx context.Context, ids []string) ([]types.Excerpt, error) {
	recs, err := r.table.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, recs)
}

// GetAll returns every excerpt, most recent first
func (r *ExcerptRepository) GetAll(ctx context.Context) ([]types.Excerpt, error) {
	return r.queryOrdered(ctx, nil)
}

// Delete removes the excerpt and its associations. It reports whether the
// excerpt existed.
func (r *ExcerptRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.rel.DeleteExcerpt(ctx, id); err != nil {
		return false, err
	}
	return r.table.DeleteByID(ctx, id)
}

// ByAuthor returns the excerpts whose author is exactly author
func (r *ExcerptRepository) ByAuthor(ctx context.Context, author string) ([]types.Excerpt, error) {
	return r.queryOrdered(ctx, sq.Eq{quoteIdent(colAuthor): author})
}

// BySource returns the excerpts whose source is exactly source
func (r *ExcerptRepository) BySource(ctx context.Context, source string) ([]types.Excerpt, error) {
	return r.queryOrdered(ctx, sq.Eq{quoteIdent(colSource): source})
}

// Search returns the excerpts matching every whitespace-separated term of
// keyword in content, title, author, note or source, most recent first.
// A blank keyword matches nothing.
func (r *ExcerptRepository) Search(ctx context.Context, keyword string) ([]types.Excerpt, error) {
	terms := strings.Fields(keyword)
	if len(terms) == 0 {
		return []types.Excerpt{}, nil
	}
	where := sq.And{}
	for _, term := range terms {
		anyColumn := sq.Or{}
		for _, col := range searchColumns {
			anyColumn = append(anyColumn, sq.Like{quoteIdent(col): "%" + term + "%"})
		}
		where = append(where, anyColumn)
	}
	return r.queryOrdered(ctx, where)
}

func (r *ExcerptRepository) queryOrdered(ctx context.Context, where sq.Sqlizer) ([]types.Excerpt, error) {
	rs, err := r.table.QueryAll(ctx, where, quoteIdent(colCreatedAt)+" DESC", "rowid DESC")
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rs.Records)
}
