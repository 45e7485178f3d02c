package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// IDTable is a Table keyed by a single text id column
type IDTable struct {
	*Table
	idColumn string
}

// NewIDTable creates an accessor keyed by idColumn. It fails if idColumn is
// not declared or is not a Text column.
func NewIDTable(sess Session, def TableDef, idColumn string) (*IDTable, error) {
	col, ok := def.Column(idColumn)
	if !ok {
		return nil, fmt.Errorf("%w: id column %q not declared in %q", ErrSchemaViolation, idColumn, def.Name)
	}
	if col.Type != Text {
		return nil, fmt.Errorf("%w: id column %q of %q must be TEXT, got %s", ErrSchemaViolation, idColumn, def.Name, col.Type)
	}
	t, err := NewTable(sess, def)
	if err != nil {
		return nil, err
	}
	return &IDTable{Table: t, idColumn: idColumn}, nil
}

// IDColumn returns the name of the id column
func (t *IDTable) IDColumn() string {
	return t.idColumn
}

func (t *IDTable) idEq(id any) sq.Eq {
	return sq.Eq{quoteIdent(t.idColumn): Coerce(id)}
}

// GetByID returns the row with the given id, or nil when absent
func (t *IDTable) GetByID(ctx context.Context, id string) (Record, error) {
	rs, err := t.Query(ctx, sq.Select("*").From(t.ident()).Where(t.idEq(id)).Limit(1))
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, nil
	}
	return rs.Records[0], nil
}

// GetMany returns the rows whose id is in ids, in storage order
func (t *IDTable) GetMany(ctx context.Context, ids []string) ([]Record, error) {
	out := []Record{}
	for start := 0; start < len(ids); start += maxBatchKeys {
		batch := ids[start:min(start+maxBatchKeys, len(ids))]
		rs, err := t.Query(ctx, sq.Select("*").From(t.ident()).Where(sq.Eq{quoteIdent(t.idColumn): batch}))
		if err != nil {
			return nil, err
		}
		out = append(out, rs.Records...)
	}
	return out, nil
}

// existingIDs returns the subset of ids already stored
func (t *IDTable) existingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += maxBatchKeys {
		batch := ids[start:min(start+maxBatchKeys, len(ids))]
		rs, err := t.Query(ctx, sq.Select(quoteIdent(t.idColumn)).From(t.ident()).Where(sq.Eq{quoteIdent(t.idColumn): batch}))
		if err != nil {
			return nil, err
		}
		for _, id := range rs.Strings(t.idColumn) {
			existing[id] = true
		}
	}
	return existing, nil
}

// InsertOrUpdate inserts records whose id is new and updates the others one
// by one. The id column is never part of an update.
func (t *IDTable) InsertOrUpdate(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		v, ok := rec[t.idColumn]
		if !ok {
			return fmt.Errorf("%w: record missing id field %q", ErrSchemaViolation, t.idColumn)
		}
		ids[i] = asString(Coerce(v))
	}
	existing, err := t.existingIDs(ctx, ids)
	if err != nil {
		return err
	}

	var inserts []Record
	for i, rec := range records {
		if !existing[ids[i]] {
			inserts = append(inserts, rec)
			continue
		}
		fields := make(Record, len(rec))
		for col, v := range rec {
			if col != t.idColumn {
				fields[col] = v
			}
		}
		if _, err := t.Update(ctx, fields, t.idEq(ids[i])); err != nil {
			return err
		}
	}
	return t.Insert(ctx, inserts)
}

// Upsert writes records with one prepared statement that overwrites every
// non-id column on id conflict
func (t *IDTable) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	cols, err := t.recordColumns(records[0])
	if err != nil {
		return err
	}
	for _, rec := range records {
		if asString(Coerce(rec[t.idColumn])) == "" {
			return fmt.Errorf("%w: record missing id field %q", ErrSchemaViolation, t.idColumn)
		}
	}

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if col != t.idColumn {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoteIdent(col), quoteIdent(col)))
		}
	}
	conflict := "ON CONFLICT(" + quoteIdent(t.idColumn) + ") DO NOTHING"
	if len(sets) > 0 {
		conflict = "ON CONFLICT(" + quoteIdent(t.idColumn) + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}

	b := sq.Insert(t.ident()).Columns(quoteAll(cols)...).Values(make([]any, len(cols))...).Suffix(conflict)
	return t.execMany(ctx, b, cols, records)
}

// UpdatePairs sets otherColumn for each id in pairs with one prepared
// statement. Ids that are not stored are skipped.
func (t *IDTable) UpdatePairs(ctx context.Context, pairs map[string]any, otherColumn string) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := t.checkColumns(otherColumn); err != nil {
		return err
	}
	if t.def.IsPrimaryKey(otherColumn) {
		return fmt.Errorf("%w: cannot update primary key column %q of %q", ErrSchemaViolation, otherColumn, t.def.Name)
	}

	records := make([]Record, 0, len(pairs))
	for id, v := range pairs {
		records = append(records, Record{otherColumn: v, t.idColumn: id})
	}
	b := sq.Update(t.ident()).
		Set(quoteIdent(otherColumn), nil).
		Where(sq.Expr(quoteIdent(t.idColumn) + " = ?"))
	return t.execMany(ctx, b, []string{otherColumn, t.idColumn}, records)
}

// DeleteByID removes the row with the given id and reports whether it existed
func (t *IDTable) DeleteByID(ctx context.Context, id string) (bool, error) {
	n, err := t.Delete(ctx, t.idEq(id))
	return n > 0, err
}
