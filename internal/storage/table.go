package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// maxBatchKeys bounds the number of key tuples bound in a single IN list
const maxBatchKeys = 500

// Table is the generic accessor for one declared table. Values are always
// bound as parameters; identifiers are validated and quoted.
type Table struct {
	def  TableDef
	sess Session
}

// NewTable creates an accessor. It fails if def is malformed.
func NewTable(sess Session, def TableDef) (*Table, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Table{def: def, sess: sess}, nil
}

// Name returns the table name
func (t *Table) Name() string {
	return t.def.Name
}

// Def returns the table definition
func (t *Table) Def() TableDef {
	return t.def
}

func (t *Table) ident() string {
	return quoteIdent(t.def.Name)
}

// Create creates the table if it does not exist
func (t *Table) Create(ctx context.Context) error {
	_, err := t.exec(ctx, t.def.CreateSQL())
	return err
}

// Drop drops the table if it exists
func (t *Table) Drop(ctx context.Context) error {
	_, err := t.exec(ctx, t.def.DropSQL())
	return err
}

// Count returns the total row count
func (t *Table) Count(ctx context.Context) (int, error) {
	return t.count(ctx, nil)
}

// CountWhere returns the number of rows whose column equals value
func (t *Table) CountWhere(ctx context.Context, column string, value any) (int, error) {
	if err := t.checkColumns(column); err != nil {
		return 0, err
	}
	return t.count(ctx, sq.Eq{quoteIdent(column): Coerce(value)})
}

func (t *Table) count(ctx context.Context, where sq.Sqlizer) (int, error) {
	b := sq.Select("COUNT(*)").From(t.ident())
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	q, err := t.querier(ctx, query)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.def.Name, err)
	}
	return n, nil
}

// Insert inserts records with one prepared statement. The column set comes
// from the first record.
func (t *Table) Insert(ctx context.Context, records []Record) error {
	return t.insert(ctx, records)
}

// InsertOrIgnore inserts records, silently skipping rows that violate a
// uniqueness constraint
func (t *Table) InsertOrIgnore(ctx context.Context, records []Record) error {
	return t.insert(ctx, records, "OR IGNORE")
}

func (t *Table) insert(ctx context.Context, records []Record, options ...string) error {
	if len(records) == 0 {
		return nil
	}
	cols, err := t.recordColumns(records[0])
	if err != nil {
		return err
	}
	b := sq.Insert(t.ident()).Options(options...).Columns(quoteAll(cols)...).Values(make([]any, len(cols))...)
	return t.execMany(ctx, b, cols, records)
}

// Update sets fields on the rows matching where. Fields naming a primary key
// column are rejected before any SQL is issued.
func (t *Table) Update(ctx context.Context, fields Record, where sq.Sqlizer) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	set := make(map[string]any, len(fields))
	for col, v := range fields {
		if err := t.checkColumns(col); err != nil {
			return 0, err
		}
		if t.def.IsPrimaryKey(col) {
			return 0, fmt.Errorf("%w: cannot update primary key column %q of %q", ErrSchemaViolation, col, t.def.Name)
		}
		set[quoteIdent(col)] = Coerce(v)
	}

	b := sq.Update(t.ident()).SetMap(set)
	if where != nil {
		b = b.Where(where)
	}
	res, err := t.execBuilder(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertManual inserts records whose primary key is new and updates the rest.
// Existing keys are looked up in one round trip per batch; updates exclude
// the primary key columns.
func (t *Table) UpsertManual(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	pk := t.def.PrimaryKey
	if len(pk) == 0 {
		return fmt.Errorf("%w: table %q has no primary key; cannot upsert", ErrSchemaViolation, t.def.Name)
	}
	for _, rec := range records {
		for _, col := range pk {
			if _, ok := rec[col]; !ok {
				return fmt.Errorf("%w: record missing primary key field %q", ErrSchemaViolation, col)
			}
		}
	}
	if _, err := t.recordColumns(records[0]); err != nil {
		return err
	}

	existing, err := t.existingKeys(ctx, records)
	if err != nil {
		return err
	}

	var inserts, updates []Record
	for _, rec := range records {
		if existing[keyOf(rec, pk)] {
			updates = append(updates, rec)
		} else {
			inserts = append(inserts, rec)
		}
	}

	if err := t.Insert(ctx, inserts); err != nil {
		return err
	}
	for _, rec := range updates {
		fields := make(Record, len(rec))
		for col, v := range rec {
			if !t.def.IsPrimaryKey(col) {
				fields[col] = v
			}
		}
		if _, err := t.Update(ctx, fields, t.keyPredicate(rec)); err != nil {
			return err
		}
	}
	return nil
}

// existingKeys returns the primary-key tuples of records already stored
func (t *Table) existingKeys(ctx context.Context, records []Record) (map[string]bool, error) {
	pk := t.def.PrimaryKey
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(pk)), ",") + ")"
	existing := make(map[string]bool, len(records))

	for start := 0; start < len(records); start += maxBatchKeys {
		batch := records[start:min(start+maxBatchKeys, len(records))]
		args := make([]any, 0, len(batch)*len(pk))
		tuples := make([]string, len(batch))
		for i, rec := range batch {
			tuples[i] = tuple
			for _, col := range pk {
				args = append(args, Coerce(rec[col]))
			}
		}
		b := sq.Select(quoteAll(pk)...).From(t.ident()).
			Where(sq.Expr("("+quoteIdents(pk)+") IN ("+strings.Join(tuples, ",")+")", args...))
		rs, err := t.Query(ctx, b)
		if err != nil {
			return nil, err
		}
		for _, rec := range rs.Records {
			existing[keyOf(rec, pk)] = true
		}
	}
	return existing, nil
}

// Delete removes the rows matching where
func (t *Table) Delete(ctx context.Context, where sq.Sqlizer) (int64, error) {
	b := sq.Delete(t.ident())
	if where != nil {
		b = b.Where(where)
	}
	res, err := t.execBuilder(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QueryAll selects every column of the rows matching where (nil for all),
// ordered by the given ORDER BY terms
func (t *Table) QueryAll(ctx context.Context, where sq.Sqlizer, orderBy ...string) (*ResultSet, error) {
	b := sq.Select("*").From(t.ident())
	if where != nil {
		b = b.Where(where)
	}
	if len(orderBy) > 0 {
		b = b.OrderBy(orderBy...)
	}
	return t.Query(ctx, b)
}

// Query runs a built statement and collects its rows
func (t *Table) Query(ctx context.Context, b sq.Sqlizer) (*ResultSet, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return t.QueryRaw(ctx, query, args...)
}

// QueryRaw runs SQL and collects its rows keyed by column name. Statements
// without a result set return an empty ResultSet.
func (t *Table) QueryRaw(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	q, err := t.querier(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.def.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: cols, Records: []Record{}}
	if len(cols) == 0 {
		return rs, rows.Err()
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.def.Name, err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		rs.Records = append(rs.Records, rec)
	}
	return rs, rows.Err()
}

// recordColumns returns the record's keys in declaration order, rejecting
// names that are invalid or not declared
func (t *Table) recordColumns(rec Record) ([]string, error) {
	for col := range rec {
		if err := t.checkColumns(col); err != nil {
			return nil, err
		}
	}
	cols := make([]string, 0, len(rec))
	for _, c := range t.def.Columns {
		if _, ok := rec[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols, nil
}

func (t *Table) checkColumns(cols ...string) error {
	if err := ValidateIdentifiers(cols...); err != nil {
		return err
	}
	for _, col := range cols {
		if _, ok := t.def.Column(col); !ok {
			return fmt.Errorf("%w: unknown column %q in %q", ErrSchemaViolation, col, t.def.Name)
		}
	}
	return nil
}

func (t *Table) keyPredicate(rec Record) sq.Eq {
	eq := make(sq.Eq, len(t.def.PrimaryKey))
	for _, col := range t.def.PrimaryKey {
		eq[quoteIdent(col)] = Coerce(rec[col])
	}
	return eq
}

// execMany prepares the statement built by b once and executes it for each
// record, binding the values of cols. Every record must carry exactly cols;
// nothing is written otherwise.
func (t *Table) execMany(ctx context.Context, b sq.Sqlizer, cols []string, records []Record) error {
	for _, rec := range records {
		if err := sameColumns(rec, cols); err != nil {
			return err
		}
	}
	query, _, err := b.ToSql()
	if err != nil {
		return err
	}
	q, err := t.querier(ctx, query)
	if err != nil {
		return err
	}
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", t.def.Name, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = Coerce(rec[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("write %s: %w", t.def.Name, err)
		}
	}
	return nil
}

// sameColumns rejects a record whose keys differ from the batch column set
func sameColumns(rec Record, cols []string) error {
	for _, col := range cols {
		if _, ok := rec[col]; !ok {
			return fmt.Errorf("%w: record missing field %q", ErrSchemaViolation, col)
		}
	}
	if len(rec) != len(cols) {
		for col := range rec {
			if !contains(cols, col) {
				return fmt.Errorf("%w: record field %q not in batch columns", ErrSchemaViolation, col)
			}
		}
	}
	return nil
}

func (t *Table) execBuilder(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return t.exec(ctx, query, args...)
}

func (t *Table) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q, err := t.querier(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", t.def.Name, err)
	}
	return res, nil
}

func (t *Table) querier(ctx context.Context, query string) (Querier, error) {
	t.sess.Logger().Debug("sql", zap.String("table", t.def.Name), zap.String("query", query))
	return t.sess.Querier(ctx)
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return quoted
}

// keyOf renders the primary-key tuple of rec as a comparable string
func keyOf(rec Record, pk []string) string {
	parts := make([]string, len(pk))
	for i, col := range pk {
		parts[i] = asString(Coerce(rec[col]))
	}
	return strings.Join(parts, "\x00")
}
