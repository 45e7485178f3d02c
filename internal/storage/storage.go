package storage

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrSchemaViolation signals a programming error in the calling layer:
	// a bad identifier, a primary-key update, an upsert on a table without a
	// primary key or a malformed table definition
	ErrSchemaViolation = errors.New("schema violation")
	// ErrStoreClosed is returned when a closed store is used
	ErrStoreClosed = errors.New("store is closed")
)

// Querier is implemented by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Session hands table accessors the querier bound to the open transaction.
// Every write stays pending until the session owner commits.
type Session interface {
	Querier(ctx context.Context) (Querier, error)
	Logger() *zap.Logger
}

// Record is one row keyed by column name
type Record map[string]any

// ResultSet holds query rows; Columns preserves the result-set column order
type ResultSet struct {
	Columns []string
	Records []Record
}

// Len returns the number of rows
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

// Strings returns column col of every row as text
func (r *ResultSet) Strings(col string) []string {
	out := make([]string, 0, r.Len())
	if r == nil {
		return out
	}
	for _, rec := range r.Records {
		out = append(out, asString(rec[col]))
	}
	return out
}
