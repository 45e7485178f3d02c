package storage

import (
	"fmt"
	"strings"
)

// ColumnType is the declared storage class of a column
type ColumnType string

const (
	Text    ColumnType = "TEXT"
	Integer ColumnType = "INTEGER"
	Float   ColumnType = "FLOAT"
	Blob    ColumnType = "BLOB"
)

// Column is a named, typed column
type Column struct {
	Name string
	Type ColumnType
}

// ForeignKey references a column of another table
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string // CASCADE, SET NULL, ...
}

// TableDef declares a table: its columns in order, primary key (single or
// composite), NOT NULL columns and foreign keys
type TableDef struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	NotNull     []string
	ForeignKeys []ForeignKey
}

// Column returns the declared column with the given name
func (d TableDef) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order
func (d TableDef) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// IsPrimaryKey reports whether name is part of the primary key
func (d TableDef) IsPrimaryKey(name string) bool {
	for _, pk := range d.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// Validate checks identifiers and that key, NOT NULL and foreign-key columns
// are declared
func (d TableDef) Validate() error {
	if err := ValidateIdentifiers(d.Name); err != nil {
		return err
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: table %q declares no columns", ErrSchemaViolation, d.Name)
	}
	if err := ValidateIdentifiers(d.ColumnNames()...); err != nil {
		return err
	}
	refs := append(append([]string{}, d.PrimaryKey...), d.NotNull...)
	for _, fk := range d.ForeignKeys {
		if err := ValidateIdentifiers(fk.RefTable, fk.RefColumn); err != nil {
			return err
		}
		refs = append(refs, fk.Column)
	}
	for _, name := range refs {
		if _, ok := d.Column(name); !ok {
			return fmt.Errorf("%w: %q is not a column of %q", ErrSchemaViolation, name, d.Name)
		}
	}
	return nil
}

// CreateSQL renders the CREATE TABLE IF NOT EXISTS statement
func (d TableDef) CreateSQL() string {
	var parts []string
	singlePK := len(d.PrimaryKey) == 1
	for _, c := range d.Columns {
		def := quoteIdent(c.Name) + " " + string(c.Type)
		if singlePK && d.PrimaryKey[0] == c.Name {
			def += " PRIMARY KEY"
		}
		if contains(d.NotNull, c.Name) {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	if len(d.PrimaryKey) > 1 {
		parts = append(parts, "PRIMARY KEY ("+quoteIdents(d.PrimaryKey)+")")
	}
	for _, fk := range d.ForeignKeys {
		clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(fk.Column), quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn))
		if fk.OnDelete != "" {
			clause += " ON DELETE " + fk.OnDelete
		}
		parts = append(parts, clause)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n);",
		quoteIdent(d.Name), strings.Join(parts, ",\n    "))
}

// DropSQL renders the DROP TABLE IF EXISTS statement
func (d TableDef) DropSQL() string {
	return "DROP TABLE IF EXISTS " + quoteIdent(d.Name) + ";"
}

// ValidateIdentifiers rejects empty names and names containing quoting
// characters
func ValidateIdentifiers(names ...string) error {
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty identifier", ErrSchemaViolation)
		}
		if strings.ContainsAny(name, "[]\"`") {
			return fmt.Errorf("%w: '[', ']', '\"' and '`' are not allowed in identifier %q", ErrSchemaViolation, name)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Notebook schema

const (
	colCID        = "cid"
	colName       = "name"
	colColor      = "color"
	colOrders     = "orders"
	colContent    = "content"
	colSource     = "source"
	colTitle      = "title"
	colAuthor     = "author"
	colNote       = "note"
	colCreatedAt  = "created_at"
	colExcerptCID = "excerpt_cid"
	colTagCID     = "tag_cid"
)

// TagsTable declares the tags table
var TagsTable = TableDef{
	Name: "tags",
	Columns: []Column{
		{colCID, Text},
		{colName, Text},
		{colColor, Text},
		{colOrders, Integer},
	},
	PrimaryKey: []string{colCID},
	NotNull:    []string{colName, colColor, colOrders},
}

// ExcerptsTable declares the excerpts table
var ExcerptsTable = TableDef{
	Name: "excerpts",
	Columns: []Column{
		{colCID, Text},
		{colContent, Text},
		{colSource, Text},
		{colTitle, Text},
		{colAuthor, Text},
		{colNote, Text},
		{colCreatedAt, Text},
	},
	PrimaryKey: []string{colCID},
	NotNull:    []string{colContent, colSource, colTitle, colAuthor, colNote, colCreatedAt},
}

// ExcerptTagsTable declares the excerpt/tag join table
var ExcerptTagsTable = TableDef{
	Name: "excerpt_tags",
	Columns: []Column{
		{colExcerptCID, Text},
		{colTagCID, Text},
	},
	PrimaryKey: []string{colExcerptCID, colTagCID},
	NotNull:    []string{colExcerptCID, colTagCID},
	ForeignKeys: []ForeignKey{
		{Column: colExcerptCID, RefTable: "excerpts", RefColumn: colCID, OnDelete: "CASCADE"},
		{Column: colTagCID, RefTable: "tags", RefColumn: colCID, OnDelete: "CASCADE"},
	},
}

// managedTables lists the notebook tables in creation order
var managedTables = []TableDef{TagsTable, ExcerptsTable, ExcerptTagsTable}
