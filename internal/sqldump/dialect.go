// Package sqldump generates replayable SQL dump scripts from live
// databases. One Generator serves the SQLite, PostgreSQL, and MySQL
// dialects; the per-dialect differences live behind the Dialect and
// Source interfaces.
package sqldump

import (
	"context"
	"errors"
)

// ErrConnect indicates the database could not be reached or opened.
var ErrConnect = errors.New("database connection failed")

// ErrQuery indicates a failure while introspecting or streaming rows.
var ErrQuery = errors.New("database query failed")

// Dialect captures the literal and identifier conventions of one database
// family.
type Dialect interface {
	Name() string
	QuoteIdent(ident string) string
	BoolLiteral(b bool) string
	// BlobLiteral encodes arbitrary bytes as a lossless hex literal; raw
	// bytes are never embedded in the script text.
	BlobLiteral(b []byte) string
	// DisableChecks/EnableChecks bracket the data section so insertion
	// order does not have to respect foreign keys.
	DisableChecks() []string
	EnableChecks() []string
}

// SchemaObject is one DDL statement obtained from introspection, emitted
// verbatim into the dump.
type SchemaObject struct {
	Type string // "table", "index", "trigger", "view"
	Name string
	DDL  string
}

// RowIter is a lazy, finite, single-pass sequence of rows. The generator
// never re-iterates it.
type RowIter interface {
	Next() bool
	// Scan returns the current row's values with driver-native types
	// (nil, int64, float64, bool, string, []byte, time.Time).
	Scan() ([]any, error)
	Err() error
	Close() error
}

// Source is the database access capability the generator consumes:
// ordered table names, per-table schema objects, column names, and
// streaming row iterators.
type Source interface {
	// Tables lists base table names in a stable order.
	Tables(ctx context.Context) ([]string, error)
	// SchemaObjects returns the DDL for a table and its dependent
	// indexes and triggers, table first.
	SchemaObjects(ctx context.Context, table string) ([]SchemaObject, error)
	// Views returns view DDL; views are emitted after all tables.
	Views(ctx context.Context) ([]SchemaObject, error)
	Columns(ctx context.Context, table string) ([]string, error)
	Rows(ctx context.Context, table string) (RowIter, error)
	Close() error
}
