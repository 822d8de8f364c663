package sqldump

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// sqliteDialect implements SQLite literal and identifier conventions.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqliteDialect) BlobLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (sqliteDialect) DisableChecks() []string {
	return []string{"PRAGMA foreign_keys=OFF;"}
}

func (sqliteDialect) EnableChecks() []string {
	return []string{"PRAGMA foreign_keys=ON;"}
}

// sqliteSource introspects a SQLite database file through the pure-Go
// modernc driver.
type sqliteSource struct {
	db *sqlx.DB
}

// openSQLite opens an existing database file read-only. The driver would
// happily create a missing file, so existence is checked first and mapped
// to ErrConnect.
func openSQLite(ctx context.Context, path string) (*sqliteSource, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("database file %q does not exist: %w", path, ErrConnect)
		}
		return nil, fmt.Errorf("stat database file %q: %v: %w", path, err, ErrConnect)
	}
	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %v: %w", path, err, ErrConnect)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database %q: %v: %w", path, err, ErrConnect)
	}
	return &sqliteSource{db: db}, nil
}

func (s *sqliteSource) Tables(ctx context.Context) ([]string, error) {
	var tables []string
	err := s.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %v: %w", err, ErrQuery)
	}
	return tables, nil
}

func (s *sqliteSource) SchemaObjects(ctx context.Context, table string) ([]SchemaObject, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT type, name, sql FROM sqlite_master
		 WHERE tbl_name = ? AND sql IS NOT NULL AND type != 'view'
		 ORDER BY CASE type WHEN 'table' THEN 0 WHEN 'index' THEN 1 ELSE 2 END, name`,
		table)
	if err != nil {
		return nil, fmt.Errorf("schema objects for %q: %v: %w", table, err, ErrQuery)
	}
	defer rows.Close()

	var objects []SchemaObject
	for rows.Next() {
		var o SchemaObject
		if err := rows.Scan(&o.Type, &o.Name, &o.DDL); err != nil {
			return nil, fmt.Errorf("scan schema object: %v: %w", err, ErrQuery)
		}
		o.DDL = strings.TrimSpace(o.DDL) + ";"
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema objects for %q: %v: %w", table, err, ErrQuery)
	}
	return objects, nil
}

func (s *sqliteSource) Views(ctx context.Context) ([]SchemaObject, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT name, sql FROM sqlite_master
		 WHERE type = 'view' AND sql IS NOT NULL
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list views: %v: %w", err, ErrQuery)
	}
	defer rows.Close()

	var views []SchemaObject
	for rows.Next() {
		o := SchemaObject{Type: "view"}
		if err := rows.Scan(&o.Name, &o.DDL); err != nil {
			return nil, fmt.Errorf("scan view: %v: %w", err, ErrQuery)
		}
		o.DDL = strings.TrimSpace(o.DDL) + ";"
		views = append(views, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list views: %v: %w", err, ErrQuery)
	}
	return views, nil
}

func (s *sqliteSource) Columns(ctx context.Context, table string) ([]string, error) {
	var cols []string
	err := s.db.SelectContext(ctx, &cols,
		`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("columns for %q: %v: %w", table, err, ErrQuery)
	}
	return cols, nil
}

func (s *sqliteSource) Rows(ctx context.Context, table string) (RowIter, error) {
	d := sqliteDialect{}
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+d.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("rows for %q: %v: %w", table, err, ErrQuery)
	}
	return &sqlxRows{rows: rows}, nil
}

func (s *sqliteSource) Close() error { return s.db.Close() }
