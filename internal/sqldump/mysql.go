package sqldump

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// mysqlDialect implements MySQL literal and identifier conventions.
type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (mysqlDialect) BlobLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (mysqlDialect) DisableChecks() []string {
	return []string{"SET FOREIGN_KEY_CHECKS=0;"}
}

func (mysqlDialect) EnableChecks() []string {
	return []string{"SET FOREIGN_KEY_CHECKS=1;"}
}

// mysqlSource introspects the DSN's default schema. SHOW CREATE TABLE
// already inlines index definitions, so SchemaObjects returns the table
// DDL plus trigger definitions only.
type mysqlSource struct {
	db *sqlx.DB
}

func openMySQL(ctx context.Context, dsn string) (*mysqlSource, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %v: %w", err, ErrConnect)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %v: %w", err, ErrConnect)
	}
	return &mysqlSource{db: db}, nil
}

func (s *mysqlSource) Tables(ctx context.Context) ([]string, error) {
	var tables []string
	err := s.db.SelectContext(ctx, &tables,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %v: %w", err, ErrQuery)
	}
	return tables, nil
}

func (s *mysqlSource) SchemaObjects(ctx context.Context, table string) ([]SchemaObject, error) {
	d := mysqlDialect{}
	row := s.db.QueryRowxContext(ctx, "SHOW CREATE TABLE "+d.QuoteIdent(table))
	var name, ddl string
	if err := row.Scan(&name, &ddl); err != nil {
		return nil, fmt.Errorf("show create table %q: %v: %w", table, err, ErrQuery)
	}
	objects := []SchemaObject{{Type: "table", Name: table, DDL: ddl + ";"}}

	var triggers []string
	err := s.db.SelectContext(ctx, &triggers,
		`SELECT trigger_name FROM information_schema.triggers
		 WHERE trigger_schema = DATABASE() AND event_object_table = ?
		 ORDER BY trigger_name`, table)
	if err != nil {
		return nil, fmt.Errorf("triggers for %q: %v: %w", table, err, ErrQuery)
	}
	for _, trg := range triggers {
		ddl, err := s.showCreate(ctx, "TRIGGER", trg, "SQL Original Statement")
		if err != nil {
			return nil, err
		}
		objects = append(objects, SchemaObject{Type: "trigger", Name: trg, DDL: ddl})
	}
	return objects, nil
}

func (s *mysqlSource) Views(ctx context.Context) ([]SchemaObject, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		`SELECT table_name FROM information_schema.views
		 WHERE table_schema = DATABASE()
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list views: %v: %w", err, ErrQuery)
	}
	objects := make([]SchemaObject, 0, len(names))
	for _, name := range names {
		ddl, err := s.showCreate(ctx, "VIEW", name, "Create View")
		if err != nil {
			return nil, err
		}
		objects = append(objects, SchemaObject{Type: "view", Name: name, DDL: ddl})
	}
	return objects, nil
}

// showCreate runs SHOW CREATE <kind> and extracts the named column, since
// the result shape differs per object kind.
func (s *mysqlSource) showCreate(ctx context.Context, kind, name, column string) (string, error) {
	d := mysqlDialect{}
	rows, err := s.db.QueryxContext(ctx, "SHOW CREATE "+kind+" "+d.QuoteIdent(name))
	if err != nil {
		return "", fmt.Errorf("show create %s %q: %v: %w", strings.ToLower(kind), name, err, ErrQuery)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("show create %s %q: %v: %w", strings.ToLower(kind), name, err, ErrQuery)
		}
		return "", fmt.Errorf("show create %s %q returned no rows: %w", strings.ToLower(kind), name, ErrQuery)
	}
	m := map[string]any{}
	if err := rows.MapScan(m); err != nil {
		return "", fmt.Errorf("scan show create %s %q: %v: %w", strings.ToLower(kind), name, err, ErrQuery)
	}
	switch v := m[column].(type) {
	case string:
		return v + ";", nil
	case []byte:
		return string(v) + ";", nil
	default:
		return "", fmt.Errorf("show create %s %q missing column %q: %w", strings.ToLower(kind), name, column, ErrQuery)
	}
}

func (s *mysqlSource) Columns(ctx context.Context, table string) ([]string, error) {
	var cols []string
	err := s.db.SelectContext(ctx, &cols,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns for %q: %v: %w", table, err, ErrQuery)
	}
	return cols, nil
}

func (s *mysqlSource) Rows(ctx context.Context, table string) (RowIter, error) {
	d := mysqlDialect{}
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+d.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("rows for %q: %v: %w", table, err, ErrQuery)
	}
	return &sqlxRows{rows: rows}, nil
}

func (s *mysqlSource) Close() error { return s.db.Close() }
