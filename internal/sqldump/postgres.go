package sqldump

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// pgDialect implements PostgreSQL literal and identifier conventions.
type pgDialect struct{}

func (pgDialect) Name() string { return "postgresql" }

func (pgDialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (pgDialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// BlobLiteral carries an explicit cast so the hex form can never be
// confused with a text literal that happens to start with `\x`.
func (pgDialect) BlobLiteral(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + `'::bytea`
}

func (pgDialect) DisableChecks() []string {
	return []string{"SET session_replication_role = replica;"}
}

func (pgDialect) EnableChecks() []string {
	return []string{"SET session_replication_role = DEFAULT;"}
}

// pgSource introspects the public schema of a PostgreSQL database.
// PostgreSQL has no SHOW CREATE TABLE, so table DDL is reconstructed from
// information_schema; index, trigger, and view definitions come from the
// server-side pg_get_*def functions.
type pgSource struct {
	db *sqlx.DB
}

func openPostgres(ctx context.Context, dsn string) (*pgSource, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %v: %w", err, ErrConnect)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %v: %w", err, ErrConnect)
	}
	return &pgSource{db: db}, nil
}

func (s *pgSource) Tables(ctx context.Context) ([]string, error) {
	var tables []string
	err := s.db.SelectContext(ctx, &tables,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = 'public'
		 ORDER BY tablename`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %v: %w", err, ErrQuery)
	}
	return tables, nil
}

func (s *pgSource) SchemaObjects(ctx context.Context, table string) ([]SchemaObject, error) {
	ddl, err := s.tableDDL(ctx, table)
	if err != nil {
		return nil, err
	}
	objects := []SchemaObject{{Type: "table", Name: table, DDL: ddl}}

	type indexRow struct {
		Name string `db:"indexname"`
		Def  string `db:"indexdef"`
	}
	var indexes []indexRow
	err = s.db.SelectContext(ctx, &indexes,
		`SELECT indexname, indexdef FROM pg_indexes
		 WHERE schemaname = 'public' AND tablename = $1
		 ORDER BY indexname`, table)
	if err != nil {
		return nil, fmt.Errorf("indexes for %q: %v: %w", table, err, ErrQuery)
	}
	for _, idx := range indexes {
		// Primary key indexes are already implied by the reconstructed DDL.
		if strings.HasSuffix(idx.Name, "_pkey") {
			continue
		}
		objects = append(objects, SchemaObject{Type: "index", Name: idx.Name, DDL: idx.Def + ";"})
	}

	type triggerRow struct {
		Name string `db:"tgname"`
		Def  string `db:"def"`
	}
	var triggers []triggerRow
	err = s.db.SelectContext(ctx, &triggers,
		`SELECT tgname, pg_get_triggerdef(oid) AS def FROM pg_trigger
		 WHERE tgrelid = $1::regclass AND NOT tgisinternal
		 ORDER BY tgname`, table)
	if err != nil {
		return nil, fmt.Errorf("triggers for %q: %v: %w", table, err, ErrQuery)
	}
	for _, trg := range triggers {
		objects = append(objects, SchemaObject{Type: "trigger", Name: trg.Name, DDL: trg.Def + ";"})
	}
	return objects, nil
}

func (s *pgSource) tableDDL(ctx context.Context, table string) (string, error) {
	type columnRow struct {
		Name     string  `db:"column_name"`
		Type     string  `db:"data_type"`
		Nullable string  `db:"is_nullable"`
		Default  *string `db:"column_default"`
	}
	var cols []columnRow
	err := s.db.SelectContext(ctx, &cols,
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("columns for %q: %v: %w", table, err, ErrQuery)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %q has no columns: %w", table, ErrQuery)
	}

	var pkCols []string
	err = s.db.SelectContext(ctx, &pkCols,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = $1::regclass AND i.indisprimary
		 ORDER BY a.attnum`, table)
	if err != nil {
		return "", fmt.Errorf("primary key for %q: %v: %w", table, err, ErrQuery)
	}

	d := pgDialect{}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.QuoteIdent(table))
	for i, c := range cols {
		fmt.Fprintf(&b, "    %s %s", d.QuoteIdent(c.Name), c.Type)
		if c.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
		}
		if c.Nullable == "NO" {
			b.WriteString(" NOT NULL")
		}
		if i < len(cols)-1 || len(pkCols) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(pkCols) > 0 {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = d.QuoteIdent(c)
		}
		fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n", strings.Join(quoted, ", "))
	}
	b.WriteString(");")
	return b.String(), nil
}

func (s *pgSource) Views(ctx context.Context) ([]SchemaObject, error) {
	type viewRow struct {
		Name string `db:"viewname"`
		Def  string `db:"definition"`
	}
	var views []viewRow
	err := s.db.SelectContext(ctx, &views,
		`SELECT viewname, definition FROM pg_views
		 WHERE schemaname = 'public'
		 ORDER BY viewname`)
	if err != nil {
		return nil, fmt.Errorf("list views: %v: %w", err, ErrQuery)
	}
	d := pgDialect{}
	objects := make([]SchemaObject, 0, len(views))
	for _, v := range views {
		ddl := fmt.Sprintf("CREATE VIEW %s AS\n%s", d.QuoteIdent(v.Name), strings.TrimSpace(v.Def))
		if !strings.HasSuffix(ddl, ";") {
			ddl += ";"
		}
		objects = append(objects, SchemaObject{Type: "view", Name: v.Name, DDL: ddl})
	}
	return objects, nil
}

func (s *pgSource) Columns(ctx context.Context, table string) ([]string, error) {
	var cols []string
	err := s.db.SelectContext(ctx, &cols,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns for %q: %v: %w", table, err, ErrQuery)
	}
	return cols, nil
}

func (s *pgSource) Rows(ctx context.Context, table string) (RowIter, error) {
	d := pgDialect{}
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+d.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("rows for %q: %v: %w", table, err, ErrQuery)
	}
	return &sqlxRows{rows: rows}, nil
}

func (s *pgSource) Close() error { return s.db.Close() }
