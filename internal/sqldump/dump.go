package sqldump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/arkup/internal/artifact"
	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/target"
)

// insertBatchSize is the number of rows grouped into one INSERT statement.
const insertBatchSize = 250

// generatorIdent is recorded in the dump header for provenance.
const generatorIdent = "arkup"

// Artifact describes a finished database dump.
type Artifact struct {
	Filename  string
	SizeBytes int64
	Kind      target.Kind
}

// Generator converts live database state into replayable SQL scripts.
type Generator struct {
	log logger.Logger
	now func() time.Time
	// open is swappable so tests can inject a fake Source.
	open func(ctx context.Context, t target.Target) (Source, Dialect, error)
}

func NewGenerator(log logger.Logger) *Generator {
	return &Generator{log: log, now: time.Now, open: openSource}
}

// openSource dispatches on the target variant to the matching driver.
func openSource(ctx context.Context, t target.Target) (Source, Dialect, error) {
	switch tt := t.(type) {
	case target.SQLite:
		src, err := openSQLite(ctx, tt.Path)
		if err != nil {
			return nil, nil, err
		}
		return src, sqliteDialect{}, nil
	case target.Relational:
		switch tt.Kind {
		case target.KindPostgres:
			src, err := openPostgres(ctx, tt.DSN)
			if err != nil {
				return nil, nil, err
			}
			return src, pgDialect{}, nil
		case target.KindMySQL:
			src, err := openMySQL(ctx, tt.DSN)
			if err != nil {
				return nil, nil, err
			}
			return src, mysqlDialect{}, nil
		}
		return nil, nil, fmt.Errorf("unknown relational kind %q: %w", tt.Kind, ErrConnect)
	default:
		return nil, nil, fmt.Errorf("target %q is not a database target: %w", t.TargetName(), ErrConnect)
	}
}

// dumpOptions normalizes the per-variant switches.
type dumpOptions struct {
	includeSchema bool
	includeData   bool
	includeTables []string
	excludeTables []string
}

func optionsFor(t target.Target) dumpOptions {
	if rel, ok := t.(target.Relational); ok {
		return dumpOptions{
			includeSchema: rel.IncludeSchema,
			includeData:   rel.IncludeData,
			includeTables: rel.IncludeTables,
			excludeTables: rel.ExcludeTables,
		}
	}
	return dumpOptions{includeSchema: true, includeData: true}
}

func dumpKind(t target.Target) target.Kind {
	if rel, ok := t.(target.Relational); ok {
		return rel.Kind
	}
	return target.KindSQLite
}

func common(t target.Target) target.Common {
	switch tt := t.(type) {
	case target.SQLite:
		return tt.Common
	case target.Relational:
		return tt.Common
	}
	return target.Common{Name: t.TargetName()}
}

// Dump writes one database target to an .sql[.gz] artifact. The script is
// written to a temp location and renamed on success, so a failed dump
// leaves nothing behind.
func (g *Generator) Dump(ctx context.Context, t target.Target, outputDir string) (*Artifact, error) {
	src, dialect, err := g.open(ctx, t)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	c := common(t)
	name := artifact.Filename(c.BaseName(), g.now(), ".sql", c.Compress)
	outPath := filepath.Join(outputDir, name)

	out, err := artifact.NewAtomicFile(outPath)
	if err != nil {
		return nil, err
	}
	defer out.Discard()

	var sink io.Writer = out
	var gz *gzip.Writer
	if c.Compress {
		gz = gzip.NewWriter(out)
		sink = gz
	}
	w := bufio.NewWriter(sink)

	if err := g.writeScript(ctx, w, src, dialect, t); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush dump: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("finish gzip stream: %w", err)
		}
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat artifact %q: %w", outPath, err)
	}
	g.log.Debug("database dump written", "target", c.Name, "artifact", name)
	return &Artifact{Filename: name, SizeBytes: info.Size(), Kind: dumpKind(t)}, nil
}

func (g *Generator) writeScript(
	ctx context.Context,
	w *bufio.Writer,
	src Source,
	d Dialect,
	t target.Target,
) error {
	opts := optionsFor(t)

	// Provenance header; carries no weight for replay.
	fmt.Fprintf(w, "-- %s dump\n", generatorIdent)
	fmt.Fprintf(w, "-- dialect: %s\n", d.Name())
	fmt.Fprintf(w, "-- source: %s\n", t.TargetName())
	fmt.Fprintf(w, "-- generated: %s\n\n", g.now().UTC().Format(time.RFC3339))

	// Checks stay off for the whole script: tables can then be created in
	// plain listing order even when one references a table created later.
	for _, stmt := range d.DisableChecks() {
		fmt.Fprintln(w, stmt)
	}
	fmt.Fprintln(w)

	all, err := src.Tables(ctx)
	if err != nil {
		return err
	}
	tables := tableSet(all, opts.includeTables, opts.excludeTables)

	if opts.includeSchema {
		for _, table := range tables {
			objects, err := src.SchemaObjects(ctx, table)
			if err != nil {
				return err
			}
			for _, o := range objects {
				fmt.Fprintf(w, "%s\n", o.DDL)
			}
			fmt.Fprintln(w)
		}
	}

	if opts.includeData {
		if err := g.writeData(ctx, w, src, d, tables); err != nil {
			return err
		}
	}

	if opts.includeSchema {
		views, err := src.Views(ctx)
		if err != nil {
			return err
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s\n", v.DDL)
		}
		fmt.Fprintln(w)
	}

	for _, stmt := range d.EnableChecks() {
		fmt.Fprintln(w, stmt)
	}
	return nil
}

// writeData emits the whole data section inside one transaction.
func (g *Generator) writeData(
	ctx context.Context,
	w *bufio.Writer,
	src Source,
	d Dialect,
	tables []string,
) error {
	fmt.Fprintln(w, "BEGIN;")

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		cols, err := src.Columns(ctx, table)
		if err != nil {
			return err
		}
		if err := g.writeTableData(ctx, w, src, d, table, cols); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "COMMIT;")
	fmt.Fprintln(w)
	return nil
}

func (g *Generator) writeTableData(
	ctx context.Context,
	w *bufio.Writer,
	src Source,
	d Dialect,
	table string,
	cols []string,
) error {
	iter, err := src.Rows(ctx, table)
	if err != nil {
		return err
	}
	defer iter.Close()

	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = d.QuoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES",
		d.QuoteIdent(table), strings.Join(quotedCols, ", "))

	batch := make([]string, 0, insertBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		fmt.Fprintf(w, "%s\n%s;\n", prefix, strings.Join(batch, ",\n"))
		batch = batch[:0]
	}

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		vals, err := iter.Scan()
		if err != nil {
			return fmt.Errorf("table %q: %v: %w", table, err, ErrQuery)
		}
		literals := make([]string, len(vals))
		for i, v := range vals {
			literals[i] = EmitLiteral(d, v)
		}
		batch = append(batch, "    ("+strings.Join(literals, ", ")+")")
		if len(batch) == insertBatchSize {
			flush()
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("table %q: %v: %w", table, err, ErrQuery)
	}
	flush()
	return nil
}
