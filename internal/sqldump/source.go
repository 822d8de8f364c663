package sqldump

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqlxRows adapts *sqlx.Rows to RowIter.
type sqlxRows struct {
	rows *sqlx.Rows
}

func (r *sqlxRows) Next() bool { return r.rows.Next() }

func (r *sqlxRows) Scan() ([]any, error) {
	vals, err := r.rows.SliceScan()
	if err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return vals, nil
}

func (r *sqlxRows) Err() error   { return r.rows.Err() }
func (r *sqlxRows) Close() error { return r.rows.Close() }

// tableSet applies the include/exclude table rules: exclude always wins,
// a non-empty include set restricts the universe to a subset. Order of the
// incoming table list is preserved.
func tableSet(all, includes, excludes []string) []string {
	excluded := make(map[string]bool, len(excludes))
	for _, t := range excludes {
		excluded[t] = true
	}
	var included map[string]bool
	if len(includes) > 0 {
		included = make(map[string]bool, len(includes))
		for _, t := range includes {
			included[t] = true
		}
	}
	out := make([]string, 0, len(all))
	for _, t := range all {
		if excluded[t] {
			continue
		}
		if included != nil && !included[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}
