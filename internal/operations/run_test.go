package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/retention"
	"github.com/kebairia/arkup/internal/target"
)

func newSQLiteDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO items (id, label) VALUES (1, 'first')")
	require.NoError(t, err)
	return path
}

func newSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	return dir
}

func TestRun_MixedTargets(t *testing.T) {
	out := t.TempDir()
	targets := []target.Target{
		target.SQLite{Common: target.Common{Name: "app"}, Path: newSQLiteDB(t)},
		target.Path{Common: target.Common{Name: "missing"},
			Path: filepath.Join(t.TempDir(), "nope")},
		target.Path{Common: target.Common{Name: "docs"}, Path: newSourceDir(t)},
	}

	r := NewRunner(logger.Nop(), out)
	summary := r.Run(context.Background(), targets)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)

	byName := map[string]BackupResult{}
	for _, res := range summary.Results {
		byName[res.Name] = res
	}
	assert.True(t, byName["app"].Success)
	assert.NotEmpty(t, byName["app"].Filename)
	assert.Greater(t, byName["app"].SizeBytes, int64(0))
	assert.Equal(t, target.KindSQLite, byName["app"].Kind)

	assert.False(t, byName["missing"].Success)
	assert.NotEmpty(t, byName["missing"].Error)

	assert.True(t, byName["docs"].Success)
	assert.Equal(t, 2, byName["docs"].FileCount)
	assert.Equal(t, target.KindDirectory, byName["docs"].Kind)

	// Partitioning by kind.
	require.Len(t, summary.DatabaseResults, 1)
	assert.Equal(t, "app", summary.DatabaseResults[0].Name)
	require.Len(t, summary.FileResults, 2)
}

func TestRun_FailureIsolationAtEveryPosition(t *testing.T) {
	for pos := 0; pos < 3; pos++ {
		pos := pos
		t.Run(fmt.Sprintf("failing_target_at_%d", pos), func(t *testing.T) {
			targets := make([]target.Target, 3)
			for i := range targets {
				if i == pos {
					targets[i] = target.Path{
						Common: target.Common{Name: fmt.Sprintf("bad-%d", i)},
						Path:   filepath.Join(t.TempDir(), "ghost"),
					}
					continue
				}
				targets[i] = target.Path{
					Common: target.Common{Name: fmt.Sprintf("good-%d", i)},
					Path:   newSourceDir(t),
				}
			}

			r := NewRunner(logger.Nop(), t.TempDir())
			summary := r.Run(context.Background(), targets)

			require.Len(t, summary.Results, 3)
			assert.Equal(t, 2, summary.SuccessCount)
			assert.Equal(t, 1, summary.FailureCount)
			assert.False(t, summary.Results[pos].Success)
			assert.NotEmpty(t, summary.Results[pos].Error)
		})
	}
}

func TestRun_ResultsKeepTargetOrderWithWorkers(t *testing.T) {
	var targets []target.Target
	for i := 0; i < 6; i++ {
		targets = append(targets, target.Path{
			Common: target.Common{Name: fmt.Sprintf("t-%d", i)},
			Path:   newSourceDir(t),
		})
	}

	r := NewRunner(logger.Nop(), t.TempDir(), WithWorkers(4))
	summary := r.Run(context.Background(), targets)

	require.Len(t, summary.Results, 6)
	for i, res := range summary.Results {
		assert.Equal(t, fmt.Sprintf("t-%d", i), res.Name)
		assert.True(t, res.Success)
	}
}

func TestRun_WritesRunMetadata(t *testing.T) {
	out := t.TempDir()
	r := NewRunner(logger.Nop(), out)
	summary := r.Run(context.Background(), []target.Target{
		target.Path{Common: target.Common{Name: "docs"}, Path: newSourceDir(t)},
	})

	var meta RunMetadata
	require.NoError(t, meta.Load(out))
	assert.Equal(t, summary.RunID, meta.RunID)
	require.Len(t, meta.Backups, 1)
	assert.Equal(t, "docs", meta.Backups[0].Name)
	assert.False(t, meta.CompletedAt.Before(meta.StartedAt))
}

func TestRun_PrunesAfterAllTargets(t *testing.T) {
	out := t.TempDir()

	// A pre-existing, recognized artifact old enough to be claimed.
	old := filepath.Join(out, "stale_2020-01-01T00-00-00.sql")
	require.NoError(t, os.WriteFile(old, []byte("old dump"), 0o644))
	stale := time.Now().AddDate(0, 0, -100)
	require.NoError(t, os.Chtimes(old, stale, stale))

	r := NewRunner(logger.Nop(), out,
		WithRetention(retention.Policy{MaxAgeDays: 30}))
	summary := r.Run(context.Background(), []target.Target{
		target.Path{Common: target.Common{Name: "docs"}, Path: newSourceDir(t)},
	})
	require.Equal(t, 1, summary.SuccessCount)

	// The stale artifact is gone; this run's artifact survived pruning.
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, summary.Results[0].Filename))
	assert.NoError(t, err)
}

func TestRun_CancelledContextFailsTargetsCleanly(t *testing.T) {
	out := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(logger.Nop(), out)
	summary := r.Run(ctx, []target.Target{
		target.Path{Common: target.Common{Name: "docs"}, Path: newSourceDir(t)},
		target.SQLite{Common: target.Common{Name: "app"}, Path: newSQLiteDB(t)},
	})

	require.Len(t, summary.Results, 2)
	assert.Equal(t, 2, summary.FailureCount)
	for _, res := range summary.Results {
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	}

	// Every failed target cleaned up after itself.
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, de := range entries {
		assert.False(t, strings.HasSuffix(de.Name(), ".partial"), de.Name())
	}
}

func TestSummarize_IsAPureFold(t *testing.T) {
	results := []BackupResult{
		{Name: "a", Kind: target.KindSQLite, Success: true, DurationMs: 10},
		{Name: "b", Kind: target.KindDirectory, Success: false, DurationMs: 20},
		{Name: "c", Kind: target.KindMySQL, Success: true, DurationMs: 30},
	}
	s := Summarize("run-1", results)
	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.FailureCount)
	assert.Equal(t, int64(60), s.TotalDurationMs)
	require.Len(t, s.DatabaseResults, 2)
	require.Len(t, s.FileResults, 1)
	assert.Equal(t, "b", s.FileResults[0].Name)
}
