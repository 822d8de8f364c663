// Package operations orchestrates a heterogeneous batch of backup targets:
// each target runs in isolation, failures become failed results instead of
// aborting siblings, and retention pruning runs once after every writer has
// finished.
package operations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/kebairia/arkup/internal/fsbackup"
	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/retention"
	"github.com/kebairia/arkup/internal/sqldump"
	"github.com/kebairia/arkup/internal/target"
)

// Option overrides a Runner default.
type Option func(*Runner)

// WithRetention enables pruning of old artifacts after each run.
func WithRetention(policy retention.Policy) Option {
	return func(r *Runner) { r.retention = policy }
}

// WithWorkers bounds how many targets run concurrently. Values below 1
// keep the sequential default.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 1 {
			r.workers = n
		}
	}
}

// Runner executes one backup run over a fixed target list.
type Runner struct {
	log       logger.Logger
	outputDir string
	retention retention.Policy
	workers   int
	fs        *fsbackup.Engine
	db        *sqldump.Generator
	now       func() time.Time
}

// NewRunner builds a Runner writing into outputDir.
func NewRunner(log logger.Logger, outputDir string, opts ...Option) *Runner {
	r := &Runner{
		log:       log,
		outputDir: outputDir,
		workers:   1,
		fs:        fsbackup.NewEngine(log),
		db:        sqldump.NewGenerator(log),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every target, prunes, and folds the results into a
// summary. It never returns an error: per-target failures are captured in
// the results, prune failures are logged, and the caller decides overall
// pass/fail from FailureCount.
func (r *Runner) Run(ctx context.Context, targets []target.Target) BackupSummary {
	startedAt := r.now()
	if err := fsbackup.EnsureDirectoryExist(r.outputDir); err != nil {
		// Without an output directory every target would fail identically;
		// report that per target so the summary still has one result each.
		results := make([]BackupResult, len(targets))
		for i, t := range targets {
			results[i] = r.failedResult(t, startedAt, err)
		}
		return Summarize(uuid.NewString(), results)
	}

	results := make([]BackupResult, len(targets))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t target.Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.runOne(ctx, t)
		}(i, t)
	}
	wg.Wait()

	// Pruning always happens after the last writer has finished, so it can
	// never delete a file this run just created out from under a target.
	if r.retention.Enabled() {
		pr := retention.Prune(r.outputDir, r.retention, r.now(), r.log)
		for _, err := range pr.Errors {
			r.log.Warn("prune error", "error", err.Error())
		}
		if pr.Deleted > 0 {
			r.log.Info("pruned old artifacts", "deleted", pr.Deleted)
		}
	}

	summary := Summarize(uuid.NewString(), results)
	meta := RunMetadata{
		RunID:       summary.RunID,
		StartedAt:   startedAt,
		CompletedAt: r.now(),
		Backups:     results,
	}
	if err := meta.Write(r.outputDir); err != nil {
		r.log.Warn("failed to write run metadata", "error", err.Error())
	}

	var totalBytes int64
	for _, res := range results {
		totalBytes += res.SizeBytes
	}
	r.log.Info("backup run finished",
		"run_id", summary.RunID,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount,
		"written", humanize.Bytes(uint64(totalBytes)),
	)
	return summary
}

// runOne dispatches a single target to its engine and captures any error
// into the result, so one bad target can never break the batch.
func (r *Runner) runOne(ctx context.Context, t target.Target) BackupResult {
	start := r.now()
	res := BackupResult{Name: t.TargetName()}

	switch tt := t.(type) {
	case target.SQLite, target.Relational:
		res.Kind = databaseKind(t)
		art, err := r.db.Dump(ctx, t, r.outputDir)
		r.finish(&res, start, err, func() {
			res.Filename = art.Filename
			res.SizeBytes = art.SizeBytes
			res.Kind = art.Kind
		})
	case target.Path:
		res.Kind = target.KindUnresolved
		art, err := r.fs.Backup(ctx, tt, r.outputDir)
		r.finish(&res, start, err, func() {
			res.Filename = art.Filename
			res.SizeBytes = art.SizeBytes
			res.FileCount = art.FileCount
			res.Kind = art.Kind
		})
	default:
		res.DurationMs = time.Since(start).Milliseconds()
		res.Error = fmt.Sprintf("unknown target variant %T", t)
	}
	return res
}

// finish stamps duration and either applies the success fields or records
// the failure.
func (r *Runner) finish(res *BackupResult, start time.Time, err error, onSuccess func()) {
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		r.log.Error("backup failed", "target", res.Name, "error", err.Error())
		return
	}
	res.Success = true
	onSuccess()
	r.log.Info("backup succeeded",
		"target", res.Name,
		"artifact", res.Filename,
		"size", humanize.Bytes(uint64(res.SizeBytes)),
	)
}

func databaseKind(t target.Target) target.Kind {
	if rel, ok := t.(target.Relational); ok {
		return rel.Kind
	}
	return target.KindSQLite
}

func (r *Runner) failedResult(t target.Target, start time.Time, err error) BackupResult {
	kind := target.KindUnresolved
	switch t.(type) {
	case target.SQLite, target.Relational:
		kind = databaseKind(t)
	}
	return BackupResult{
		Name:       t.TargetName(),
		Kind:       kind,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      err.Error(),
	}
}
