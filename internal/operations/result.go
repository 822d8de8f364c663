package operations

import (
	"github.com/kebairia/arkup/internal/target"
)

// BackupResult records the outcome of exactly one target in one run.
// Immutable once produced.
type BackupResult struct {
	Name       string      `json:"name"`
	Kind       target.Kind `json:"kind"`
	Filename   string      `json:"filename,omitempty"`
	SizeBytes  int64       `json:"size_bytes"`
	DurationMs int64       `json:"duration_ms"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	FileCount  int         `json:"file_count,omitempty"`
}

// BackupSummary is a pure fold over the per-target results; it is never
// mutated after assembly.
type BackupSummary struct {
	RunID           string         `json:"run_id"`
	Results         []BackupResult `json:"results"`
	SuccessCount    int            `json:"success_count"`
	FailureCount    int            `json:"failure_count"`
	TotalDurationMs int64          `json:"total_duration_ms"`
	DatabaseResults []BackupResult `json:"database_results"`
	FileResults     []BackupResult `json:"file_results"`
}

// Summarize partitions results by kind and sums counts and durations.
func Summarize(runID string, results []BackupResult) BackupSummary {
	s := BackupSummary{RunID: runID, Results: results}
	for _, r := range results {
		if r.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
		s.TotalDurationMs += r.DurationMs
		if r.Kind.IsDatabase() {
			s.DatabaseResults = append(s.DatabaseResults, r)
		} else {
			s.FileResults = append(s.FileResults, r)
		}
	}
	return s
}
