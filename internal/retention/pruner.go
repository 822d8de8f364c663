// Package retention deletes old backup artifacts by count and/or age.
// The candidate set is recomputed from the output directory on every run;
// no index is persisted, so recognition rides on the artifact naming
// convention and file modification times.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kebairia/arkup/internal/artifact"
	"github.com/kebairia/arkup/internal/logger"
)

// Policy selects artifacts for deletion. Zero values disable a rule; the
// two rules compose as a union, not an intersection.
type Policy struct {
	// KeepLast retains only the newest N artifacts when > 0.
	KeepLast int
	// MaxAgeDays deletes artifacts older than N days when > 0.
	MaxAgeDays int
}

// Enabled reports whether any rule is active.
func (p Policy) Enabled() bool {
	return p.KeepLast > 0 || p.MaxAgeDays > 0
}

// Result reports what a prune pass did. Per-file delete failures are
// collected here and never abort the pass.
type Result struct {
	Deleted      int
	DeletedNames []string
	Errors       []error
}

type candidate struct {
	name    string
	modTime time.Time
}

// Prune applies the policy to recognized artifacts in dir. Unrecognized
// files are never touched. Deleting an artifact also removes its metadata
// sidecar, if one exists.
func Prune(dir string, policy Policy, now time.Time, log logger.Logger) Result {
	var res Result
	if !policy.Enabled() {
		return res
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("read output directory %q: %w", dir, err))
		return res
	}

	var candidates []candidate
	for _, de := range entries {
		if de.IsDir() || !artifact.IsArtifactName(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("stat %q: %w", de.Name(), err))
			continue
		}
		candidates = append(candidates, candidate{name: de.Name(), modTime: info.ModTime()})
	}

	// Newest first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	doomed := map[string]bool{}
	if policy.KeepLast > 0 {
		for _, c := range candidates[min(policy.KeepLast, len(candidates)):] {
			doomed[c.name] = true
		}
	}
	if policy.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.MaxAgeDays)
		for _, c := range candidates {
			if c.modTime.Before(cutoff) {
				doomed[c.name] = true
			}
		}
	}

	// Oldest first, so the most expendable artifacts go before any
	// delete failure can surface.
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if !doomed[c.name] {
			continue
		}
		full := filepath.Join(dir, c.name)
		if err := os.Remove(full); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("delete %q: %w", c.name, err))
			continue
		}
		// Best effort; sidecars only exist for single-file backups.
		_ = os.Remove(full + artifact.SidecarSuffix)
		res.Deleted++
		res.DeletedNames = append(res.DeletedNames, c.name)
		log.Debug("pruned artifact", "name", c.name, "mtime", c.modTime)
	}
	return res
}
