package artifact

import (
	"fmt"
	"os"
)

// AtomicFile writes to a ".partial" sibling and renames into place on
// Commit, so a failed backup never leaves a file wearing a final name.
type AtomicFile struct {
	f     *os.File
	final string
}

func NewAtomicFile(finalPath string) (*AtomicFile, error) {
	tmp := finalPath + PartialSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp output %q: %w", tmp, err)
	}
	return &AtomicFile{f: f, final: finalPath}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Commit closes the temp file and renames it to the final path.
func (a *AtomicFile) Commit() error {
	if err := a.f.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(a.f.Name(), a.final); err != nil {
		return fmt.Errorf("finalize output %q: %w", a.final, err)
	}
	return nil
}

// Discard closes and removes the temp file, keeping any previous artifact
// untouched. A no-op after a successful Commit.
func (a *AtomicFile) Discard() {
	_ = a.f.Close()
	_ = os.Remove(a.f.Name())
}
