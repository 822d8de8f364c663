// Package fsbackup turns filesystem paths into backup artifacts: directory
// trees become tar archives, single files are copied (optionally with a
// metadata sidecar). Both paths write atomically and optionally gzip.
package fsbackup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/arkup/internal/archive"
	"github.com/kebairia/arkup/internal/artifact"
	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/pathfilter"
	"github.com/kebairia/arkup/internal/target"
)

// ErrSourceNotFound indicates the target path does not exist.
var ErrSourceNotFound = errors.New("backup source not found")

// ErrUnsupportedSource indicates the target path is neither a regular file
// nor a directory.
var ErrUnsupportedSource = errors.New("source is neither a regular file nor a directory")

// Artifact describes a finished filesystem backup.
type Artifact struct {
	Filename  string
	SizeBytes int64
	FileCount int
	Kind      target.Kind
}

// Engine produces filesystem backup artifacts.
type Engine struct {
	log logger.Logger
	now func() time.Time
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: log, now: time.Now}
}

// Backup resolves the target path to a file or directory once, then runs
// the matching engine. The resolution is not re-checked mid-walk.
func (e *Engine) Backup(ctx context.Context, t target.Path, outputDir string) (*Artifact, error) {
	info, err := os.Stat(t.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%q: %w", t.Path, ErrSourceNotFound)
	case err != nil:
		return nil, fmt.Errorf("stat %q: %w", t.Path, err)
	case info.IsDir():
		return e.BackupDirectory(ctx, t, outputDir)
	case info.Mode().IsRegular():
		return e.BackupFile(ctx, t, outputDir)
	default:
		return nil, fmt.Errorf("%q: %w", t.Path, ErrUnsupportedSource)
	}
}

// BackupDirectory streams the tree rooted at t.Path into a single tar
// artifact, applying glob filtering, the size limit, and the symlink
// policy. An empty or fully-filtered tree is a success with FileCount 0.
func (e *Engine) BackupDirectory(ctx context.Context, t target.Path, outputDir string) (*Artifact, error) {
	if err := EnsureDirectoryExist(outputDir); err != nil {
		return nil, err
	}
	name := artifact.Filename(t.BaseName(), e.now(), ".tar", t.Compress)
	outPath := filepath.Join(outputDir, name)

	out, err := artifact.NewAtomicFile(outPath)
	if err != nil {
		return nil, err
	}
	defer out.Discard()

	var sink io.Writer = out
	var gz *gzip.Writer
	if t.Compress {
		gz = gzip.NewWriter(out)
		sink = gz
	}
	aw := archive.NewWriter(sink)

	count, err := e.walkTree(ctx, t, aw)
	if err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
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
	e.log.Debug("directory backup written",
		"target", t.Name,
		"artifact", name,
		"files", count,
	)
	return &Artifact{
		Filename:  name,
		SizeBytes: info.Size(),
		FileCount: count,
		Kind:      target.KindDirectory,
	}, nil
}

// walkTree enumerates the tree depth-first in directory-listing order and
// feeds surviving regular files to the archive writer one at a time, so
// memory stays bounded regardless of tree size.
func (e *Engine) walkTree(ctx context.Context, t target.Path, aw *archive.Writer) (int, error) {
	count := 0
	// Resolved directories already descended into. Symlinks are the only
	// way a cycle can form, so the plain walk skips the bookkeeping.
	var seen map[string]bool
	if t.FollowSymlinks {
		seen = make(map[string]bool)
	}
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen != nil {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", dir, err)
			}
			if seen[resolved] {
				return nil
			}
			seen[resolved] = true
		}
		dirents, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read directory %q: %w", dir, err)
		}
		for _, de := range dirents {
			full := filepath.Join(dir, de.Name())
			relPath := path.Join(rel, de.Name())

			if de.Type()&fs.ModeSymlink != 0 {
				if !t.FollowSymlinks {
					continue
				}
				info, err := os.Stat(full)
				if err != nil {
					// Broken link; nothing to archive.
					continue
				}
				if info.IsDir() {
					if err := walk(full, relPath); err != nil {
						return err
					}
					continue
				}
				if info.Mode().IsRegular() {
					if err := e.addFile(full, relPath, info, t, aw, &count); err != nil {
						return err
					}
				}
				continue
			}
			if de.IsDir() {
				if err := walk(full, relPath); err != nil {
					return err
				}
				continue
			}
			if !de.Type().IsRegular() {
				continue
			}
			info, err := de.Info()
			if err != nil {
				return fmt.Errorf("stat %q: %w", full, err)
			}
			if err := e.addFile(full, relPath, info, t, aw, &count); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.Path, ""); err != nil {
		return 0, err
	}
	return count, nil
}

// addFile applies the filter and size policy, then streams one file into
// the archive. Skips are silent and excluded from the file count.
func (e *Engine) addFile(
	full, relPath string,
	info fs.FileInfo,
	t target.Path,
	aw *archive.Writer,
	count *int,
) error {
	if !pathfilter.ShouldInclude(relPath, t.IncludeGlobs, t.ExcludeGlobs) {
		return nil
	}
	if t.MaxFileSize > 0 && info.Size() > t.MaxFileSize {
		e.log.Debug("skipping oversized file", "path", relPath, "size", info.Size())
		return nil
	}
	uid, gid := owner(info)
	entry := archive.Entry{
		Path:    relPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
		UID:     uid,
		GID:     gid,
	}
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("open %q: %w", full, err)
	}
	defer f.Close()
	if err := aw.Add(entry, f); err != nil {
		return err
	}
	*count++
	return nil
}
