package fsbackup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/arkup/internal/archive"
	"github.com/kebairia/arkup/internal/logger"
	"github.com/kebairia/arkup/internal/target"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func decodeArtifact(t *testing.T, path string, gzipped bool) []archive.Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []archive.Entry
	if gzipped {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		entries, err = archive.ReadAll(gz)
		require.NoError(t, err)
	} else {
		entries, err = archive.ReadAll(f)
		require.NoError(t, err)
	}
	return entries
}

func entryPaths(entries []archive.Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

func TestBackupDirectory_GlobFiltering(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "a.txt", "aaa")
	writeFile(t, src, "b.txt", "bbb")
	writeFile(t, src, "c.txt", "ccc")
	writeFile(t, src, "d.log", "ddd")
	writeFile(t, src, "e.bin", "eee")

	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common:       target.Common{Name: "docs"},
		Path:         src,
		IncludeGlobs: []string{"*.txt"},
	}, out)
	require.NoError(t, err)
	assert.Equal(t, 3, art.FileCount)
	assert.Equal(t, target.KindDirectory, art.Kind)
	assert.Greater(t, art.SizeBytes, int64(0))

	entries := decodeArtifact(t, filepath.Join(out, art.Filename), false)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.txt"}, entryPaths(entries))
}

func TestBackupDirectory_NestedTreeAndCompression(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "top.conf", "top")
	writeFile(t, src, "sub/inner.conf", "inner")
	writeFile(t, src, "sub/deep/leaf.conf", "leaf")
	writeFile(t, src, "sub/skip.tmp", "tmp")

	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common:       target.Common{Name: "etc", Compress: true},
		Path:         src,
		IncludeGlobs: []string{"**/*.conf"},
	}, out)
	require.NoError(t, err)
	assert.Equal(t, 3, art.FileCount)
	assert.True(t, filepath.Ext(art.Filename) == ".gz")

	entries := decodeArtifact(t, filepath.Join(out, art.Filename), true)
	assert.ElementsMatch(t,
		[]string{"top.conf", "sub/inner.conf", "sub/deep/leaf.conf"},
		entryPaths(entries))
	for _, entry := range entries {
		if entry.Path == "sub/deep/leaf.conf" {
			assert.Equal(t, "leaf", string(entry.Data))
		}
	}
}

func TestBackupDirectory_EmptyTreeIsSuccess(t *testing.T) {
	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common: target.Common{Name: "empty"},
		Path:   t.TempDir(),
	}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, art.FileCount)
}

func TestBackupDirectory_MaxFileSizeSkips(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "small.dat", "123")
	writeFile(t, src, "large.dat", "0123456789abcdef")

	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common:      target.Common{Name: "data"},
		Path:        src,
		MaxFileSize: 8,
	}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, art.FileCount)
}

func TestBackupDirectory_SymlinksSkippedByDefault(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	writeFile(t, src, "real.txt", "real")
	writeFile(t, other, "pointee.txt", "pointee")
	require.NoError(t, os.Symlink(filepath.Join(other, "pointee.txt"), filepath.Join(src, "link.txt")))

	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common: target.Common{Name: "links"},
		Path:   src,
	}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, art.FileCount)
}

func TestBackupDirectory_FollowSymlinks(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	writeFile(t, src, "real.txt", "real")
	writeFile(t, other, "pointee.txt", "pointee")
	require.NoError(t, os.Symlink(filepath.Join(other, "pointee.txt"), filepath.Join(src, "link.txt")))

	e := NewEngine(logger.Nop())
	out := t.TempDir()
	art, err := e.Backup(context.Background(), target.Path{
		Common:         target.Common{Name: "links"},
		Path:           src,
		FollowSymlinks: true,
	}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, art.FileCount)

	entries := decodeArtifact(t, filepath.Join(out, art.Filename), false)
	assert.ElementsMatch(t, []string{"link.txt", "real.txt"}, entryPaths(entries))
}

func TestBackupDirectory_FollowSymlinksBreaksCycles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "real.txt", "real")
	// A directory link back onto the tree itself: each file must still be
	// archived exactly once.
	require.NoError(t, os.Symlink(".", filepath.Join(src, "loop")))

	e := NewEngine(logger.Nop())
	out := t.TempDir()
	art, err := e.Backup(context.Background(), target.Path{
		Common:         target.Common{Name: "loop"},
		Path:           src,
		FollowSymlinks: true,
	}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, art.FileCount)

	entries := decodeArtifact(t, filepath.Join(out, art.Filename), false)
	assert.ElementsMatch(t, []string{"real.txt"}, entryPaths(entries))
}

func TestBackup_MissingRootLeavesNoPartialFile(t *testing.T) {
	out := t.TempDir()
	e := NewEngine(logger.Nop())
	_, err := e.Backup(context.Background(), target.Path{
		Common: target.Common{Name: "gone"},
		Path:   filepath.Join(t.TempDir(), "does-not-exist"),
	}, out)
	require.ErrorIs(t, err, ErrSourceNotFound)

	left, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestBackup_CancelledContextLeavesNoPartialFile(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.txt", "a")
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(logger.Nop())
	_, err := e.Backup(ctx, target.Path{
		Common: target.Common{Name: "docs"},
		Path:   src,
	}, out)
	require.ErrorIs(t, err, context.Canceled)

	left, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestBackupDirectory_FilenameOverride(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "x.txt", "x")

	e := NewEngine(logger.Nop())
	art, err := e.Backup(context.Background(), target.Path{
		Common: target.Common{Name: "original", Filename: "override"},
		Path:   src,
	}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, art.Filename, "override_")
}
