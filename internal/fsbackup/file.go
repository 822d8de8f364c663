package fsbackup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kebairia/arkup/internal/artifact"
	"github.com/kebairia/arkup/internal/target"
)

// Sidecar is the metadata descriptor written next to a single-file
// artifact when the target asks for preserved metadata. It is a separate
// unit from the backup payload.
type Sidecar struct {
	OriginalPath string    `json:"original_path"`
	ModTime      time.Time `json:"mtime"`
	AccessTime   time.Time `json:"atime"`
	Mode         uint32    `json:"mode"`
	UID          int       `json:"uid"`
	GID          int       `json:"gid"`
	SizeBytes    int64     `json:"size_bytes"`
}

// BackupFile copies one regular file into the output directory, optionally
// gzip-compressed, keeping the source extension in the artifact name.
func (e *Engine) BackupFile(ctx context.Context, t target.Path, outputDir string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := EnsureDirectoryExist(outputDir); err != nil {
		return nil, err
	}
	info, err := os.Stat(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", t.Path, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("stat %q: %w", t.Path, err)
	}

	name := artifact.Filename(t.BaseName(), e.now(), filepath.Ext(t.Path), t.Compress)
	outPath := filepath.Join(outputDir, name)

	src, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", t.Path, err)
	}
	defer src.Close()

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
	if _, err := io.Copy(sink, src); err != nil {
		return nil, fmt.Errorf("copy %q: %w", t.Path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("finish gzip stream: %w", err)
		}
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}

	if t.PreserveMetadata {
		if err := writeSidecar(outPath, t.Path, info); err != nil {
			// The payload is already safe; losing the sidecar is not fatal.
			e.log.Warn("failed to write metadata sidecar", "target", t.Name, "error", err.Error())
		}
	}

	written, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat artifact %q: %w", outPath, err)
	}
	return &Artifact{
		Filename:  name,
		SizeBytes: written.Size(),
		FileCount: 1,
		Kind:      target.KindFile,
	}, nil
}

func writeSidecar(artifactPath, originalPath string, info fs.FileInfo) error {
	uid, gid := owner(info)
	sc := Sidecar{
		OriginalPath: originalPath,
		ModTime:      info.ModTime(),
		AccessTime:   accessTime(info),
		Mode:         uint32(info.Mode().Perm()),
		UID:          uid,
		GID:          gid,
		SizeBytes:    info.Size(),
	}
	f, err := os.Create(artifactPath + artifact.SidecarSuffix)
	if err != nil {
		return fmt.Errorf("create sidecar: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&sc); err != nil {
		return fmt.Errorf("encode sidecar JSON: %w", err)
	}
	return nil
}
