// Package archive implements the container format for directory backups:
// a tar stream of entries whose headers self-describe the content length,
// so decoding never scans for delimiters inside binary content.
// Compression is layered outside this package around the whole stream.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// ErrBadPath rejects entry paths that are absolute, empty, or escape the
// archive root via ".." segments.
var ErrBadPath = errors.New("invalid archive entry path")

// ErrSizeMismatch reports content whose length differs from the declared size.
var ErrSizeMismatch = errors.New("entry content size mismatch")

// Entry is one logical file inside an archive. Path is always
// forward-slash separated and relative to the archived root.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
	UID     int
	GID     int

	// Data is populated by ReadAll; the streaming Writer and Reader move
	// content through io interfaces instead.
	Data []byte
}

// Writer encodes entries into a tar stream.
type Writer struct {
	tw *tar.Writer
}

// NewWriter wraps w. Close must be called to flush the trailing blocks.
func NewWriter(w io.Writer) *Writer {
	return &Writer{tw: tar.NewWriter(w)}
}

// Add writes one entry header followed by exactly e.Size bytes from content.
func (w *Writer) Add(e Entry, content io.Reader) error {
	if err := checkPath(e.Path); err != nil {
		return err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Path,
		Size:     e.Size,
		Mode:     int64(e.Mode.Perm()),
		ModTime:  e.ModTime,
		Uid:      e.UID,
		Gid:      e.GID,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %q: %w", e.Path, err)
	}
	n, err := io.Copy(w.tw, content)
	if err != nil {
		return fmt.Errorf("write content for %q: %w", e.Path, err)
	}
	if n != e.Size {
		return fmt.Errorf("%q declared %d bytes, got %d: %w", e.Path, e.Size, n, ErrSizeMismatch)
	}
	return nil
}

// Close finishes the archive. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.tw.Close()
}

// Reader decodes entries from a tar stream in written order.
type Reader struct {
	tr *tar.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{tr: tar.NewReader(r)}
}

// Next returns the next entry and a reader over its content. The content
// reader is valid until the following Next call. io.EOF signals a clean end
// of the archive; an empty stream yields io.EOF immediately, not an error.
func (r *Reader) Next() (Entry, io.Reader, error) {
	for {
		hdr, err := r.tr.Next()
		if err != nil {
			return Entry{}, nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := checkPath(hdr.Name); err != nil {
			return Entry{}, nil, err
		}
		e := Entry{
			Path:    hdr.Name,
			Size:    hdr.Size,
			ModTime: hdr.ModTime,
			Mode:    fs.FileMode(hdr.Mode).Perm(),
			UID:     hdr.Uid,
			GID:     hdr.Gid,
		}
		return e, r.tr, nil
	}
}

// ReadAll decodes a whole archive, materializing content into Entry.Data.
// Intended for small archives and tests; production decoding streams via
// Reader.
func ReadAll(r io.Reader) ([]Entry, error) {
	ar := NewReader(r)
	entries := []Entry{}
	for {
		e, content, err := ar.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, content); err != nil {
			return nil, fmt.Errorf("read content for %q: %w", e.Path, err)
		}
		e.Data = buf.Bytes()
		entries = append(entries, e)
	}
}

func checkPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") {
		return fmt.Errorf("%q: %w", p, ErrBadPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("%q: %w", p, ErrBadPath)
		}
	}
	return nil
}
