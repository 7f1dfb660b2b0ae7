package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalid          = errors.New("invalid archive")
	ErrUnsafePath       = errors.New("unsafe path")
	ErrUnsupportedEntry = errors.New("unsupported entry")
	ErrTooLarge         = errors.New("too large")
	ErrDuplicateName    = errors.New("duplicate name")
)

// EntryError records the archive entry an error happened on.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %q: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// IsInvalid reports whether err is caused by the archive content
// rather than by the filesystem it is extracted to.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrUnsafePath) ||
		errors.Is(err, ErrUnsupportedEntry) ||
		errors.Is(err, ErrTooLarge)
}

type ExtractParams struct {
	Data    []byte // required
	Dir     string // required, must exist
	MaxSize int64  // total uncompressed size, 0 means unlimited
}

// Extract writes every entry of the zip archive in params.Data into params.Dir.
// It rejects entries that are absolute, escape params.Dir or aren't
// regular files or directories. Entries already written are left in place
// on error; the caller owns params.Dir and is expected to remove it.
func Extract(params *ExtractParams) error {
	zr, err := zip.NewReader(bytes.NewReader(params.Data), int64(len(params.Data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("archive.Extract: %w: %w", ErrInvalid, err)
	}

	remaining := params.MaxSize
	entries := make(entryTree)
	for _, f := range zr.File {
		name, err := localName(f.Name)
		if err != nil {
			return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: err})
		}
		target := filepath.Join(params.Dir, name)

		mode := f.Mode()
		if err = entries.add(name, mode.IsDir()); err != nil {
			return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: err})
		}
		switch {
		case mode.IsDir():
			if err = os.MkdirAll(target, 0o777); err != nil {
				return fmt.Errorf("archive.Extract: %w", err)
			}
		case mode.IsRegular():
			if name == "." {
				return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: ErrUnsafePath})
			}
			if params.MaxSize > 0 && f.UncompressedSize64 > uint64(remaining) {
				return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: ErrTooLarge})
			}
			written, err := extractFile(f, target, params.MaxSize > 0, remaining)
			if err != nil {
				return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: err})
			}
			remaining -= written
		default:
			return fmt.Errorf("archive.Extract: %w", &EntryError{Name: f.Name, Err: ErrUnsupportedEntry})
		}
	}

	return nil
}

func extractFile(f *zip.File, target string, limited bool, remaining int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
		return 0, err
	}

	perm := os.FileMode(0o666)
	if f.Mode()&0o111 != 0 {
		perm = 0o777
	}
	openFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = openFile.Close()
	}()

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	var r io.Reader = invalidReader{r: rc}
	if limited {
		r = io.LimitReader(r, remaining+1)
	}
	written, err := io.Copy(openFile, r)
	if err != nil {
		return written, err
	}
	if limited && written > remaining {
		return written, ErrTooLarge
	}

	return written, openFile.Close()
}

// entryTree records the paths created by the entries extracted so far
// and whether each one is a directory.
type entryTree map[string]bool

// add records name and its parent directories.
// It returns ErrInvalid when name needs a file where an earlier entry
// made a directory, or the other way around, or repeats a file.
func (t entryTree) add(name string, isDir bool) error {
	if name == "." {
		return nil
	}
	for dir := filepath.Dir(name); dir != "."; dir = filepath.Dir(dir) {
		if wasDir, ok := t[dir]; ok && !wasDir {
			return fmt.Errorf("%w: %s is a file in an earlier entry", ErrInvalid, filepath.ToSlash(dir))
		}
	}
	if wasDir, ok := t[name]; ok && (!isDir || !wasDir) {
		return fmt.Errorf("%w: %s conflicts with an earlier entry", ErrInvalid, filepath.ToSlash(name))
	}
	for dir := filepath.Dir(name); dir != "."; dir = filepath.Dir(dir) {
		t[dir] = true
	}
	t[name] = isDir
	return nil
}

// localName converts a slash-separated entry name to a clean relative path.
// It returns ErrUnsafePath when the name could resolve outside the extraction root.
func localName(name string) (string, error) {
	if name == "" || strings.Contains(name, `\`) {
		return "", ErrUnsafePath
	}
	p := filepath.FromSlash(name)
	if !filepath.IsLocal(p) {
		return "", ErrUnsafePath
	}
	return filepath.Clean(p), nil
}

// invalidReader marks read errors as archive content errors so they
// can be told apart from write errors in io.Copy.
type invalidReader struct {
	r io.Reader // required
}

func (ir invalidReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return n, err
}
