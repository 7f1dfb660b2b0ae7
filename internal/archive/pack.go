package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PackFlat packs every regular file under dir, recursively, into a zip archive.
// Entries are named by the file's base name only, so the directory structure
// is flattened. Two files sharing a base name produce an error wrapping
// ErrDuplicateName. Directories, symlinks and other non-regular files are skipped.
// Files are visited in lexical order.
func PackFlat(dir string) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	seen := make(map[string]string) // base name to relative path
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := d.Name()
		if first, ok := seen[name]; ok {
			return &EntryError{Name: name, Err: fmt.Errorf("%w: %s and %s", ErrDuplicateName, first, rel)}
		}
		seen[name] = rel

		return addFile(zw, path, name)
	})
	if err != nil {
		return nil, fmt.Errorf("archive.PackFlat: %w", err)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("archive.PackFlat: %w", err)
	}
	return buf.Bytes(), nil
}

// PackFiles packs files into a zip archive naming each entry by its path
// relative to baseDir. Files outside baseDir are rejected with ErrUnsafePath.
func PackFiles(baseDir string, files []string) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, file := range files {
		rel, err := filepath.Rel(baseDir, file)
		if err != nil {
			return nil, fmt.Errorf("archive.PackFiles: %w", err)
		}
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("archive.PackFiles: %w", &EntryError{Name: file, Err: ErrUnsafePath})
		}
		if err = addFile(zw, file, filepath.ToSlash(rel)); err != nil {
			return nil, fmt.Errorf("archive.PackFiles: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive.PackFiles: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, file string, name string) error {
	openFile, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		_ = openFile.Close()
	}()

	info, err := openFile.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = strings.TrimPrefix(name, "/")
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, openFile)
	return err
}
