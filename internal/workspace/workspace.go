package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrOutside = errors.New("path outside workspace")

// Workspace is a temporary directory owned by a single build request.
type Workspace struct {
	Dir string
}

// New creates a workspace directory inside parent.
// The directory name starts with prefix and ends with a random suffix,
// so concurrent calls never return the same directory.
// An empty parent means os.TempDir.
func New(parent string, prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("workspace.New: %w", err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("workspace.New: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name onto the workspace directory.
// It returns ErrOutside when the cleaned result would not be inside the workspace.
func (w *Workspace) Path(name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", fmt.Errorf("workspace.Path: %w", err)
	}
	return filepath.Join(w.Dir, filepath.FromSlash(name)), nil
}

// Remove deletes the workspace directory and everything inside it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("workspace.Remove: %w", err)
	}
	return nil
}

// CheckName reports whether name is a slash-separated relative path
// that stays inside the directory it is joined onto.
func CheckName(name string) error {
	p := filepath.FromSlash(name)
	if !filepath.IsLocal(p) || filepath.Clean(p) == "." {
		return fmt.Errorf("%w: %q", ErrOutside, name)
	}
	return nil
}
