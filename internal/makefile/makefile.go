// Package makefile reads etex makefiles and collects the files they refer to.
package makefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid makefile")

// Makefile is an etex makefile.
// Paths are relative to the makefile directory; a leading slash is ignored.
type Makefile struct {
	FilesPath   string `yaml:"files_path"`   // required
	FiguresPath string `yaml:"figures_path"` // optional
	StylesPath  string `yaml:"styles_path"`  // optional
	OutputPath  string `yaml:"output_path"`  // required
}

// Read reads and parses the makefile at name.
func Read(name string) (*Makefile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("makefile.Read: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("makefile.Read: %w", err)
	}
	return m, nil
}

// Parse parses a makefile.
func Parse(data []byte) (*Makefile, error) {
	m := new(Makefile)
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("makefile.Parse: %w: %w", ErrInvalid, err)
	}
	if m.FilesPath == "" {
		return nil, fmt.Errorf("makefile.Parse: %w: missing files_path", ErrInvalid)
	}
	if m.OutputPath == "" {
		return nil, fmt.Errorf("makefile.Parse: %w: missing output_path", ErrInvalid)
	}
	for key, p := range map[string]string{
		"files_path":   m.FilesPath,
		"figures_path": m.FiguresPath,
		"styles_path":  m.StylesPath,
		"output_path":  m.OutputPath,
	} {
		if p != "" && !filepath.IsLocal(filepath.FromSlash(relative(p))) {
			return nil, fmt.Errorf("makefile.Parse: %w: %s %q is outside the makefile directory", ErrInvalid, key, p)
		}
	}
	return m, nil
}

// Output returns the output path as a clean slash-separated relative path.
func (m *Makefile) Output() string {
	return relative(m.OutputPath)
}

// Files returns the makefile path followed by every regular file under
// the files, figures and styles directories, in lexical order within each directory.
// The files directory must exist; the figures and styles directories are used only when set.
func Files(makefilePath string, m *Makefile) ([]string, error) {
	dir := filepath.Dir(makefilePath)
	files := []string{makefilePath}
	seen := map[string]bool{filepath.Clean(makefilePath): true}

	for _, p := range []string{m.FilesPath, m.FiguresPath, m.StylesPath} {
		if p == "" {
			continue
		}
		root := filepath.Join(dir, filepath.FromSlash(relative(p)))
		err := filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if seen[name] {
				return nil
			}
			seen[name] = true
			files = append(files, name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("makefile.Files: %w", err)
		}
	}

	return files, nil
}

func relative(p string) string {
	return path.Clean(strings.TrimLeft(filepath.ToSlash(p), "/"))
}
