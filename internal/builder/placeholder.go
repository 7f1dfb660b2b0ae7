package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Placeholder doesn't run any build tool.
// It creates the output directory with two fixed text files.
type Placeholder struct{}

func (*Placeholder) Build(ctx context.Context, params *Params) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("builder.Placeholder: %w", err)
	}

	if _, err := fmt.Fprintf(logWriter(params.Log), "calling etex for makefile %s\n", params.Makefile); err != nil {
		return fmt.Errorf("builder.Placeholder: %w", err)
	}

	if err := os.MkdirAll(params.OutputDir, 0o777); err != nil {
		return fmt.Errorf("builder.Placeholder: %w", err)
	}
	files := []struct {
		name    string
		content string
	}{
		{name: "foo.txt", content: "Hello, world!"},
		{name: "bar.txt", content: "Goodbye, world!"},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(params.OutputDir, f.name), []byte(f.content), 0o666); err != nil {
			return fmt.Errorf("builder.Placeholder: %w", err)
		}
	}

	return nil
}
