package builder

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Params describes a single build in a workspace.
type Params struct {
	Dir          string    // workspace root, absolute
	Makefile     string    // absolute makefile path inside Dir
	MakefileName string    // makefile path relative to Dir, slash-separated
	OutputDir    string    // absolute output directory path inside Dir
	OutputName   string    // output directory path relative to Dir, slash-separated
	Log          io.Writer // receives the build tool output, may be nil
}

// Builder runs the external build tool.
// A build tool that ran and failed is reported with *ExitError.
// Build is expected to stop when ctx is done.
type Builder interface {
	Build(ctx context.Context, params *Params) error
}

type ExitError struct {
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code is %d", e.ExitCode)
}

const (
	placeholderMakefile = "{makefile}"
	placeholderOutput   = "{output}"
)

// expandArgs replaces {makefile} and {output} in args.
// If args contain neither placeholder, makefile is appended.
func expandArgs(args []string, makefile string, output string) []string {
	expanded := make([]string, 0, len(args)+1)
	found := false
	for _, arg := range args {
		if strings.Contains(arg, placeholderMakefile) || strings.Contains(arg, placeholderOutput) {
			found = true
		}
		arg = strings.ReplaceAll(arg, placeholderMakefile, makefile)
		arg = strings.ReplaceAll(arg, placeholderOutput, output)
		expanded = append(expanded, arg)
	}
	if !found {
		expanded = append(expanded, makefile)
	}
	return expanded
}

func logWriter(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
