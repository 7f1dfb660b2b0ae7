package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Exec runs the build tool as a local process inside the workspace.
type Exec struct {
	Command []string     // required, may contain {makefile} and {output}
	Log     *slog.Logger // required
}

// waitDelay bounds how long Build waits for the process output
// after the process has been killed by a done context.
const waitDelay = 5 * time.Second

func (e *Exec) Build(ctx context.Context, params *Params) error {
	if len(e.Command) == 0 {
		return errors.New("builder.Exec: empty command")
	}
	args := expandArgs(e.Command, params.Makefile, params.OutputDir)
	log := logWriter(params.Log)

	if _, err := fmt.Fprintf(log, "$ %s\n", strings.Join(args, " ")); err != nil {
		return fmt.Errorf("builder.Exec: %w", err)
	}
	e.Log.Debug("running build tool", "args", args, "dir", params.Dir)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = params.Dir
	cmd.Stdout = log
	cmd.Stderr = log
	cmd.WaitDelay = waitDelay
	killProcessGroupOnCancel(cmd)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("builder.Exec: %w", ctxErr)
		}
		if exitErr := (*exec.ExitError)(nil); errors.As(err, &exitErr) {
			return fmt.Errorf("builder.Exec: %w", &ExitError{ExitCode: exitErr.ExitCode()})
		}
		return fmt.Errorf("builder.Exec: %w", err)
	}

	return nil
}
