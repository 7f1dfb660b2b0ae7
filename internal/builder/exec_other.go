//go:build !unix

package builder

import "os/exec"

func killProcessGroupOnCancel(cmd *exec.Cmd) {}
