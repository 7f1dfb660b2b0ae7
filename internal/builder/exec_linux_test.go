package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// processGone reports whether pid no longer runs.
// Zombies count as gone since they can't do anything.
func processGone(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	if err != nil {
		return false
	}
	// The state follows the parenthesized command name.
	i := bytes.LastIndexByte(stat, ')')
	return i >= 0 && i+2 < len(stat) && stat[i+2] == 'Z'
}

func TestExecKillsChildProcesses(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	e := &Exec{
		Command: []string{"sh", "-c", "sleep 10 & echo $! > sleep.pid; wait", "{makefile}"},
		Log:     newTestLogger(),
	}
	params := newTestParams(t)

	start := time.Now()
	err := e.Build(ctx, params)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want %v", err, context.DeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("got %s elapsed, want less than 1s", elapsed)
	}

	pidData, err := os.ReadFile(filepath.Join(params.Dir, "sleep.pid"))
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(pidData)))
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}

	deadline := time.Now().Add(time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("got process %d still running after build returned", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
