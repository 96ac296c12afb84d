package downloader

import (
	"bytes"
	"context"
	"os/exec"
)

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// Run executes the command bound to ctx. Cancelling ctx kills the process.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
