package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/config"
)

// execRunner spawns processes through os/exec with the argument
// vector handed to the kernel as-is. There is no shell between the
// gate and the child process.
type execRunner struct {
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, program string, args []string) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   truncateOutput(stdout.String()),
		Stderr:   truncateOutput(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Started and failed, including kills by the context
			// deadline. The caller sees the exit code, not an error
			// from us.
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

func truncateOutput(s string) string {
	if len(s) <= config.MaxCapturedOutput {
		return s
	}
	return s[:config.MaxCapturedOutput] + "\n[output truncated]"
}
