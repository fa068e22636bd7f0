package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ExitNotFound is reported when the binary cannot be executed at all.
const ExitNotFound int32 = 127

// Result is the captured outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

// Trimmed returns stdout without surrounding whitespace.
func (r Result) Trimmed() string {
	return strings.TrimSpace(string(r.Stdout))
}

// CommandRunner abstracts command execution so drivers can be tested
// against scripted output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// Env is appended to the inherited environment when non-empty.
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = ExitNotFound
	}
	return res, err
}
