// Package shell runs commands on the host. Exec is the privileged command
// executor used for install/remove/configure commands; ExecQuerier runs the
// read-only queries the prober relies on.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the outcome of one command: its exit code and combined output.
type Result struct {
	ExitCode int
	Output   string
}

// LineFunc receives each output line as it is produced. stream is "stdout"
// or "stderr".
type LineFunc func(stream, line string)

// Runner runs a shell command string. The error return is reserved for
// commands that could not be run or were cancelled; a non-zero exit is
// reported in Result.
type Runner interface {
	Run(ctx context.Context, command string, onLine LineFunc) (Result, error)
}

// Querier runs a program directly (no shell) and returns its stdout and exit
// code. A missing program yields exit code 127 and a non-nil error.
type Querier interface {
	Query(ctx context.Context, name string, args ...string) ([]byte, int, error)
}

// ExecQuerier implements Querier with os/exec.
type ExecQuerier struct{}

func (ExecQuerier) Query(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), exitErr.ExitCode(), nil // non-zero exit is an answer, not an error
	}

	exitCode := 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return stdout.Bytes(), exitCode, err
}
