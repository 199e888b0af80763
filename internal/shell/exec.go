package shell

import (
	"context"
	"strings"

	"github.com/go-cmd/cmd"

	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
)

// Exec implements Runner by running commands with "sh -c", streaming output
// line by line while the process runs. Cancelling ctx stops the process
// group.
type Exec struct {
	Shell string // defaults to "sh"
	Dir   string
	Env   []string
}

func (e *Exec) Run(ctx context.Context, command string, onLine LineFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, ferrors.Wrap(err, ferrors.ErrCancelled, "not started")
	}

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	c := cmd.NewCmdOptions(cmd.Options{
		Buffered:  false,
		Streaming: true,
	}, shell, "-c", command)
	c.Dir = e.Dir
	if len(e.Env) > 0 {
		c.Env = e.Env
	}

	statusChan := c.Start()

	var out strings.Builder
	emit := func(stream, line string) {
		out.WriteString(line)
		out.WriteByte('\n')
		if onLine != nil {
			onLine(stream, line)
		}
	}

	stopped := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		stdout, stderr := c.Stdout, c.Stderr
		cancelled := ctx.Done()
		for stdout != nil || stderr != nil {
			select {
			case line, ok := <-stdout:
				if !ok {
					stdout = nil
					continue
				}
				emit("stdout", line)
			case line, ok := <-stderr:
				if !ok {
					stderr = nil
					continue
				}
				emit("stderr", line)
			case <-cancelled:
				// keep draining until go-cmd closes the streams
				cancelled = nil
				stopped = true
				_ = c.Stop()
			}
		}
	}()

	status := <-statusChan
	<-done

	res := Result{ExitCode: status.Exit, Output: out.String()}
	if stopped {
		return res, ferrors.Wrap(ctx.Err(), ferrors.ErrCancelled, "command interrupted")
	}
	if status.Error != nil && !status.Complete {
		return res, ferrors.Wrap(status.Error, ferrors.ErrPermanentExecution, "start command")
	}
	return res, nil
}
