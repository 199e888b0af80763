// Package executor runs planned actions through the privileged command
// runner, classifies each outcome and retries transient failures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/plan"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// Defaults for the retry policy.
const (
	DefaultRetries = 2
	DefaultBackoff = 2 * time.Second
)

// MessageCancelled is the message of results recorded for cancelled actions.
const MessageCancelled = "cancelled"

// Observer is notified around every action. It must not block.
type Observer interface {
	ActionStarted(a plan.Action)
	ActionFinished(a plan.Action, r ledger.Result)
}

// Executor executes actions one at a time.
type Executor struct {
	Runner   shell.Runner
	Retries  int           // extra attempts after a transient failure
	Backoff  time.Duration // fixed wait between attempts
	Observer Observer
}

// New returns an Executor with the default retry policy.
func New(r shell.Runner) *Executor {
	return &Executor{Runner: r, Retries: DefaultRetries, Backoff: DefaultBackoff}
}

// Execute runs a and returns its result. It never returns an error: every
// failure is reported as a failed result.
func (e *Executor) Execute(ctx context.Context, a plan.Action) ledger.Result {
	if e.Observer != nil {
		e.Observer.ActionStarted(a)
	}
	r := e.execute(ctx, a)
	if e.Observer != nil {
		e.Observer.ActionFinished(a, r)
	}
	return r
}

// Cancelled returns the result recorded for an action that was never run
// because the run was cancelled.
func Cancelled(a plan.Action) ledger.Result {
	return ledger.Result{
		Time:    time.Now().UTC(),
		Item:    a.Item.Name,
		Kind:    a.Item.Kind,
		Verb:    a.Verb,
		Status:  ledger.StatusFailed,
		Message: MessageCancelled,
	}
}

func (e *Executor) execute(ctx context.Context, a plan.Action) ledger.Result {
	result := ledger.Result{
		Time: time.Now().UTC(),
		Item: a.Item.Name,
		Kind: a.Item.Kind,
		Verb: a.Verb,
	}
	logger := logging.GetLogger("executor").With().
		Str("item", a.Item.Name).
		Str("verb", string(a.Verb)).
		Logger()

	if a.Verb == plan.VerbSkip {
		result.Status = ledger.StatusSkipped
		result.Message = a.Reason
		logger.Debug().Str("reason", a.Reason).Msg("Skipped")
		return result
	}

	if ctx.Err() != nil {
		logger.Warn().Msg("Not started, run cancelled")
		return Cancelled(a)
	}

	command := a.Item.Commands.For(string(a.Verb))
	if command == "" {
		result.Status = ledger.StatusFailed
		result.Message = fmt.Sprintf("no %s command for %s", a.Verb, a.Item.Kind)
		logger.Error().Str("code", string(ferrors.ErrPermanentExecution)).Msg(result.Message)
		return result
	}

	var (
		last        shell.Result
		code        ferrors.ErrorCode
		notRunnable bool
	)
	onLine := func(stream, line string) {
		logger.Debug().Str("stream", stream).Msg(line)
	}
	op := func() error {
		result.Attempts++
		logger.Info().Int("attempt", result.Attempts).Str("command", command).Msg("Running")

		res, err := e.Runner.Run(ctx, command, onLine)
		last = res
		if err != nil {
			notRunnable = !ferrors.IsErrorCode(err, ferrors.ErrCancelled)
			return backoff.Permanent(err)
		}
		code = Classify(a.Item.Kind, a.Verb, res)
		if code == ferrors.ErrTransientExecution {
			logger.Warn().Int("attempt", result.Attempts).Int("exit", res.ExitCode).Msg("Transient failure")
			return ferrors.Newf(code, "exit %d: %s", res.ExitCode, lastLine(res.Output))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.Backoff), uint64(max(e.Retries, 0))),
		ctx)
	err := backoff.Retry(op, policy)

	if result.Attempts > 0 && !notRunnable {
		exit := last.ExitCode
		result.ExitCode = &exit
	}
	e.finish(&result, logger, code, last, err)
	return result
}

func (e *Executor) finish(result *ledger.Result, logger zerolog.Logger, code ferrors.ErrorCode, last shell.Result, err error) {
	switch {
	case ferrors.IsErrorCode(err, ferrors.ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = ledger.StatusFailed
		result.Message = MessageCancelled
		logger.Warn().Int("attempts", result.Attempts).Msg("Cancelled")
	case err != nil && !ferrors.IsErrorCode(err, ferrors.ErrTransientExecution):
		result.Status = ledger.StatusFailed
		result.Message = err.Error()
		logger.Error().Err(err).Msg("Could not run command")
	case code == ferrors.ErrTransientExecution:
		result.Status = ledger.StatusFailed
		result.Message = fmt.Sprintf("gave up after %d attempts: %s", result.Attempts, lastLine(last.Output))
		logger.Error().Int("attempts", result.Attempts).Str("code", string(code)).Msg("Failed")
	case code == ferrors.ErrAlreadySatisfied:
		result.Status = ledger.StatusSkipped
		result.Message = plan.ReasonSatisfied
		logger.Info().Str("output", lastLine(last.Output)).Msg("Already satisfied")
	case code == ferrors.ErrPermanentExecution:
		result.Status = ledger.StatusFailed
		result.Message = fmt.Sprintf("exit %d: %s", last.ExitCode, lastLine(last.Output))
		logger.Error().Int("exit", last.ExitCode).Str("code", string(code)).Msg("Failed")
	default:
		result.Status = ledger.StatusSuccess
		logger.Info().Int("attempts", result.Attempts).Msg("Succeeded")
	}
}
