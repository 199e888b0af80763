// Package runner drives one reconcile pass over a batch: probe every item,
// plan the actions, execute them in order and record each outcome.
package runner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/executor"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/plan"
	"github.com/atomikpanda/mintyforge/internal/probe"
)

// Phase is a step of the per-batch state machine. Every reconcile walks
// Idle, Probing, Planning, Executing, Summarizing and back to Idle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseProbing     Phase = "probing"
	PhasePlanning    Phase = "planning"
	PhaseExecuting   Phase = "executing"
	PhaseSummarizing Phase = "summarizing"
)

type Prober interface {
	Probe(ctx context.Context, item config.Item) probe.State
}

type Executor interface {
	Execute(ctx context.Context, a plan.Action) ledger.Result
}

// Ledger persists results and answers history queries for items that
// cannot be probed.
type Ledger interface {
	ledger.Appender
	HistoryFor(name string) ([]ledger.Result, error)
}

// Runner reconciles batches. A Runner may be reused for any number of
// batches, but a batch cannot be reconciled twice at the same time.
type Runner struct {
	Prober   Prober
	Executor Executor
	Ledger   Ledger
	Force    bool // rerun external actions that already succeeded

	// OnPhase, when set, is called on every phase transition.
	OnPhase func(batch string, p Phase)

	mu   sync.Mutex
	busy map[string]bool
}

// New creates a Runner.
func New(p Prober, e Executor, l Ledger) *Runner {
	return &Runner{Prober: p, Executor: e, Ledger: l}
}

// Reconcile converges batch toward its desired state in the given mode and
// returns the run summary. Item failures are part of the summary, not
// errors. The error is non-nil only when the batch is already being
// reconciled (BATCH_BUSY) or a result could not be logged (LOG_WRITE); in
// the latter case the summary holds what was recorded before the failure.
func (r *Runner) Reconcile(ctx context.Context, batch config.Batch, mode config.Mode) (ledger.Summary, error) {
	if err := r.acquire(batch.Name); err != nil {
		return ledger.Summary{Batch: batch.Name, Mode: mode}, err
	}
	defer r.release(batch.Name)

	run := ledger.NewRunID()
	logger := logging.GetLogger("runner").With().
		Str("batch", batch.Name).
		Str("mode", string(mode)).
		Str("run", run).
		Logger()
	done := logging.LogOperationStart(logger, "reconcile")
	defer done()

	actions := r.preview(ctx, logger, batch, mode)

	r.enter(logger, batch.Name, PhaseExecuting)
	rec := ledger.NewRecorder(r.Ledger, run, batch.Name, mode)
	for _, a := range actions {
		var result ledger.Result
		if ctx.Err() != nil {
			result = executor.Cancelled(a)
		} else {
			result = r.Executor.Execute(ctx, a)
		}
		if err := rec.Record(result); err != nil {
			logger.Error().Err(err).Str("item", a.Item.Name).Msg("Ledger write failed, aborting batch")
			r.enter(logger, batch.Name, PhaseIdle)
			return rec.Summary(), err
		}
	}

	r.enter(logger, batch.Name, PhaseSummarizing)
	summary := rec.Summary()
	logger.Info().
		Int("installed", summary.Installed).
		Int("removed", summary.Removed).
		Int("configured", summary.Configured).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Batch reconciled")

	r.enter(logger, batch.Name, PhaseIdle)
	return summary, nil
}

// Preview probes and plans batch without executing or recording anything.
func (r *Runner) Preview(ctx context.Context, batch config.Batch, mode config.Mode) ([]plan.Action, error) {
	if err := r.acquire(batch.Name); err != nil {
		return nil, err
	}
	defer r.release(batch.Name)

	logger := logging.GetLogger("runner").With().Str("batch", batch.Name).Str("mode", string(mode)).Logger()
	actions := r.preview(ctx, logger, batch, mode)
	r.enter(logger, batch.Name, PhaseIdle)
	return actions, nil
}

func (r *Runner) preview(ctx context.Context, logger zerolog.Logger, batch config.Batch, mode config.Mode) []plan.Action {
	r.enter(logger, batch.Name, PhaseProbing)
	observed, alreadyRun := r.observe(ctx, logger, batch.Items)

	r.enter(logger, batch.Name, PhasePlanning)
	actions := plan.Plan(batch.Items, observed, mode)
	for i, a := range actions {
		if a.Verb == plan.VerbSkip && a.Reason == plan.ReasonSatisfied && alreadyRun[a.Item.Name] {
			actions[i].Reason = plan.ReasonAlreadyRun
		}
	}
	logger.Debug().Int("actions", len(actions)).Int("work", plan.Work(actions)).Msg("Planned")
	return actions
}

// observe probes every distinct item. External actions cannot be probed, so
// a successful run in the ledger counts as present unless the item asks to
// always run or Force is set.
func (r *Runner) observe(ctx context.Context, logger zerolog.Logger, items []config.Item) (map[string]probe.State, map[string]bool) {
	observed := make(map[string]probe.State, len(items))
	alreadyRun := make(map[string]bool)

	for _, it := range items {
		if _, seen := observed[it.Name]; seen {
			continue
		}
		state := r.Prober.Probe(ctx, it)
		if state == probe.Unknown && r.ranBefore(logger, it) {
			state = probe.Present
			alreadyRun[it.Name] = true
		}
		observed[it.Name] = state
	}
	return observed, alreadyRun
}

func (r *Runner) ranBefore(logger zerolog.Logger, it config.Item) bool {
	spec, ok := it.Spec.(config.ExternalSpec)
	if !ok || spec.Always || r.Force {
		return false
	}
	history, err := r.Ledger.HistoryFor(it.Name)
	if err != nil {
		logger.Warn().Err(err).Str("item", it.Name).Msg("Could not read ledger history")
		return false
	}
	for _, h := range history {
		if h.Status == ledger.StatusSuccess && h.Verb == plan.VerbInstall {
			return true
		}
	}
	return false
}

func (r *Runner) enter(logger zerolog.Logger, batch string, p Phase) {
	logger.Debug().Str("phase", string(p)).Msg("Phase")
	if r.OnPhase != nil {
		r.OnPhase(batch, p)
	}
}

func (r *Runner) acquire(batch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy == nil {
		r.busy = make(map[string]bool)
	}
	if r.busy[batch] {
		return ferrors.Newf(ferrors.ErrBatchBusy, "batch %q is already being reconciled", batch)
	}
	r.busy[batch] = true
	return nil
}

func (r *Runner) release(batch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, batch)
}
