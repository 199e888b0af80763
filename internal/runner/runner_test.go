package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/executor"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/plan"
	"github.com/atomikpanda/mintyforge/internal/probe"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// fakeSystem is a package database that both answers probes and applies
// the apt commands it is asked to run.
type fakeSystem struct {
	mu        sync.Mutex
	installed map[string]bool
	commands  []string
	// fail makes commands containing the key return the given result.
	fail map[string]shell.Result
	// onRun is called before every command.
	onRun func(command string)
}

func newSystem(installed ...string) *fakeSystem {
	s := &fakeSystem{installed: map[string]bool{}, fail: map[string]shell.Result{}}
	for _, n := range installed {
		s.installed[n] = true
	}
	return s
}

func (s *fakeSystem) Probe(_ context.Context, item config.Item) probe.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Kind == config.KindExternal {
		return probe.Unknown
	}
	if s.installed[item.Name] {
		return probe.Present
	}
	return probe.Absent
}

func (s *fakeSystem) Run(_ context.Context, command string, _ shell.LineFunc) (shell.Result, error) {
	if s.onRun != nil {
		s.onRun(command)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	for key, res := range s.fail {
		if strings.Contains(command, key) {
			return res, nil
		}
	}
	fields := strings.Fields(command)
	name := strings.Trim(fields[len(fields)-1], "'")
	switch {
	case strings.Contains(command, " install "):
		s.installed[name] = true
	case strings.Contains(command, " purge "):
		if !s.installed[name] {
			return shell.Result{ExitCode: 0, Output: "Package '" + name + "' is not installed, so not removed\n"}, nil
		}
		delete(s.installed, name)
	}
	return shell.Result{ExitCode: 0}, nil
}

func (s *fakeSystem) ran() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func pkg(name string, kind config.Kind) config.Item {
	return config.Item{
		Name: name,
		Kind: kind,
		Spec: config.PackageSpec{Pattern: name},
		Commands: config.Commands{
			Install: "sudo apt-get install -y '" + name + "'",
			Remove:  "sudo apt-get purge -y '" + name + "'",
		},
	}
}

func external(name string, always bool) config.Item {
	return config.Item{
		Name:     name,
		Kind:     config.KindExternal,
		Spec:     config.ExternalSpec{Cmd: "run-" + name, Always: always},
		Commands: config.Commands{Install: "run-" + name},
	}
}

func batch(name string, items ...config.Item) config.Batch {
	return config.Batch{Name: name, Mode: config.ModeInstall, Items: items}
}

type fixture struct {
	sys    *fakeSystem
	ledger *ledger.Ledger
	runner *Runner
}

func newFixture(t *testing.T, sys *fakeSystem) *fixture {
	t.Helper()
	l := ledger.New(filepath.Join(t.TempDir(), "ledger.jsonl"))
	exec := &executor.Executor{Runner: sys, Retries: executor.DefaultRetries, Backoff: time.Millisecond}
	return &fixture{sys: sys, ledger: l, runner: New(sys, exec, l)}
}

func names(s ledger.Summary) []string {
	var out []string
	for _, r := range s.Results {
		out = append(out, r.Item)
	}
	return out
}

func TestReconcileCurlScenario(t *testing.T) {
	f := newFixture(t, newSystem())

	s, err := f.runner.Reconcile(context.Background(), batch("apt-install", pkg("curl", config.KindPackage)), config.ModeInstall)

	require.NoError(t, err)
	assert.Equal(t, 1, s.Installed)
	assert.Equal(t, 0, s.Removed)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, []string{"sudo apt-get install -y 'curl'"}, f.sys.ran())
}

func TestReconcileMintwelcomeScenario(t *testing.T) {
	f := newFixture(t, newSystem())
	b := config.Batch{Name: "apt-remove", Mode: config.ModeRemove, Items: []config.Item{pkg("mintwelcome", config.KindPackageRemoval)}}

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeRemove)

	require.NoError(t, err)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 0, s.Failed)
	assert.Empty(t, f.sys.ran(), "no privileged command for an absent package")
}

func TestReconcileOneResultPerItemInOrder(t *testing.T) {
	f := newFixture(t, newSystem("git"))
	b := batch("apt-install",
		pkg("vim", config.KindPackage),
		pkg("git", config.KindPackage),
		pkg("curl", config.KindPackage),
		pkg("vim", config.KindPackage),
	)
	f.sys.fail["curl"] = shell.Result{ExitCode: 100, Output: "E: Unmet dependencies.\n"}

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)

	require.NoError(t, err)
	assert.Equal(t, []string{"vim", "git", "curl", "vim"}, names(s))
	assert.Equal(t, 1, s.Installed)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, []string{"curl"}, s.FailedItems())
}

func TestReconcileDuplicate(t *testing.T) {
	f := newFixture(t, newSystem())
	b := batch("apt-install", pkg("git", config.KindPackage), pkg("git", config.KindPackage))

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)

	require.NoError(t, err)
	require.Len(t, s.Results, 2)
	assert.Equal(t, ledger.StatusSuccess, s.Results[0].Status)
	assert.Equal(t, ledger.StatusSkipped, s.Results[1].Status)
	assert.Equal(t, plan.ReasonDuplicate, s.Results[1].Message)
	assert.Len(t, f.sys.ran(), 1)
}

func TestReconcileIdempotent(t *testing.T) {
	f := newFixture(t, newSystem())
	b := batch("apt-install", pkg("curl", config.KindPackage), pkg("git", config.KindPackage))

	first, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Installed)

	second, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Installed)
	assert.NotEqual(t, first.Run, second.Run)
	for _, r := range second.Results {
		assert.Equal(t, ledger.StatusSkipped, r.Status)
	}
}

func TestReconcileTransientRetryBound(t *testing.T) {
	f := newFixture(t, newSystem())
	f.sys.fail["flaky"] = shell.Result{ExitCode: 100, Output: "Err:1 http://archive.ubuntu.com Temporary failure resolving 'archive.ubuntu.com'\n"}

	s, err := f.runner.Reconcile(context.Background(), batch("apt-install", pkg("flaky", config.KindPackage)), config.ModeInstall)

	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Results[0].Attempts)
	assert.Len(t, f.sys.ran(), 3)
}

func TestReconcileRemovalTolerance(t *testing.T) {
	sys := newSystem()
	f := newFixture(t, sys)
	// the prober cannot tell, so removal is attempted optimistically
	f.runner.Prober = unknownProber{}
	b := config.Batch{Name: "apt-remove", Mode: config.ModeRemove, Items: []config.Item{pkg("hexchat", config.KindPackageRemoval)}}

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeRemove)

	require.NoError(t, err)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 0, s.Failed)
	assert.Len(t, sys.ran(), 1)
}

type unknownProber struct{}

func (unknownProber) Probe(context.Context, config.Item) probe.State { return probe.Unknown }

func TestReconcilePhases(t *testing.T) {
	f := newFixture(t, newSystem())
	var phases []Phase
	f.runner.OnPhase = func(_ string, p Phase) { phases = append(phases, p) }

	_, err := f.runner.Reconcile(context.Background(), batch("empty"), config.ModeInstall)

	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseProbing, PhasePlanning, PhaseExecuting, PhaseSummarizing, PhaseIdle}, phases)
}

func TestReconcileRecordsToLedger(t *testing.T) {
	f := newFixture(t, newSystem())

	s, err := f.runner.Reconcile(context.Background(), batch("apt-install", pkg("curl", config.KindPackage)), config.ModeInstall)
	require.NoError(t, err)

	entries, err := f.ledger.Read(ledger.Filter{Run: s.Run}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "apt-install", entries[0].Batch)
	assert.Equal(t, ledger.StatusSuccess, entries[0].Status)
}

func TestReconcileExternalAlreadyRun(t *testing.T) {
	f := newFixture(t, newSystem())
	b := batch("extras", external("drivers", false), external("system-update", true))

	first, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Installed)

	second, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSkipped, second.Results[0].Status)
	assert.Equal(t, plan.ReasonAlreadyRun, second.Results[0].Message)
	assert.Equal(t, ledger.StatusSuccess, second.Results[1].Status, "always-run actions ignore history")
	assert.Equal(t, []string{"run-drivers", "run-system-update", "run-system-update"}, f.sys.ran())
}

func TestReconcileExternalFailedRunIsRetried(t *testing.T) {
	f := newFixture(t, newSystem())
	f.sys.fail["run-drivers"] = shell.Result{ExitCode: 1, Output: "mintdrivers: cannot open display\n"}
	b := batch("extras", external("drivers", false))

	_, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	delete(f.sys.fail, "run-drivers")

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Installed, "only a successful run counts as already run")
}

func TestReconcileForceRerunsExternal(t *testing.T) {
	f := newFixture(t, newSystem())
	b := batch("extras", external("drivers", false))

	_, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)

	f.runner.Force = true
	s, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Installed)
}

func TestReconcileCancelledBetweenActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys := newSystem()
	sys.onRun = func(command string) {
		if strings.Contains(command, "'b'") {
			cancel()
		}
	}
	f := newFixture(t, sys)
	b := batch("apt-install", pkg("a", config.KindPackage), pkg("b", config.KindPackage), pkg("c", config.KindPackage), pkg("d", config.KindPackage))

	s, err := f.runner.Reconcile(ctx, b, config.ModeInstall)

	require.NoError(t, err)
	require.Len(t, s.Results, 4, "every item yields exactly one result")
	assert.Equal(t, ledger.StatusSuccess, s.Results[0].Status)
	assert.Equal(t, ledger.StatusSuccess, s.Results[1].Status, "the in-flight command finished")
	for _, r := range s.Results[2:] {
		assert.Equal(t, ledger.StatusFailed, r.Status)
		assert.Equal(t, executor.MessageCancelled, r.Message)
	}
	assert.Len(t, sys.ran(), 2)

	entries, err := f.ledger.Read(ledger.Filter{Run: s.Run}, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "cancelled actions are still logged")
}

type brokenLedger struct {
	failAfter int
	appended  int
}

func (b *brokenLedger) Append(ledger.Entry) error {
	if b.appended >= b.failAfter {
		return errors.New("no space left on device")
	}
	b.appended++
	return nil
}

func (b *brokenLedger) HistoryFor(string) ([]ledger.Result, error) { return nil, nil }

func TestReconcileLogWriteAborts(t *testing.T) {
	sys := newSystem()
	f := newFixture(t, sys)
	f.runner.Ledger = &brokenLedger{failAfter: 1}
	b := batch("apt-install", pkg("a", config.KindPackage), pkg("b", config.KindPackage), pkg("c", config.KindPackage))

	s, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)

	require.Error(t, err)
	assert.True(t, ferrors.IsErrorCode(err, ferrors.ErrLogWrite))
	assert.Equal(t, []string{"a"}, names(s), "partial summary holds what was logged")
	assert.Len(t, sys.ran(), 2, "nothing runs after the failed write")
}

func TestReconcileBatchBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	sys := newSystem()
	sys.onRun = func(string) {
		close(entered)
		<-release
	}
	f := newFixture(t, sys)
	b := batch("apt-install", pkg("curl", config.KindPackage))

	errc := make(chan error, 1)
	go func() {
		_, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
		errc <- err
	}()
	<-entered

	_, err := f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	assert.True(t, ferrors.IsErrorCode(err, ferrors.ErrBatchBusy))

	_, err = f.runner.Preview(context.Background(), b, config.ModeInstall)
	assert.True(t, ferrors.IsErrorCode(err, ferrors.ErrBatchBusy))

	// a different batch is independent
	_, err = f.runner.Preview(context.Background(), batch("flatpak"), config.ModeInstall)
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-errc)

	sys.onRun = nil
	_, err = f.runner.Reconcile(context.Background(), b, config.ModeInstall)
	assert.NoError(t, err, "the batch is free again once the first call returns")
}

func TestPreviewDoesNotExecuteOrRecord(t *testing.T) {
	f := newFixture(t, newSystem("git"))
	b := batch("apt-install", pkg("git", config.KindPackage), pkg("curl", config.KindPackage))

	actions, err := f.runner.Preview(context.Background(), b, config.ModeInstall)

	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, plan.VerbSkip, actions[0].Verb)
	assert.Equal(t, plan.VerbInstall, actions[1].Verb)
	assert.Empty(t, f.sys.ran())
	entries, err := f.ledger.Read(ledger.Filter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
