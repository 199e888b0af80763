package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomikpanda/mintyforge/internal/actions"
	"github.com/atomikpanda/mintyforge/internal/color"
	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/executor"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/logging"
	"github.com/atomikpanda/mintyforge/internal/platform"
	"github.com/atomikpanda/mintyforge/internal/probe"
	"github.com/atomikpanda/mintyforge/internal/report"
	"github.com/atomikpanda/mintyforge/internal/runner"
	"github.com/atomikpanda/mintyforge/internal/settings"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitFailures  = 2 // the run finished but some items failed
	exitCancelled = 130
)

var (
	configDir    string
	settingsFile string
	verbosity    int
	retries      int
	force        bool
	noColor      bool
)

// errItemsFailed is returned by commands whose reconcile finished with
// failed items. The summary has already been printed.
var errItemsFailed = errors.New("some items failed")

func main() {
	color.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		// A second interrupt falls through to the default handler.
		<-ctx.Done()
		stop()
	}()

	root := buildRoot()
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errItemsFailed):
		return exitFailures
	case ferrors.IsErrorCode(err, ferrors.ErrCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitError
	}
}

func buildRoot() *cobra.Command {
	initTemplateFormatting()

	root := &cobra.Command{
		Use:   "mintyforge",
		Short: "Post-install provisioning for Linux Mint",
		Long: `mintyforge brings a fresh Linux Mint install to the state described in a
directory of JSON files: APT and Flatpak packages, themes, desktop settings
and one-shot setup actions. Every run checks what is already in place, does
only the missing work and records each outcome in a durable log.

Run without a command to open the interactive menu.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.Disable()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runMenu(cmd.Context())
		},
	}
	root.SetUsageTemplate(usageTemplate)
	root.SetErrPrefix(color.BoldRed("Error:"))

	pf := root.PersistentFlags()
	pf.StringVarP(&configDir, "config-dir", "c", "", "directory holding the JSON config files (default from settings)")
	pf.StringVar(&settingsFile, "settings", "", "settings file (default $XDG_CONFIG_HOME/mintyforge/settings.toml)")
	pf.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	pf.IntVar(&retries, "retries", 2, "extra attempts after a transient failure")
	pf.BoolVar(&force, "force", false, "rerun external actions that already succeeded")
	pf.BoolVar(&noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		applyCmd(),
		removeCmd(),
		planCmd(),
		batchesCmd(),
		logCmd(),
		preflightCmd(),
		themeCmd(),
	)
	return root
}

// app is everything a command needs, built from settings and the config dir.
type app struct {
	settings *settings.Settings
	cfg      config.Config
	env      actions.Env
	ledger   *ledger.Ledger
	exec     *executor.Executor
	runner   *runner.Runner
	out      io.Writer
	closeLog func() error
}

func settingsOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	if cmd.Flags().Changed("config-dir") {
		overrides["paths.configs"] = configDir
	}
	if cmd.Flags().Changed("retries") {
		overrides["retry.attempts"] = retries
	}
	return overrides
}

func newApp(cmd *cobra.Command) (*app, error) {
	s, err := settings.Load(settingsFile, settingsOverrides(cmd))
	if err != nil {
		return nil, err
	}

	closeLog, err := logging.Setup(verbosity, s.Paths.LogFile)
	if err != nil {
		// Console logging still works; the warning has been logged.
		closeLog = func() error { return nil }
	}
	logger := logging.GetLogger("cli")

	home, err := platform.HomeDir()
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	env := actions.Env{User: s.Desktop.User, Home: home}

	raw, err := config.LoadDir(s.Paths.Configs, config.Layout{
		ThemesDir:  s.Paths.Themes,
		IconsDir:   s.Paths.Icons,
		CursorsDir: s.Paths.Cursors,
		SourcesDir: s.Paths.Sources,
	})
	if err != nil {
		closeLog()
		return nil, err
	}
	cfg, err := actions.Bind(raw, env)
	if err != nil {
		closeLog()
		return nil, ferrors.Wrap(err, ferrors.ErrConfigInvalid, "resolve commands")
	}
	logger.Debug().Str("configs", s.Paths.Configs).Int("batches", len(cfg)).Msg("Config loaded")

	l := ledger.New(s.Paths.Ledger)
	ex := executor.New(&shell.Exec{})
	ex.Retries = s.Retry.Attempts
	ex.Backoff = s.Retry.Backoff

	r := runner.New(probe.New(shell.ExecQuerier{}), ex, l)
	r.Force = force
	r.OnPhase = func(batch string, p runner.Phase) {
		logger.Trace().Str("batch", batch).Str("phase", string(p)).Msg("Phase")
	}

	return &app{
		settings: s,
		cfg:      cfg,
		env:      env,
		ledger:   l,
		exec:     ex,
		runner:   r,
		out:      cmd.OutOrStdout(),
		closeLog: closeLog,
	}, nil
}

func (a *app) close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// reconcile runs one batch with a progress observer attached, prints the
// summary and follows a package removal with the cleanup batch.
func (a *app) reconcile(ctx context.Context, b config.Batch, mode config.Mode) (ledger.Summary, error) {
	obs := newObserver(os.Stderr, b, mode)
	a.exec.Observer = obs
	summary, err := a.runner.Reconcile(ctx, b, mode)
	a.exec.Observer = nil
	obs.done()

	if len(summary.Results) > 0 {
		report.Summary(a.out, summary)
	}
	if err != nil {
		return summary, err
	}

	if mode == config.ModeRemove && summary.Removed > 0 && hasPackages(b) {
		if cleanup := a.cfg.Batch(config.BatchCleanup); cleanup != nil && ctx.Err() == nil {
			fmt.Fprintln(a.out)
			if _, err := a.reconcile(ctx, *cleanup, cleanup.Mode); err != nil {
				return summary, err
			}
		}
	}

	if ctx.Err() != nil {
		return summary, ferrors.Wrap(ctx.Err(), ferrors.ErrCancelled, "run interrupted")
	}
	if summary.Failed > 0 {
		return summary, errItemsFailed
	}
	return summary, nil
}

func hasPackages(b config.Batch) bool {
	for _, it := range b.Items {
		if it.Kind == config.KindPackage || it.Kind == config.KindPackageRemoval {
			return true
		}
	}
	return false
}

// configFile returns the path of an auxiliary file in the config dir.
func (a *app) configFile(name string) string {
	return filepath.Join(a.settings.Paths.Configs, name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// stateFile returns name next to the ledger, in the state directory.
func stateFile(ledgerPath, name string) string {
	return filepath.Join(filepath.Dir(ledgerPath), name)
}
