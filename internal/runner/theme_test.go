package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/mintyforge/internal/actions"
	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/executor"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/plan"
	"github.com/atomikpanda/mintyforge/internal/probe"
	"github.com/atomikpanda/mintyforge/internal/shell"
)

// gitRepo creates a local repository holding an install script and returns
// its file:// URL.
func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := filepath.Join(t.TempDir(), "theme")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "install.sh"), []byte("#!/bin/sh\n"), 0o755))
	for _, args := range [][]string{
		{"init", "-q"},
		{"add", "."},
		{"-c", "user.name=t", "-c", "user.email=t@example.com", "commit", "-q", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	return "file://" + dir
}

func themeItem(t *testing.T, url, home, userCmd string) config.Item {
	t.Helper()
	item, err := actions.Resolve(config.Item{
		Name: "orchis",
		Kind: config.KindThemeGTK,
		Spec: config.ThemeSpec{
			URL:       url,
			NameToUse: "Orchis-Dark",
			Dest:      filepath.Join(home, ".themes", "Orchis-Dark"),
			Source:    filepath.Join(home, "state", "sources", "theme-gtk", "orchis"),
			UserCmd:   userCmd,
		},
	}, actions.Env{Home: home})
	require.NoError(t, err)
	return item
}

func TestReconcileThemeFailedInstallIsPlannedAgain(t *testing.T) {
	url := gitRepo(t)
	home := t.TempDir()
	sh := &shell.Exec{}
	l := ledger.New(filepath.Join(t.TempDir(), "ledger.jsonl"))
	r := New(probe.New(nil), &executor.Executor{Runner: sh, Retries: 0, Backoff: time.Millisecond}, l)
	ctx := context.Background()

	failing := batch("themes-gtk", themeItem(t, url, home, "exit 1"))
	s, err := r.Reconcile(ctx, failing, config.ModeInstall)
	require.NoError(t, err)
	require.Len(t, s.Results, 1)
	assert.Equal(t, ledger.StatusFailed, s.Results[0].Status)
	assert.NoDirExists(t, filepath.Join(home, ".themes", "Orchis-Dark"))

	planned, err := r.Preview(ctx, failing, config.ModeInstall)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, plan.VerbInstall, planned[0].Verb, "a failed theme install must not read as satisfied")

	working := batch("themes-gtk", themeItem(t, url, home, "mkdir -p {{ .Dest }}"))
	s, err = r.Reconcile(ctx, working, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Installed)
	assert.DirExists(t, filepath.Join(home, ".themes", "Orchis-Dark"))

	planned, err = r.Preview(ctx, working, config.ModeInstall)
	require.NoError(t, err)
	assert.Equal(t, plan.VerbSkip, planned[0].Verb)
}

func TestReconcileThemeStepsThatSkipDestFail(t *testing.T) {
	url := gitRepo(t)
	home := t.TempDir()
	l := ledger.New(filepath.Join(t.TempDir(), "ledger.jsonl"))
	r := New(probe.New(nil), &executor.Executor{Runner: &shell.Exec{}, Retries: 0, Backoff: time.Millisecond}, l)

	s, err := r.Reconcile(context.Background(), batch("themes-gtk", themeItem(t, url, home, "./install.sh")), config.ModeInstall)
	require.NoError(t, err)
	require.Len(t, s.Results, 1)
	assert.Equal(t, ledger.StatusFailed, s.Results[0].Status)
	assert.Contains(t, s.Results[0].Message, "was not created")
}
