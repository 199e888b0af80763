package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/plan"
)

func TestSummary(t *testing.T) {
	s := ledger.Summary{
		Run:   "20260101T000000-1-1",
		Batch: "apt-install",
		Mode:  config.ModeInstall,
		Results: []ledger.Result{
			{Item: "curl", Verb: plan.VerbInstall, Status: ledger.StatusSuccess},
			{Item: "git", Verb: plan.VerbSkip, Status: ledger.StatusSkipped, Message: "already satisfied"},
			{Item: "nosuch", Verb: plan.VerbInstall, Status: ledger.StatusFailed, Message: "exit 100: E: Unable to locate package nosuch"},
		},
		Installed: 1,
		Skipped:   1,
		Failed:    1,
	}
	var buf bytes.Buffer
	Summary(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "apt-install (install) run 20260101T000000-1-1")
	assert.Contains(t, out, "1 installed, 0 removed, 0 configured, 1 skipped, 1 failed")
	assert.Contains(t, out, "git     skip     already satisfied")
	assert.Contains(t, out, "Failed:")
	assert.Contains(t, out, "nosuch")
	assert.NotContains(t, out, "\x1b[", "no escape codes when colour is off")
}

func TestSummaryWithoutFailures(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, ledger.Summary{Batch: "settings", Mode: config.ModeInstall})
	assert.NotContains(t, buf.String(), "Failed:")
}

func TestPlan(t *testing.T) {
	acts := []plan.Action{
		{Item: config.Item{Name: "curl", Kind: config.KindPackage, Spec: config.PackageSpec{Pattern: "curl"}}, Verb: plan.VerbInstall},
		{Item: config.Item{Name: "git", Kind: config.KindPackage, Spec: config.PackageSpec{Pattern: "git"}}, Verb: plan.VerbSkip, Reason: plan.ReasonSatisfied},
	}
	var buf bytes.Buffer
	Plan(&buf, "apt-install", acts)
	out := buf.String()

	assert.Contains(t, out, "Plan for apt-install: 1 of 2 items need work")
	assert.Contains(t, out, `install package "curl" via apt`)
	assert.Contains(t, out, "already satisfied")
}

func TestEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{{
		Run:    "r1",
		Batch:  "apt-remove",
		Mode:   config.ModeRemove,
		Result: ledger.Result{Time: now.Add(-2 * time.Hour), Item: "mintwelcome", Verb: plan.VerbRemove, Status: ledger.StatusSuccess},
	}}
	var buf bytes.Buffer
	Entries(&buf, entries, now)
	line := strings.TrimSpace(buf.String())

	assert.True(t, strings.HasPrefix(line, "2 hours ago"), line)
	assert.Contains(t, line, "success")
	assert.Contains(t, line, "mintwelcome")
	assert.False(t, strings.HasSuffix(buf.String(), " \n"), "trailing empty message must not pad the line")
}

func TestEntriesEmpty(t *testing.T) {
	var buf bytes.Buffer
	Entries(&buf, nil, time.Now())
	assert.Equal(t, "No history recorded.\n", buf.String())
}

func TestRuns(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := []ledger.Summary{{
		Run:       "r2",
		Batch:     "flatpak",
		Mode:      config.ModeInstall,
		Results:   []ledger.Result{{Time: now.Add(-3 * time.Minute)}},
		Installed: 2,
		Failed:    1,
	}}
	var buf bytes.Buffer
	Runs(&buf, runs, now)
	out := buf.String()

	assert.Contains(t, out, "r2")
	assert.Contains(t, out, "3 minutes ago")
	assert.Contains(t, out, "2 ok, 0 skipped, 1 failed")
}
