// Package report renders run summaries, plans and ledger history for the
// terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/atomikpanda/mintyforge/internal/actions"
	"github.com/atomikpanda/mintyforge/internal/color"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/plan"
)

var (
	successColor = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	failColor    = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	skipColor    = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
	accentColor  = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(failColor)
	skipStyle    = lipgloss.NewStyle().Foreground(skipColor)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(failColor).
			Padding(0, 1)
)

func style(st lipgloss.Style, s string) string {
	if !color.Enabled {
		return s
	}
	return st.Render(s)
}

func statusStyle(s ledger.Status) lipgloss.Style {
	switch s {
	case ledger.StatusSuccess:
		return successStyle
	case ledger.StatusFailed:
		return failStyle
	default:
		return skipStyle
	}
}

// Summary writes the outcome of one reconcile call: a row per result, the
// counts and, if anything failed, the failed items.
func Summary(w io.Writer, s ledger.Summary) {
	fmt.Fprintln(w, style(titleStyle, fmt.Sprintf("%s (%s) run %s", s.Batch, s.Mode, s.Run)))

	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		rows = append(rows, []string{string(r.Status), r.Item, string(r.Verb), r.Message})
	}
	writeRows(w, rows, func(i int) lipgloss.Style {
		return statusStyle(s.Results[i].Status)
	})

	fmt.Fprintf(w, "%d installed, %d removed, %d configured, %d skipped, %d failed\n",
		s.Installed, s.Removed, s.Configured, s.Skipped, s.Failed)

	if failed := s.FailedItems(); len(failed) > 0 {
		body := "Failed:\n  " + strings.Join(failed, "\n  ")
		fmt.Fprintln(w, style(boxStyle, body))
	}
}

// Plan writes the planned actions for batch without running them.
func Plan(w io.Writer, batch string, actionList []plan.Action) {
	fmt.Fprintln(w, style(titleStyle, fmt.Sprintf("Plan for %s: %d of %d items need work", batch, plan.Work(actionList), len(actionList))))
	rows := make([][]string, 0, len(actionList))
	for _, a := range actionList {
		detail := a.Reason
		if a.Verb != plan.VerbSkip {
			detail = actions.Describe(a.Item, string(a.Verb))
		}
		rows = append(rows, []string{string(a.Verb), a.Item.Name, detail})
	}
	writeRows(w, rows, func(i int) lipgloss.Style {
		if actionList[i].Verb == plan.VerbSkip {
			return skipStyle
		}
		return successStyle
	})
}

// Entries writes ledger entries oldest first, with times relative to now.
func Entries(w io.Writer, entries []ledger.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history recorded.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			humanize.RelTime(e.Time, now, "ago", "from now"),
			string(e.Status),
			e.Batch,
			e.Item,
			string(e.Verb),
			e.Message,
		})
	}
	writeRows(w, rows, func(i int) lipgloss.Style {
		return statusStyle(entries[i].Status)
	})
}

// Runs writes one line per run, most recent first as given.
func Runs(w io.Writer, runs []ledger.Summary, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, s := range runs {
		rows = append(rows, []string{
			s.Run,
			humanize.RelTime(s.Started(), now, "ago", "from now"),
			s.Batch,
			string(s.Mode),
			fmt.Sprintf("%d ok, %d skipped, %d failed", s.Installed+s.Removed+s.Configured, s.Skipped, s.Failed),
		})
	}
	writeRows(w, rows, func(i int) lipgloss.Style {
		if runs[i].Failed == 0 {
			return successStyle
		}
		return failStyle
	})
}

// writeRows prints rows as left-aligned columns. The first column of row i
// is styled by pick(i); trailing empty cells are dropped.
func writeRows(w io.Writer, rows [][]string, pick func(int) lipgloss.Style) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for r, row := range rows {
		last := len(row) - 1
		for last > 0 && row[last] == "" {
			last--
		}
		var b strings.Builder
		b.WriteString("  ")
		for i := 0; i <= last; i++ {
			cell := row[i]
			pad := ""
			if i < last {
				pad = strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2)
			}
			if i == 0 {
				cell = style(pick(r), cell)
			}
			b.WriteString(cell + pad)
		}
		fmt.Fprintln(w, b.String())
	}
}
