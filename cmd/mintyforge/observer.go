package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/atomikpanda/mintyforge/internal/color"
	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/ledger"
	"github.com/atomikpanda/mintyforge/internal/plan"
)

// observer reports executor progress. On a terminal it drives a progress
// bar; otherwise it prints one line per finished action.
type observer struct {
	w     io.Writer
	bar   *progressbar.ProgressBar
	total int
	n     int
}

func newObserver(w io.Writer, b config.Batch, mode config.Mode) *observer {
	o := &observer{w: w, total: len(b.Items)}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) && o.total > 0 {
		o.bar = progressbar.NewOptions(o.total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(fmt.Sprintf("%s (%s)", b.Name, mode)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionEnableColorCodes(color.Enabled),
		)
	}
	return o
}

func (o *observer) ActionStarted(a plan.Action) {
	if o.bar != nil && a.Verb != plan.VerbSkip {
		o.bar.Describe(fmt.Sprintf("%s %s", a.Verb, a.Item.Name))
	}
}

func (o *observer) ActionFinished(a plan.Action, r ledger.Result) {
	o.n++
	if o.bar != nil {
		o.bar.Add(1)
		return
	}
	status := string(r.Status)
	switch r.Status {
	case ledger.StatusSuccess:
		status = color.Green(status)
	case ledger.StatusFailed:
		status = color.BoldRed(status)
	default:
		status = color.Dim(status)
	}
	fmt.Fprintf(o.w, "[%d/%d] %s %s: %s\n", o.n, o.total, a.Verb, a.Item.Name, status)
}

func (o *observer) done() {
	if o.bar != nil {
		o.bar.Finish()
	}
}
