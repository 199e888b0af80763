package ledger

import (
	"time"

	"github.com/atomikpanda/mintyforge/internal/config"
	ferrors "github.com/atomikpanda/mintyforge/internal/errors"
	"github.com/atomikpanda/mintyforge/internal/plan"
)

// Summary aggregates the results of one reconcile call, in execution order.
type Summary struct {
	Run        string
	Batch      string
	Mode       config.Mode
	Results    []Result
	Installed  int
	Removed    int
	Configured int
	Skipped    int
	Failed     int
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	case StatusSuccess:
		switch r.Verb {
		case plan.VerbInstall:
			s.Installed++
		case plan.VerbRemove:
			s.Removed++
		case plan.VerbConfigure:
			s.Configured++
		}
	}
}

// FailedItems returns the names of failed items in execution order.
func (s Summary) FailedItems() []string {
	var names []string
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			names = append(names, r.Item)
		}
	}
	return names
}

// Started returns the time of the first result, or the zero time.
func (s Summary) Started() time.Time {
	if len(s.Results) == 0 {
		return time.Time{}
	}
	return s.Results[0].Time
}

// Recorder collects the results of one run. Every result is written to the
// durable log before it is added to the summary.
type Recorder struct {
	log     Appender
	summary Summary
}

// NewRecorder starts recording run for batch.
func NewRecorder(log Appender, run, batch string, mode config.Mode) *Recorder {
	return &Recorder{
		log:     log,
		summary: Summary{Run: run, Batch: batch, Mode: mode},
	}
}

// Record persists r and adds it to the summary. A failed write returns a
// LOG_WRITE error and leaves the summary unchanged.
func (rec *Recorder) Record(r Result) error {
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}
	entry := Entry{Run: rec.summary.Run, Batch: rec.summary.Batch, Mode: rec.summary.Mode, Result: r}
	if err := rec.log.Append(entry); err != nil {
		return ferrors.Wrapf(err, ferrors.ErrLogWrite, "record %s", r.Item)
	}
	rec.summary.add(r)
	return nil
}

// Summary returns a copy of the aggregate so far.
func (rec *Recorder) Summary() Summary {
	s := rec.summary
	s.Results = append([]Result(nil), rec.summary.Results...)
	return s
}
