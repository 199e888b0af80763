// Package ledger is the durable, append-only record of every action outcome
// across runs. Each line of the log is a self-contained JSON object, so a run
// that dies halfway still leaves a readable history.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/atomikpanda/mintyforge/internal/config"
	"github.com/atomikpanda/mintyforge/internal/plan"
)

// Status is the outcome of one action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of executing one planned action. It is never
// modified once recorded.
type Result struct {
	Time     time.Time   `json:"time"`
	Item     string      `json:"item"`
	Kind     config.Kind `json:"kind"`
	Verb     plan.Verb   `json:"verb"`
	Status   Status      `json:"status"`
	ExitCode *int        `json:"exit_code,omitempty"`
	Attempts int         `json:"attempts,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Entry is one line of the durable log.
type Entry struct {
	Run   string      `json:"run"`
	Batch string      `json:"batch"`
	Mode  config.Mode `json:"mode"`
	Result
}

// Filter selects entries when reading the log. Empty fields match anything.
type Filter struct {
	Run   string
	Batch string
	Item  string
}

func (f Filter) match(e Entry) bool {
	return (f.Run == "" || e.Run == f.Run) &&
		(f.Batch == "" || e.Batch == f.Batch) &&
		(f.Item == "" || e.Item == f.Item)
}

// Appender persists log entries.
type Appender interface {
	Append(Entry) error
}

// Ledger is the log file at Path.
type Ledger struct {
	Path string
}

// New returns a Ledger writing to path.
func New(path string) *Ledger {
	return &Ledger{Path: path}
}

// Append writes e as one line and syncs it to disk before returning.
func (l *Ledger) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	return f.Close()
}

// Read loads log entries matching filter. It returns the last limit entries
// (all if limit <= 0). A missing log is empty, and malformed lines are
// skipped.
func (l *Ledger) Read(filter Filter, limit int) ([]Entry, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // a torn final line from a crashed run
		}
		if !filter.match(e) {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// HistoryFor returns every recorded result for the item called name, oldest
// first.
func (l *Ledger) HistoryFor(name string) ([]Result, error) {
	entries, err := l.Read(Filter{Item: name}, 0)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = e.Result
	}
	return results, nil
}

// Runs rebuilds the summaries of the last limit runs (all if limit <= 0),
// oldest first.
func (l *Ledger) Runs(limit int) ([]Summary, error) {
	entries, err := l.Read(Filter{}, 0)
	if err != nil {
		return nil, err
	}

	var (
		order []string
		byRun = make(map[string]*Summary)
	)
	for _, e := range entries {
		s, ok := byRun[e.Run]
		if !ok {
			s = &Summary{Run: e.Run, Batch: e.Batch, Mode: e.Mode}
			byRun[e.Run] = s
			order = append(order, e.Run)
		}
		s.add(e.Result)
	}

	if limit > 0 && len(order) > limit {
		order = order[len(order)-limit:]
	}
	runs := make([]Summary, len(order))
	for i, id := range order {
		runs[i] = *byRun[id]
	}
	return runs, nil
}

var runSeq atomic.Uint64

// NewRunID returns a unique identifier for a run starting now.
func NewRunID() string {
	return fmt.Sprintf("%s-%d-%d", time.Now().UTC().Format("20060102T150405"), os.Getpid(), runSeq.Add(1))
}
