package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// RunContext is the state of one run: model statuses, their results and
// the run log. It is safe for concurrent use.
type RunContext struct {
	mu       sync.Mutex
	runID    string
	order    []string
	started  time.Time
	statuses map[string]core.ModelStatus
	results  map[string]*core.Table
	outcomes map[string]core.ModelResult
	logs     []core.LogEntry
	logger   *slog.Logger
}

func newRunContext(runID string, order []string, logger *slog.Logger) *RunContext {
	rc := &RunContext{
		runID:    runID,
		order:    slices.Clone(order),
		started:  time.Now(),
		statuses: make(map[string]core.ModelStatus, len(order)),
		results:  make(map[string]*core.Table, len(order)),
		outcomes: make(map[string]core.ModelResult, len(order)),
		logger:   logger,
	}
	for _, name := range order {
		rc.statuses[name] = core.StatusPending
	}
	return rc
}

// RunID returns the run identifier.
func (rc *RunContext) RunID() string { return rc.runID }

// Status returns the current status of a model. Unknown models report
// an empty status.
func (rc *RunContext) Status(name string) core.ModelStatus {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.statuses[name]
}

// Result returns the value a completed model produced.
func (rc *RunContext) Result(name string) (*core.Table, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	t, ok := rc.results[name]
	return t, ok
}

// Results returns a snapshot of all results.
func (rc *RunContext) Results() map[string]*core.Table {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return maps.Clone(rc.results)
}

// Logs returns a copy of the run log.
func (rc *RunContext) Logs() []core.LogEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Clone(rc.logs)
}

// Log appends an entry to the run log and mirrors it to the logger.
func (rc *RunContext) Log(sev core.Severity, model, msg string) {
	entry := core.LogEntry{Time: time.Now(), Severity: sev, Model: model, Message: msg}

	rc.mu.Lock()
	rc.logs = append(rc.logs, entry)
	rc.mu.Unlock()

	level := slog.LevelInfo
	switch sev {
	case core.SeverityWarning:
		level = slog.LevelWarn
	case core.SeverityError:
		level = slog.LevelError
	}
	rc.logger.Log(context.Background(), level, msg, "run_id", rc.runID, "model", model)
}

func (rc *RunContext) start(name string) {
	rc.mu.Lock()
	rc.statuses[name] = core.StatusRunning
	rc.mu.Unlock()
	rc.Log(core.SeverityInfo, name, "started")
}

// complete records a successful model. Results are write-once.
func (rc *RunContext) complete(name string, kind core.ModelKind, result *core.Table, rows int64, elapsed time.Duration) error {
	rc.mu.Lock()
	if _, exists := rc.results[name]; exists {
		rc.mu.Unlock()
		return fmt.Errorf("result for %s already recorded", name)
	}
	rc.results[name] = result
	rc.statuses[name] = core.StatusCompleted
	rc.outcomes[name] = core.ModelResult{
		Status:        core.StatusCompleted,
		Kind:          kind,
		ExecutionTime: elapsed,
		Rows:          rows,
	}
	rc.mu.Unlock()

	rc.Log(core.SeveritySuccess, name, fmt.Sprintf("completed in %s", elapsed.Round(time.Millisecond)))
	return nil
}

func (rc *RunContext) fail(name string, kind core.ModelKind, err error, elapsed time.Duration) {
	rc.mu.Lock()
	rc.statuses[name] = core.StatusFailed
	rc.outcomes[name] = core.ModelResult{
		Status:        core.StatusFailed,
		Kind:          kind,
		ExecutionTime: elapsed,
		Error:         err.Error(),
		ErrorKind:     core.KindOf(err),
	}
	rc.mu.Unlock()

	rc.Log(core.SeverityError, name, err.Error())
}

func (rc *RunContext) skip(name string, kind core.ModelKind, reason string, errKind core.ErrorKind) {
	rc.mu.Lock()
	rc.statuses[name] = core.StatusSkipped
	rc.outcomes[name] = core.ModelResult{
		Status:    core.StatusSkipped,
		Kind:      kind,
		Error:     reason,
		ErrorKind: errKind,
	}
	rc.mu.Unlock()

	rc.Log(core.SeverityWarning, name, "skipped: "+reason)
}

// Summary aggregates the run. Models that never reached a terminal state
// are omitted from the per-model map.
func (rc *RunContext) Summary() *core.Summary {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	s := &core.Summary{
		RunID:              rc.runID,
		TotalModels:        len(rc.order),
		TotalExecutionTime: time.Since(rc.started),
		ExecutionOrder:     slices.Clone(rc.order),
		PerModel:           maps.Clone(rc.outcomes),
		StartedAt:          rc.started,
	}
	s.Tally()
	return s
}
