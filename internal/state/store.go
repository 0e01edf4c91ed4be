// Package state persists run history in SQLite.
// It records each finished run with its per-model outcomes and run log.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the overall outcome of a stored run.
type RunStatus string

// RunStatus values.
const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one stored run.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	Duration    time.Duration
	TotalModels int
	Successes   int
	Failures    int
	Skipped     int
}

// ModelRun is the stored outcome of one model in a run.
type ModelRun struct {
	RunID         string
	Model         string
	Position      int
	Status        core.ModelStatus
	Kind          string
	ExecutionTime time.Duration
	Rows          int64
	Error         string
	ErrorKind     core.ErrorKind
}

// Store is the run history.
type Store interface {
	SaveRun(ctx context.Context, env string, summary *core.Summary, logs []core.LogEntry) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetModelRuns(ctx context.Context, runID string) ([]*ModelRun, error)
	GetRunLogs(ctx context.Context, runID string) ([]core.LogEntry, error)
	Close() error
}
