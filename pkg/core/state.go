package core

import "time"

// ModelStatus is the lifecycle state of a model within one run.
type ModelStatus string

// ModelStatus values. A model moves pending -> running -> completed|failed,
// or pending -> skipped when an upstream model did not complete.
const (
	StatusPending   ModelStatus = "pending"
	StatusRunning   ModelStatus = "running"
	StatusCompleted ModelStatus = "completed"
	StatusFailed    ModelStatus = "failed"
	StatusSkipped   ModelStatus = "skipped"
)

// Terminal reports whether the status is final for the run.
func (s ModelStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// ModelResult is the outcome of one model in a run.
type ModelResult struct {
	Status        ModelStatus   `json:"status"`
	Kind          ModelKind     `json:"-"`
	ExecutionTime time.Duration `json:"execution_time"`
	Rows          int64         `json:"rows"`
	Error         string        `json:"error,omitempty"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty"`
}

// Summary aggregates a whole run. It is always produced, even when every
// model fails.
type Summary struct {
	RunID              string                 `json:"run_id"`
	TotalModels        int                    `json:"total_models"`
	Successes          int                    `json:"successes"`
	Failures           int                    `json:"failures"`
	Skipped            int                    `json:"skipped"`
	TotalExecutionTime time.Duration          `json:"total_execution_time"`
	ExecutionOrder     []string               `json:"execution_order"`
	PerModel           map[string]ModelResult `json:"per_model"`
	StartedAt          time.Time              `json:"started_at"`
}

// Succeeded reports overall success: no model failed.
func (s *Summary) Succeeded() bool {
	return s.Failures == 0
}

// Tally recomputes the success, failure and skip counters from PerModel.
func (s *Summary) Tally() {
	s.Successes, s.Failures, s.Skipped = 0, 0, 0
	for _, r := range s.PerModel {
		switch r.Status {
		case StatusCompleted:
			s.Successes++
		case StatusFailed:
			s.Failures++
		case StatusSkipped:
			s.Skipped++
		}
	}
}
