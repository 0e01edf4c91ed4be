package output

// RunEvent is one JSON line emitted by `run --json`.
type RunEvent struct {
	Event       string   `json:"event"` // run_start, model_complete, run_complete
	Timestamp   string   `json:"timestamp"`
	RunID       string   `json:"run_id"`
	Models      []string `json:"models,omitempty"`
	Model       string   `json:"model,omitempty"`
	Status      string   `json:"status,omitempty"`
	Rows        int64    `json:"rows,omitempty"`
	ExecutionMS int64    `json:"execution_ms,omitempty"`
	Error       string   `json:"error,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	TotalModels int      `json:"total_models,omitempty"`
	Successes   int      `json:"successes,omitempty"`
	Failures    int      `json:"failures,omitempty"`
	Skipped     int      `json:"skipped,omitempty"`
	TotalMS     int64    `json:"total_ms,omitempty"`
}

// DAGOutput is the JSON form of `dag`.
type DAGOutput struct {
	Levels      []DAGLevel `json:"levels"`
	TotalModels int        `json:"total_models"`
	TotalEdges  int        `json:"total_edges"`
}

// DAGLevel is one execution level.
type DAGLevel struct {
	Level  int       `json:"level"`
	Models []DAGNode `json:"models"`
}

// DAGNode is one model within a level.
type DAGNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// ListOutput is the JSON form of `list`.
type ListOutput struct {
	Models []ModelInfo `json:"models"`
	Macros []MacroInfo `json:"macros"`
}

// ModelInfo describes one model.
type ModelInfo struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Materialized string   `json:"materialized"`
	FilePath     string   `json:"file_path,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// MacroInfo describes one macro namespace.
type MacroInfo struct {
	Namespace string         `json:"namespace"`
	FilePath  string         `json:"file_path"`
	Functions []FunctionInfo `json:"functions"`
}

// FunctionInfo describes one macro function.
type FunctionInfo struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	Line int      `json:"line"`
}

// RenderOutput is the JSON form of `render`.
type RenderOutput struct {
	Model string `json:"model"`
	SQL   string `json:"sql"`
}

// SeedOutput is the JSON form of `seed`.
type SeedOutput struct {
	Seeds []string `json:"seeds"`
}

// HistoryOutput is the JSON form of `history`.
type HistoryOutput struct {
	Runs []RunInfo `json:"runs"`
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID          string         `json:"id"`
	Environment string         `json:"environment"`
	Status      string         `json:"status"`
	StartedAt   string         `json:"started_at"`
	DurationMS  int64          `json:"duration_ms"`
	TotalModels int            `json:"total_models"`
	Successes   int            `json:"successes"`
	Failures    int            `json:"failures"`
	Skipped     int            `json:"skipped"`
	Models      []ModelRunInfo `json:"models,omitempty"`
	Logs        []string       `json:"logs,omitempty"`
}

// ModelRunInfo describes one model within a recorded run.
type ModelRunInfo struct {
	Model       string `json:"model"`
	Status      string `json:"status"`
	Kind        string `json:"kind"`
	Rows        int64  `json:"rows"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}
