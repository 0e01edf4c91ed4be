package core

import (
	"fmt"
	"time"
)

// Severity classifies a run log entry.
type Severity string

// Severity levels for run logs.
const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// LogEntry is one line of the run log.
type LogEntry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Model    string    `json:"model,omitempty"`
	Message  string    `json:"message"`
}

func (e LogEntry) String() string {
	if e.Model == "" {
		return fmt.Sprintf("%s [%s] %s", e.Time.Format(time.RFC3339), e.Severity, e.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", e.Time.Format(time.RFC3339), e.Severity, e.Model, e.Message)
}
