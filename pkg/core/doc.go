// Package core defines the shared language of the leaprun system.
//
// This package contains:
//   - Domain entities (Model, Table, Source, Asset)
//   - Run results (ModelStatus, ModelResult, Summary, LogEntry)
//   - The error taxonomy (ErrorKind) shared by every stage of a run
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
