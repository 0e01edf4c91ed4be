package core

import "fmt"

// Materialization names how a model's output is persisted.
type Materialization string

// Materialization values.
const (
	MaterializationView        Materialization = "view"
	MaterializationTable       Materialization = "table"
	MaterializationIncremental Materialization = "incremental"
)

// ParseMaterialization converts a config string to a Materialization.
// The empty string is accepted and means "use the kind default".
func ParseMaterialization(s string) (Materialization, error) {
	switch Materialization(s) {
	case "", MaterializationView, MaterializationTable, MaterializationIncremental:
		return Materialization(s), nil
	default:
		return "", fmt.Errorf("invalid materialization %q: must be one of view, table, incremental", s)
	}
}

// DefaultMaterialization returns the policy used when a model sets none.
func DefaultMaterialization(kind ModelKind) Materialization {
	if kind == KindProcedural {
		return MaterializationTable
	}
	return MaterializationView
}

// IncrementalStrategy selects how incremental models behave.
type IncrementalStrategy string

// IncrementalStrategy values.
const (
	// IncrementalFullRefresh rebuilds incremental models like tables.
	IncrementalFullRefresh IncrementalStrategy = "full_refresh"
	// IncrementalAppend inserts into an existing target.
	IncrementalAppend IncrementalStrategy = "append"
)

// ParseIncrementalStrategy converts a config string to a strategy.
func ParseIncrementalStrategy(s string) (IncrementalStrategy, error) {
	switch IncrementalStrategy(s) {
	case "":
		return IncrementalFullRefresh, nil
	case IncrementalFullRefresh, IncrementalAppend:
		return IncrementalStrategy(s), nil
	default:
		return "", fmt.Errorf("invalid incremental strategy %q: must be full_refresh or append", s)
	}
}
