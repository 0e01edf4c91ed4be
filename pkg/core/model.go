package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ModelKind distinguishes how a model produces its output.
type ModelKind int

// ModelKind values.
const (
	// KindDeclarative models carry a templated SQL body.
	KindDeclarative ModelKind = iota
	// KindProcedural models carry a callable transform.
	KindProcedural
)

func (k ModelKind) String() string {
	switch k {
	case KindDeclarative:
		return "declarative"
	case KindProcedural:
		return "procedural"
	default:
		return "unknown"
	}
}

// TransformFunc is the body of a Procedural model. Inputs holds the
// results of the model's dependencies keyed by model name.
type TransformFunc func(ctx context.Context, inputs map[string]*Table) (*Table, error)

// Model represents a single transformation unit.
type Model struct {
	// Name is the unique model name, also the name of its output relation
	Name string
	// Kind is Declarative or Procedural
	Kind ModelKind
	// DependsOn lists upstream model names
	DependsOn []string
	// Body is the templated SQL for Declarative models
	Body string
	// Transform is the callable for Procedural models
	Transform TransformFunc
	// Config is the materialization config
	Config ModelConfig
	// Path is the file the model was loaded from, if any
	Path string
}

// Materialized returns the effective materialization of the model.
func (m *Model) Materialized() Materialization {
	if m.Config.Materialized != "" {
		return m.Config.Materialized
	}
	return DefaultMaterialization(m.Kind)
}

// Validate checks the structural consistency of a model.
func (m *Model) Validate() error {
	switch m.Kind {
	case KindDeclarative:
		if m.Transform != nil {
			return fmt.Errorf("model %s: declarative model must not carry a transform", m.Name)
		}
	case KindProcedural:
		if m.Transform == nil {
			return fmt.Errorf("model %s: procedural model has no transform", m.Name)
		}
	default:
		return fmt.Errorf("model %s: unknown kind %d", m.Name, m.Kind)
	}
	if _, err := ParseMaterialization(string(m.Config.Materialized)); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}
	if m.Kind == KindProcedural && m.Config.Materialized == MaterializationView {
		return fmt.Errorf("model %s: procedural output cannot be materialized as a view", m.Name)
	}
	return nil
}

// ModelConfig holds materialization settings for a model.
type ModelConfig struct {
	// Materialized is view, table or incremental; empty means the kind default
	Materialized Materialization
	// Indexes are created after a table is written
	Indexes []IndexConfig
	// UniqueKey drives delete-then-insert in append-mode incremental runs
	UniqueKey []string
	// Incremental overrides the run-wide incremental strategy
	Incremental IncrementalStrategy
	// Tags are free-form labels for selection
	Tags []string
	// Timeout overrides the engine-wide per-model timeout
	Timeout time.Duration
	// Extra preserves keys the runner does not interpret
	Extra map[string]any
}

// IndexConfig describes one index on a materialized table.
type IndexConfig struct {
	Columns []string `mapstructure:"columns" yaml:"columns" json:"columns"`
	Unique  bool     `mapstructure:"unique" yaml:"unique" json:"unique"`
}

// Merge overlays other onto c. Non-zero fields in other win.
func (c ModelConfig) Merge(other ModelConfig) ModelConfig {
	out := c
	if other.Materialized != "" {
		out.Materialized = other.Materialized
	}
	if len(other.Indexes) > 0 {
		out.Indexes = other.Indexes
	}
	if len(other.UniqueKey) > 0 {
		out.UniqueKey = other.UniqueKey
	}
	if other.Incremental != "" {
		out.Incremental = other.Incremental
	}
	if len(other.Tags) > 0 {
		out.Tags = other.Tags
	}
	if other.Timeout > 0 {
		out.Timeout = other.Timeout
	}
	if len(other.Extra) > 0 {
		extra := make(map[string]any, len(c.Extra)+len(other.Extra))
		maps.Copy(extra, c.Extra)
		maps.Copy(extra, other.Extra)
		out.Extra = extra
	}
	return out
}

// HasTag reports whether the config carries tag.
func (c ModelConfig) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}
