package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Materialized(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  Materialization
	}{
		{"declarative default", Model{Kind: KindDeclarative}, MaterializationView},
		{"procedural default", Model{Kind: KindProcedural}, MaterializationTable},
		{"explicit", Model{Kind: KindDeclarative, Config: ModelConfig{Materialized: MaterializationIncremental}}, MaterializationIncremental},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.model.Materialized())
		})
	}
}

func TestModel_Validate(t *testing.T) {
	noop := func(context.Context, map[string]*Table) (*Table, error) { return &Table{}, nil }

	require.NoError(t, (&Model{Name: "a", Kind: KindDeclarative, Body: "SELECT 1"}).Validate())
	require.NoError(t, (&Model{Name: "b", Kind: KindProcedural, Transform: noop}).Validate())

	assert.Error(t, (&Model{Name: "c", Kind: KindProcedural}).Validate())
	assert.Error(t, (&Model{Name: "d", Kind: KindDeclarative, Transform: noop}).Validate())
	assert.Error(t, (&Model{Name: "e", Kind: KindDeclarative, Config: ModelConfig{Materialized: "ephemeral"}}).Validate())
	assert.Error(t, (&Model{Name: "f", Kind: KindProcedural, Transform: noop, Config: ModelConfig{Materialized: MaterializationView}}).Validate())
}

func TestModelConfig_Merge(t *testing.T) {
	base := ModelConfig{
		Materialized: MaterializationView,
		Tags:         []string{"daily"},
		Extra:        map[string]any{"owner": "data", "team": "core"},
	}
	over := ModelConfig{
		Materialized: MaterializationTable,
		Indexes:      []IndexConfig{{Columns: []string{"id"}, Unique: true}},
		Extra:        map[string]any{"owner": "finance"},
	}

	got := base.Merge(over)
	assert.Equal(t, MaterializationTable, got.Materialized)
	assert.Equal(t, []string{"daily"}, got.Tags)
	assert.Len(t, got.Indexes, 1)
	assert.Equal(t, "finance", got.Extra["owner"])
	assert.Equal(t, "core", got.Extra["team"])
	assert.Equal(t, "data", base.Extra["owner"], "merge must not mutate the receiver")
}

func TestParseIncrementalStrategy(t *testing.T) {
	s, err := ParseIncrementalStrategy("")
	require.NoError(t, err)
	assert.Equal(t, IncrementalFullRefresh, s)

	s, err = ParseIncrementalStrategy("append")
	require.NoError(t, err)
	assert.Equal(t, IncrementalAppend, s)

	_, err = ParseIncrementalStrategy("merge")
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	base := WithKind(ErrTimeout, errors.New("deadline"))
	wrapped := fmt.Errorf("model a: %w", base)

	assert.Equal(t, ErrTimeout, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, ErrTimeout))
	assert.Equal(t, ErrUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, ErrTimeout))
	assert.Nil(t, WithKind(ErrTimeout, nil))
}

func TestSummary_Tally(t *testing.T) {
	s := &Summary{
		TotalModels: 3,
		PerModel: map[string]ModelResult{
			"a": {Status: StatusCompleted, ExecutionTime: time.Millisecond},
			"b": {Status: StatusFailed},
			"c": {Status: StatusSkipped},
		},
	}
	s.Tally()
	assert.Equal(t, 1, s.Successes)
	assert.Equal(t, 1, s.Failures)
	assert.Equal(t, 1, s.Skipped)
	assert.False(t, s.Succeeded())

	s.PerModel["b"] = ModelResult{Status: StatusCompleted}
	s.Tally()
	assert.True(t, s.Succeeded())
}

func TestSourceRegistry_Lookup(t *testing.T) {
	reg := SourceRegistry{
		"raw": {Schema: "landing", Tables: map[string]string{"orders": "orders_v2", "customers": ""}},
	}

	schema, table, ok := reg.Lookup("raw", "orders")
	require.True(t, ok)
	assert.Equal(t, "landing", schema)
	assert.Equal(t, "orders_v2", table)

	_, table, ok = reg.Lookup("raw", "customers")
	require.True(t, ok)
	assert.Equal(t, "customers", table)

	schema, table, ok = reg.Lookup("raw", "unlisted")
	require.True(t, ok)
	assert.Equal(t, "landing", schema)
	assert.Equal(t, "unlisted", table)

	schema, table, ok = SourceRegistry{"shop": {Schema: "landing"}}.Lookup("shop", "orders")
	require.True(t, ok)
	assert.Equal(t, "landing", schema)
	assert.Equal(t, "orders", table)

	_, _, ok = reg.Lookup("other", "orders")
	assert.False(t, ok)
}

func TestTable_Column(t *testing.T) {
	tbl := &Table{Columns: []string{"id", "name"}, Rows: [][]any{{1, "a"}, {2, "b"}}}
	col, ok := tbl.Column("name")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, col)

	_, ok = tbl.Column("missing")
	assert.False(t, ok)

	var nilTable *Table
	assert.Equal(t, 0, nilTable.NumRows())
}
