package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModelConfig(t *testing.T) {
	cfg, err := DecodeModelConfig(map[string]any{
		"materialized":         "incremental",
		"incremental_strategy": "append",
		"unique_key":           "order_id",
		"indexes": []any{
			map[string]any{"columns": []any{"customer_id"}, "unique": false},
			"order_date",
			[]any{"a", "b"},
		},
		"tags":    []any{"finance"},
		"timeout": "90s",
		"owner":   "data-team",
	})
	require.NoError(t, err)

	assert.Equal(t, MaterializationIncremental, cfg.Materialized)
	assert.Equal(t, IncrementalAppend, cfg.Incremental)
	assert.Equal(t, []string{"order_id"}, cfg.UniqueKey)
	assert.Equal(t, []IndexConfig{
		{Columns: []string{"customer_id"}},
		{Columns: []string{"order_date"}},
		{Columns: []string{"a", "b"}},
	}, cfg.Indexes)
	assert.Equal(t, []string{"finance"}, cfg.Tags)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, map[string]any{"owner": "data-team"}, cfg.Extra)
}

func TestDecodeModelConfig_TimeoutSeconds(t *testing.T) {
	cfg, err := DecodeModelConfig(map[string]any{"timeout": int64(5)})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestDecodeModelConfig_Empty(t *testing.T) {
	cfg, err := DecodeModelConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, ModelConfig{}, cfg)
}

func TestDecodeModelConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"bad materialization", map[string]any{"materialized": "ephemeral"}},
		{"bad strategy", map[string]any{"incremental_strategy": "merge"}},
		{"index without columns", map[string]any{"indexes": []any{map[string]any{"unique": true}}}},
		{"bad timeout", map[string]any{"timeout": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeModelConfig(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestModelConfig_MergeIncremental(t *testing.T) {
	base := ModelConfig{Materialized: MaterializationTable, Extra: map[string]any{"a": 1}}
	got := base.Merge(ModelConfig{Incremental: IncrementalAppend, Extra: map[string]any{"b": 2}})
	assert.Equal(t, MaterializationTable, got.Materialized)
	assert.Equal(t, IncrementalAppend, got.Incremental)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got.Extra)
}
