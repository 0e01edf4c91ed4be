package template

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leaprun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	body := `{{ config(materialized="table") }}
SELECT o.*, c.name
FROM {{ ref("stg_orders") }} o
JOIN {{ source("raw", "customers") }} c ON c.id = o.customer_id
{* if is_incremental(): *}
WHERE o.id > (SELECT max(id) FROM {{ ref(this.name) }})
{* endif *}
{* for t in [ref("stg_orders")]: *}{{ t }}{* endfor *}`

	sites, err := Scan(body, "m.sql")
	require.NoError(t, err)

	var names []string
	for _, s := range sites {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"config", "ref", "source", "is_incremental", "ref", "ref"}, names)

	assert.Equal(t, []string{"stg_orders"}, sites[1].Args)
	assert.Equal(t, 3, sites[1].Pos.Line)
	assert.Equal(t, []string{"raw", "customers"}, sites[2].Args)
	assert.False(t, sites[4].Literal, "ref(this.name) is not a literal")

	assert.Equal(t, []string{"stg_orders"}, Refs(sites))
}

func TestScan_NestedCalls(t *testing.T) {
	sites, err := Scan(`{{ utils.cents(ref("a"), "x") + asset("seed") }}`, "m.sql")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "ref", sites[0].Name)
	assert.Equal(t, "asset", sites[1].Name)
	assert.Equal(t, []string{"seed"}, sites[1].Args)
}

func TestScan_Errors(t *testing.T) {
	_, err := Scan(`{{ ref("a" }}`, "m.sql")
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)

	_, err = Scan(`{* if x: *}`, "m.sql")
	assert.Error(t, err)
}

func TestExtractConfig(t *testing.T) {
	body := `{{ config(
    materialized="table",
    indexes=[{"columns": ["customer_id"], "unique": False}],
    unique_key="order_id",
    tags=["finance"],
    timeout="2m",
    owner="data-team",
) }}
SELECT 1`

	cfg, diags := ExtractConfig(body, "m.sql")
	assert.Empty(t, diags)
	assert.Equal(t, core.MaterializationTable, cfg.Materialized)
	assert.Equal(t, []core.IndexConfig{{Columns: []string{"customer_id"}}}, cfg.Indexes)
	assert.Equal(t, []string{"order_id"}, cfg.UniqueKey)
	assert.Equal(t, []string{"finance"}, cfg.Tags)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, map[string]any{"owner": "data-team"}, cfg.Extra)
}

func TestExtractConfig_NonFatal(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		diags int
	}{
		{name: "no config", body: "SELECT 1", diags: 0},
		{name: "syntax error", body: `{{ config(materialized="table" }}`, diags: 1},
		{name: "positional argument", body: `{{ config("table") }}`, diags: 1},
		{name: "non-constant value", body: `{{ config(materialized=env) }}`, diags: 1},
		{name: "bad materialization", body: `{{ config(materialized="ephemeral") }}`, diags: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, diags := ExtractConfig(tt.body, "m.sql")
			assert.Equal(t, core.ModelConfig{}, cfg)
			assert.Len(t, diags, tt.diags)
		})
	}
}

func TestExtractConfig_FirstCallWins(t *testing.T) {
	cfg, diags := ExtractConfig(`{{ config(materialized="table") }}{{ config(materialized="view") }}`, "m.sql")
	assert.Equal(t, core.MaterializationTable, cfg.Materialized)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].String(), "multiple config() calls")
}
