package dag

import (
	"testing"

	"github.com/leapstack-labs/leaprun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model(name string, deps ...string) *core.Model {
	return &core.Model{Name: name, Kind: core.KindDeclarative, DependsOn: deps, Body: "SELECT 1"}
}

func TestBuild_OrderRespectsDependencies(t *testing.T) {
	models := []*core.Model{
		model("fct_sales", "int_orders"),
		model("int_orders", "stg_orders"),
		model("stg_orders"),
	}

	d, err := Build(models)
	require.NoError(t, err)

	assert.Equal(t, []string{"stg_orders", "int_orders", "fct_sales"}, d.ExecutionOrder())
	assert.Equal(t, [][]string{{"stg_orders"}, {"int_orders"}, {"fct_sales"}}, d.Levels())
	assert.Equal(t, []string{"stg_orders"}, d.Dependencies("int_orders"))
	assert.Equal(t, []string{"fct_sales"}, d.Dependents("int_orders"))
	assert.Equal(t, 3, d.Len())
	assert.Same(t, models[0], d.Model("fct_sales"))
}

func TestBuild_IgnoresExternalDependencies(t *testing.T) {
	d, err := Build([]*core.Model{model("a", "raw_table"), model("b", "a")})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, d.ExecutionOrder())
	assert.Empty(t, d.Dependencies("a"))
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build([]*core.Model{
		model("a", "c"),
		model("b", "a"),
		model("c", "b"),
	})
	require.Error(t, err)

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "c", "b", "a"}, ce.Path)
	assert.Equal(t, core.ErrCycleDetected, core.KindOf(err))
	assert.Contains(t, err.Error(), "a -> c -> b -> a")
}

func TestBuild_Duplicate(t *testing.T) {
	_, err := Build([]*core.Model{model("a"), model("a")})
	var dup *DuplicateModelError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
}

func TestBuild_ExecutionOrderIsCopy(t *testing.T) {
	d, err := Build([]*core.Model{model("a"), model("b", "a")})
	require.NoError(t, err)

	order := d.ExecutionOrder()
	order[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, d.ExecutionOrder())
}

func TestSelect(t *testing.T) {
	tagged := model("report", "fct_sales")
	tagged.Config.Tags = []string{"daily"}
	models := []*core.Model{
		model("stg_orders"),
		model("stg_customers"),
		model("int_orders", "stg_orders"),
		model("fct_sales", "int_orders", "stg_customers"),
		tagged,
		model("unrelated"),
	}

	names := func(ms []*core.Model) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Name
		}
		return out
	}

	tests := []struct {
		name       string
		targets    []string
		downstream bool
		want       []string
		wantErr    bool
	}{
		{
			name: "all when empty",
			want: []string{"stg_orders", "stg_customers", "int_orders", "fct_sales", "report", "unrelated"},
		},
		{
			name:    "upstream closure",
			targets: []string{"int_orders"},
			want:    []string{"stg_orders", "int_orders"},
		},
		{
			name:       "with downstream",
			targets:    []string{"int_orders"},
			downstream: true,
			want:       []string{"stg_orders", "stg_customers", "int_orders", "fct_sales", "report"},
		},
		{
			name:    "by tag",
			targets: []string{"tag:daily"},
			want:    []string{"stg_orders", "stg_customers", "int_orders", "fct_sales", "report"},
		},
		{
			name:    "unknown",
			targets: []string{"nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(models, tt.targets, tt.downstream)
			if tt.wantErr {
				var use *UnknownSelectorError
				assert.ErrorAs(t, err, &use)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}
