package materialize

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leaprun/internal/testutil"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*sqlite.Adapter, *Materializer) {
	t.Helper()
	adp := sqlite.New(nil)
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{}))
	t.Cleanup(func() { _ = adp.Close() })

	require.NoError(t, adp.Exec(context.Background(), `CREATE TABLE "raw_orders" (id INTEGER, customer_id INTEGER, amount REAL)`))
	require.NoError(t, adp.Exec(context.Background(), `INSERT INTO "raw_orders" VALUES (1, 10, 5.0), (2, 10, 7.5), (3, 20, 1.0)`))
	return adp, New(adp, testutil.NewTestLogger(t))
}

func TestMaterialize_View(t *testing.T) {
	ctx := context.Background()
	adp, m := setup(t)

	res, err := m.Materialize(ctx, Request{
		Schema: "main",
		Target: "stg_orders",
		Policy: core.MaterializationView,
		Query:  `SELECT id, amount FROM "raw_orders"`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, res.Sample.Columns)
	assert.Len(t, res.Sample.Rows, 3)
	assert.Zero(t, res.Rows)

	kind, err := adp.RelationKind(ctx, "main", "stg_orders")
	require.NoError(t, err)
	assert.Equal(t, adapter.RelationView, kind)
}

func TestMaterialize_ViewIgnoresIndexes(t *testing.T) {
	_, m := setup(t)

	res, err := m.Materialize(context.Background(), Request{
		Schema:  "main",
		Target:  "stg_orders",
		Policy:  core.MaterializationView,
		Query:   `SELECT * FROM "raw_orders"`,
		Indexes: []core.IndexConfig{{Columns: []string{"id"}}},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ignored")
	assert.Empty(t, res.Indexes)
}

func TestMaterialize_TableReplacesView(t *testing.T) {
	ctx := context.Background()
	adp, m := setup(t)

	_, err := m.Materialize(ctx, Request{Schema: "main", Target: "orders", Policy: core.MaterializationView, Query: `SELECT * FROM "raw_orders"`})
	require.NoError(t, err)

	res, err := m.Materialize(ctx, Request{
		Schema: "main",
		Target: "orders",
		Policy: core.MaterializationTable,
		Query:  `SELECT * FROM "raw_orders" WHERE amount > 2`,
		Indexes: []core.IndexConfig{
			{Columns: []string{"customer_id"}},
			{Columns: []string{"id"}, Unique: true},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows)
	assert.Equal(t, []string{"orders_nonunique_customer_id_idx", "orders_unique_id_idx"}, res.Indexes)

	kind, err := adp.RelationKind(ctx, "main", "orders")
	require.NoError(t, err)
	assert.Equal(t, adapter.RelationTable, kind)

	for _, idx := range res.Indexes {
		ok, err := adp.IndexExists(ctx, "main", "orders", idx)
		require.NoError(t, err)
		assert.True(t, ok, idx)
	}
}

func TestMaterialize_TabularOutput(t *testing.T) {
	ctx := context.Background()
	_, m := setup(t)

	res, err := m.Materialize(ctx, Request{
		Schema: "main",
		Target: "scores",
		Policy: core.MaterializationTable,
		Table: &core.Table{
			Columns: []string{"name", "score"},
			Rows:    [][]any{{"a", int64(1)}, {"b", nil}, {"c", int64(3)}},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Rows)
	assert.Equal(t, []any{"b", nil}, res.Sample.Rows[1])

	all, err := m.ReadTable(ctx, "main", "scores", -1)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 3)
}

func TestMaterialize_TabularOutputBadColumn(t *testing.T) {
	_, m := setup(t)

	_, err := m.Materialize(context.Background(), Request{
		Schema: "main",
		Target: "scores",
		Policy: core.MaterializationTable,
		Table:  &core.Table{Columns: []string{"bad column"}, Rows: [][]any{{1}}},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrInvalidIdentifier, core.KindOf(err))
}

func TestMaterialize_TabularViewRejected(t *testing.T) {
	_, m := setup(t)

	_, err := m.Materialize(context.Background(), Request{
		Schema: "main",
		Target: "scores",
		Policy: core.MaterializationView,
		Table:  &core.Table{Columns: []string{"a"}},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrMaterialization, core.KindOf(err))
}

func TestMaterialize_InvalidTarget(t *testing.T) {
	_, m := setup(t)

	_, err := m.Materialize(context.Background(), Request{
		Target: "orders; DROP TABLE raw_orders",
		Policy: core.MaterializationTable,
		Query:  "SELECT 1",
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrInvalidIdentifier, core.KindOf(err))
}

func TestMaterialize_BadSQL(t *testing.T) {
	_, m := setup(t)

	_, err := m.Materialize(context.Background(), Request{
		Schema: "main",
		Target: "broken",
		Policy: core.MaterializationTable,
		Query:  "SELECT FROM WHERE",
	})
	require.Error(t, err)
	var merr *MaterializationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "create table", merr.Op)
	assert.Equal(t, core.ErrMaterialization, core.KindOf(err))
}

func TestMaterialize_IncrementalFullRefresh(t *testing.T) {
	ctx := context.Background()
	_, m := setup(t)

	req := Request{
		Schema:   "main",
		Target:   "fct_orders",
		Policy:   core.MaterializationIncremental,
		Query:    `SELECT * FROM "raw_orders"`,
		Strategy: core.IncrementalFullRefresh,
	}
	for range 2 {
		res, err := m.Materialize(ctx, req)
		require.NoError(t, err)
		assert.EqualValues(t, 3, res.Rows)
	}
}

func TestMaterialize_IncrementalAppend(t *testing.T) {
	ctx := context.Background()
	adp, m := setup(t)

	req := Request{
		Schema:    "main",
		Target:    "fct_orders",
		Policy:    core.MaterializationIncremental,
		Query:     `SELECT * FROM "raw_orders"`,
		UniqueKey: []string{"id"},
		Strategy:  core.IncrementalAppend,
		Indexes:   []core.IndexConfig{{Columns: []string{"id"}, Unique: true}},
	}
	_, err := m.Materialize(ctx, req)
	require.NoError(t, err)

	require.NoError(t, adp.Exec(ctx, `UPDATE "raw_orders" SET amount = 99 WHERE id = 2`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO "raw_orders" VALUES (4, 30, 2.0)`))

	req.Query = `SELECT * FROM "raw_orders" WHERE id >= 2`
	res, err := m.Materialize(ctx, req)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Rows)

	all, err := m.ReadTable(ctx, "main", "fct_orders", -1)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 4)
	amounts, _ := all.Column("amount")
	assert.Contains(t, amounts, 99.0)

	kind, err := adp.RelationKind(ctx, "main", "fct_orders_incoming")
	require.NoError(t, err)
	assert.Equal(t, adapter.RelationNone, kind)
}

type noIndexAdapter struct {
	*sqlite.Adapter
}

func (noIndexAdapter) IndexExists(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func TestMaterialize_IndexVerificationFails(t *testing.T) {
	adp, _ := setup(t)
	m := New(noIndexAdapter{adp}, nil)

	_, err := m.Materialize(context.Background(), Request{
		Schema:  "main",
		Target:  "orders",
		Policy:  core.MaterializationTable,
		Query:   `SELECT * FROM "raw_orders"`,
		Indexes: []core.IndexConfig{{Columns: []string{"id"}}},
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrMaterialization, core.KindOf(err))
	assert.Contains(t, err.Error(), "verify index orders_nonunique_id_idx")
}

// shortNameAdapter reports a dialect with a 30 byte identifier limit.
type shortNameAdapter struct {
	*sqlite.Adapter
	dialect *adapter.Dialect
}

func (s shortNameAdapter) Dialect() *adapter.Dialect { return s.dialect }

func TestMaterialize_IdentifierLimit(t *testing.T) {
	ctx := context.Background()
	adp, _ := setup(t)
	d := *adp.Dialect()
	d.MaxIdentLength = 30
	m := New(shortNameAdapter{Adapter: adp, dialect: &d}, nil)

	res, err := m.Materialize(ctx, Request{
		Schema:  "main",
		Target:  "orders",
		Policy:  core.MaterializationTable,
		Query:   `SELECT * FROM "raw_orders"`,
		Indexes: []core.IndexConfig{{Columns: []string{"customer_id", "amount"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders_nonunique_cust_bbbc4c10"}, res.Indexes)

	ok, err := adp.IndexExists(ctx, "main", "orders", "orders_nonunique_cust_bbbc4c10")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.Materialize(ctx, Request{
		Schema: "main",
		Target: "a_model_name_well_over_thirty_bytes",
		Policy: core.MaterializationView,
		Query:  `SELECT 1 AS one`,
	})
	require.Error(t, err)
	assert.Equal(t, core.ErrMaterialization, core.KindOf(err))
}

func TestIndexName_NoColumnsIsKinded(t *testing.T) {
	_, err := IndexName("fct_sales", core.IndexConfig{})
	require.Error(t, err)
	assert.Equal(t, core.ErrMaterialization, core.KindOf(err))
}

func TestIndexName(t *testing.T) {
	tests := []struct {
		name    string
		idx     core.IndexConfig
		want    string
		wantErr bool
	}{
		{"single", core.IndexConfig{Columns: []string{"customer_id"}}, "fct_sales_nonunique_customer_id_idx", false},
		{"composite unique", core.IndexConfig{Columns: []string{"a", "b"}, Unique: true}, "fct_sales_unique_a_b_idx", false},
		{"no columns", core.IndexConfig{}, "", true},
		{"bad column", core.IndexConfig{Columns: []string{"a-b"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IndexName("fct_sales", tt.idx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureSchema_NoSchemaSupport(t *testing.T) {
	_, m := setup(t)
	assert.NoError(t, m.EnsureSchema(context.Background(), "analytics"))
}
