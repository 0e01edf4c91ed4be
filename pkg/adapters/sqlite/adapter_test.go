package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_RelationKind(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)

	require.NoError(t, adp.Exec(ctx, `CREATE TABLE "orders" (id INTEGER)`))
	require.NoError(t, adp.Exec(ctx, `CREATE VIEW "orders_v" AS SELECT * FROM "orders"`))

	tests := []struct {
		name string
		want adapter.RelationKind
	}{
		{"orders", adapter.RelationTable},
		{"orders_v", adapter.RelationView},
		{"missing", adapter.RelationNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := adp.RelationKind(ctx, "main", tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}

	_, err := adp.RelationKind(ctx, "bad schema", "orders")
	assert.Error(t, err)
}

func TestAdapter_IndexExists(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)
	d := adp.Dialect()

	require.NoError(t, adp.Exec(ctx, `CREATE TABLE "fct_sales" (customer_id INTEGER)`))
	require.NoError(t, adp.Exec(ctx, d.CreateIndexSQL("main", "fct_sales", "fct_sales_nonunique_customer_id_idx", []string{"customer_id"}, false)))

	ok, err := adp.IndexExists(ctx, "main", "fct_sales", "fct_sales_nonunique_customer_id_idx")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adp.IndexExists(ctx, "main", "fct_sales", "nope_idx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapter_LoadCSV(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)

	path := filepath.Join(t.TempDir(), "regions.csv")
	require.NoError(t, os.WriteFile(path, []byte("code,name\nEU,Europe\nNA,North America\n"), 0o600))

	require.NoError(t, adp.LoadCSV(ctx, "main", "regions", path))

	rows, err := adp.Query(ctx, `SELECT "code", "name" FROM "main"."regions" ORDER BY "code"`)
	require.NoError(t, err)
	tbl, err := adapter.ScanTable(rows, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"EU", "Europe"}, {"NA", "North America"}}, tbl.Rows)
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))
	assert.Equal(t, "sqlite", New(nil).Dialect().Name)
}
