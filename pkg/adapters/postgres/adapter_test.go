package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leaprun/internal/materialize"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:     "defaults",
			config:   adapter.Config{Database: "mydb"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp)
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.Dialect().Name)
	assert.Equal(t, "$2", adp.Dialect().FormatPlaceholder(2))
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := adp.IndexExists(ctx, "public", "t", "i")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.ErrorIs(t, adp.LoadCSV(ctx, "public", "t", "/tmp/test.csv"), adapter.ErrNotConnected)
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	factory, ok := adapter.Get("postgres")
	require.True(t, ok)

	_, ok = factory(nil).(*Adapter)
	assert.True(t, ok, "factory should return *Adapter")
}

func TestAdapter_CatalogQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname = $3")).
		WithArgs("analytics", "fct_sales", "fct_sales_nonunique_customer_id_idx").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_schema = $1 AND table_name = $2")).
		WithArgs("analytics", "fct_sales").
		WillReturnRows(sqlmock.NewRows([]string{"table_type"}).AddRow("BASE TABLE"))

	adp := New(nil)
	adp.DB = db
	ctx := context.Background()

	ok, err := adp.IndexExists(ctx, "analytics", "fct_sales", "fct_sales_nonunique_customer_id_idx")
	require.NoError(t, err)
	assert.True(t, ok)

	kind, err := adp.RelationKind(ctx, "analytics", "fct_sales")
	require.NoError(t, err)
	assert.Equal(t, adapter.RelationTable, kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DropCascades(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_schema = $1 AND table_name = $2")).
		WithArgs("public", "stg_orders").
		WillReturnRows(sqlmock.NewRows([]string{"table_type"}).AddRow("BASE TABLE"))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "public"."stg_orders" CASCADE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_schema = $1 AND table_name = $2")).
		WithArgs("public", "int_orders").
		WillReturnRows(sqlmock.NewRows([]string{"table_type"}).AddRow("VIEW"))
	mock.ExpectExec(regexp.QuoteMeta(`DROP VIEW IF EXISTS "public"."int_orders" CASCADE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	adp := New(nil)
	adp.DB = db
	m := materialize.New(adp, nil)
	ctx := context.Background()

	require.NoError(t, m.Drop(ctx, "public", "stg_orders"))
	require.NoError(t, m.Drop(ctx, "public", "int_orders"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialect_IdentifierLimit(t *testing.T) {
	d := New(nil).Dialect()
	assert.Equal(t, 63, d.MaxIdentLength)
	assert.True(t, d.DropCascade)
}
