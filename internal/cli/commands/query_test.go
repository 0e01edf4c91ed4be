package commands

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// sqlite driver for test database.
	_ "modernc.org/sqlite"
)

// setupQueryDB creates a warehouse with a small customers table.
func setupQueryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, country TEXT);
		INSERT INTO customers (id, name, country) VALUES
		(1, 'Ada', 'UK'),
		(2, 'Grace', NULL);
	`)
	require.NoError(t, err)
	return db
}

func queryRows(t *testing.T, db *sql.DB, query string) *sql.Rows {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), query)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rows.Close() })
	return rows
}

func TestRenderResults_Table(t *testing.T) {
	db := setupQueryDB(t)
	rows := queryRows(t, db, "SELECT id, name, country FROM customers ORDER BY id")

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, rows, "table"))

	out := buf.String()
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Grace")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderResults_JSON(t *testing.T) {
	db := setupQueryDB(t)
	rows := queryRows(t, db, "SELECT name FROM customers ORDER BY id")

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, rows, "json"))

	out := buf.String()
	assert.Contains(t, out, `"name": "Ada"`)
	assert.Contains(t, out, `"name": "Grace"`)
}

func TestRenderResults_CSV(t *testing.T) {
	db := setupQueryDB(t)
	rows := queryRows(t, db, "SELECT id, name FROM customers ORDER BY id")

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, rows, "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name", lines[0])
	assert.Equal(t, "1,Ada", lines[1])
}

func TestRenderResults_Markdown(t *testing.T) {
	db := setupQueryDB(t)
	rows := queryRows(t, db, "SELECT id, name FROM customers ORDER BY id")

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, rows, "md"))

	out := buf.String()
	assert.Contains(t, out, "| --- |")
	assert.Contains(t, out, "| 1 | Ada |")
	assert.NotContains(t, out, "rows)")
}

func TestRenderResults_Empty(t *testing.T) {
	db := setupQueryDB(t)
	rows := queryRows(t, db, "SELECT * FROM customers WHERE 1=0")

	buf := new(bytes.Buffer)
	require.NoError(t, renderResults(buf, rows, "table"))
	assert.Contains(t, buf.String(), "(0 rows)")
}

func TestRenderTable_CSVEscaping(t *testing.T) {
	buf := new(bytes.Buffer)
	err := renderTable(buf, []string{"v"}, [][]any{{`a,"b"`}, {nil}}, "csv")
	require.NoError(t, err)

	assert.Equal(t, "v\n\"a,\"\"b\"\"\"\nNULL\n", buf.String())
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()
	assert.Equal(t, "query", cmd.Name())
	assert.NotNil(t, cmd.RunE)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "show")
	assert.NotNil(t, cmd.PersistentFlags().Lookup("format"))
}

func TestREPLCompleter(t *testing.T) {
	c := newREPLCompleter([]string{"stg_orders", "stg_customers"})

	candidates, offset := c.Do([]rune(".show stg_c"), len(".show stg_c"))
	require.Len(t, candidates, 1)
	assert.Equal(t, len("stg_c"), offset)
	assert.Equal(t, "ustomers ", string(candidates[0]))
}
