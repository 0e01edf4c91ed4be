package adapter

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// ErrNotConnected is returned by every operation before Connect succeeds.
var ErrNotConnected = errors.New("database connection not established")

// csvBatchSize bounds the number of rows per multi-row INSERT.
const csvBatchSize = 500

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// RelationKindInformationSchema resolves a relation through
// information_schema.tables. Works for DuckDB and PostgreSQL.
func (b *BaseSQLAdapter) RelationKindInformationSchema(ctx context.Context, d *Dialect, schema, name string) (RelationKind, error) {
	if b.DB == nil {
		return RelationNone, ErrNotConnected
	}

	//nolint:gosec // Placeholders come from the dialect
	query := fmt.Sprintf(`
		SELECT table_type
		FROM information_schema.tables
		WHERE table_schema = %s AND table_name = %s
	`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	var tableType string
	err := b.DB.QueryRowContext(ctx, query, schema, name).Scan(&tableType)
	if errors.Is(err, sql.ErrNoRows) {
		return RelationNone, nil
	}
	if err != nil {
		return RelationNone, fmt.Errorf("failed to look up relation %s.%s: %w", schema, name, err)
	}
	return ParseRelationType(tableType), nil
}

// ParseRelationType maps catalog type names to a RelationKind.
func ParseRelationType(s string) RelationKind {
	switch strings.ToUpper(s) {
	case "VIEW":
		return RelationView
	case "BASE TABLE", "TABLE", "LOCAL TEMPORARY":
		return RelationTable
	default:
		return RelationNone
	}
}

// CountExists runs a COUNT(*) catalog query and reports whether it is non-zero.
func (b *BaseSQLAdapter) CountExists(ctx context.Context, query string, args ...any) (bool, error) {
	if b.DB == nil {
		return false, ErrNotConnected
	}
	var n int64
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query catalog: %w", err)
	}
	return n > 0, nil
}

// LoadCSVWithInserts replaces schema.table with a TEXT-typed table holding
// the CSV contents, written with batched parameterized INSERTs.
func (b *BaseSQLAdapter) LoadCSVWithInserts(ctx context.Context, d *Dialect, schema, table, path string) error {
	if b.DB == nil {
		return ErrNotConnected
	}

	file, err := os.Open(path) //nolint:gosec // path comes from the asset catalog
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	target := d.Qualify(schema, table)
	cols := make([]string, len(headers))
	defs := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = d.QuoteIdent(strings.TrimSpace(h))
		defs[i] = cols[i] + " " + d.Types.Text
	}

	if err := b.Exec(ctx, d.DropSQL(RelationTable, schema, table)); err != nil {
		return err
	}
	if err := b.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(defs, ", "))); err != nil {
		return err
	}

	var batch [][]any
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stmt, args := BuildInsert(d, target, cols, batch)
		batch = batch[:0]
		return b.Exec(ctx, stmt, args...)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row: %w", err)
		}
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		batch = append(batch, row)
		if len(batch) >= csvBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// BuildInsert returns a multi-row INSERT for rows into target with quoted
// columns, and the flattened argument list.
func BuildInsert(d *Dialect, target string, quotedCols []string, rows [][]any) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", target, strings.Join(quotedCols, ", "))

	args := make([]any, 0, len(rows)*len(quotedCols))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		sb.WriteString(d.Placeholders(len(args), len(quotedCols)))
		sb.WriteString(")")
		for j := range quotedCols {
			var v any
			if j < len(row) {
				v = row[j]
			}
			args = append(args, v)
		}
	}
	return sb.String(), args
}

// ScanTable reads up to limit rows into a core.Table and closes rows.
// A negative limit reads everything.
func ScanTable(rows *Rows, limit int) (*core.Table, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := &core.Table{Columns: cols}
	for rows.Next() {
		if limit >= 0 && len(out.Rows) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
