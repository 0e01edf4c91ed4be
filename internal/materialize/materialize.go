// Package materialize persists model output as views or tables and
// creates the indexes a model asks for.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// DefaultSampleSize is the number of rows read back after materializing.
const DefaultSampleSize = 10

// maxBindParams bounds the parameters in one INSERT across the
// supported databases.
const maxBindParams = 30000

// Request describes one materialization. Exactly one of Query and Table
// is set.
type Request struct {
	Schema    string
	Target    string
	Policy    core.Materialization
	Query     string
	Table     *core.Table
	Indexes   []core.IndexConfig
	UniqueKey []string
	// Strategy applies to incremental policies only
	Strategy core.IncrementalStrategy
}

// Result reports what a materialization did.
type Result struct {
	Sample *core.Table
	// Rows is the row count of a table target, or the rows written in
	// append mode. Views report zero.
	Rows     int64
	Indexes  []string
	Warnings []string
}

// MaterializationError wraps a failed database step.
type MaterializationError struct {
	Target string
	Op     string
	Err    error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// Kind implements core.KindedError.
func (e *MaterializationError) Kind() core.ErrorKind { return core.ErrMaterialization }

// Materializer writes model output through an adapter.
type Materializer struct {
	db         adapter.Adapter
	dialect    *adapter.Dialect
	logger     *slog.Logger
	sampleSize int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithSampleSize sets how many rows are read back. Negative disables the
// read-back.
func WithSampleSize(n int) Option {
	return func(m *Materializer) { m.sampleSize = n }
}

// New creates a Materializer.
func New(db adapter.Adapter, logger *slog.Logger, opts ...Option) *Materializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Materializer{db: db, dialect: db.Dialect(), logger: logger, sampleSize: DefaultSampleSize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureSchema creates schema when the database supports schemas.
func (m *Materializer) EnsureSchema(ctx context.Context, schema string) error {
	if schema == "" || !m.dialect.CreateSchema {
		return nil
	}
	if _, err := ident.Validate(schema); err != nil {
		return err
	}
	if err := m.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+m.dialect.QuoteIdent(schema)); err != nil {
		return &MaterializationError{Target: schema, Op: "create schema", Err: err}
	}
	return nil
}

// Materialize applies req.Policy. Statements are issued one at a time and
// each completes before the next reads what it created.
func (m *Materializer) Materialize(ctx context.Context, req Request) (*Result, error) {
	if _, err := ident.Validate(req.Target); err != nil {
		return nil, err
	}
	if _, err := ident.ValidateOptional(req.Schema); err != nil {
		return nil, err
	}
	if limit := m.dialect.MaxIdentLength; limit > 0 && len(req.Target) > limit {
		return nil, &MaterializationError{Target: req.Target, Op: "prepare", Err: fmt.Errorf("name is longer than the %d bytes %s allows", limit, m.dialect.Name)}
	}
	if (req.Query == "") == (req.Table == nil) {
		return nil, &MaterializationError{Target: req.Target, Op: "prepare", Err: fmt.Errorf("exactly one of query and table is required")}
	}

	res := &Result{}
	var err error
	switch req.Policy {
	case core.MaterializationView:
		err = m.view(ctx, req, res)
	case core.MaterializationTable:
		err = m.table(ctx, req, res)
	case core.MaterializationIncremental:
		if req.Strategy == core.IncrementalAppend {
			err = m.appendIncremental(ctx, req, res)
		} else {
			err = m.table(ctx, req, res)
		}
	default:
		err = &MaterializationError{Target: req.Target, Op: "prepare", Err: fmt.Errorf("unknown materialization %q", req.Policy)}
	}
	if err != nil {
		return nil, err
	}

	if m.sampleSize >= 0 {
		sample, err := m.ReadTable(ctx, req.Schema, req.Target, m.sampleSize)
		if err != nil {
			return nil, &MaterializationError{Target: req.Target, Op: "read sample", Err: err}
		}
		res.Sample = sample
	}
	return res, nil
}

func (m *Materializer) view(ctx context.Context, req Request, res *Result) error {
	if req.Table != nil {
		return &MaterializationError{Target: req.Target, Op: "create view", Err: fmt.Errorf("tabular output cannot be a view")}
	}
	if len(req.Indexes) > 0 {
		msg := fmt.Sprintf("%s: indexes are ignored for views", req.Target)
		res.Warnings = append(res.Warnings, msg)
		m.logger.Warn("indexes ignored", "model", req.Target, "policy", req.Policy)
	}
	if err := m.drop(ctx, req.Schema, req.Target); err != nil {
		return err
	}
	target := m.dialect.Qualify(req.Schema, req.Target)
	if err := m.db.Exec(ctx, fmt.Sprintf("CREATE VIEW %s AS %s", target, req.Query)); err != nil {
		return &MaterializationError{Target: req.Target, Op: "create view", Err: err}
	}
	return nil
}

func (m *Materializer) table(ctx context.Context, req Request, res *Result) error {
	if err := m.drop(ctx, req.Schema, req.Target); err != nil {
		return err
	}
	if err := m.create(ctx, req.Schema, req.Target, req); err != nil {
		return err
	}
	names, err := m.createIndexes(ctx, req.Schema, req.Target, req.Indexes)
	if err != nil {
		return err
	}
	res.Indexes = names

	n, err := m.count(ctx, req.Schema, req.Target)
	if err != nil {
		return &MaterializationError{Target: req.Target, Op: "count rows", Err: err}
	}
	res.Rows = n
	return nil
}

// appendIncremental inserts new rows into an existing table, first
// deleting rows whose unique key matches an incoming row. Without an
// existing table it behaves like a full build.
func (m *Materializer) appendIncremental(ctx context.Context, req Request, res *Result) error {
	kind, err := m.db.RelationKind(ctx, req.Schema, req.Target)
	if err != nil {
		return &MaterializationError{Target: req.Target, Op: "inspect target", Err: err}
	}
	if kind != adapter.RelationTable {
		return m.table(ctx, req, res)
	}
	if err := ident.ValidateAll(req.UniqueKey...); err != nil {
		return err
	}

	staging, err := ident.Join(req.Target, "incoming")
	if err != nil {
		return err
	}
	staging = m.dialect.FitIdent(staging)
	if err := m.drop(ctx, req.Schema, staging); err != nil {
		return err
	}
	if err := m.create(ctx, req.Schema, staging, req); err != nil {
		return err
	}
	defer func() {
		if err := m.drop(context.WithoutCancel(ctx), req.Schema, staging); err != nil {
			m.logger.Warn("failed to drop staging table", "table", staging, "error", err)
		}
	}()

	target := m.dialect.Qualify(req.Schema, req.Target)
	source := m.dialect.Qualify(req.Schema, staging)

	if len(req.UniqueKey) > 0 {
		conds := make([]string, len(req.UniqueKey))
		for i, k := range req.UniqueKey {
			q := m.dialect.QuoteIdent(k)
			conds[i] = fmt.Sprintf("s.%s = %s.%s", q, target, q)
		}
		del := fmt.Sprintf("DELETE FROM %s WHERE EXISTS (SELECT 1 FROM %s s WHERE %s)", target, source, strings.Join(conds, " AND "))
		if err := m.db.Exec(ctx, del); err != nil {
			return &MaterializationError{Target: req.Target, Op: "delete matching rows", Err: err}
		}
	}

	if err := m.db.Exec(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, source)); err != nil {
		return &MaterializationError{Target: req.Target, Op: "insert rows", Err: err}
	}
	n, err := m.count(ctx, req.Schema, staging)
	if err != nil {
		return &MaterializationError{Target: req.Target, Op: "count rows", Err: err}
	}
	res.Rows = n

	names, err := m.createIndexes(ctx, req.Schema, req.Target, req.Indexes)
	if err != nil {
		return err
	}
	res.Indexes = names
	return nil
}

// create builds a new table from the request's query or tabular value.
func (m *Materializer) create(ctx context.Context, schema, name string, req Request) error {
	target := m.dialect.Qualify(schema, name)
	if req.Table == nil {
		if err := m.db.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", target, req.Query)); err != nil {
			return &MaterializationError{Target: name, Op: "create table", Err: err}
		}
		return nil
	}
	return m.writeTable(ctx, target, name, req.Table)
}

// writeTable creates a typed table for t and bulk-inserts its rows.
func (m *Materializer) writeTable(ctx context.Context, target, name string, t *core.Table) error {
	if len(t.Columns) == 0 {
		return &MaterializationError{Target: name, Op: "create table", Err: fmt.Errorf("result has no columns")}
	}
	if err := ident.ValidateAll(t.Columns...); err != nil {
		return err
	}

	quoted := make([]string, len(t.Columns))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = m.dialect.QuoteIdent(c)
		defs[i] = quoted[i] + " " + m.dialect.ColumnType(firstValue(t.Rows, i))
	}
	if err := m.db.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(defs, ", "))); err != nil {
		return &MaterializationError{Target: name, Op: "create table", Err: err}
	}

	batch := max(1, min(500, maxBindParams/len(t.Columns)))
	for start := 0; start < len(t.Rows); start += batch {
		end := min(start+batch, len(t.Rows))
		stmt, args := adapter.BuildInsert(m.dialect, target, quoted, t.Rows[start:end])
		if err := m.db.Exec(ctx, stmt, args...); err != nil {
			return &MaterializationError{Target: name, Op: "insert rows", Err: err}
		}
	}
	return nil
}

// firstValue returns the first non-nil value in column i, used to pick
// the column type.
func firstValue(rows [][]any, i int) any {
	for _, r := range rows {
		if i < len(r) && r[i] != nil {
			return r[i]
		}
	}
	return nil
}

// drop removes whatever relation holds name.
func (m *Materializer) drop(ctx context.Context, schema, name string) error {
	kind, err := m.db.RelationKind(ctx, schema, name)
	if err != nil {
		return &MaterializationError{Target: name, Op: "inspect target", Err: err}
	}
	stmt := m.dialect.DropSQL(kind, schema, name)
	if stmt == "" {
		return nil
	}
	if err := m.db.Exec(ctx, stmt); err != nil {
		return &MaterializationError{Target: name, Op: "drop existing relation", Err: err}
	}
	return nil
}

func (m *Materializer) count(ctx context.Context, schema, name string) (int64, error) {
	rows, err := m.db.Query(ctx, "SELECT COUNT(*) FROM "+m.dialect.Qualify(schema, name))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// ReadTable reads up to limit rows of schema.name. A negative limit
// reads everything.
func (m *Materializer) ReadTable(ctx context.Context, schema, name string, limit int) (*core.Table, error) {
	if _, err := ident.Validate(name); err != nil {
		return nil, err
	}
	q := "SELECT * FROM " + m.dialect.Qualify(schema, name)
	var args []any
	if limit >= 0 {
		q += " LIMIT " + m.dialect.FormatPlaceholder(1)
		args = append(args, limit)
	}
	rows, err := m.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return adapter.ScanTable(rows, limit)
}

// Drop removes a table or view if it exists. Used to clean up temporary
// relations at the end of a run.
func (m *Materializer) Drop(ctx context.Context, schema, name string) error {
	if _, err := ident.Validate(name); err != nil {
		return err
	}
	return m.drop(ctx, schema, name)
}
