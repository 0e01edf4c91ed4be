package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/adapter"

	_ "modernc.org/sqlite" // sqlite driver
)

var dialect = &adapter.Dialect{
	Name:              "sqlite",
	DefaultSchema:     "main",
	Placeholder:       adapter.PlaceholderQuestion,
	IndexSchemaOnName: true,
	Types: adapter.TypeMap{
		Integer:   "INTEGER",
		Float:     "REAL",
		Boolean:   "INTEGER",
		Timestamp: "TEXT",
		Text:      "TEXT",
	},
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *adapter.Dialect { return dialect }

// Connect opens the database file. Use ":memory:" (the default) for an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// An in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// master returns the quoted sqlite_master of an attached schema.
func master(schema string) (string, error) {
	if schema == "" {
		schema = dialect.DefaultSchema
	}
	if _, err := ident.Validate(schema); err != nil {
		return "", err
	}
	return dialect.QuoteIdent(schema) + ".sqlite_master", nil
}

// RelationKind reports what occupies schema.name.
func (a *Adapter) RelationKind(ctx context.Context, schema, name string) (adapter.RelationKind, error) {
	if a.DB == nil {
		return adapter.RelationNone, adapter.ErrNotConnected
	}
	m, err := master(schema)
	if err != nil {
		return adapter.RelationNone, err
	}

	var typ string
	err = a.DB.QueryRowContext(ctx,
		"SELECT type FROM "+m+" WHERE name = ? AND type IN ('table', 'view')", name).Scan(&typ)
	if errors.Is(err, sql.ErrNoRows) {
		return adapter.RelationNone, nil
	}
	if err != nil {
		return adapter.RelationNone, fmt.Errorf("failed to look up relation %s.%s: %w", schema, name, err)
	}
	return adapter.ParseRelationType(typ), nil
}

// IndexExists checks sqlite_master for the index.
func (a *Adapter) IndexExists(ctx context.Context, schema, table, index string) (bool, error) {
	m, err := master(schema)
	if err != nil {
		return false, err
	}
	return a.CountExists(ctx,
		"SELECT COUNT(*) FROM "+m+" WHERE type = 'index' AND tbl_name = ? AND name = ?",
		table, index)
}

// LoadCSV loads a CSV file into a TEXT-typed table.
func (a *Adapter) LoadCSV(ctx context.Context, schema, table, path string) error {
	return a.LoadCSVWithInserts(ctx, dialect, schema, table, path)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
