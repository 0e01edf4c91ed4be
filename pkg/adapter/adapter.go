// Package adapter provides the database contract for leaprun's engine.
//
// This package contains the public contract that all database adapters must
// implement, the shared database/sql plumbing, and the adapter registry.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type specifies the database type (e.g., "duckdb", "postgres", "sqlite")
	Type string `koanf:"type"`

	// Path is the file path for file-based databases (DuckDB, SQLite)
	Path string `koanf:"path"`

	// Host, Port, Database, Username and Password are used by server databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"user"`
	Password string `koanf:"password"`

	// Schema is the namespace models are written to
	Schema string `koanf:"schema"`

	// Options holds adapter specific settings (e.g., sslmode)
	Options map[string]string `koanf:"options"`

	// Params holds structured adapter specific settings, decoded by each
	// adapter with mapstructure
	Params map[string]any `koanf:"params"`
}

// RelationKind is what currently occupies a relation name.
type RelationKind int

// RelationKind values.
const (
	RelationNone RelationKind = iota
	RelationTable
	RelationView
)

func (k RelationKind) String() string {
	switch k {
	case RelationTable:
		return "table"
	case RelationView:
		return "view"
	default:
		return "none"
	}
}

// Rows wraps *sql.Rows so callers outside database/sql-backed adapters can
// still iterate a result.
type Rows struct {
	*sql.Rows
}

// Adapter defines the interface that all database adapters must implement.
// SQL text passed to Exec and Query must only contain identifiers quoted by
// the adapter's Dialect; every value travels as an argument.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// RelationKind reports whether schema.name is a table, a view, or absent.
	RelationKind(ctx context.Context, schema, name string) (RelationKind, error)

	// IndexExists checks the catalog for an index on schema.table.
	IndexExists(ctx context.Context, schema, table, index string) (bool, error)

	// LoadCSV loads a CSV file with a header row into schema.table,
	// replacing any existing table.
	LoadCSV(ctx context.Context, schema, table, path string) error

	// Dialect returns the SQL dialect for this adapter.
	Dialect() *Dialect
}
