package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderStyle selects how bound parameters are written.
type PlaceholderStyle int

// PlaceholderStyle values.
const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1, $2, ...
)

// Dialect describes the SQL surface of one database.
type Dialect struct {
	// Name is the dialect name exposed to templates as target.type
	Name string
	// DefaultSchema is used when the target config names none
	DefaultSchema string
	// Placeholder is the bound parameter style
	Placeholder PlaceholderStyle
	// CreateSchema is true if CREATE SCHEMA IF NOT EXISTS is supported
	CreateSchema bool
	// IndexSchemaOnName places the schema on the index name instead of the
	// table (SQLite: CREATE INDEX "main"."idx" ON "t" (...))
	IndexSchemaOnName bool
	// DropCascade appends CASCADE to DROP statements so relations that
	// dependent views still reference can be replaced
	DropCascade bool
	// MaxIdentLength is the longest identifier in bytes the database keeps
	// intact; zero means no limit
	MaxIdentLength int
	// Types maps inferred value types to column types
	Types TypeMap
}

// TypeMap names the column type used for each inferred Go value type.
type TypeMap struct {
	Integer   string
	Float     string
	Boolean   string
	Timestamp string
	Text      string
}

// QuoteIdent quotes an identifier, doubling embedded quotes.
func (d *Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal. Only used where a database does not
// accept a bound parameter (file paths in table functions).
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Qualify returns the quoted schema.name reference. An empty schema yields
// just the quoted name.
func (d *Dialect) Qualify(schema, name string) string {
	if schema == "" {
		return d.QuoteIdent(name)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(name)
}

// FormatPlaceholder returns the placeholder for the n-th (1-based) parameter.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns count placeholders starting at offset+1, comma separated.
func (d *Dialect) Placeholders(offset, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.FormatPlaceholder(offset + i + 1)
	}
	return strings.Join(parts, ", ")
}

// CreateIndexSQL builds the CREATE INDEX statement. All names must already
// be validated identifiers.
func (d *Dialect) CreateIndexSQL(schema, table, index string, columns []string, unique bool) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}

	kw := "CREATE INDEX"
	if unique {
		kw = "CREATE UNIQUE INDEX"
	}

	if d.IndexSchemaOnName {
		return fmt.Sprintf("%s %s ON %s (%s)", kw, d.Qualify(schema, index), d.QuoteIdent(table), strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("%s %s ON %s (%s)", kw, d.QuoteIdent(index), d.Qualify(schema, table), strings.Join(quoted, ", "))
}

// DropSQL builds the statement that removes a relation of the given kind,
// or "" when there is nothing to drop.
func (d *Dialect) DropSQL(kind RelationKind, schema, name string) string {
	var stmt string
	switch kind {
	case RelationView:
		stmt = "DROP VIEW IF EXISTS " + d.Qualify(schema, name)
	case RelationTable:
		stmt = "DROP TABLE IF EXISTS " + d.Qualify(schema, name)
	default:
		return ""
	}
	if d.DropCascade {
		stmt += " CASCADE"
	}
	return stmt
}

// FitIdent shortens a derived name to MaxIdentLength. A shortened name
// keeps its prefix and ends in 8 hex chars of the full name's name-based
// UUID, so distinct long names stay distinct.
func (d *Dialect) FitIdent(name string) string {
	if d.MaxIdentLength <= 0 || len(name) <= d.MaxIdentLength {
		return name
	}
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()[:8]
	return strings.TrimRight(name[:d.MaxIdentLength-len(sum)-1], "_") + "_" + sum
}

// ColumnType returns the column type for a Go value. nil maps to text.
func (d *Dialect) ColumnType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return d.Types.Integer
	case float32, float64:
		return d.Types.Float
	case bool:
		return d.Types.Boolean
	case time.Time:
		return d.Types.Timestamp
	default:
		return d.Types.Text
	}
}
