package materialize

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// IndexName derives <target>_<unique|nonunique>_<col1>_<col2>_idx. Each
// column and the composed name are validated. Databases with a short
// identifier limit get the name through Dialect.FitIdent.
func IndexName(target string, idx core.IndexConfig) (string, error) {
	if len(idx.Columns) == 0 {
		return "", &MaterializationError{Target: target, Op: "derive index name", Err: fmt.Errorf("index has no columns")}
	}
	if err := ident.ValidateAll(idx.Columns...); err != nil {
		return "", err
	}
	kind := "nonunique"
	if idx.Unique {
		kind = "unique"
	}
	parts := append([]string{target, kind}, idx.Columns...)
	return ident.Join(append(parts, "idx")...)
}

// createIndexes creates each index and then confirms it in the catalog.
// An index that is missing after creation fails the materialization.
func (m *Materializer) createIndexes(ctx context.Context, schema, table string, indexes []core.IndexConfig) ([]string, error) {
	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		name, err := IndexName(table, idx)
		if err != nil {
			return nil, err
		}
		name = m.dialect.FitIdent(name)

		exists, err := m.db.IndexExists(ctx, schema, table, name)
		if err != nil {
			return nil, &MaterializationError{Target: table, Op: "inspect index " + name, Err: err}
		}
		if !exists {
			stmt := m.dialect.CreateIndexSQL(schema, table, name, idx.Columns, idx.Unique)
			if err := m.db.Exec(ctx, stmt); err != nil {
				return nil, &MaterializationError{Target: table, Op: "create index " + name, Err: err}
			}
		}

		ok, err := m.db.IndexExists(ctx, schema, table, name)
		if err != nil {
			return nil, &MaterializationError{Target: table, Op: "verify index " + name, Err: err}
		}
		if !ok {
			return nil, &MaterializationError{Target: table, Op: "verify index " + name, Err: fmt.Errorf("index not found in catalog after creation")}
		}
		m.logger.Debug("index verified", "table", table, "index", name)
		names = append(names, name)
	}
	return names, nil
}
