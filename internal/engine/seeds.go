package engine

// seeds.go - CSV seed data loading

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaprun/internal/ident"
)

// LoadSeeds loads every CSV file in dir into a table named after the file,
// replacing existing tables. A missing directory is not an error. It
// returns the names of the loaded tables.
func (e *Engine) LoadSeeds(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	e.logger.Debug("loading seeds", "seeds_dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	if err := e.mat.EnsureSchema(ctx, e.schema); err != nil {
		return nil, err
	}

	var loaded []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		table, err := ident.Validate(strings.TrimSuffix(entry.Name(), ".csv"))
		if err != nil {
			return loaded, fmt.Errorf("seed %s: %w", entry.Name(), err)
		}
		csvPath := filepath.Join(dir, entry.Name())

		e.logger.Debug("loading seed file", "table", table, "path", csvPath)

		if err := e.db.LoadCSV(ctx, e.schema, table, csvPath); err != nil {
			return loaded, fmt.Errorf("failed to load seed %s: %w", entry.Name(), err)
		}
		loaded = append(loaded, table)
	}

	return loaded, nil
}
