package engine

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/leapstack-labs/leaprun/internal/assets"
	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// UnknownReferenceError is returned by ref() for a model the calling model
// did not declare as a dependency.
type UnknownReferenceError struct {
	Model string
	Name  string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("ref(%q): %s is not a declared dependency of %s", e.Name, e.Name, e.Model)
}

// Kind implements core.KindedError.
func (e *UnknownReferenceError) Kind() core.ErrorKind { return core.ErrUnknownReference }

// UnknownSourceError is returned by source() in strict mode.
type UnknownSourceError struct {
	Source string
	Table  string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("source(%q, %q): source table is not registered", e.Source, e.Table)
}

// Kind implements core.KindedError.
func (e *UnknownSourceError) Kind() core.ErrorKind { return core.ErrUnknownSource }

// modelResolver answers macro calls for one model.
type modelResolver struct {
	ctx   context.Context
	run   *run
	model *core.Model
}

func (r *modelResolver) Ref(name string) (string, error) {
	if _, err := ident.Validate(name); err != nil {
		return "", err
	}
	if !slices.Contains(r.model.DependsOn, name) {
		return "", &UnknownReferenceError{Model: r.model.Name, Name: name}
	}
	return r.run.engine.dialect.Qualify(r.run.engine.schema, name), nil
}

func (r *modelResolver) Source(source, table string) (string, error) {
	if err := ident.ValidateAll(source, table); err != nil {
		return "", err
	}
	e := r.run.engine
	schema, physical, ok := e.sources.Lookup(source, table)
	if !ok {
		if e.strictSources {
			return "", &UnknownSourceError{Source: source, Table: table}
		}
		r.run.rc.Log(core.SeverityWarning, r.model.Name, fmt.Sprintf("source %s.%s is not registered, using bare table name", source, table))
		return e.dialect.QuoteIdent(table), nil
	}
	if _, err := ident.ValidateOptional(schema); err != nil {
		return "", err
	}
	if _, err := ident.Validate(physical); err != nil {
		return "", err
	}
	return e.dialect.Qualify(schema, physical), nil
}

func (r *modelResolver) Asset(name string) (string, error) {
	return r.run.asset(r.ctx, r.model.Name, name)
}

// IsIncremental is true only when incremental models append and the
// target already exists as a table.
func (r *modelResolver) IsIncremental() (bool, error) {
	e := r.run.engine
	if r.model.Materialized() != core.MaterializationIncremental || r.run.strategy(r.model) != core.IncrementalAppend {
		return false, nil
	}
	kind, err := e.db.RelationKind(r.ctx, e.schema, r.model.Name)
	if err != nil {
		return false, err
	}
	return kind == adapter.RelationTable, nil
}

// assetTables tracks tabular assets loaded during a run.
type assetTables struct {
	mu     sync.Mutex
	loaded map[string]string // asset name -> temp table
	owners map[string]string // temp table -> asset name
	dir    string
	ownDir bool
}

// asset resolves an asset for model. Tabular assets are loaded into a
// temporary table once per run.
func (r *run) asset(ctx context.Context, model, name string) (string, error) {
	e := r.engine
	a, err := e.assets.Lookup(name)
	if err != nil {
		return "", err
	}

	switch a.Kind {
	case core.AssetText:
		return e.assets.ReadText(ctx, a)
	case core.AssetTabular:
		table, err := r.loadTabular(ctx, a)
		if err != nil {
			return "", err
		}
		return e.dialect.Qualify(e.schema, table), nil
	default:
		return a.Location, nil
	}
}

func (r *run) loadTabular(ctx context.Context, a core.Asset) (string, error) {
	r.tmp.mu.Lock()
	defer r.tmp.mu.Unlock()

	if table, ok := r.tmp.loaded[a.Name]; ok {
		return table, nil
	}

	table, err := assets.TempTableName(r.rc.RunID(), a.Name)
	if err != nil {
		return "", err
	}
	table = r.engine.dialect.FitIdent(table)
	if other, ok := r.tmp.owners[table]; ok {
		return "", &assets.TempNameConflictError{Table: table, Asset: a.Name, Other: other}
	}

	if r.tmp.dir == "" {
		dir := r.engine.stageDir
		if dir == "" {
			if dir, err = os.MkdirTemp("", "leaprun-assets-"); err != nil {
				return "", fmt.Errorf("create asset stage dir: %w", err)
			}
			r.tmp.ownDir = true
		} else if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create asset stage dir: %w", err)
		}
		r.tmp.dir = dir
	}

	path, err := r.engine.assets.Stage(ctx, a, r.tmp.dir)
	if err != nil {
		return "", err
	}
	if err := r.engine.db.LoadCSV(ctx, r.engine.schema, table, path); err != nil {
		return "", core.WithKind(core.ErrMaterialization, fmt.Errorf("load asset %s: %w", a.Name, err))
	}

	r.tmp.loaded[a.Name] = table
	r.tmp.owners[table] = a.Name
	r.rc.Log(core.SeverityInfo, "", fmt.Sprintf("loaded asset %s into %s", a.Name, table))
	return table, nil
}

// dropAssets removes the temporary tables and staged files of a run.
func (r *run) dropAssets(ctx context.Context) {
	r.tmp.mu.Lock()
	defer r.tmp.mu.Unlock()

	for name, table := range r.tmp.loaded {
		if err := r.engine.mat.Drop(ctx, r.engine.schema, table); err != nil {
			r.rc.Log(core.SeverityWarning, "", fmt.Sprintf("failed to drop asset table %s for %s: %v", table, name, err))
		}
	}
	clear(r.tmp.loaded)
	clear(r.tmp.owners)

	if r.tmp.ownDir && r.tmp.dir != "" {
		if err := os.RemoveAll(r.tmp.dir); err != nil {
			r.engine.logger.Warn("failed to remove asset stage dir", "dir", r.tmp.dir, "error", err)
		}
	}
}
