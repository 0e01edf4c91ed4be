// Package loader reads a project tree into models, sources, assets and
// macro namespaces.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/internal/macro"
	starctx "github.com/leapstack-labs/leaprun/internal/starlark"
	"github.com/leapstack-labs/leaprun/internal/template"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"go.starlark.net/starlark"
)

// Options locates the parts of a project.
type Options struct {
	ModelsDir   string
	MacrosDir   string
	SourcesFile string
	AssetsFile  string
	// Env is visible to procedural model files as "env"
	Env    string
	Logger *slog.Logger
}

// Project is everything a run needs, loaded from disk.
type Project struct {
	// Models in declaration order (lexical path order)
	Models  []*core.Model
	Sources core.SourceRegistry
	Assets  []core.Asset
	Macros  *macro.Registry
	// Descriptions holds frontmatter descriptions by model name
	Descriptions map[string]string
	// Diagnostics are non-fatal problems, such as an unreadable config()
	Diagnostics []template.Diagnostic
}

// Model returns the named model, or nil.
func (p *Project) Model(name string) *core.Model {
	for _, m := range p.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// LoadError is a fatal problem with one model file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Load reads macros, sources, assets and models. File-level problems are
// collected and returned together so one bad model reports alongside
// the others.
func Load(opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	macros := macro.NewRegistry()
	if opts.MacrosDir != "" {
		var err error
		if macros, err = macro.LoadDir(opts.MacrosDir); err != nil {
			return nil, fmt.Errorf("load macros: %w", err)
		}
	}

	p := &Project{Macros: macros, Sources: core.SourceRegistry{}, Descriptions: map[string]string{}}
	if opts.SourcesFile != "" {
		src, err := LoadSources(opts.SourcesFile)
		if err != nil {
			return nil, err
		}
		p.Sources = src
	}
	if opts.AssetsFile != "" {
		assets, err := LoadAssets(opts.AssetsFile)
		if err != nil {
			return nil, err
		}
		p.Assets = assets
	}

	if opts.ModelsDir == "" {
		return p, nil
	}

	paths, err := modelFiles(opts.ModelsDir)
	if err != nil {
		return nil, err
	}

	predeclared := macros.ToStarlarkDict()
	predeclared["env"] = starlark.String(opts.Env)

	var errs []error
	seen := map[string]string{}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if prev, dup := seen[name]; dup {
			errs = append(errs, &LoadError{Path: path, Err: fmt.Errorf("model %q already defined in %s", name, prev)})
			continue
		}
		seen[name] = path

		content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from walking the models directory
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}

		var m *core.Model
		if filepath.Ext(path) == ".star" {
			m, err = ParseProcedural(path, name, content, predeclared)
		} else {
			var fm *Frontmatter
			var diags []template.Diagnostic
			m, fm, diags, err = ParseDeclarative(path, name, string(content))
			for _, d := range diags {
				logger.Warn("model config", "model", name, "diagnostic", d.String())
			}
			p.Diagnostics = append(p.Diagnostics, diags...)
			if fm != nil && fm.Description != "" {
				p.Descriptions[name] = fm.Description
			}
		}
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}
		logger.Debug("loaded model", "model", m.Name, "kind", m.Kind.String(), "depends_on", m.DependsOn)
		p.Models = append(p.Models, m)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// modelFiles lists .sql and .star files under dir in lexical order.
func modelFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".sql", ".star":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk models: %w", err)
	}
	return paths, nil
}

// ParseDeclarative builds a model from SQL content. The config() call
// wins over frontmatter keys. Unreadable templates are not fatal here:
// the model keeps its explicit dependencies and fails when rendered.
func ParseDeclarative(path, name, content string) (*core.Model, *Frontmatter, []template.Diagnostic, error) {
	if _, err := ident.Validate(name); err != nil {
		return nil, nil, nil, err
	}

	fm, body, err := ExtractFrontmatter(content)
	if err != nil {
		return nil, nil, nil, err
	}

	m := &core.Model{Name: name, Kind: core.KindDeclarative, Body: body, Path: path}
	if fm != nil {
		m.Config = fm.Config
		m.DependsOn = union(nil, fm.DependsOn)
	}

	var diags []template.Diagnostic
	sites, err := template.Scan(body, path)
	if err != nil {
		diags = append(diags, template.Diagnostic{Pos: template.Position{File: path}, Message: err.Error()})
	} else {
		cfg, cfgDiags := template.ConfigFromSites(sites, path)
		diags = append(diags, cfgDiags...)
		m.Config = m.Config.Merge(cfg)
		m.DependsOn = union(m.DependsOn, template.Refs(sites))
	}

	if err := finish(m); err != nil {
		return nil, nil, diags, err
	}
	return m, fm, diags, nil
}

// ParseProcedural builds a model from a .star file.
func ParseProcedural(path, name string, content []byte, predeclared starlark.StringDict) (*core.Model, error) {
	if _, err := ident.Validate(name); err != nil {
		return nil, err
	}
	mod, err := starctx.LoadProcedural(path, content, predeclared)
	if err != nil {
		return nil, err
	}
	cfg, err := core.DecodeModelConfig(mod.Config)
	if err != nil {
		return nil, err
	}
	m := &core.Model{
		Name:      name,
		Kind:      core.KindProcedural,
		DependsOn: union(nil, mod.DependsOn),
		Transform: mod.TransformFunc(),
		Config:    cfg,
		Path:      path,
	}
	if err := finish(m); err != nil {
		return nil, err
	}
	return m, nil
}

func finish(m *core.Model) error {
	if err := ident.ValidateAll(m.DependsOn...); err != nil {
		return fmt.Errorf("depends_on: %w", err)
	}
	return m.Validate()
}

// union appends the names of b not already in a.
func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, n := range b {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
