package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"gopkg.in/yaml.v3"
)

// sourceEntry accepts tables either as a list of names or as a map of
// logical name to physical name.
type sourceEntry struct {
	Schema string    `yaml:"schema"`
	Tables yaml.Node `yaml:"tables"`
}

// LoadSources reads a sources file:
//
//	sources:
//	  raw:
//	    schema: landing
//	    tables: [orders, customers]
//
// A missing file yields an empty registry.
func LoadSources(path string) (core.SourceRegistry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project config
	if errors.Is(err, fs.ErrNotExist) {
		return core.SourceRegistry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var doc struct {
		Sources map[string]sourceEntry `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reg := make(core.SourceRegistry, len(doc.Sources))
	for name, entry := range doc.Sources {
		if _, err := ident.Validate(name); err != nil {
			return nil, fmt.Errorf("%s: source: %w", path, err)
		}
		if _, err := ident.ValidateOptional(entry.Schema); err != nil {
			return nil, fmt.Errorf("%s: source %s: %w", path, name, err)
		}
		tables, err := decodeTables(&entry.Tables)
		if err != nil {
			return nil, fmt.Errorf("%s: source %s: %w", path, name, err)
		}
		for logical, physical := range tables {
			if _, err := ident.Validate(logical); err != nil {
				return nil, fmt.Errorf("%s: source %s: %w", path, name, err)
			}
			if _, err := ident.ValidateOptional(physical); err != nil {
				return nil, fmt.Errorf("%s: source %s: %w", path, name, err)
			}
		}
		reg[name] = core.Source{Schema: entry.Schema, Tables: tables}
	}
	return reg, nil
}

func decodeTables(n *yaml.Node) (map[string]string, error) {
	tables := map[string]string{}
	switch n.Kind {
	case 0:
		return tables, nil
	case yaml.SequenceNode:
		var names []string
		if err := n.Decode(&names); err != nil {
			return nil, err
		}
		for _, t := range names {
			tables[t] = ""
		}
	case yaml.MappingNode:
		if err := n.Decode(&tables); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("tables must be a list or a map")
	}
	return tables, nil
}

// LoadAssets reads an assets file:
//
//	assets:
//	  country_codes:
//	    kind: tabular
//	    location: data/country_codes.csv
//
// Assets are returned sorted by name. A missing file yields none.
func LoadAssets(path string) ([]core.Asset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from project config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assets: %w", err)
	}

	var doc struct {
		Assets map[string]core.Asset `yaml:"assets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	assets := make([]core.Asset, 0, len(doc.Assets))
	for name, a := range doc.Assets {
		if _, err := ident.Validate(name); err != nil {
			return nil, fmt.Errorf("%s: asset: %w", path, err)
		}
		if a.Location == "" {
			return nil, fmt.Errorf("%s: asset %s has no location", path, name)
		}
		switch a.Kind {
		case "":
			a.Kind = core.AssetOpaque
		case core.AssetTabular, core.AssetText, core.AssetOpaque:
		default:
			return nil, fmt.Errorf("%s: asset %s: unknown kind %q", path, name, a.Kind)
		}
		a.Name = name
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}
