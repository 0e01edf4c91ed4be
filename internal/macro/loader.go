// Package macro loads user macros from .star files.
// Each file becomes a namespace named after the file, exposing its public
// top-level values to templates as <namespace>.<name>.
package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"go.starlark.net/starlark"
)

// Loader scans a directory for .star files and loads them as Starlark modules.
type Loader struct {
	dir string
}

// NewLoader creates a new macro loader for the specified directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadedModule represents an executed Starlark macro file.
type LoadedModule struct {
	// Namespace is derived from filename (e.g., "datetime" from "datetime.star")
	Namespace string

	// Path is the path to the .star file
	Path string

	// Exports contains all exported values (names not starting with _)
	Exports starlark.StringDict
}

// Load scans the macro directory and loads all .star files in name order.
// A missing directory yields no modules.
func (l *Loader) Load() ([]*LoadedModule, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access macros directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}

	modules := make([]*LoadedModule, 0, len(files))
	for _, file := range files {
		module, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// LoadFile executes a single .star file and extracts its exports.
func LoadFile(path string) (*LoadedModule, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from a glob within the macros directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if _, err := ident.Validate(namespace); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	thread := &starlark.Thread{
		Name:  "load:" + namespace,
		Print: func(_ *starlark.Thread, _ string) {},
	}

	globals, err := starlark.ExecFile(thread, path, content, nil) //nolint:staticcheck // SA1019: ExecFileOptions migration pending
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("starlark execution error: %v", err)}
	}

	exports := make(starlark.StringDict, len(globals))
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}

	return &LoadedModule{Namespace: namespace, Path: path, Exports: exports}, nil
}

// LoadError represents an error loading a macro file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}
