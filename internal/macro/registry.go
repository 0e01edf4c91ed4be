package macro

import (
	"fmt"
	"maps"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ReservedNamespaces are template globals a macro file may not shadow.
var ReservedNamespaces = []string{
	"asset", "config", "env", "is_incremental", "ref", "source", "target", "this",
}

// Registry holds loaded macro namespaces.
type Registry struct {
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*LoadedModule)}
}

// LoadDir loads every macro file in dir into a new registry.
func LoadDir(dir string) (*Registry, error) {
	modules, err := NewLoader(dir).Load()
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a module. Reserved and duplicate namespaces are rejected.
func (r *Registry) Register(m *LoadedModule) error {
	if slices.Contains(ReservedNamespaces, m.Namespace) {
		return &LoadError{File: m.Path, Message: fmt.Sprintf("namespace %q is reserved", m.Namespace)}
	}
	if existing, ok := r.modules[m.Namespace]; ok {
		return &LoadError{File: m.Path, Message: fmt.Sprintf("namespace %q already defined by %s", m.Namespace, existing.Path)}
	}
	r.modules[m.Namespace] = m
	return nil
}

// Has reports whether a namespace is registered.
func (r *Registry) Has(namespace string) bool {
	_, ok := r.modules[namespace]
	return ok
}

// Get returns a registered module.
func (r *Registry) Get(namespace string) (*LoadedModule, bool) {
	m, ok := r.modules[namespace]
	return m, ok
}

// Len returns the number of namespaces.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the sorted namespace names.
func (r *Registry) Namespaces() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

// ToStarlarkDict returns one struct per namespace, ready to merge into
// template globals.
func (r *Registry) ToStarlarkDict() starlark.StringDict {
	out := make(starlark.StringDict, len(r.modules))
	for name, m := range r.modules {
		out[name] = starlarkstruct.FromStringDict(starlark.String(name), m.Exports)
	}
	return out
}
