package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// DuplicateModelError is returned when two models share a name.
type DuplicateModelError struct {
	Name string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("duplicate model name %q", e.Name)
}

// DAG is the immutable dependency graph of a model set together with its
// execution order.
type DAG struct {
	graph  *Graph
	models map[string]*core.Model
	order  []string
	levels [][]string
}

// Build constructs the graph for models. Dependencies on names outside the
// set are ignored. A cycle fails with *CycleError.
func Build(models []*core.Model) (*DAG, error) {
	g, byName, err := newModelGraph(models)
	if err != nil {
		return nil, err
	}

	levels, err := g.ExecutionLevels()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	return &DAG{graph: g, models: byName, order: order, levels: levels}, nil
}

func newModelGraph(models []*core.Model) (*Graph, map[string]*core.Model, error) {
	g := NewGraph()
	byName := make(map[string]*core.Model, len(models))
	for _, m := range models {
		if err := g.AddNode(m.Name, m); err != nil {
			return nil, nil, &DuplicateModelError{Name: m.Name}
		}
		byName[m.Name] = m
	}
	for _, m := range models {
		for _, dep := range m.DependsOn {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := g.AddEdge(dep, m.Name); err != nil {
				return nil, nil, err
			}
		}
	}
	return g, byName, nil
}

// ExecutionOrder returns a copy of the topological order.
func (d *DAG) ExecutionOrder() []string {
	return slices.Clone(d.order)
}

// Levels returns a copy of the execution levels.
func (d *DAG) Levels() [][]string {
	out := make([][]string, len(d.levels))
	for i, l := range d.levels {
		out[i] = slices.Clone(l)
	}
	return out
}

// Model returns the model with the given name, or nil.
func (d *DAG) Model(name string) *core.Model {
	return d.models[name]
}

// Len returns the number of models.
func (d *DAG) Len() int {
	return len(d.order)
}

// Dependencies returns the in-set direct dependencies of name.
func (d *DAG) Dependencies(name string) []string {
	return d.graph.Parents(name)
}

// Dependents returns the direct dependents of name.
func (d *DAG) Dependents(name string) []string {
	return d.graph.Children(name)
}

// Upstream returns the transitive dependencies of names.
func (d *DAG) Upstream(names ...string) []string {
	return d.graph.Upstream(names...)
}

// Downstream returns the transitive dependents of names.
func (d *DAG) Downstream(names ...string) []string {
	return d.graph.Downstream(names...)
}

// Roots returns models without in-set dependencies.
func (d *DAG) Roots() []string {
	return d.graph.Roots()
}

// Leaves returns models nothing depends on.
func (d *DAG) Leaves() []string {
	return d.graph.Leaves()
}

// UnknownSelectorError is returned when a selector matches no model.
type UnknownSelectorError struct {
	Selector string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("selector %q matches no model", e.Selector)
}

// Select returns the subset of models needed to run targets: the targets,
// their transitive dependencies and, if downstream is set, their transitive
// dependents. A selector is either a model name or "tag:<name>". Models are
// returned in their original order. An empty target list selects everything.
func Select(models []*core.Model, targets []string, downstream bool) ([]*core.Model, error) {
	if len(targets) == 0 {
		return models, nil
	}

	g, byName, err := newModelGraph(models)
	if err != nil {
		return nil, err
	}

	var picked []string
	for _, sel := range targets {
		matched := matchSelector(models, byName, sel)
		if len(matched) == 0 {
			return nil, &UnknownSelectorError{Selector: sel}
		}
		picked = append(picked, matched...)
	}

	keep := make(map[string]bool)
	for _, n := range picked {
		keep[n] = true
	}
	for _, n := range g.Upstream(picked...) {
		keep[n] = true
	}
	if downstream {
		down := g.Downstream(picked...)
		for _, n := range down {
			keep[n] = true
		}
		// Dependents need their own inputs too.
		for _, n := range g.Upstream(down...) {
			keep[n] = true
		}
	}

	out := make([]*core.Model, 0, len(keep))
	for _, m := range models {
		if keep[m.Name] {
			out = append(out, m)
		}
	}
	return out, nil
}

func matchSelector(models []*core.Model, byName map[string]*core.Model, sel string) []string {
	if tag, ok := strings.CutPrefix(sel, "tag:"); ok {
		var out []string
		for _, m := range models {
			if m.Config.HasTag(tag) {
				out = append(out, m.Name)
			}
		}
		return out
	}
	if _, ok := byName[sel]; ok {
		return []string{sel}
	}
	return nil
}
