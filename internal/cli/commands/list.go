package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/dag"
	"github.com/leapstack-labs/leaprun/internal/loader"
	"github.com/leapstack-labs/leaprun/internal/macro"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all models and their dependencies",
		Long: `List all models in execution order with their kind, materialization,
dependencies and tags.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all models (auto-detect output format)
  leaprun list

  # List models as JSON
  leaprun list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	project, err := cc.LoadProject()
	if err != nil {
		return err
	}
	d, err := dag.Build(project.Models)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(r, project, d)
	case output.ModeMarkdown:
		listMarkdown(r, project, d)
	default:
		listText(r, d)
	}
	return nil
}

// listText outputs models in styled text format.
func listText(r *output.Renderer, d *dag.DAG) {
	r.Header(1, fmt.Sprintf("Models (%d total)", d.Len()))

	rows := make([][]any, 0, d.Len())
	for i, name := range d.ExecutionOrder() {
		m := d.Model(name)
		rows = append(rows, []any{
			i + 1,
			name,
			m.Kind.String(),
			string(m.Materialized()),
			strings.Join(d.Dependencies(name), ", "),
			strings.Join(m.Config.Tags, ", "),
		})
	}
	r.Table([]string{"#", "Model", "Kind", "Materialized", "Depends On", "Tags"}, rows)
}

// listMarkdown outputs models in markdown format.
func listMarkdown(r *output.Renderer, project *loader.Project, d *dag.DAG) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Models (%d total)", d.Len())))
	r.Println("")

	for _, name := range d.ExecutionOrder() {
		m := d.Model(name)
		r.Println(output.FormatHeader(2, name))
		r.Println(output.FormatKeyValue("Kind", m.Kind.String()))
		r.Println(output.FormatKeyValue("Materialized", string(m.Materialized())))
		if m.Path != "" {
			r.Println(output.FormatKeyValue("File", m.Path))
		}
		if desc := project.Descriptions[name]; desc != "" {
			r.Println(output.FormatKeyValue("Description", desc))
		}
		if deps := d.Dependencies(name); len(deps) > 0 {
			r.Println(output.FormatKeyValue("Dependencies", strings.Join(deps, ", ")))
		}
		if dependents := d.Dependents(name); len(dependents) > 0 {
			r.Println(output.FormatKeyValue("Dependents", strings.Join(dependents, ", ")))
		}
		if len(m.Config.Tags) > 0 {
			r.Println(output.FormatKeyValue("Tags", strings.Join(m.Config.Tags, ", ")))
		}
		r.Println("")
	}
}

// listJSON outputs models and macros in JSON format.
func listJSON(r *output.Renderer, project *loader.Project, d *dag.DAG) error {
	out := output.ListOutput{
		Models: make([]output.ModelInfo, 0, d.Len()),
		Macros: []output.MacroInfo{},
	}

	for _, name := range d.ExecutionOrder() {
		m := d.Model(name)
		path := m.Path
		if path != "" {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		out.Models = append(out.Models, output.ModelInfo{
			Name:         name,
			Kind:         m.Kind.String(),
			Materialized: string(m.Materialized()),
			FilePath:     path,
			Description:  project.Descriptions[name],
			Tags:         m.Config.Tags,
			Dependencies: nonNil(d.Dependencies(name)),
			Dependents:   nonNil(d.Dependents(name)),
		})
	}

	macros, err := describeMacros(project.Macros)
	if err != nil {
		return err
	}
	out.Macros = append(out.Macros, macros...)

	return r.JSON(out)
}

// describeMacros statically lists the functions of each loaded namespace.
func describeMacros(reg *macro.Registry) ([]output.MacroInfo, error) {
	if reg == nil {
		return nil, nil
	}
	var out []output.MacroInfo
	for _, ns := range reg.Namespaces() {
		mod, _ := reg.Get(ns)
		doc, err := macro.Describe(mod.Path)
		if err != nil {
			return nil, err
		}
		info := output.MacroInfo{Namespace: ns, FilePath: mod.Path, Functions: []output.FunctionInfo{}}
		for _, f := range doc.Functions {
			info.Functions = append(info.Functions, output.FunctionInfo{Name: f.Name, Args: f.Args, Line: f.Line})
		}
		out = append(out, info)
	}
	return out, nil
}
