package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/dag"
)

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph (DAG) of all models.

Models are grouped by execution level: every model of a level depends
only on models of earlier levels, so one level can run concurrently.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  leaprun dag

  # Output as JSON
  leaprun dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
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
		return dagJSON(r, d)
	case output.ModeMarkdown:
		dagMarkdown(r, d)
	default:
		dagText(r, d)
	}
	return nil
}

func edgeCount(d *dag.DAG) int {
	n := 0
	for _, name := range d.ExecutionOrder() {
		n += len(d.Dependencies(name))
	}
	return n
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, d *dag.DAG) {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")
	for i, level := range d.Levels() {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, name := range level {
			r.Printf("  %s\n", styles.ModelPath.Render(name))
			if deps := d.Dependencies(name); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := d.Dependents(name); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}
	r.Muted(fmt.Sprintf("Total: %d models, %d dependencies", d.Len(), edgeCount(d)))
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, d *dag.DAG) {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range d.Levels() {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
		for _, name := range level {
			r.Printf("- %s\n", name)
			if deps := d.Dependencies(name); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := d.Dependents(name); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Models", fmt.Sprintf("%d", d.Len())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", edgeCount(d))))
}

// dagJSON outputs DAG in JSON format.
func dagJSON(r *output.Renderer, d *dag.DAG) error {
	levels := d.Levels()
	out := output.DAGOutput{
		Levels:      make([]output.DAGLevel, 0, len(levels)),
		TotalModels: d.Len(),
		TotalEdges:  edgeCount(d),
	}
	for i, level := range levels {
		l := output.DAGLevel{Level: i, Models: make([]output.DAGNode, 0, len(level))}
		for _, name := range level {
			l.Models = append(l.Models, output.DAGNode{
				Name:      name,
				DependsOn: nonNil(d.Dependencies(name)),
				UsedBy:    nonNil(d.Dependents(name)),
			})
		}
		out.Levels = append(out.Levels, l)
	}
	return r.JSON(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
