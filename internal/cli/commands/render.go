package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <model>",
		Short: "Render SQL for a model with templates expanded",
		Long: `Render the final SQL for a declarative model with all template
expressions and macros expanded, exactly as a run would execute it.

Rendering connects to the target so that ref(), source() and
is_incremental() resolve the same way they do during a run. Tabular
assets used by the model are loaded and dropped again.

Output adapts to environment:
  - Terminal: Plain SQL (suitable for syntax highlighting)
  - Piped/Scripted: Markdown with code block`,
		Example: `  # Render a model's SQL
  leaprun render stg_customers

  # Render and save to file
  leaprun render stg_customers > rendered.sql

  # Render as JSON
  leaprun render stg_customers --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}

	return cmd
}

func runRender(cmd *cobra.Command, name string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	project, err := cc.LoadProject()
	if err != nil {
		return err
	}
	m := project.Model(name)
	if m == nil {
		return fmt.Errorf("model %q not found", name)
	}
	if m.Kind != core.KindDeclarative {
		return fmt.Errorf("model %q is %s and has no SQL to render", name, m.Kind)
	}

	ctx := cmd.Context()
	db, err := cc.OpenAdapter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	eng, err := cc.NewEngine(db, project)
	if err != nil {
		return err
	}
	sql, err := eng.Render(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to render model: %w", err)
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.RenderOutput{Model: name, SQL: sql})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Rendered SQL: %s", name)))
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", sql))
	default:
		r.Println(sql)
	}
	return nil
}
