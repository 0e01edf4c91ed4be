package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/dag"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
	JSONOutput bool
	Watch      bool
}

// RunFailedError is returned when a run finished with failed models.
type RunFailedError struct {
	RunID    string
	Failures int
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s: %d model(s) failed", e.RunID, e.Failures)
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all models or specific models",
		Long: `Execute models in dependency order.

By default, runs all models. Use --select to run specific models.
Use --downstream to also run models that depend on the selected models.
A failed model skips everything downstream of it; the rest of the run
continues. Each run is recorded in the state database.`,
		Example: `  # Run all models
  leaprun run

  # Run specific models
  leaprun run --select stg_customers,stg_orders

  # Run a model and its downstream dependents
  leaprun run --select stg_customers --downstream

  # Run four models at a time, each limited to two minutes
  leaprun run --threads 4 --timeout 2m

  # Rerun whenever a model or macro changes
  leaprun run --watch

  # Run with JSON output for CI/CD integration
  leaprun run --json`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of models to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rerun when models, macros or registries change")
	cmd.Flags().Int("threads", 0, "Models of one level to run concurrently (default from config)")
	cmd.Flags().Duration("timeout", 0, "Per-model timeout, e.g. 30s (default from config)")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if opts.Watch {
		return watchAndRun(cmd.Context(), cc, opts)
	}
	_, err = runOnce(cmd.Context(), cc, opts)
	return err
}

// runOnce loads the project, executes it and records the run.
func runOnce(ctx context.Context, cc *CommandContext, opts *RunOptions) (*core.Summary, error) {
	r := cc.Renderer

	project, err := cc.LoadProject()
	if err != nil {
		return nil, err
	}

	models := project.Models
	if opts.Select != "" {
		models, err = dag.Select(models, splitList(opts.Select), opts.Downstream)
		if err != nil {
			return nil, err
		}
	}

	db, err := cc.OpenAdapter(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	eng, err := cc.NewEngine(db, project)
	if err != nil {
		return nil, err
	}

	if !opts.JSONOutput && r.EffectiveMode() != output.ModeJSON {
		r.Header(1, fmt.Sprintf("Running %d models", len(models)))
	}

	summary, rc, err := eng.Run(ctx, models)
	if err != nil {
		return nil, err
	}

	store, err := cc.OpenStore(ctx)
	if err != nil {
		return summary, err
	}
	defer func() { _ = store.Close() }()
	if err := store.SaveRun(context.WithoutCancel(ctx), cc.Cfg.Environment, summary, rc.Logs()); err != nil {
		return summary, fmt.Errorf("record run: %w", err)
	}

	switch {
	case opts.JSONOutput:
		emitRunEvents(r, summary)
	case r.EffectiveMode() == output.ModeJSON:
		if err := r.JSON(summary); err != nil {
			return summary, err
		}
	default:
		printSummary(r, summary)
	}

	if !summary.Succeeded() {
		return summary, &RunFailedError{RunID: summary.RunID, Failures: summary.Failures}
	}
	return summary, nil
}

func printSummary(r *output.Renderer, s *core.Summary) {
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	for i, name := range s.ExecutionOrder {
		res := s.PerModel[name]
		var line string
		switch res.Status {
		case core.StatusCompleted:
			line = fmt.Sprintf("%d. %s %s (%s, %d rows, %s)", i+1, styles.Success.Render("OK  "), name, res.Kind, res.Rows, output.FormatDuration(res.ExecutionTime))
		case core.StatusFailed:
			line = fmt.Sprintf("%d. %s %s: %s", i+1, styles.Error.Render("FAIL"), name, res.Error)
		default:
			line = fmt.Sprintf("%d. %s %s: %s", i+1, styles.Warning.Render("SKIP"), name, res.Error)
		}
		if markdown {
			line = strings.TrimSpace(line)
		}
		r.Println(line)
	}

	r.Println("")
	msg := fmt.Sprintf("Run %s: %d succeeded, %d failed, %d skipped in %s",
		s.RunID, s.Successes, s.Failures, s.Skipped, output.FormatDuration(s.TotalExecutionTime))
	if s.Succeeded() {
		r.Success(msg)
	} else {
		r.Error(msg)
	}
}

func emitRunEvents(r *output.Renderer, s *core.Summary) {
	emit := func(e output.RunEvent) {
		e.RunID = s.RunID
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
		_ = r.JSONLine(e)
	}

	emit(output.RunEvent{Event: "run_start", Models: s.ExecutionOrder})
	for _, name := range s.ExecutionOrder {
		res := s.PerModel[name]
		emit(output.RunEvent{
			Event:       "model_complete",
			Model:       name,
			Status:      string(res.Status),
			Rows:        res.Rows,
			ExecutionMS: res.ExecutionTime.Milliseconds(),
			Error:       res.Error,
			ErrorKind:   string(res.ErrorKind),
		})
	}
	status := "completed"
	if !s.Succeeded() {
		status = "failed"
	}
	emit(output.RunEvent{
		Event:       "run_complete",
		Status:      status,
		TotalModels: s.TotalModels,
		Successes:   s.Successes,
		Failures:    s.Failures,
		Skipped:     s.Skipped,
		TotalMS:     s.TotalExecutionTime.Milliseconds(),
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
