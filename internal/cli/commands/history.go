package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	Logs  bool
	Prune time.Duration
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the state database.

Without arguments, lists the most recent runs. With a run id, shows the
per-model outcome of that run and, with --logs, its run log.`,
		Example: `  # List the last 20 runs
  leaprun history

  # Show one run with its log
  leaprun history 6f1c2a9e-... --logs

  # Delete runs older than 30 days
  leaprun history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Logs, "logs", false, "Include the run log when showing a run")
	cmd.Flags().DurationVar(&opts.Prune, "prune", 0, "Delete runs that started longer ago than this")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r := cc.Renderer

	if opts.Prune > 0 {
		n, err := store.DeleteRunsBefore(ctx, time.Now().Add(-opts.Prune))
		if err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Deleted %d run(s)", n))
		return nil
	}

	if len(args) == 1 {
		return showRun(cmd, r, store, args[0], opts.Logs)
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := output.HistoryOutput{Runs: make([]output.RunInfo, 0, len(runs))}
		for _, run := range runs {
			out.Runs = append(out.Runs, runInfo(run))
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	if len(runs) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Environment,
			string(run.Status),
			run.Successes,
			run.Failures,
			run.Skipped,
			output.FormatDuration(run.Duration),
		})
	}
	r.Table([]string{"Run", "Started", "Env", "Status", "OK", "Failed", "Skipped", "Duration"}, rows)
	return nil
}

func showRun(cmd *cobra.Command, r *output.Renderer, store state.Store, id string, withLogs bool) error {
	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	models, err := store.GetModelRuns(ctx, id)
	if err != nil {
		return err
	}

	info := runInfo(run)
	for _, m := range models {
		info.Models = append(info.Models, output.ModelRunInfo{
			Model:       m.Model,
			Status:      string(m.Status),
			Kind:        m.Kind,
			Rows:        m.Rows,
			ExecutionMS: m.ExecutionTime.Milliseconds(),
			Error:       m.Error,
			ErrorKind:   string(m.ErrorKind),
		})
	}
	if withLogs {
		logs, err := store.GetRunLogs(ctx, id)
		if err != nil {
			return err
		}
		for _, entry := range logs {
			info.Logs = append(info.Logs, entry.String())
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(1, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Environment", run.Environment))
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.DateTime)))
	r.Println(output.FormatKeyValue("Duration", output.FormatDuration(run.Duration)))
	r.Println("")

	rows := make([][]any, 0, len(info.Models))
	for _, m := range info.Models {
		rows = append(rows, []any{m.Model, m.Status, m.Kind, m.Rows, fmt.Sprintf("%dms", m.ExecutionMS), m.Error})
	}
	r.Table([]string{"Model", "Status", "Kind", "Rows", "Time", "Error"}, rows)

	if withLogs {
		r.Println("")
		r.Header(2, "Log")
		for _, line := range info.Logs {
			r.Println(line)
		}
	}
	return nil
}

func runInfo(run *state.Run) output.RunInfo {
	return output.RunInfo{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:  run.Duration.Milliseconds(),
		TotalModels: run.TotalModels,
		Successes:   run.Successes,
		Failures:    run.Failures,
		Skipped:     run.Skipped,
	}
}
