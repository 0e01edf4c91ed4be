package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/internal/materialize"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
	Limit  int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the target database",
		Long: `Run SQL against the configured target to inspect what a run produced.

When invoked without arguments on a terminal, enters interactive REPL mode.
Piped input is read as SQL.`,
		Example: `  # Execute SQL directly
  leaprun query "SELECT * FROM main.customer_revenue"

  # Show the rows of a model's relation
  leaprun query show customer_revenue --limit 5

  # Output as JSON
  leaprun query "SELECT count(*) AS n FROM main.stg_orders" --format json

  # Interactive mode
  leaprun query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryShowCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !stdinIsTerminal(cmd):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	ctx := cmd.Context()
	db, err := cc.OpenAdapter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if strings.TrimSpace(sqlQuery) == "" {
		return runQueryREPL(cmd, cc, db, opts)
	}
	return executeAndRender(ctx, cmd.OutOrStdout(), db, sqlQuery, opts.Format)
}

func executeAndRender(ctx context.Context, w io.Writer, db adapter.Adapter, sqlQuery, format string) error {
	rows, err := db.Query(ctx, strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";"))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(w, rows.Rows, format)
}

// newQueryShowCommand creates the show subcommand.
func newQueryShowCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <model>",
		Short: "Show the rows of a model's relation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			name, err := ident.Validate(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := cc.OpenAdapter(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			schema := cc.Cfg.Target.Schema
			tbl, err := materialize.New(db, cc.Logger).ReadTable(ctx, schema, name, opts.Limit)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), tbl.Columns, tbl.Rows, opts.Format)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum rows to show (-1 for all)")
	return cmd
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
