package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/materialize"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
)

const (
	replPrompt     = "leaprun> "
	replContPrompt = "    ...> "
)

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, db adapter.Adapter, opts *QueryOptions) error {
	ctx := cmd.Context()

	// Model names complete after .show; a broken project still gets a REPL.
	var models []string
	if project, err := cc.LoadProject(); err == nil {
		for _, m := range project.Models {
			models = append(models, m.Name)
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "query_history"),
		AutoComplete:    newREPLCompleter(models),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "leaprun query REPL (target: %s, schema: %s)\n", cc.Cfg.Target.Type, cc.Cfg.Target.Schema)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, cc, db, line, opts.Format); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := buf.String()
		buf.Reset()
		if err := executeAndRender(ctx, out, db, query, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}
}

// handleDotCommand runs a REPL command and reports whether to quit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, cc *CommandContext, db adapter.Adapter, line, format string) bool {
	parts := strings.Fields(line)
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".show":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .show <model>")
			return false
		}
		tbl, err := materialize.New(db, cc.Logger).ReadTable(ctx, cc.Cfg.Target.Schema, parts[1], 20)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		if err := renderTable(out, tbl.Columns, tbl.Rows, format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .show <model>   Show the first rows of a model's relation
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for model names after .show
`
	_, _ = fmt.Fprintln(w, help)
}

func newREPLCompleter(models []string) *readline.PrefixCompleter {
	show := make([]readline.PrefixCompleterInterface, 0, len(models))
	for _, m := range models {
		show = append(show, readline.PcItem(m))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".show", show...),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
