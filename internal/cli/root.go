// Package cli provides the command-line interface for leaprun.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/commands"
	"github.com/leapstack-labs/leaprun/internal/config"

	// Register adapters
	_ "github.com/leapstack-labs/leaprun/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leaprun/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leaprun/pkg/adapters/sqlite"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// noConfigCommands run without a loaded project configuration.
var noConfigCommands = map[string]bool{
	"help":                    true,
	"completion":              true,
	cobra.ShellCompRequestCmd: true,
	"init":                    true,
	"version":                 true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leaprun",
		Short: "leaprun - dependency-aware transformation runner",
		Long: `leaprun runs a project of SQL and Starlark models against a database.

Models declare their dependencies with ref(), are ordered into a DAG and
executed level by level. SQL models are rendered from templates with macros;
Starlark models transform the results of their inputs in process. Every run
is recorded in a local history database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if noConfigCommands[cmd.Name()] {
				return nil
			}

			loaded, err := config.Load(config.Options{
				File:  cfgFile,
				Flags: cmd.Flags(),
			})
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), loaded.Verbose)
			if loaded.File != "" {
				logger.Debug("using config file", "path", loaded.File)
			}
			logger.Debug("using target", "type", loaded.Target.Type, "schema", loaded.Target.Schema, "environment", loaded.Environment)

			ctx := commands.WithConfig(cmd.Context(), loaded)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Dependency-aware transformation runner built with Go
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: leaprun.yaml in the project root)")
	pf.String("env", "", "Environment name; selects environments.<name> overrides")
	pf.String("models-dir", "", "Path to models directory")
	pf.String("seeds-dir", "", "Path to seeds directory")
	pf.String("macros-dir", "", "Path to macros directory")
	pf.String("sources-file", "", "Path to the source registry")
	pf.String("assets-file", "", "Path to the asset registry")
	pf.String("target-type", "", "Target adapter (duckdb, postgres, sqlite)")
	pf.String("database", "", "Target database, a file path for duckdb and sqlite")
	pf.String("schema", "", "Target schema models are written to")
	pf.String("state", "", "Path to the run history database")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target-type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "postgres", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewDAGCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewMacrosCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var failed *commands.RunFailedError
		if !errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leaprun.

To load completions:

Bash:
  $ source <(leaprun completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leaprun completion bash > /etc/bash_completion.d/leaprun
  # macOS:
  $ leaprun completion bash > $(brew --prefix)/etc/bash_completion.d/leaprun

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leaprun completion zsh > "${fpath[1]}/_leaprun"

Fish:
  $ leaprun completion fish | source

  # To load completions for each session, execute once:
  $ leaprun completion fish > ~/.config/fish/completions/leaprun.fish

PowerShell:
  PS> leaprun completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
