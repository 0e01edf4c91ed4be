package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leaprun project",
		Long: `Initialize a new leaprun project with default directory structure and configuration.

This creates:
  - models/ directory for SQL and Starlark models
  - seeds/ directory for seed data CSV files
  - macros/ directory for Starlark macros
  - leaprun.yaml configuration file

Use --example to create a working demo project with seed data, staging
and mart models, a procedural model and a macro.`,
		Example: `  # Initialize in current directory
  leaprun init

  # Initialize with a full working example
  leaprun init --example

  # Initialize in a new directory
  leaprun init my-project --example

  # Force overwrite existing config
  leaprun init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			mode := output.ModeAuto
			if f := cmd.Flags().Lookup("output"); f != nil {
				mode = output.ParseMode(f.Value.String())
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a full example project with seeds, models, and macros")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	groups := groupTemplateFiles(files)
	for _, group := range []struct{ key, title string }{
		{"config", "Configuration"},
		{"seeds", "Seeds"},
		{"models", "Models"},
		{"macros", "Macros"},
	} {
		if len(groups[group.key]) == 0 {
			continue
		}
		r.Header(2, group.title)
		for _, f := range groups[group.key] {
			r.StatusLine(f, "success", "")
		}
		r.Println("")
	}

	r.Success("leaprun project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leaprun seed     Load CSV data from seeds/")
	r.Println("  leaprun run      Execute all models in dependency order")
	r.Println("  leaprun list     View models and dependencies")
	r.Println("  leaprun dag      Show execution levels")
	return nil
}
