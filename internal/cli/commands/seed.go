package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/loader"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed data from CSV files",
		Long: `Load seed data from CSV files in the seeds directory into the database.

Each file becomes a table named after the file, replacing any existing
table. Seeds are typically used for reference data like country codes,
status enums, or small lookup tables that models read with source().

Use --output to override: auto, text, markdown, json`,
		Example: `  # Load all seeds
  leaprun seed

  # Load seeds from a specific directory
  leaprun seed --seeds-dir ./data/seeds`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd)
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := cc.OpenAdapter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Seeds need no models.
	eng, err := cc.NewEngine(db, &loader.Project{Sources: core.SourceRegistry{}})
	if err != nil {
		return err
	}
	loaded, err := eng.LoadSeeds(ctx, cc.Cfg.SeedsDir)

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if jerr := r.JSON(output.SeedOutput{Seeds: nonNil(loaded)}); jerr != nil {
			return jerr
		}
	default:
		r.Header(1, "Seeds")
		if len(loaded) == 0 && err == nil {
			r.Muted("No seed files found in " + cc.Cfg.SeedsDir)
		}
		for _, table := range loaded {
			r.Success(fmt.Sprintf("%s.%s", eng.Schema(), table))
		}
	}
	return err
}
