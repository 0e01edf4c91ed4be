package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/macro"
)

// NewMacrosCommand creates the macros command.
func NewMacrosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macros",
		Short: "List macro namespaces and their functions",
		Long: `List the macro files in the macros directory. Each file is a namespace
available to templates, e.g. {{ utils.cents_to_dollars("amount") }}.`,
		Example: `  # List macros
  leaprun macros

  # List macros as JSON
  leaprun macros --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMacros(cmd)
		},
	}

	return cmd
}

func runMacros(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	reg, err := macro.LoadDir(cc.Cfg.MacrosDir)
	if err != nil {
		return err
	}
	infos, err := describeMacros(reg)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(nonNilMacros(infos))
	}

	r.Header(1, fmt.Sprintf("Macros (%d namespaces)", len(infos)))
	if len(infos) == 0 {
		r.Muted("No macros found in " + cc.Cfg.MacrosDir)
		return nil
	}
	for _, ns := range infos {
		r.Header(2, ns.Namespace)
		items := make([]string, 0, len(ns.Functions))
		for _, f := range ns.Functions {
			items = append(items, fmt.Sprintf("%s.%s(%s)", ns.Namespace, f.Name, strings.Join(f.Args, ", ")))
		}
		r.Println(output.FormatList(items))
		r.Println("")
	}
	return nil
}

func nonNilMacros(m []output.MacroInfo) []output.MacroInfo {
	if m == nil {
		return []output.MacroInfo{}
	}
	return m
}
