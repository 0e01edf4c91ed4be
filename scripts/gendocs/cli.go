package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leaprun/internal/cli"
	"github.com/leapstack-labs/leaprun/internal/config"
)

// setting documents one configuration key.
type setting struct {
	key  string
	desc string
}

var settings = []setting{
	{"models_dir", "Models directory"},
	{"macros_dir", "Macro namespaces directory"},
	{"seeds_dir", "Seed CSV directory"},
	{"sources_file", "Source registry"},
	{"assets_file", "Asset registry"},
	{"state_path", "Run history database"},
	{"environment", "Environment name, exposed to templates as env"},
	{"threads", "Models of one DAG level run concurrently"},
	{"model_timeout", "Per-model time limit, e.g. 30s"},
	{"sample_size", "Rows read back after each model"},
	{"strict_sources", "Fail source() calls for unregistered sources"},
	{"incremental.strategy", "full_refresh or append"},
	{"target.type", "Target adapter"},
	{"target.database", "Target database or file path"},
	{"target.schema", "Schema models are written to"},
	{"target.password", "Target password"},
	{"object_store.endpoint", "S3-compatible endpoint for s3:// assets"},
	{"output", "Output format"},
}

// documented lists the commands that get a page, depth first. Subcommand
// pages are named parent_child.
func documented(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			if sub.Hidden || !sub.IsAvailableCommand() || sub.Name() == "help" {
				continue
			}
			out = append(out, sub)
			walk(sub)
		}
	}
	walk(root)
	return out
}

func pageName(cmd *cobra.Command) string {
	path := strings.Fields(cmd.CommandPath())
	return strings.Join(path[1:], "_")
}

// generateCLIDocs writes index.md plus one page per command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := documented(root)

	pages := map[string][]byte{"index.md": cliIndex(root, cmds)}
	for _, cmd := range cmds {
		pages[pageName(cmd)+".md"] = commandPage(cmd)
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

func cliIndex(root *cobra.Command, cmds []*cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for leaprun")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/leaprun/cmd/leaprun@latest\nleaprun <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range cmds {
		name := strings.TrimPrefix(cmd.CommandPath(), root.Name()+" ")
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(name), pageName(cmd))
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Table(flagHeaders, flagRows(root.PersistentFlags()))

	w.Header(2, "Configuration")
	w.Paragraph(fmt.Sprintf("Settings are read from %s at the project root, then %s environment variables, then flags; later sources win. A double underscore in a variable name nests keys.",
		InlineCode(config.ConfigFileName), InlineCode(config.EnvPrefix+"*")))
	rows = rows[:0]
	for _, s := range settings {
		def := ""
		if v, ok := config.Default(s.key); ok {
			def = InlineCode(fmt.Sprint(v))
		}
		rows = append(rows, []string{InlineCode(s.key), InlineCode(config.EnvVar(s.key)), def, s.desc})
	}
	w.Table([]string{"Key", "Variable", "Default", "Description"}, rows)

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, or a run in which a model failed"},
	})
	return w.Bytes()
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.CommandPath(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.CommandPath())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() && !cmd.Runnable() {
		use = cmd.CommandPath() + " <subcommand>"
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.Paragraph("Aliases: " + strings.Join(aliases, ", "))
	}

	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(sub.Name()), pageName(sub))
				rows = append(rows, []string{link, cleanDescription(sub.Short)})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		w.Table(flagHeaders, flagRows(cmd.LocalFlags()))
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Header(2, "Global Options")
		w.Table(flagHeaders, flagRows(cmd.InheritedFlags()))
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w.Bytes()
}

var flagHeaders = []string{"Option", "Short", "Default", "Description"}

func flagRows(flags *pflag.FlagSet) [][]string {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = InlineCode("-" + f.Shorthand)
		}
		def := f.DefValue
		if def != "" && def != "[]" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		} else if def == "[]" {
			def = ""
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	return rows
}

// dedent strips the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.TrimSpace(s)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
