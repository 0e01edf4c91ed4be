package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaprun/internal/template"
)

// generateGlobalsDocs generates template globals documentation.
func generateGlobalsDocs(outDir string) error {
	log.Printf("Generating globals docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	globalsPath := filepath.Clean(filepath.Join(outDir, "globals.md"))

	existingContent, err := os.ReadFile(globalsPath) //#nosec G304 -- path is built from the output directory flag
	if err != nil {
		return generateFullGlobalsDoc(globalsPath)
	}

	content := string(existingContent)
	if strings.Contains(content, generatedHeader) {
		return updateGlobalsDoc(globalsPath, content)
	}
	return appendGlobalsDoc(globalsPath, content)
}

// GlobalProperty represents a property of a global object.
type GlobalProperty struct {
	Name        string
	Type        string
	Description string
}

// GlobalObject represents a global available in templates.
type GlobalObject struct {
	Name        string
	Kind        string
	Description string
	Properties  []GlobalProperty
}

// macroDocs describes the dependency-declaring calls the loader scans for.
var macroDocs = map[string]string{
	"ref":            "`ref(\"model\")` declares a dependency and expands to the model's qualified relation.",
	"source":         "`source(\"source\", \"table\")` expands to a relation registered in sources.yaml.",
	"config":         "`config(materialized=..., indexes=[...], tags=[...])` declares the model's materialization. Arguments must be constants.",
	"asset":          "`asset(\"name\")` expands a text asset to its content, or a tabular asset to a temporary relation.",
	"is_incremental": "`is_incremental()` is true when the model is incremental, its relation exists and the run appends.",
}

// getGlobalsSchema returns the template globals.
func getGlobalsSchema() []GlobalObject {
	globals := make([]GlobalObject, 0, len(template.MacroNames)+3)
	for _, name := range template.MacroNames {
		globals = append(globals, GlobalObject{Name: name + "()", Kind: "function", Description: macroDocs[name]})
	}
	return append(globals,
		GlobalObject{
			Name:        "target",
			Kind:        "object",
			Description: "Information about the database target.",
			Properties: []GlobalProperty{
				{Name: "target.type", Type: "string", Description: "Adapter type (duckdb, postgres, sqlite)"},
				{Name: "target.schema", Type: "string", Description: "Schema models are written to"},
				{Name: "target.database", Type: "string", Description: "Database name"},
			},
		},
		GlobalObject{
			Name:        "this",
			Kind:        "object",
			Description: "Information about the model being rendered.",
			Properties: []GlobalProperty{
				{Name: "this.name", Type: "string", Description: "Model name"},
				{Name: "this.schema", Type: "string", Description: "Model schema"},
				{Name: "this.materialized", Type: "string", Description: "Effective materialization"},
			},
		},
		GlobalObject{
			Name:        "env",
			Kind:        "string",
			Description: "Environment name, e.g. \"dev\" or \"ci\". Also visible to Starlark models.",
		},
	)
}

// generateGlobalsReferenceSection generates the reference section markdown.
func generateGlobalsReferenceSection() string {
	w := NewMarkdownWriter()

	w.Header(2, "Reference")
	w.GeneratedMarker()

	for _, g := range getGlobalsSchema() {
		w.Header(3, InlineCode(g.Name))
		w.Paragraph(g.Description)

		if len(g.Properties) > 0 {
			headers := []string{"Property", "Type", "Description"}
			var rows [][]string
			for _, p := range g.Properties {
				rows = append(rows, []string{InlineCode(p.Name), p.Type, p.Description})
			}
			w.Table(headers, rows)
		}
	}

	w.Header(3, "Usage Examples")
	w.CodeBlock("sql", `{{ config(materialized="incremental") }}
SELECT *
FROM {{ source("raw", "orders") }}
{* if is_incremental() *}
WHERE ordered_at > (SELECT max(ordered_at) FROM {{ this.schema }}.{{ this.name }})
{* endif *}

-- Environment-specific SQL
{* if env == "dev" *}
LIMIT 1000
{* endif *}`)

	return w.String()
}

// generateFullGlobalsDoc generates a complete globals.md file.
func generateFullGlobalsDoc(path string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Template Globals", "Built-in functions and variables available in leaprun templates")
	w.GeneratedMarker()

	w.Header(1, "Template Globals")
	w.Paragraph("Expressions inside `{{ }}` and `{* *}` are Starlark. These names are always in scope; macro namespaces from the macros directory are added alongside them.")

	w.Header(2, "Available Globals")
	var rows [][]string
	for _, g := range getGlobalsSchema() {
		rows = append(rows, []string{InlineCode(g.Name), g.Kind, cleanDescription(firstSentence(g.Description))})
	}
	w.Table([]string{"Name", "Kind", "Description"}, rows)

	w.Text(generateGlobalsReferenceSection())

	return os.WriteFile(path, w.Bytes(), 0600)
}

// updateGlobalsDoc replaces the generated section of an existing file.
func updateGlobalsDoc(path, content string) error {
	markerIdx := strings.Index(content, "## Reference")
	if markerIdx == -1 {
		return appendGlobalsDoc(path, content)
	}

	newContent := strings.TrimSpace(content[:markerIdx]) + "\n\n" + generateGlobalsReferenceSection()
	return os.WriteFile(path, []byte(newContent), 0600)
}

// appendGlobalsDoc appends the generated reference section to an existing file.
func appendGlobalsDoc(path, content string) error {
	newContent := strings.TrimSpace(content) + "\n\n" + generateGlobalsReferenceSection()
	return os.WriteFile(path, []byte(newContent), 0600)
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
