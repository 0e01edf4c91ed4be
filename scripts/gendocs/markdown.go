package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
)

const generatedHeader = "<!-- Generated by scripts/gendocs. Do not edit the generated section. -->"

// MarkdownWriter accumulates a markdown document block by block.
type MarkdownWriter struct {
	sb strings.Builder
}

// NewMarkdownWriter returns an empty writer.
func NewMarkdownWriter() *MarkdownWriter {
	return &MarkdownWriter{}
}

func (w *MarkdownWriter) block(s string) {
	w.sb.WriteString(s)
	w.sb.WriteString("\n\n")
}

// Frontmatter writes a YAML frontmatter block.
func (w *MarkdownWriter) Frontmatter(title, description string) {
	w.sb.WriteString(fmt.Sprintf("---\ntitle: %q\ndescription: %q\n---\n\n", title, description))
}

// GeneratedMarker marks the following content as generated.
func (w *MarkdownWriter) GeneratedMarker() { w.block(generatedHeader) }

// Header writes a header of the given level.
func (w *MarkdownWriter) Header(level int, text string) { w.block(output.FormatHeader(level, text)) }

// Paragraph writes a paragraph.
func (w *MarkdownWriter) Paragraph(text string) { w.block(strings.TrimSpace(text)) }

// CodeBlock writes a fenced code block.
func (w *MarkdownWriter) CodeBlock(lang, code string) { w.block(output.FormatCodeBlock(lang, code)) }

// BulletList writes a bullet list.
func (w *MarkdownWriter) BulletList(items []string) { w.block(output.FormatList(items)) }

// Text writes raw markdown.
func (w *MarkdownWriter) Text(s string) { w.block(strings.TrimSpace(s)) }

// Table writes a markdown table.
func (w *MarkdownWriter) Table(headers []string, rows [][]string) {
	t := table.NewWriter()
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		t.AppendRow(row)
	}
	w.block(t.RenderMarkdown())
}

// String returns the document.
func (w *MarkdownWriter) String() string { return strings.TrimRight(w.sb.String(), "\n") + "\n" }

// Bytes returns the document.
func (w *MarkdownWriter) Bytes() []byte { return []byte(w.String()) }

// InlineCode wraps s in backticks.
func InlineCode(s string) string { return "`" + s + "`" }

// cleanDescription makes a one-line description safe for a table cell.
func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
