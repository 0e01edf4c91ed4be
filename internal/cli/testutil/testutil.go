// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
)

// projectFiles is a small project on a sqlite target: two seeds, a source
// registry, a macro, two declarative models and one procedural model.
var projectFiles = map[string]string{
	"leaprun.yaml": `models_dir: models
seeds_dir: seeds
macros_dir: macros
sources_file: sources.yaml
state_path: .leaprun/state.db

target:
  type: sqlite
  database: warehouse.db
`,
	"sources.yaml": `sources:
  raw:
    schema: main
    tables: [raw_customers, raw_orders]
`,
	"seeds/raw_customers.csv": `id,name,country
1,Alice,UK
2,Bob,US
`,
	"seeds/raw_orders.csv": `id,customer_id,amount_cents
10,1,1250
11,1,300
12,2,999
`,
	"macros/money.star": `def to_dollars(col):
    """Converts an integer cents column to dollars."""
    return "(" + col + " / 100.0)"
`,
	"models/staging/stg_customers.sql": `/*---
description: Customers
---*/
SELECT id AS customer_id, name AS customer_name, country
FROM {{ source("raw", "raw_customers") }}
`,
	"models/marts/customer_orders.sql": `/*---
description: Order totals per customer
tags: [finance]
---*/
{{ config(materialized="table") }}
SELECT
    c.customer_id,
    c.customer_name,
    count(o.id) AS orders,
    sum({{ money.to_dollars("o.amount_cents") }}) AS revenue
FROM {{ ref("stg_customers") }} AS c
JOIN {{ source("raw", "raw_orders") }} AS o ON o.customer_id = c.customer_id
GROUP BY c.customer_id, c.customer_name
`,
	"models/marts/order_count.star": `depends_on = ["customer_orders"]

def transform(inputs):
    total = 0
    for row in inputs["customer_orders"].rows:
        total += row["orders"]
    return {"columns": ["orders", "environment"], "rows": [[total, env]]}
`,
}

// ProjectModels lists the models SetupTestProject writes, in dependency order.
var ProjectModels = []string{"stg_customers", "customer_orders", "order_count"}

// SetupTestProject creates a temporary project with seeds, sources, a
// macro and models, and returns its root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range projectFiles {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
	return root
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
