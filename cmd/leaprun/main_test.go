// Package main provides tests for the leaprun CLI.
package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaprun/internal/cli"
	"github.com/leapstack-labs/leaprun/internal/cli/testutil"
)

// projectFlags configures a project entirely by flags, without leaprun.yaml.
func projectFlags(root string) []string {
	return []string{
		"--models-dir", filepath.Join(root, "models"),
		"--seeds-dir", filepath.Join(root, "seeds"),
		"--macros-dir", filepath.Join(root, "macros"),
		"--sources-file", filepath.Join(root, "sources.yaml"),
		"--state", filepath.Join(root, "state", "state.db"),
		"--target-type", "sqlite",
		"--database", filepath.Join(root, "flags.db"),
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v error = %v\n%s", args, err, buf.String())
	}
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.Contains(out, "leaprun") {
		t.Errorf("version output should contain 'leaprun', got: %s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out := execute(t, "--help")
	for _, expected := range []string{"run", "list", "dag", "seed", "render", "history", "query", "doctor"} {
		if !strings.Contains(out, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, out)
		}
	}
}

func TestSeedAndRunWithFlags(t *testing.T) {
	root := testutil.SetupTestProject(t)
	flags := projectFlags(root)

	execute(t, append([]string{"seed"}, flags...)...)

	out := execute(t, append([]string{"run", "--threads", "2"}, flags...)...)
	if !strings.Contains(out, "3 succeeded") {
		t.Errorf("run output should report 3 successes, got: %s", out)
	}

	out = execute(t, append([]string{"history"}, flags...)...)
	if !strings.Contains(out, "success") {
		t.Errorf("history should list a successful run, got: %s", out)
	}
}

func TestDAGCommand(t *testing.T) {
	root := testutil.SetupTestProject(t)

	out := execute(t, append([]string{"dag"}, projectFlags(root)...)...)
	if !strings.Contains(out, "customer_orders") {
		t.Errorf("dag output should contain 'customer_orders', got: %s", out)
	}
}
