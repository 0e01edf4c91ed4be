package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name: "init empty directory",
			wantFiles: []string{
				"leaprun.yaml",
				".gitignore",
				"models",
				"seeds",
				"macros",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leaprun.yaml"), []byte("existing"), 0600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leaprun.yaml"), []byte("existing"), 0600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"leaprun.yaml", "models"},
		},
		{
			name: "init example",
			args: []string{"--example"},
			wantFiles: []string{
				"leaprun.yaml",
				"sources.yaml",
				"seeds/raw_customers.csv",
				"models/staging/stg_orders.sql",
				"models/marts/country_revenue.star",
				"macros/money.star",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{tmpDir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(tmpDir, f))
				assert.NoError(t, err, "expected file/dir %q to exist", f)
			}
			_, err = os.Stat(filepath.Join(tmpDir, "models", ".gitkeep"))
			assert.True(t, os.IsNotExist(err), "placeholders are not copied")
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
	assert.NotNil(t, cmd.Flags().Lookup("example"), "--example flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{tmpDir})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(filepath.Join(tmpDir, "leaprun.yaml"))
	require.NoError(t, err, "failed to read leaprun.yaml")

	for _, expected := range []string{
		"models_dir: models",
		"seeds_dir: seeds",
		"macros_dir: macros",
		"target:",
	} {
		assert.Contains(t, string(content), expected, "config should contain %q", expected)
	}
}

func TestGroupTemplateFiles(t *testing.T) {
	groups := groupTemplateFiles([]string{"leaprun.yaml", "seeds/a.csv", "models/x/y.sql", "macros/m.star"})
	assert.Equal(t, []string{"leaprun.yaml"}, groups["config"])
	assert.Equal(t, []string{"seeds/a.csv"}, groups["seeds"])
	assert.Equal(t, []string{"models/x/y.sql"}, groups["models"])
	assert.Equal(t, []string{"macros/m.star"}, groups["macros"])
}
