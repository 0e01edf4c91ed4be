package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderCommand(t *testing.T) {
	cmd := NewRenderCommand()

	assert.Equal(t, "render <model>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestNewListCommand(t *testing.T) {
	cmd := NewListCommand()

	assert.Equal(t, "list", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	flags := []string{"select", "downstream", "json", "watch", "threads", "timeout"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}

	require.NotEmpty(t, cmd.Aliases, "run command should have aliases")
	assert.Equal(t, "build", cmd.Aliases[0], "run command should have 'build' alias")
}

func TestNewSeedCommand(t *testing.T) {
	cmd := NewSeedCommand()

	assert.Equal(t, "seed", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Name())
	for _, flag := range []string{"limit", "logs", "prune"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestCommandsRequireConfig(t *testing.T) {
	for _, cmd := range []*cobra.Command{NewRunCommand(), NewSeedCommand(), NewListCommand(), NewHistoryCommand(), NewDoctorCommand()} {
		t.Run(cmd.Name(), func(t *testing.T) {
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs(nil)

			err := cmd.ExecuteContext(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration not loaded")
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "tag:x"}, splitList(" a, b,,tag:x "))
	assert.Nil(t, splitList(""))
}

func TestRunFailedError(t *testing.T) {
	err := &RunFailedError{RunID: "r1", Failures: 2}
	assert.Contains(t, err.Error(), "r1")
	assert.Contains(t, err.Error(), "2")
}

func TestGetLogger_Default(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)
	logger.Info("discarded")
}
