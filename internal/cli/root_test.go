package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	require.NotNil(t, cmd)
	assert.Equal(t, "edgeadmin", cmd.Use)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	commands := []string{"operations", "login", "run", "logs", "console", "stub-server", "mcp"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"api-base", "catalog", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"file", "ids", "tags", "profile", "thing-def", "logout"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "[]", runCmd.Flags().Lookup("ids").DefValue)
}

func TestStubServerCommandFlags(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	stubCmd, _, err := cmd.Find([]string{"stub-server"})
	require.NoError(t, err)

	assert.Equal(t, "0", stubCmd.Flags().Lookup("budget").DefValue)
	assert.Equal(t, "15s", stubCmd.Flags().Lookup("keepalive").DefValue)
	assert.NotNil(t, stubCmd.Flags().Lookup("addr"))
	assert.NotNil(t, stubCmd.Flags().Lookup("users"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit error", &ExitError{Code: ExitCommandError, Message: "bad flag"}, ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "login", errors.New("denied"))), ExitFailure},
		{"canceled", fmt.Errorf("read: %w", context.Canceled), ExitCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "login: denied", WrapExitError(ExitFailure, "login", errors.New("denied")).Error())
	assert.Equal(t, "bad flag", (&ExitError{Code: ExitCommandError, Message: "bad flag"}).Error())
}
