package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "restgate", cmd.Use)
	assert.Contains(t, cmd.Long, "SQL database")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"compile", "validate", "test",
		"databases", "layouts", "scripts", "fields",
		"find", "get", "create", "update", "delete", "script",
	}

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
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("database")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "d", dbFlag.Shorthand)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestFindCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	findCmd, _, err := cmd.Find([]string{"find"})
	require.NoError(t, err)

	queryFlag := findCmd.Flags().Lookup("query")
	require.NotNil(t, queryFlag)
	assert.Equal(t, "q", queryFlag.Shorthand)

	skipFlag := findCmd.Flags().Lookup("skip")
	require.NotNil(t, skipFlag)
	assert.Equal(t, "0", skipFlag.DefValue)

	containersFlag := findCmd.Flags().Lookup("containers")
	require.NotNil(t, containersFlag)
	assert.Equal(t, "reference", containersFlag.DefValue)
}

func TestWriteCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"create", "update", "delete"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.NotNil(t, sub.Flags().Lookup("pre-script"))
			assert.NotNil(t, sub.Flags().Lookup("post-script"))
		})
	}

	updateCmd, _, err := cmd.Find([]string{"update"})
	require.NoError(t, err)
	assert.NotNil(t, updateCmd.Flags().Lookup("append"))
	assert.NotNil(t, updateCmd.Flags().Lookup("update-else-create"))
	assert.NotNil(t, updateCmd.Flags().Lookup("echo"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", "--format", "xml", "WHERE a = 1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
