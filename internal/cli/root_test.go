package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "alluvium", cmd.Use)
	assert.Contains(t, cmd.Long, "Firehose")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "synth", "validate", "matrix", "history"}

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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "alluvium.yaml", configFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	// --db is optional, the ledger is skipped when empty
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestInitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	initCmd, _, err := cmd.Find([]string{"init"})
	require.NoError(t, err)

	templateFlag := initCmd.Flags().Lookup("template")
	require.NotNil(t, templateFlag)
	assert.Equal(t, "t", templateFlag.Shorthand)
	assert.Equal(t, "app", templateFlag.DefValue)

	dirFlag := initCmd.Flags().Lookup("dir")
	require.NotNil(t, dirFlag)
	assert.Equal(t, ".", dirFlag.DefValue)

	moduleFlag := initCmd.Flags().Lookup("module")
	require.NotNil(t, moduleFlag)
}

func TestSynthCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	synthCmd, _, err := cmd.Find([]string{"synth"})
	require.NoError(t, err)

	outFlag := synthCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)
	// empty default falls back to the config file, then "out"
	assert.Equal(t, "", outFlag.DefValue)
}

func TestMatrixCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	matrixCmd, _, err := cmd.Find([]string{"matrix"})
	require.NoError(t, err)

	gridFlag := matrixCmd.Flags().Lookup("grid")
	require.NotNil(t, gridFlag)

	workdirFlag := matrixCmd.Flags().Lookup("workdir")
	require.NotNil(t, workdirFlag)

	timeoutFlag := matrixCmd.Flags().Lookup("timeout")
	require.NotNil(t, timeoutFlag)
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	runFlag := historyCmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)

	limitFlag := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)

	synthFlag := historyCmd.Flags().Lookup("synth")
	require.NotNil(t, synthFlag)
	assert.Equal(t, "false", synthFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "manifest.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
