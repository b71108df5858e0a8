package cmd

import (
	"os"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.Enable = false
	os.Exit(m.Run())
}

func TestExecute(t *testing.T) {
	// Execute exits the process on error, so only its presence is checked.
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsVariables(t *testing.T) {
	assert.Equal(t, "goseed.yaml", rootCmd.PersistentFlags().Lookup("config").DefValue)
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, 0, batchSize)
	assert.Equal(t, "", output)
	assert.False(t, verbose)
	assert.False(t, verboseSQL)
	assert.False(t, unscoped)
	assert.False(t, verify)
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"dump", "plan", "roots", "validate", "estimate", "version"} {
		assert.True(t, names[want], "command %q should be registered", want)
	}
}
