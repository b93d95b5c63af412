package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"import", "datasets", "dedup", "communes", "runs", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "erpsync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommunesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range communesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["sync"])
	assert.True(t, names["contours"])

	flag := communesContoursCmd.Flags().Lookup("shapefile")
	require.NotNil(t, flag)
}

func TestDedupCommand_Flags(t *testing.T) {
	flag := dedupCmd.Flags().Lookup("write")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	require.NotNil(t, dedupCmd.Flags().Lookup("manual-report"))
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}
