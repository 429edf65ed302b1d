package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "xlink", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"link", "correct", "merge", "coverage", "runs", "migrate", "serve"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestMergeCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range mergeCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["compustat"])
	assert.True(t, names["crsp"])
}

func TestRunsCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "show", "stats"} {
		assert.True(t, names[want], "missing runs subcommand %s", want)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
	}{
		{"link", "output"},
		{"link", "format"},
		{"correct", "output"},
		{"correct", "all"},
		{"coverage", "as-of"},
		{"serve", "port"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			c, _, err := rootCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			assert.NotNil(t, c.Flags().Lookup(tt.flag))
		})
	}

	c, _, err := rootCmd.Find([]string{"merge", "compustat"})
	require.NoError(t, err)
	assert.NotNil(t, c.Flags().Lookup("as-of"))
	assert.NotNil(t, c.InheritedFlags().Lookup("output"))

	c, _, err = rootCmd.Find([]string{"runs", "stats"})
	require.NoError(t, err)
	f := c.Flags().Lookup("since")
	require.NotNil(t, f)
	assert.Equal(t, "24h0m0s", f.DefValue)
}
