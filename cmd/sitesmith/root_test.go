package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasServeSubcommand(t *testing.T) {
	root := newRootCommand()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
}

func TestServeCommandFlags(t *testing.T) {
	serve := newServeCommand()

	assert.NotNil(t, serve.Flags().Lookup("port"))
	assert.NotNil(t, serve.Flags().Lookup("output-dir"))
	assert.NotNil(t, serve.Flags().Lookup("allow-origin"))
}

func TestRootCommandDebugFlag(t *testing.T) {
	root := newRootCommand()

	flag := root.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
