package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["index"])
	assert.True(t, names["search"])
	assert.True(t, names["stats"])
	assert.True(t, names["config"])
}

func TestNewRootCmd_UnknownCommandErrors(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"frobnicate"})
	err := root.Execute()
	require.Error(t, err)
}
