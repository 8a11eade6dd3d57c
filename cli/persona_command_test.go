package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withIsolatedConfigDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdgconfig"))
	return tmpDir
}

func TestPersonaSetListRemove(t *testing.T) {
	withIsolatedConfigDir(t)

	require.NoError(t, runPersonaSet("reviewer", "You are a terse code reviewer."))
	require.NoError(t, runPersonaSet("writer", "You write release notes."))

	tree, err := loadPersonaTree()
	require.NoError(t, err)
	personas, ok := tree["personas"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "You are a terse code reviewer.", personas["reviewer"])
	assert.Equal(t, "You write release notes.", personas["writer"])

	require.NoError(t, runPersonaRemove("writer"))
	tree, err = loadPersonaTree()
	require.NoError(t, err)
	personas, _ = tree["personas"].(map[string]any)
	_, stillThere := personas["writer"]
	assert.False(t, stillThere)
	assert.Contains(t, personas, "reviewer")
}

func TestPersonaRemoveUnknownErrors(t *testing.T) {
	withIsolatedConfigDir(t)
	err := runPersonaRemove("ghost")
	assert.Error(t, err)
}

func TestPersonaListEmpty(t *testing.T) {
	withIsolatedConfigDir(t)
	assert.NoError(t, runPersonaList())
}
