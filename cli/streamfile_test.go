package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
)

func TestStreamPathUsesOverrideWhenGiven(t *testing.T) {
	assert.Equal(t, "/tmp/foo.jsonl", streamPath("/tmp/foo.jsonl"))
}

func TestStreamPathDefaultsUnderConfigDir(t *testing.T) {
	withIsolatedConfigDir(t)
	path := streamPath("")
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, defaultStreamFileName, filepath.Base(path))
}

func TestLoadOrCreateStreamMissingFileReturnsEmptyStream(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing.jsonl")

	stream, err := loadOrCreateStream(path, "conv_test")
	require.NoError(t, err)
	assert.Equal(t, "conv_test", stream.ID)
	assert.Equal(t, 0, stream.Len())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "conversation.jsonl")

	stream := convo.NewStream("conv_test", convo.Config{"k": "v"})
	stream.Push(convo.Now(convo.NewChatRequest("hello", nil)))

	require.NoError(t, saveStream(path, stream))

	loaded, err := loadOrCreateStream(path, "conv_test")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, "v", loaded.Config()["k"])
}
