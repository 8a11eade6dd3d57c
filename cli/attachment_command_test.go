package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileAttachmentProviderListSkipsDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "subdir"), 0o755))

	uris, err := (LocalFileAttachmentProvider{}).List(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, uris)
}

func TestLocalFileAttachmentProviderGetReadsContent(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("hello world"), 0o644))

	att, err := (LocalFileAttachmentProvider{}).Get(tmpDir, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", att.Source)
	assert.Equal(t, "hello world", att.Content)
}

func TestLocalFileAttachmentProviderGetMissingFileErrors(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := (LocalFileAttachmentProvider{}).Get(tmpDir, "missing.txt")
	assert.Error(t, err)
}
