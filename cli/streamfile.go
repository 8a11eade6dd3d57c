package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/sidedotdev/jp/config"
	"github.com/sidedotdev/jp/convo"
)

const defaultStreamFileName = "conversation.jsonl"

// streamPath resolves the on-disk event log path (spec §6.1): an
// explicit override if given, otherwise <config dir>/conversation.jsonl.
func streamPath(override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(config.Dir(), defaultStreamFileName)
}

// loadOrCreateStream reads the stream at path under id, or creates a
// fresh empty stream under id if the file doesn't exist yet. id is not
// itself persisted (spec §6.1's on-disk format has no id field), so the
// caller is responsible for remembering which id a path corresponds to.
func loadOrCreateStream(path, id string) (*convo.Stream, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return convo.NewStream(id, convo.Config{}), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return convo.Read(id, f)
}

// saveStream serializes stream to path, creating parent directories as
// needed.
func saveStream(path string, stream *convo.Stream) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return stream.Write(f)
}
