package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "jp",
		Usage: "a provider-agnostic LLM conversation core",
		Commands: []*cli.Command{
			NewInitCommand(),
			NewQueryCommand(),
			NewAttachmentCommand(),
			NewPersonaCommand(),
			NewMCPCommand(),
			NewConversationCommand(),
		},
	}
}

func TestHelpFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name: "root help",
			args: []string{"jp", "--help"},
			contains: []string{
				"NAME:", "jp - a provider-agnostic LLM conversation core",
				"USAGE:", "COMMANDS:",
				"init", "query", "attachment", "persona", "mcp", "conversation",
			},
		},
		{
			name:     "query help",
			args:     []string{"jp", "query", "--help"},
			contains: []string{"NAME:", "jp query -", "USAGE:"},
		},
		{
			name:     "conversation help",
			args:     []string{"jp", "conversation", "--help"},
			contains: []string{"fork", "show", "new"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldStdout := os.Stdout
			r, w, pipeErr := os.Pipe()
			require.NoError(t, pipeErr)
			os.Stdout = w

			runErr := newApp().Run(context.Background(), tt.args)

			require.NoError(t, w.Close())
			os.Stdout = oldStdout

			var buf bytes.Buffer
			_, errCopy := io.Copy(&buf, r)
			require.NoError(t, errCopy)
			output := buf.String()

			assert.NoError(t, runErr)
			for _, s := range tt.contains {
				assert.Contains(t, output, s)
			}
		})
	}
}

func setupTempDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	currentDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(currentDir) })
	return tmpDir
}
