// Command jp is the conversation-core CLI: init/query/attachment/persona/
// mcp/conversation subcommands over an on-disk event log (spec §6.4),
// grounded on sidekick/cli/cli.go's App assembly and .env loading.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/jplog"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	jplog.Get() // initialize structured logging before dispatch

	app := &cli.Command{
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

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jp:", err)
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}
