package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/idgen"
)

// NewConversationCommand manages the on-disk event log directly: starting
// a fresh one, inspecting it, and forking a time-bounded slice of it
// (spec §3.3 Fork).
func NewConversationCommand() *cli.Command {
	pathFlag := &cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Usage: "path to the conversation event log (default: config dir)"}
	return &cli.Command{
		Name:  "conversation",
		Usage: "inspect or fork the conversation event log",
		Commands: []*cli.Command{
			{
				Name:   "new",
				Usage:  "start a fresh, empty conversation log",
				Flags:  []cli.Flag{pathFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error { return runConversationNew(cmd) },
			},
			{
				Name:   "show",
				Usage:  "print each event in the conversation log",
				Flags:  []cli.Flag{pathFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error { return runConversationShow(cmd) },
			},
			{
				Name:  "fork",
				Usage: "copy events in a time range into a new conversation log",
				Flags: []cli.Flag{
					pathFlag,
					&cli.StringFlag{Name: "from", Usage: "RFC3339 timestamp, inclusive lower bound"},
					&cli.StringFlag{Name: "until", Usage: "RFC3339 timestamp, inclusive upper bound"},
					&cli.StringFlag{Name: "out", Usage: "path to write the forked log (required)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error { return runConversationFork(cmd) },
			},
		},
	}
}

func runConversationNew(cmd *cli.Command) error {
	path := streamPath(cmd.String("conversation"))
	stream := convo.NewStream(idgen.Target(), convo.Config{})
	if err := saveStream(path, stream); err != nil {
		return cli.Exit(fmt.Errorf("writing conversation: %w", err), 127)
	}
	fmt.Printf("created conversation %s at %s\n", stream.ID, path)
	return nil
}

func runConversationShow(cmd *cli.Command) error {
	path := streamPath(cmd.String("conversation"))
	stream, err := loadOrCreateStream(path, conversationIDFor(path))
	if err != nil {
		return cli.Exit(fmt.Errorf("loading conversation: %w", err), 1)
	}
	for _, item := range stream.Iter() {
		fmt.Printf("%s %s\n", item.Event.Timestamp.Format(time.RFC3339), item.Event.Kind.Tag)
	}
	return nil
}

func runConversationFork(cmd *cli.Command) error {
	out := cmd.String("out")
	if out == "" {
		return cli.Exit("--out is required: jp conversation fork --out <path> [--from ...] [--until ...]", 1)
	}

	path := streamPath(cmd.String("conversation"))
	stream, err := loadOrCreateStream(path, conversationIDFor(path))
	if err != nil {
		return cli.Exit(fmt.Errorf("loading conversation: %w", err), 1)
	}

	from, err := parseOptionalTime(cmd.String("from"))
	if err != nil {
		return cli.Exit(fmt.Errorf("--from: %w", err), 1)
	}
	until, err := parseOptionalTime(cmd.String("until"))
	if err != nil {
		return cli.Exit(fmt.Errorf("--until: %w", err), 1)
	}

	forked := stream.Fork(idgen.Target(), from, until)
	if err := saveStream(out, forked); err != nil {
		return cli.Exit(fmt.Errorf("writing forked conversation: %w", err), 127)
	}
	fmt.Printf("forked conversation %s to %s\n", forked.ID, out)
	return nil
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
