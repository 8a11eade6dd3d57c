package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/config"
	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/convo/builder"
	"github.com/sidedotdev/jp/jplog"
	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/secretstore"
)

// NewQueryCommand sends one user turn through the configured provider
// and appends the response to the on-disk event log, grounded on
// spec §2's request/response turn and §4.2's event-builder accumulation.
func NewQueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "send a message and print the model's reply",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Usage: "path to the conversation event log (default: config dir)"},
			&cli.StringSliceFlag{Name: "set", Usage: "config override KEY[:+]=VALUE, may be repeated"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runQuery(ctx, cmd)
		},
	}
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	message := strings.Join(cmd.Args().Slice(), " ")
	if message == "" {
		return cli.Exit("a message is required: jp query <message>", 1)
	}

	path := streamPath(cmd.String("conversation"))
	stream, err := loadOrCreateStream(path, conversationIDFor(path))
	if err != nil {
		return cli.Exit(fmt.Errorf("loading conversation: %w", err), 1)
	}

	overrides, err := parseOverrideFlags(cmd.StringSlice("set"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	if len(overrides) > 0 {
		stream.PushConfigDelta(config.Apply(convo.Config{}, overrides))
	}

	stream.Push(convo.Now(convo.NewChatRequest(message, nil)))

	tree := stream.Config()
	providerName, model := resolveModel(tree)
	secrets := secretstore.Default(tree)
	llm, err := newProvider(providerName, secrets)
	if err != nil {
		return cli.Exit(err, 1)
	}

	query := provider.ChatQuery{Stream: stream}
	events := make(chan provider.StreamEvent)
	streamErrCh := make(chan error, 1)
	go func() {
		streamErrCh <- llm.ChatCompletionStream(ctx, model, query, events)
		close(events)
	}()

	b := builder.New()
	for ev := range events {
		switch ev.Kind {
		case provider.KindPart:
			jplog.LogStreamEvent("part", ev.Index, "")
			b.HandlePart(ev.Index, ev.Event)
		case provider.KindFlush:
			jplog.LogStreamEvent("flush", ev.Index, "")
			if complete, ok := b.HandleFlush(ev.Index, ev.FlushMetadata); ok {
				stream.Push(complete)
				printEvent(complete)
			}
		case provider.KindFinished:
			jplog.LogStreamEvent("finished", ev.Index, ev.Reason.Tag)
			// stream channel closes right after Finished; nothing further to do here.
		}
	}
	if err := <-streamErrCh; err != nil {
		if streamErr, ok := err.(*provider.StreamError); ok {
			jplog.LogStreamError(streamErr.Kind.String(), streamErr.IsRetryable(), streamErr.Error())
		}
		return cli.Exit(fmt.Errorf("provider request failed: %w", err), 1)
	}

	if err := saveStream(path, stream); err != nil {
		return cli.Exit(fmt.Errorf("saving conversation: %w", err), 127)
	}
	return nil
}

func parseOverrideFlags(raw []string) ([]config.Override, error) {
	overrides := make([]config.Override, 0, len(raw))
	for _, r := range raw {
		o, err := config.ParseOverride(r)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

// conversationIDFor derives a stable stream id from its file path so
// repeated invocations against the same file reuse the same id.
func conversationIDFor(path string) string {
	return "conv_" + fmt.Sprintf("%x", []byte(path))[:16]
}

func printEvent(ev convo.ConversationEvent) {
	switch ev.Kind.Tag {
	case convo.KindChatResponse:
		r := ev.Kind.ChatResponse
		if r != nil && r.Message != nil {
			fmt.Println(*r.Message)
		}
	case convo.KindToolCallRequest:
		r := ev.Kind.ToolCallRequest
		if r != nil {
			fmt.Printf("[tool call requested: %s]\n", r.Name)
		}
	}
}
