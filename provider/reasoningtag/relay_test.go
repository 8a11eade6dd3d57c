package reasoningtag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

type scriptedProvider struct {
	emit func(events chan<- provider.StreamEvent)
}

func (s scriptedProvider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	return provider.ModelDetails{}, nil
}
func (s scriptedProvider) Models(ctx context.Context) ([]provider.ModelDetails, error) { return nil, nil }
func (s scriptedProvider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	s.emit(events)
	return nil
}

func TestRelaySplitsThinkTagIntoReasoningAndMessageIndices(t *testing.T) {
	inner := scriptedProvider{emit: func(events chan<- provider.StreamEvent) {
		events <- provider.Part(0, convo.Now(convo.NewChatResponse(convo.MessageResponse("<think>hm"))))
		events <- provider.Part(0, convo.Now(convo.NewChatResponse(convo.MessageResponse("m</think>answer"))))
		events <- provider.Flush(0, nil)
		events <- provider.Finished(provider.Completed())
	}}

	out := make(chan provider.StreamEvent, 16)
	err := Relay(context.Background(), inner, "model", provider.ChatQuery{}, out)
	require.NoError(t, err)
	close(out)

	var events []provider.StreamEvent
	for e := range out {
		events = append(events, e)
	}

	var reasoningText, messageText string
	var sawReasoningFlush, sawMessageFlush, sawFinished bool
	for _, e := range events {
		switch e.Kind {
		case provider.KindPart:
			if e.Index == 0 {
				reasoningText += *e.Event.Kind.ChatResponse.Reasoning
			} else if e.Index == 1 {
				messageText += *e.Event.Kind.ChatResponse.Message
			}
		case provider.KindFlush:
			if e.Index == 0 {
				sawReasoningFlush = true
			}
			if e.Index == 1 {
				sawMessageFlush = true
			}
		case provider.KindFinished:
			sawFinished = true
		}
	}

	require.Equal(t, "hmm", reasoningText)
	require.Equal(t, "answer", messageText)
	require.True(t, sawReasoningFlush)
	require.True(t, sawMessageFlush)
	require.True(t, sawFinished)
}

func TestRelayShiftsToolCallIndices(t *testing.T) {
	inner := scriptedProvider{emit: func(events chan<- provider.StreamEvent) {
		req := convo.NewToolCallRequest("call_1", "search")
		events <- provider.Part(1, convo.Now(convo.NewToolCallRequestKind(req)))
		events <- provider.Flush(1, nil)
		events <- provider.Finished(provider.Completed())
	}}

	out := make(chan provider.StreamEvent, 16)
	err := Relay(context.Background(), inner, "model", provider.ChatQuery{}, out)
	require.NoError(t, err)
	close(out)

	var sawToolPartAt2, sawToolFlushAt2 bool
	for e := range out {
		if e.Kind == provider.KindPart && e.Index == 2 {
			sawToolPartAt2 = true
		}
		if e.Kind == provider.KindFlush && e.Index == 2 {
			sawToolFlushAt2 = true
		}
	}
	require.True(t, sawToolPartAt2)
	require.True(t, sawToolFlushAt2)
}
