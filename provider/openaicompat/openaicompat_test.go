package openaicompat

import (
	"io"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

func TestBuildMessagesFlattensToolCallAndResponse(t *testing.T) {
	s := convo.NewStream("s1", nil)
	req := convo.NewToolCallRequest("call_1", "search")
	req.SetArgument("query", "cats")
	s.Push(convo.Now(convo.NewToolCallRequestKind(req)))
	s.Push(convo.Now(convo.NewToolCallResponseKind(convo.ToolCallResponse{ID: "call_1", Result: convo.OkResult("found")})))

	messages, err := BuildMessages(provider.ChatQuery{System: "be terse", Stream: s}, false)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	require.Equal(t, openai.ChatMessageRoleAssistant, messages[1].Role)
	require.Len(t, messages[1].ToolCalls, 1)
	require.Equal(t, "search", messages[1].ToolCalls[0].Function.Name)
	require.Equal(t, openai.ChatMessageRoleTool, messages[2].Role)
	require.Equal(t, "call_1", messages[2].ToolCallID)
}

func TestBuildMessagesMergesConsecutiveRoles(t *testing.T) {
	s := convo.NewStream("s1", nil)
	s.Push(convo.Now(convo.NewChatRequest("part one", nil)))
	s.Push(convo.Now(convo.NewChatRequest("part two", nil)))

	messages, err := BuildMessages(provider.ChatQuery{Stream: s}, true)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Contains(t, messages[0].Content, "part one")
	require.Contains(t, messages[0].Content, "part two")
}

func TestBuildMessagesNoMergeKeepsSeparate(t *testing.T) {
	s := convo.NewStream("s1", nil)
	s.Push(convo.Now(convo.NewChatRequest("part one", nil)))
	s.Push(convo.Now(convo.NewChatRequest("part two", nil)))

	messages, err := BuildMessages(provider.ChatQuery{Stream: s}, false)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}

type fakeRecvStream struct {
	responses []openai.ChatCompletionStreamResponse
	i         int
}

func (f *fakeRecvStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if f.i >= len(f.responses) {
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	r := f.responses[f.i]
	f.i++
	return r, nil
}

func idx(i int) *int { return &i }

func TestConsumeStreamStitchesTextAndToolCallDeltas(t *testing.T) {
	stream := &fakeRecvStream{responses: []openai.ChatCompletionStreamResponse{
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: "hel"}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: "lo"}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
			{Index: idx(0), ID: "call_1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "search", Arguments: `{"qu`}},
		}}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{
			{Index: idx(0), Function: openai.FunctionCall{Arguments: `ery":"cats"}`}},
		}}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{FinishReason: openai.FinishReasonToolCalls}}},
	}}

	events := make(chan provider.StreamEvent, 16)
	err := consumeStream(stream, events)
	require.NoError(t, err)
	close(events)

	var parts []provider.StreamEvent
	for e := range events {
		parts = append(parts, e)
	}

	require.Equal(t, provider.KindPart, parts[0].Kind)
	require.Equal(t, "hel", *parts[0].Event.Kind.ChatResponse.Message)
	require.Equal(t, "lo", *parts[1].Event.Kind.ChatResponse.Message)

	var toolPart *provider.StreamEvent
	var finished *provider.StreamEvent
	for i := range parts {
		if parts[i].Kind == provider.KindPart && parts[i].Event.Kind.Tag == convo.KindToolCallRequest {
			toolPart = &parts[i]
		}
		if parts[i].Kind == provider.KindFinished {
			finished = &parts[i]
		}
	}
	require.NotNil(t, toolPart)
	require.Equal(t, "search", toolPart.Event.Kind.ToolCallRequest.Name)
	require.Equal(t, "cats", toolPart.Event.Kind.ToolCallRequest.Arguments["query"])
	require.NotNil(t, finished)
	require.Equal(t, provider.FinishCompleted, finished.Reason.Tag)
}

func TestCleanupToolNameStripsKnownPrefixes(t *testing.T) {
	require.Equal(t, "search", cleanupToolName("functions.search"))
	require.Equal(t, "search", cleanupToolName("tools.search"))
	require.Equal(t, "search", cleanupToolName("search"))
}
