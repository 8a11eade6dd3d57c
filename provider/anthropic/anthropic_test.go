package anthropic

import (
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
)

func TestStreamToMessagesCoalescesConsecutiveAssistantBlocks(t *testing.T) {
	s := convo.NewStream("s1", nil)
	ts := time.Unix(0, 0).UTC()
	s.Push(convo.At(ts, convo.NewChatRequest("hi", nil)))
	s.Push(convo.At(ts, convo.NewChatResponse(convo.MessageResponse("hello "))))
	s.Push(convo.At(ts, convo.NewChatResponse(convo.MessageResponse("there"))))

	messages, err := streamToMessages(s)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	require.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)
	require.Len(t, messages[1].Content, 2)
}

func TestStreamToMessagesToolCallAndResponse(t *testing.T) {
	s := convo.NewStream("s1", nil)
	ts := time.Unix(0, 0).UTC()
	req := convo.NewToolCallRequest("call_1", "search")
	req.SetArgument("query", "cats")
	s.Push(convo.At(ts, convo.NewToolCallRequestKind(req)))
	s.Push(convo.At(ts, convo.NewToolCallResponseKind(convo.ToolCallResponse{ID: "call_1", Result: convo.OkResult("found")})))

	messages, err := streamToMessages(s)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, anthropic.MessageParamRoleAssistant, messages[0].Role)
	require.NotNil(t, messages[0].Content[0].OfToolUse)
	require.Equal(t, "search", messages[0].Content[0].OfToolUse.Name)
	require.Equal(t, anthropic.MessageParamRoleUser, messages[1].Role)
	require.NotNil(t, messages[1].Content[0].OfToolResult)
	require.Equal(t, "call_1", messages[1].Content[0].OfToolResult.ToolUseID)
}

func TestFinishReasonForMapsStopReasons(t *testing.T) {
	require.Equal(t, "completed", finishReasonFor(anthropic.StopReasonEndTurn).Tag)
	require.Equal(t, "max_tokens", finishReasonFor(anthropic.StopReasonMaxTokens).Tag)
}

func TestSystemBlocksCachesLastBlock(t *testing.T) {
	blocks := systemBlocks("system prompt", "instructions", []string{"attachment text"})
	require.Len(t, blocks, 3)
	require.Equal(t, anthropic.CacheControlEphemeralParam{Type: "ephemeral"}, blocks[2].CacheControl)
	require.Empty(t, blocks[0].CacheControl.Type)
}
