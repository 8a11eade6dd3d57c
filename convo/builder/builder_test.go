package builder_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/convo/builder"
)

// Scenario 1 from spec §8: multi-part tool call (Anthropic pattern).
func TestMultiPartToolCallMerge(t *testing.T) {
	b := builder.New()

	first := convo.NewToolCallRequest("c42", "fs_create_file")
	b.HandlePart(1, convo.Now(convo.NewToolCallRequestKind(first)))

	second := convo.NewToolCallRequest("c42", "fs_create_file")
	second.SetArgument("path", "src/main.rs")
	second.SetArgument("content", "fn main(){}")
	b.HandlePart(1, convo.Now(convo.NewToolCallRequestKind(second)))

	ev, ok := b.HandleFlush(1, convo.NewOrderedValues())
	require.True(t, ok)
	require.Equal(t, convo.KindToolCallRequest, ev.Kind.Tag)
	require.Equal(t, "c42", ev.Kind.ToolCallRequest.ID)
	require.Equal(t, "fs_create_file", ev.Kind.ToolCallRequest.Name)
	require.Equal(t, "src/main.rs", ev.Kind.ToolCallRequest.Arguments["path"])
	require.Equal(t, "fn main(){}", ev.Kind.ToolCallRequest.Arguments["content"])
}

// Scenario 2 from spec §8: whitespace-only message dropped.
func TestWhitespaceOnlyMessageDropped(t *testing.T) {
	b := builder.New()
	msg := "\n\n"
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	_ = raw

	b.HandlePart(0, convo.Now(convo.NewChatResponse(convo.MessageResponse(msg))))
	_, ok := b.HandleFlush(0, convo.NewOrderedValues())
	require.False(t, ok)
}

func TestPeekPartialContentExcludesToolAndStructured(t *testing.T) {
	b := builder.New()
	require.False(t, isSet(b))

	b.HandlePart(0, convo.Now(convo.NewChatResponse(convo.ReasoningResponse("thinking "))))
	b.HandlePart(1, convo.Now(convo.NewChatResponse(convo.MessageResponse("answer"))))
	req := convo.NewToolCallRequest("1", "t")
	b.HandlePart(2, convo.Now(convo.NewToolCallRequestKind(req)))
	structuredChunk, _ := json.Marshal(`{"a":`)
	b.HandlePart(3, convo.Now(convo.NewChatResponse(convo.StructuredResponse(json.RawMessage(structuredChunk)))))

	content, ok := b.PeekPartialContent()
	require.True(t, ok)
	require.Equal(t, "thinking answer", content)
}

func isSet(b *builder.EventBuilder) bool {
	_, ok := b.PeekPartialContent()
	return ok
}

func TestPeekPartialContentNoneWhenAllToolOrStructured(t *testing.T) {
	b := builder.New()
	req := convo.NewToolCallRequest("1", "t")
	b.HandlePart(0, convo.Now(convo.NewToolCallRequestKind(req)))

	_, ok := b.PeekPartialContent()
	require.False(t, ok)
}

func TestDrainFlushesRemainingBuffers(t *testing.T) {
	b := builder.New()
	b.HandlePart(0, convo.Now(convo.NewChatResponse(convo.MessageResponse("partial"))))
	b.HandlePart(1, convo.Now(convo.NewChatResponse(convo.ReasoningResponse("thought"))))

	events := b.Drain()
	require.Len(t, events, 2)
	require.Equal(t, "partial", *events[0].Kind.ChatResponse.Message)
	require.Equal(t, "thought", *events[1].Kind.ChatResponse.Reasoning)

	_, ok := b.HandleFlush(0, convo.NewOrderedValues())
	require.False(t, ok)
}

func TestMismatchedTypeAtIndexIgnored(t *testing.T) {
	b := builder.New()
	b.HandlePart(0, convo.Now(convo.NewChatResponse(convo.ReasoningResponse("a"))))
	b.HandlePart(0, convo.Now(convo.NewChatResponse(convo.MessageResponse("b"))))

	ev, ok := b.HandleFlush(0, convo.NewOrderedValues())
	require.True(t, ok)
	require.Equal(t, "a", *ev.Kind.ChatResponse.Reasoning)
}

func TestStructuredPartParsedAtFlush(t *testing.T) {
	b := builder.New()
	chunk1, _ := json.Marshal(`{"a":`)
	chunk2, _ := json.Marshal(`1}`)
	b.HandlePart(0, convo.ConversationEvent{
		Kind:     convo.NewChatResponse(convo.StructuredResponse(json.RawMessage(chunk1))),
		Metadata: convo.NewOrderedValues(),
	})
	b.HandlePart(0, convo.ConversationEvent{
		Kind:     convo.NewChatResponse(convo.StructuredResponse(json.RawMessage(chunk2))),
		Metadata: convo.NewOrderedValues(),
	})

	ev, ok := b.HandleFlush(0, convo.NewOrderedValues())
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(*ev.Kind.ChatResponse.Structured))
}

func TestMetadataMergesPartThenFlush(t *testing.T) {
	b := builder.New()
	partMeta := convo.NewOrderedValues()
	partMeta.Set("sig", "abc")
	b.HandlePart(0, convo.ConversationEvent{
		Kind:     convo.NewChatResponse(convo.ReasoningResponse("x")),
		Metadata: partMeta,
	})

	flushMeta := convo.NewOrderedValues()
	flushMeta.Set("final", true)

	ev, ok := b.HandleFlush(0, flushMeta)
	require.True(t, ok)
	sig, ok := ev.Metadata.Get("sig")
	require.True(t, ok)
	require.Equal(t, "abc", sig)
	final, ok := ev.Metadata.Get("final")
	require.True(t, ok)
	require.Equal(t, true, final)
}
