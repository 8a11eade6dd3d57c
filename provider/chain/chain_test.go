package chain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/provider/chain"
)

func messagePart(index int, text string) provider.StreamEvent {
	ev := convo.At(time.Unix(0, 0).UTC(), convo.NewChatResponse(convo.MessageResponse(text)))
	return provider.Part(index, ev)
}

func messageText(e provider.StreamEvent) string {
	return *e.Event.Kind.ChatResponse.Message
}

// Scenario 6 from spec §8: stream chain splice. A stream ends with
// MaxTokens mid-sentence; the continuation repeats an overlapping prefix,
// which the chain must detect and strip.
func TestEventChainMergesOverlappingContinuation(t *testing.T) {
	c := chain.New().WithMinOverlap(4).WithMaxOverlap(500)

	var out []provider.StreamEvent
	out = append(out, c.Ingest(messagePart(0, "The quick brown "))...)
	require.Empty(t, out)

	out = append(out, c.Ingest(provider.Finished(provider.MaxTokens()))...)
	require.Empty(t, out)

	// continuation repeats "brown " before continuing
	out = append(out, c.Ingest(messagePart(0, "brown fox jumps"))...)
	out = append(out, c.Ingest(provider.Finished(provider.Completed()))...)

	var text string
	for _, e := range out {
		if e.Kind == provider.KindPart {
			text += messageText(e)
		}
	}
	require.Equal(t, "The quick brown fox jumps", text)

	last := out[len(out)-1]
	require.Equal(t, provider.KindFinished, last.Kind)
	require.Equal(t, provider.FinishCompleted, last.Reason.Tag)
}

func TestEventChainNoOverlapConcatenates(t *testing.T) {
	c := chain.New().WithMinOverlap(4).WithMaxOverlap(500)

	var out []provider.StreamEvent
	out = append(out, c.Ingest(messagePart(0, "hello "))...)
	out = append(out, c.Ingest(provider.Finished(provider.MaxTokens()))...)
	out = append(out, c.Ingest(messagePart(0, "world"))...)
	out = append(out, c.Ingest(provider.Finished(provider.Completed()))...)

	var text string
	for _, e := range out {
		if e.Kind == provider.KindPart {
			text += messageText(e)
		}
	}
	require.Equal(t, "hello world", text)
}

func TestEventChainGivesUpWhenNewStreamEndsWithoutEnoughOverlap(t *testing.T) {
	c := chain.New().WithMinOverlap(20).WithMaxOverlap(500)

	var out []provider.StreamEvent
	out = append(out, c.Ingest(messagePart(0, "abc"))...)
	out = append(out, c.Ingest(provider.Finished(provider.MaxTokens()))...)
	// new stream finishes immediately with very little content
	out = append(out, c.Ingest(provider.Finished(provider.Completed()))...)

	var text string
	for _, e := range out {
		if e.Kind == provider.KindPart {
			text += messageText(e)
		}
	}
	require.Equal(t, "abc", text)
	require.Equal(t, provider.KindFinished, out[len(out)-1].Kind)
}

func TestEventChainTrimsBufferBeyondMaxOverlap(t *testing.T) {
	c := chain.New().WithMinOverlap(4).WithMaxOverlap(5)

	require.Empty(t, c.Ingest(messagePart(0, "01234")))
	// total buffered is now 10 chars, 5 over the limit; the first whole
	// event (5 chars) is emitted to bring the buffer back to the limit.
	out := c.Ingest(messagePart(0, "56789"))
	require.Len(t, out, 1)
	require.Equal(t, "01234", messageText(out[0]))
}
