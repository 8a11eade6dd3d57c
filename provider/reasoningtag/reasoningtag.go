// Package reasoningtag extracts <think>...</think> reasoning content from
// a stream of text chunks, handling the tag boundaries being split across
// chunks (spec §4.3.1's Ollama/llama.cpp behavior). No pack library
// performs streaming tag extraction, so this is a small hand-rolled state
// machine rather than a borrowed dependency.
package reasoningtag

import (
	"context"
	"strings"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

const (
	contentIndex   = 0 // index the underlying OpenAI-compatible wire assigns message text
	reasoningIndex = 0
	messageIndex   = 1
	toolIndexShift = 1
)

// Relay runs an OpenAI-compatible-shaped provider and rewrites its flat
// content-index-0 Part stream into a reasoning/message split at indices
// 0/1, shifting tool-call indices up by one to make room. Shared by
// provider/ollama and provider/llamacpp, which both serve an
// OpenAI-compatible wire shape with reasoning inlined in <think> tags
// (spec §4.3.1).
func Relay(ctx context.Context, inner provider.Provider, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	raw := make(chan provider.StreamEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- inner.ChatCompletionStream(ctx, model, query, raw)
		close(raw)
	}()

	extractor := NewExtractor()
	reasoningStarted, messageStarted := false, false

	for ev := range raw {
		switch ev.Kind {
		case provider.KindPart:
			if ev.Index == contentIndex && ev.Event.Kind.Tag == convo.KindChatResponse && ev.Event.Kind.ChatResponse != nil && ev.Event.Kind.ChatResponse.Message != nil {
				reasoning, message := extractor.Feed(*ev.Event.Kind.ChatResponse.Message)
				if reasoning != "" {
					reasoningStarted = true
					events <- provider.Part(reasoningIndex, convo.Now(convo.NewChatResponse(convo.ReasoningResponse(reasoning))))
				}
				if message != "" {
					messageStarted = true
					events <- provider.Part(messageIndex, convo.Now(convo.NewChatResponse(convo.MessageResponse(message))))
				}
				continue
			}
			events <- provider.Part(remapIndex(ev.Index), ev.Event)
		case provider.KindFlush:
			if ev.Index == contentIndex {
				continue
			}
			events <- provider.Flush(remapIndex(ev.Index), ev.FlushMetadata)
		case provider.KindFinished:
			if reasoningStarted {
				events <- provider.Flush(reasoningIndex, nil)
			}
			if messageStarted {
				events <- provider.Flush(messageIndex, nil)
			}
			events <- ev
		}
	}
	return <-errCh
}

func remapIndex(i int) int {
	if i == contentIndex {
		return i
	}
	return i + toolIndexShift
}

// Extractor splits a sequence of text chunks into reasoning and message
// content. Feed must be called with every chunk in order; Feed returns
// the portion of each stream it's now safe to emit, holding back any
// tail that could still be the start of an unterminated tag.
type Extractor struct {
	buf     string
	inThink bool
}

func NewExtractor() *Extractor { return &Extractor{} }

// Feed consumes chunk and returns newly-revealed reasoning and message
// text. Either return value may be empty.
func (e *Extractor) Feed(chunk string) (reasoning string, message string) {
	e.buf += chunk
	for {
		tag := openTag
		if e.inThink {
			tag = closeTag
		}
		idx := strings.Index(e.buf, tag)
		if idx == -1 {
			safe, pending := splitSafeTail(e.buf, tag)
			if e.inThink {
				reasoning += safe
			} else {
				message += safe
			}
			e.buf = pending
			return reasoning, message
		}
		if e.inThink {
			reasoning += e.buf[:idx]
		} else {
			message += e.buf[:idx]
		}
		e.buf = e.buf[idx+len(tag):]
		e.inThink = !e.inThink
	}
}

// splitSafeTail returns the prefix of s that cannot possibly be part of
// tag (safe to emit now) and the suffix that might still grow into tag
// once more chunks arrive (held back).
func splitSafeTail(s, tag string) (safe string, pending string) {
	max := len(tag) - 1
	if max > len(s) {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		suffix := s[len(s)-l:]
		if strings.HasPrefix(tag, suffix) {
			return s[:len(s)-l], suffix
		}
	}
	return s, ""
}
