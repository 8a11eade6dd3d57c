// Package builder implements EventBuilder, the stateful accumulator that
// merges a provider's streamed Part chunks into complete
// convo.ConversationEvents at Flush boundaries (spec §4.2).
package builder

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/jplog"
)

// bufferKind tags which IndexBuffer variant occupies a given index.
type bufferKind int

const (
	bufReasoning bufferKind = iota
	bufMessage
	bufToolCall
	bufStructured
)

func (k bufferKind) String() string {
	switch k {
	case bufReasoning:
		return "Reasoning"
	case bufMessage:
		return "Message"
	case bufToolCall:
		return "ToolCall"
	case bufStructured:
		return "Structured"
	default:
		return "Unknown"
	}
}

// indexBuffer accumulates partial content for one stream index, one of
// Reasoning{content}, Message{content}, ToolCall{request}, or
// Structured{content} (spec §4.2 State).
type indexBuffer struct {
	kind    bufferKind
	content string                // Reasoning, Message, Structured
	request convo.ToolCallRequest // ToolCall
}

// EventBuilder accumulates streamed events into complete
// convo.ConversationEvents, keyed by stream index.
type EventBuilder struct {
	buffers map[int]*indexBuffer
	// metadata accumulated from Part events, keyed by stream index.
	metadata map[int]*convo.OrderedValues
}

// New creates an empty EventBuilder.
func New() *EventBuilder {
	return &EventBuilder{
		buffers:  map[int]*indexBuffer{},
		metadata: map[int]*convo.OrderedValues{},
	}
}

// PeekPartialContent concatenates the content of all non-tool,
// non-structured buffers in ascending index order. Used to build a
// prefill string when a retried request must continue from a truncated
// partial response. Pure: never mutates state (spec §4.2).
func (b *EventBuilder) PeekPartialContent() (string, bool) {
	if len(b.buffers) == 0 {
		return "", false
	}
	indices := make([]int, 0, len(b.buffers))
	for idx := range b.buffers {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var parts []string
	for _, idx := range indices {
		buf := b.buffers[idx]
		if (buf.kind == bufReasoning || buf.kind == bufMessage) && buf.content != "" {
			parts = append(parts, buf.content)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ""), true
}

// HandlePart routes an incremental event by its content type, accumulating
// it into the buffer for index (spec §4.2 handle_part).
func (b *EventBuilder) HandlePart(index int, event convo.ConversationEvent) {
	if !event.Metadata.IsEmpty() {
		m, ok := b.metadata[index]
		if !ok {
			m = convo.NewOrderedValues()
			b.metadata[index] = m
		}
		m.Extend(event.Metadata)
	}

	switch event.Kind.Tag {
	case convo.KindChatResponse:
		cr := event.Kind.ChatResponse
		switch {
		case cr.Reasoning != nil:
			b.appendOrCreate(index, bufReasoning, *cr.Reasoning)
		case cr.Message != nil:
			b.appendOrCreate(index, bufMessage, *cr.Message)
		case cr.Structured != nil:
			var chunk string
			if err := json.Unmarshal(*cr.Structured, &chunk); err != nil {
				jplog.Get().Warn().Int("index", index).Msg("structured part with non-string data; ignoring")
				return
			}
			b.appendOrCreate(index, bufStructured, chunk)
		}
	case convo.KindToolCallRequest:
		existing, ok := b.buffers[index]
		if !ok {
			b.buffers[index] = &indexBuffer{kind: bufToolCall, request: *event.Kind.ToolCallRequest}
			return
		}
		mergeToolCall(existing, *event.Kind.ToolCallRequest)
	default:
		// ChatRequest, ToolCallResponse, InquiryRequest, InquiryResponse,
		// TurnStart are never streamed as Parts; ignored at the part
		// stage (spec §4.2).
	}
}

func (b *EventBuilder) appendOrCreate(index int, kind bufferKind, chunk string) {
	existing, ok := b.buffers[index]
	if !ok {
		b.buffers[index] = &indexBuffer{kind: kind, content: chunk}
		return
	}
	if existing.kind != kind {
		jplog.Get().Warn().
			Int("index", index).
			Str("buffer_type", existing.kind.String()).
			Str("incoming_type", kind.String()).
			Msg("mismatched event type for index; ignoring")
		return
	}
	existing.content += chunk
}

// mergeToolCall merges incoming into the ToolCall buffer at existing:
// first non-empty id and name win; arguments are added, never
// overwritten (spec §4.2, DESIGN.md open question #4).
func mergeToolCall(existing *indexBuffer, incoming convo.ToolCallRequest) {
	if existing.kind != bufToolCall {
		jplog.Get().Warn().
			Str("buffer_type", existing.kind.String()).
			Str("incoming_tool_call_id", incoming.ID).
			Msg("expected ToolCall buffer; ignoring merge")
		return
	}
	if existing.request.ID == "" && incoming.ID != "" {
		existing.request.ID = incoming.ID
	}
	if existing.request.Name == "" && incoming.Name != "" {
		existing.request.Name = incoming.Name
	}
	for _, k := range incoming.ArgKeys {
		existing.request.SetArgument(k, incoming.Arguments[k])
	}
}

// HandleFlush removes the buffer at index, converts it to a complete
// ConversationEvent, merges part and flush metadata into it, and returns
// it. Returns false if index had no buffered content, or the buffer was a
// whitespace-only Message (spec §4.2 handle_flush).
func (b *EventBuilder) HandleFlush(index int, flushMetadata *convo.OrderedValues) (convo.ConversationEvent, bool) {
	buf, ok := b.buffers[index]
	if !ok {
		return convo.ConversationEvent{}, false
	}
	delete(b.buffers, index)

	var ev convo.ConversationEvent
	switch buf.kind {
	case bufReasoning:
		ev = convo.Now(convo.NewChatResponse(convo.ReasoningResponse(buf.content)))
	case bufMessage:
		if strings.TrimSpace(buf.content) == "" {
			// Note: part_metadata[index] is deliberately left in place
			// here, matching the original accumulator's early return —
			// it is only ever consumed by a later successful flush.
			return convo.ConversationEvent{}, false
		}
		ev = convo.Now(convo.NewChatResponse(convo.MessageResponse(buf.content)))
	case bufToolCall:
		ev = convo.Now(convo.NewToolCallRequestKind(buf.request))
	case bufStructured:
		var data json.RawMessage
		if parsed, perr := parseAsJSON(buf.content); perr == nil {
			data = parsed
		} else {
			jplog.Get().Warn().Err(perr).Int("index", index).Msg("failed to parse structured response JSON")
			data, _ = json.Marshal(buf.content)
		}
		ev = convo.Now(convo.NewChatResponse(convo.StructuredResponse(data)))
	}

	if partMeta, ok := b.metadata[index]; ok {
		ev.Metadata.Extend(partMeta)
		delete(b.metadata, index)
	}
	ev.Metadata.Extend(flushMetadata)

	return ev, true
}

func parseAsJSON(s string) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return json.RawMessage(s), nil
}

// Drain flushes all remaining buffers, used when a stream ends without
// explicit Flush events so nothing is silently lost (spec §4.2 drain).
func (b *EventBuilder) Drain() []convo.ConversationEvent {
	indices := make([]int, 0, len(b.buffers))
	for idx := range b.buffers {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]convo.ConversationEvent, 0, len(indices))
	for _, idx := range indices {
		if ev, ok := b.HandleFlush(idx, convo.NewOrderedValues()); ok {
			out = append(out, ev)
		}
	}
	return out
}
