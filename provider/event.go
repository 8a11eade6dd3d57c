// Package provider defines the normalized streaming vocabulary shared by
// every LLM adapter (Part/Flush/Finished), the Provider interface, model
// capability records, and the provider-agnostic StreamError taxonomy with
// retry-timing extraction (spec §4.3, §4.4).
package provider

import "github.com/sidedotdev/jp/convo"

// FinishReason is the terminal state of a stream.
type FinishReason struct {
	Tag string // "completed" | "max_tokens" | "other"

	// Other carries the vendor-specific value when Tag == "other".
	Other string
}

const (
	FinishCompleted = "completed"
	FinishMaxTokens = "max_tokens"
	FinishOther     = "other"
)

func Completed() FinishReason  { return FinishReason{Tag: FinishCompleted} }
func MaxTokens() FinishReason  { return FinishReason{Tag: FinishMaxTokens} }
func OtherFinish(v string) FinishReason { return FinishReason{Tag: FinishOther, Other: v} }

// StreamEventKind tags which variant of the vocabulary a StreamEvent carries.
type StreamEventKind int

const (
	KindPart StreamEventKind = iota
	KindFlush
	KindFinished
)

// StreamEvent is the single channel element type every adapter emits:
// Part{index, event}, Flush{index, metadata}, or Finished(reason) (spec
// §4.3). Go has no sum types, so the tag lives on Kind.
type StreamEvent struct {
	Kind StreamEventKind

	// Part
	Index int
	Event convo.ConversationEvent

	// Flush
	FlushMetadata *convo.OrderedValues

	// Finished
	Reason FinishReason
}

func Part(index int, event convo.ConversationEvent) StreamEvent {
	return StreamEvent{Kind: KindPart, Index: index, Event: event}
}

func Flush(index int, metadata *convo.OrderedValues) StreamEvent {
	if metadata == nil {
		metadata = convo.NewOrderedValues()
	}
	return StreamEvent{Kind: KindFlush, Index: index, FlushMetadata: metadata}
}

func Finished(reason FinishReason) StreamEvent {
	return StreamEvent{Kind: KindFinished, Reason: reason}
}
