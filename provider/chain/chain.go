// Package chain splices together the tail of a truncated stream (one that
// ended with FinishReason "max_tokens") and the head of its continuation,
// so the caller sees one seamless sequence of events regardless of how many
// requests it took to produce it (spec §4.5).
package chain

import (
	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

type chainState int

const (
	stateNormal chainState = iota
	stateMerging
)

// EventChain is a stateful processor that manages chaining multiple
// streams together. It buffers events to handle smooth merging of content
// when a stream ends with FinishReason "max_tokens".
type EventChain struct {
	// buffer holds, in Normal state, the tail of the current stream kept
	// around to check for overlaps if MaxTokens is hit; in Merging state,
	// the tail of the *previous* stream.
	buffer []provider.StreamEvent

	// pending accumulates events from the *next* stream until the merge
	// point can be determined.
	pending []provider.StreamEvent

	state chainState

	minOverlap int
	maxOverlap int
}

// New creates a chain with the default overlap bounds (20/500 characters).
func New() *EventChain {
	return &EventChain{minOverlap: 20, maxOverlap: 500}
}

// WithMinOverlap sets the minimum number of characters required to confirm
// an overlap.
func (c *EventChain) WithMinOverlap(n int) *EventChain {
	c.minOverlap = n
	return c
}

// WithMaxOverlap sets the maximum number of characters retained in the
// buffer for overlap checking.
func (c *EventChain) WithMaxOverlap(n int) *EventChain {
	c.maxOverlap = n
	return c
}

// Ingest feeds one stream event into the chain and returns the events that
// are now ready to be emitted to the caller.
//
// If event is Finished(MaxTokens), it is consumed, the chain enters
// "merging" state, and the caller is expected to start a new stream and
// feed its events into this method.
func (c *EventChain) Ingest(event provider.StreamEvent) []provider.StreamEvent {
	if c.state == stateMerging {
		return c.ingestMerging(event)
	}
	return c.ingestNormal(event)
}

func (c *EventChain) ingestNormal(event provider.StreamEvent) []provider.StreamEvent {
	if event.Kind == provider.KindFinished {
		if event.Reason.Tag == provider.FinishMaxTokens {
			c.state = stateMerging
			return nil
		}
		out := make([]provider.StreamEvent, 0, len(c.buffer)+1)
		out = append(out, c.buffer...)
		c.buffer = nil
		out = append(out, event)
		return out
	}

	c.buffer = append(c.buffer, event)
	return c.trimBuffer()
}

func (c *EventChain) ingestMerging(event provider.StreamEvent) []provider.StreamEvent {
	if event.Kind == provider.KindFinished {
		var merged []provider.StreamEvent
		if len(c.pending) != 0 {
			merged = c.attemptMerge(3)
		}

		out := make([]provider.StreamEvent, 0, len(merged)+len(c.buffer)+len(c.pending)+1)
		if len(merged) == 0 {
			out = append(out, c.buffer...)
			out = append(out, c.pending...)
		} else {
			out = append(out, merged...)
		}
		c.buffer = nil
		c.pending = nil

		out = append(out, event)
		c.state = stateNormal
		return out
	}

	c.pending = append(c.pending, event)
	return c.attemptMerge(c.minOverlap)
}

// trimBuffer emits events from the front of the buffer to keep it within
// size limits. The end of the stream is always kept in the buffer.
func (c *EventChain) trimBuffer() []provider.StreamEvent {
	currentLen := bufferTextLen(c.buffer)
	if currentLen <= c.maxOverlap {
		return nil
	}

	toRemove := currentLen - c.maxOverlap
	var emit []provider.StreamEvent

	for len(c.buffer) > 0 {
		if toRemove == 0 {
			break
		}
		evtLen := eventTextLen(c.buffer[0])
		if evtLen <= toRemove {
			toRemove -= evtLen
			emit = append(emit, c.buffer[0])
			c.buffer = c.buffer[1:]
		} else {
			break
		}
	}

	return emit
}

func bufferTextLen(events []provider.StreamEvent) int {
	total := 0
	for _, e := range events {
		total += eventTextLen(e)
	}
	return total
}

func (c *EventChain) attemptMerge(minOverlap int) []provider.StreamEvent {
	if bufferTextLen(c.pending) < c.minOverlap {
		return nil
	}

	oldText, _ := reconstructText(c.buffer)
	newText, newIndices := reconstructText(c.pending)

	overlap := findMergePoint(oldText, newText, c.maxOverlap, minOverlap)
	if overlap < minOverlap || overlap == 0 {
		return nil
	}

	c.trimPendingOverlap(overlap, newIndices)

	out := make([]provider.StreamEvent, 0, len(c.buffer)+len(c.pending))
	out = append(out, c.buffer...)
	out = append(out, c.pending...)
	c.buffer = nil
	c.pending = nil

	c.state = stateNormal
	return out
}

type indexLen struct {
	index int
	len   int
}

// trimPendingOverlap removes charsToSkip characters from the start of the
// pending buffer.
func (c *EventChain) trimPendingOverlap(charsToSkip int, indices []indexLen) {
	lastConsumed := -1
	partialIdx := -1
	partialTrim := 0

	for _, il := range indices {
		if charsToSkip == 0 {
			break
		}
		if il.len <= charsToSkip {
			charsToSkip -= il.len
			lastConsumed = il.index
		} else {
			partialIdx = il.index
			partialTrim = charsToSkip
			charsToSkip = 0
		}
	}

	var drainUpTo int
	switch {
	case partialIdx >= 0:
		drainUpTo = partialIdx
	case lastConsumed >= 0:
		drainUpTo = lastConsumed + 1
	default:
		drainUpTo = 0
	}

	c.pending = c.pending[drainUpTo:]

	if partialIdx >= 0 && len(c.pending) > 0 {
		trimEventStart(&c.pending[0], partialTrim)
	}
}

// eventTextLen returns the text length of a Part event carrying a chat
// response, or 0 for anything else (flush/finished/tool-call/structured).
func eventTextLen(event provider.StreamEvent) int {
	return len(chatResponseContent(event))
}

func chatResponseContent(event provider.StreamEvent) string {
	if event.Kind != provider.KindPart {
		return ""
	}
	if event.Event.Kind.Tag != convo.KindChatResponse {
		return ""
	}
	cr := event.Event.Kind.ChatResponse
	if cr == nil {
		return ""
	}
	switch {
	case cr.Message != nil:
		return *cr.Message
	case cr.Reasoning != nil:
		return *cr.Reasoning
	default:
		return ""
	}
}

func setChatResponseContent(event *provider.StreamEvent, content string) {
	if event.Event.Kind.ChatResponse == nil {
		return
	}
	cr := event.Event.Kind.ChatResponse
	switch {
	case cr.Message != nil:
		cr.Message = &content
	case cr.Reasoning != nil:
		cr.Reasoning = &content
	}
}

// reconstructText concatenates the text content of every event, returning
// the joined string plus a list of (index, byteLen) pairs mapping string
// positions back to events.
func reconstructText(events []provider.StreamEvent) (string, []indexLen) {
	var b []byte
	var m []indexLen
	for i, e := range events {
		content := chatResponseContent(e)
		if content == "" {
			continue
		}
		b = append(b, content...)
		m = append(m, indexLen{index: i, len: len(content)})
	}
	return string(b), m
}

// trimEventStart removes count bytes from the start of event's text
// content, mutating it in place.
func trimEventStart(event *provider.StreamEvent, count int) {
	content := chatResponseContent(*event)
	if content == "" {
		return
	}
	if count < len(content) {
		setChatResponseContent(event, content[count:])
	} else {
		setChatResponseContent(event, "")
	}
}

// findMergePoint finds the overlap between the end of left and the start
// of right, returning the number of bytes to skip from the start of right
// to merge it seamlessly with left. Returns 0 if no overlap is found.
func findMergePoint(left, right string, maxSearch, minOverlap int) int {
	maxOverlap := min3(len(left), len(right), maxSearch)

	for overlap := maxOverlap; overlap >= minOverlap; overlap-- {
		if overlap == 0 {
			break
		}
		leftStart := len(left) - overlap
		if !validBoundary(left, leftStart) || !validBoundary(right, overlap) {
			continue
		}
		if left[leftStart:] == right[:overlap] {
			return overlap
		}
	}
	return 0
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// validBoundary reports whether i lies on a UTF-8 rune boundary in s.
func validBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	if i < 0 || i > len(s) {
		return false
	}
	return s[i]&0xC0 != 0x80
}
