package convo

// Sanitize idempotently normalizes the stream (spec §4.1 sanitize):
//  1. Drops leading events that are not TurnStart or ChatRequest.
//  2. Removes any ToolCallResponse whose matching request is missing.
//  3. Removes any InquiryRequest without a later matching InquiryResponse
//     and any InquiryResponse without an earlier matching InquiryRequest.
//  4. Coalesces runs of consecutive TurnStart events into one.
//  5. Re-indexes TurnStarts so they occur exactly at the boundary
//     preceding each ChatRequest.
//  6. Removes trailing empty turns (a TurnStart with no subsequent
//     non-marker event).
//
// Sanitize never errors; it only removes or inserts events. It is
// idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func (s *Stream) Sanitize() {
	events := s.Events()

	events = dropLeadingOrphans(events)
	events = dropOrphanToolResponses(events)
	events = dropUnpairedInquiries(events)
	events = reindexTurnStarts(events)
	events = dropTrailingEmptyTurns(events)

	s.rebuild(events)
}

// rebuild replaces s's entries with fresh ones carrying the given events,
// recomputing config deltas against the original per-event config so the
// effective config for each surviving event is unchanged.
func (s *Stream) rebuild(events []ConversationEvent) {
	original := s.Iter()
	cfgFor := make([]Config, len(events))
	used := make([]bool, len(original))
	for i, ev := range events {
		for j, orig := range original {
			if used[j] {
				continue
			}
			if sameEvent(orig.Event, ev) {
				cfgFor[i] = orig.Config
				used[j] = true
				break
			}
		}
	}

	base := s.BaseConfig
	newStream := NewStream(s.ID, base)
	for i, ev := range events {
		cfg := cfgFor[i]
		if cfg == nil {
			cfg = newStream.lastEffectiveConfig()
		}
		newStream.PushWithConfigDelta(ev, cfg)
	}
	s.entries = newStream.entries
}

// sameEvent compares two events for the purpose of rebuild's matching; it
// is deliberately identity-like (timestamp + tag + id where applicable)
// since synthetic events inserted by sanitize_orphaned_tool_calls won't
// have an original counterpart anyway.
func sameEvent(a, b ConversationEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) || a.Kind.Tag != b.Kind.Tag {
		return false
	}
	switch a.Kind.Tag {
	case KindToolCallRequest:
		return a.Kind.ToolCallRequest.ID == b.Kind.ToolCallRequest.ID
	case KindToolCallResponse:
		return a.Kind.ToolCallResponse.ID == b.Kind.ToolCallResponse.ID
	case KindInquiryRequest:
		return a.Kind.InquiryRequest.ID == b.Kind.InquiryRequest.ID
	case KindInquiryResponse:
		return a.Kind.InquiryResponse.ID == b.Kind.InquiryResponse.ID
	default:
		return true
	}
}

func dropLeadingOrphans(events []ConversationEvent) []ConversationEvent {
	i := 0
	for i < len(events) {
		tag := events[i].Kind.Tag
		if tag == KindTurnStart || tag == KindChatRequest {
			break
		}
		i++
	}
	return events[i:]
}

func dropOrphanToolResponses(events []ConversationEvent) []ConversationEvent {
	requested := map[string]bool{}
	for _, e := range events {
		if e.Kind.Tag == KindToolCallRequest {
			requested[e.Kind.ToolCallRequest.ID] = true
		}
	}
	out := make([]ConversationEvent, 0, len(events))
	for _, e := range events {
		if e.Kind.Tag == KindToolCallResponse && !requested[e.Kind.ToolCallResponse.ID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func dropUnpairedInquiries(events []ConversationEvent) []ConversationEvent {
	requestIdx := map[string]int{}
	responseIdx := map[string]int{}
	for i, e := range events {
		switch e.Kind.Tag {
		case KindInquiryRequest:
			requestIdx[e.Kind.InquiryRequest.ID] = i
		case KindInquiryResponse:
			responseIdx[e.Kind.InquiryResponse.ID] = i
		}
	}
	drop := map[int]bool{}
	for id, ri := range requestIdx {
		si, ok := responseIdx[id]
		if !ok || si <= ri {
			drop[ri] = true
		}
	}
	for id, si := range responseIdx {
		ri, ok := requestIdx[id]
		if !ok || si <= ri {
			drop[si] = true
		}
	}
	out := make([]ConversationEvent, 0, len(events))
	for i, e := range events {
		if drop[i] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// reindexTurnStarts coalesces consecutive TurnStart events into one and
// ensures a TurnStart occurs exactly once immediately before each
// ChatRequest, removing stray TurnStarts elsewhere. The first retained
// event in a non-empty result is always a TurnStart (spec §3.2: "the
// sanitizer guarantees that the first retained event in the stream is a
// TurnStart"). Within Sanitize this step runs after dropLeadingOrphans, so
// the event it puts the leading TurnStart in front of is a ChatRequest
// unless an original TurnStart came first.
func reindexTurnStarts(events []ConversationEvent) []ConversationEvent {
	var stripped []ConversationEvent
	for _, e := range events {
		if e.Kind.Tag == KindTurnStart {
			continue
		}
		stripped = append(stripped, e)
	}
	if len(stripped) == 0 {
		return stripped
	}

	out := make([]ConversationEvent, 0, len(stripped)+4)
	out = append(out, At(stripped[0].Timestamp, NewTurnStart()))
	for _, e := range stripped {
		if e.Kind.Tag == KindChatRequest {
			out = append(out, At(e.Timestamp, NewTurnStart()))
		}
		out = append(out, e)
	}
	return coalesceConsecutiveTurnStarts(out)
}

func coalesceConsecutiveTurnStarts(events []ConversationEvent) []ConversationEvent {
	out := make([]ConversationEvent, 0, len(events))
	for _, e := range events {
		if e.Kind.Tag == KindTurnStart && len(out) > 0 && out[len(out)-1].Kind.Tag == KindTurnStart {
			continue
		}
		out = append(out, e)
	}
	return out
}

func dropTrailingEmptyTurns(events []ConversationEvent) []ConversationEvent {
	for len(events) > 0 && events[len(events)-1].Kind.Tag == KindTurnStart {
		events = events[:len(events)-1]
	}
	return events
}

// SanitizeOrphanedToolCalls inserts, immediately after each
// ToolCallRequest with no later ToolCallResponse of the same id, a
// synthetic error response bearing the same id and the text
// "interrupted" (spec §4.1 sanitize_orphaned_tool_calls).
func (s *Stream) SanitizeOrphanedToolCalls() {
	events := s.Events()
	responded := map[string]bool{}
	for _, e := range events {
		if e.Kind.Tag == KindToolCallResponse {
			responded[e.Kind.ToolCallResponse.ID] = true
		}
	}

	out := make([]ConversationEvent, 0, len(events)+1)
	for _, e := range events {
		out = append(out, e)
		if e.Kind.Tag == KindToolCallRequest {
			id := e.Kind.ToolCallRequest.ID
			if !responded[id] {
				out = append(out, At(e.Timestamp, NewToolCallResponseKind(ToolCallResponse{
					ID:     id,
					Result: ErrResult("interrupted"),
				})))
			}
		}
	}
	s.rebuild(out)
}
