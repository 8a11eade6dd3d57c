package convo

import "time"

// Fork clones BaseConfig and the events whose timestamps fall in
// [from, until] (either bound may be zero to mean unbounded), sanitizes
// the result, and returns it as a new stream with newID (spec §3.3 Fork).
func (s *Stream) Fork(newID string, from, until time.Time) *Stream {
	var items []ConversationEventWithConfig
	for _, it := range s.Iter() {
		if !from.IsZero() && it.Event.Timestamp.Before(from) {
			continue
		}
		if !until.IsZero() && it.Event.Timestamp.After(until) {
			continue
		}
		items = append(items, it)
	}

	forked := NewStream(newID, s.BaseConfig)
	for _, it := range items {
		forked.PushWithConfigDelta(it.Event, it.Config)
	}
	forked.Sanitize()
	return forked
}
