package convo

// entry is one slot in the stream: either a ConfigDelta or a
// ConversationEvent, never both. Mirrors the InternalEvent tagged enum in
// the original implementation's on-disk representation.
type entry struct {
	delta *ConfigDelta
	event *ConversationEvent
}

// Stream is an ordered sequence of ConfigDelta / ConversationEvent entries
// layered over a base configuration. See spec §3.1/§3.2/§4.1.
type Stream struct {
	ID         string
	BaseConfig Config
	entries    []entry
}

// NewStream creates an empty stream with the given base configuration
// (spec §3.3 "Created").
func NewStream(id string, base Config) *Stream {
	if base == nil {
		base = Config{}
	}
	return &Stream{ID: id, BaseConfig: base.Clone()}
}

// ConversationEventWithConfig pairs an event with the configuration in
// force when it was appended.
type ConversationEventWithConfig struct {
	Event  ConversationEvent
	Config Config
}

// Config returns the result of merging every ConfigDelta in order over
// BaseConfig, including deltas that occur after the last event (Open
// Question #1 in spec §9, resolved: preserved — see DESIGN.md).
func (s *Stream) Config() Config {
	cfg := s.BaseConfig.Clone()
	for _, e := range s.entries {
		if e.delta != nil {
			cfg = Merge(cfg, e.delta.Delta)
		}
	}
	return cfg
}

// lastEffectiveConfig is Config() restricted to entries appended so far;
// equivalent to Config() since entries only grows, kept as a named step
// for readability at call sites that reason about "the config right now".
func (s *Stream) lastEffectiveConfig() Config { return s.Config() }

// Push appends event without inspecting config (spec §4.1 push).
func (s *Stream) Push(event ConversationEvent) {
	s.entries = append(s.entries, entry{event: &event})
}

// PushWithConfigDelta computes the delta between the last-effective config
// and cfg; if non-empty, appends a ConfigDelta entry first, then the
// event (spec §4.1 push_with_config_delta).
func (s *Stream) PushWithConfigDelta(event ConversationEvent, cfg Config) {
	prev := s.lastEffectiveConfig()
	d := Delta(prev, cfg)
	if !d.IsEmpty() {
		s.entries = append(s.entries, entry{delta: &ConfigDelta{Delta: d}})
	}
	s.Push(event)
}

// PushConfigDelta appends a config change with no accompanying event,
// computed against the current effective config. Such trailing deltas are
// invisible to Iter but are preserved and folded into Config() (spec §9
// Open Question, resolved: preserved — see DESIGN.md).
func (s *Stream) PushConfigDelta(cfg Config) {
	prev := s.lastEffectiveConfig()
	d := Delta(prev, cfg)
	if !d.IsEmpty() {
		s.entries = append(s.entries, entry{delta: &ConfigDelta{Delta: d}})
	}
}

// Len returns the number of entries (config deltas and events combined).
func (s *Stream) Len() int { return len(s.entries) }

// Events returns just the ConversationEvents, in order, discarding deltas.
func (s *Stream) Events() []ConversationEvent {
	out := make([]ConversationEvent, 0, len(s.entries))
	for _, e := range s.entries {
		if e.event != nil {
			out = append(out, *e.event)
		}
	}
	return out
}

// TrimChatRequest pops entries from the tail until a ChatRequest event is
// removed, returning that request (spec §4.1 trim_chat_request). Returns
// false if no ChatRequest is found.
func (s *Stream) TrimChatRequest() (ConversationEvent, bool) {
	for len(s.entries) > 0 {
		last := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		if last.event != nil && last.event.Kind.Tag == KindChatRequest {
			return *last.event, true
		}
	}
	return ConversationEvent{}, false
}

// Pop removes and returns the last ConversationEvent, skipping and
// discarding trailing bare ConfigDeltas (spec §4.1 pop).
func (s *Stream) Pop() (ConversationEvent, bool) {
	for len(s.entries) > 0 {
		last := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		if last.event != nil {
			return *last.event, true
		}
	}
	return ConversationEvent{}, false
}

// Iter returns every event paired with its effective config, maintaining
// a running merged config forward through the stream (spec §3.1, §4.1
// iter/iter_mut forward direction).
func (s *Stream) Iter() []ConversationEventWithConfig {
	out := make([]ConversationEventWithConfig, 0, len(s.entries))
	cfg := s.BaseConfig.Clone()
	for _, e := range s.entries {
		if e.delta != nil {
			cfg = Merge(cfg, e.delta.Delta)
			continue
		}
		out = append(out, ConversationEventWithConfig{Event: *e.event, Config: cfg})
	}
	return out
}

// IterBack returns every event paired with its effective config in
// reverse order, reconstructing each event's config by rescanning all
// deltas up to that position (spec §4.1 iter_mut backward direction —
// deliberately O(n^2) worst case, matching the original).
func (s *Stream) IterBack() []ConversationEventWithConfig {
	var positions []int
	for i, e := range s.entries {
		if e.event != nil {
			positions = append(positions, i)
		}
	}
	out := make([]ConversationEventWithConfig, 0, len(positions))
	for i := len(positions) - 1; i >= 0; i-- {
		pos := positions[i]
		cfg := s.BaseConfig.Clone()
		for _, e := range s.entries[:pos] {
			if e.delta != nil {
				cfg = Merge(cfg, e.delta.Delta)
			}
		}
		out = append(out, ConversationEventWithConfig{Event: *s.entries[pos].event, Config: cfg})
	}
	return out
}

// FromEvents builds a stream from a slice of already-paired
// events+configs, treating the first item's config as the new
// base_config. Fork does not use it: a fork keeps the source stream's
// BaseConfig.
func FromEvents(id string, items []ConversationEventWithConfig) *Stream {
	if len(items) == 0 {
		return NewStream(id, Config{})
	}
	s := NewStream(id, items[0].Config)
	prev := items[0].Config
	for _, it := range items {
		s.PushWithConfigDelta(it.Event, it.Config)
		prev = it.Config
	}
	_ = prev
	return s
}
