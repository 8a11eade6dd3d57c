package convo

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// diskEntry is one line of the on-disk event log (spec §6.1): either a
// config_delta or a tagged, timestamped event.
type diskEntry struct {
	Type string `json:"type,omitempty"` // "config_delta" when present

	Delta Config `json:"delta,omitempty"`

	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Kind      *EventKind     `json:"kind,omitempty"`
	Metadata  *OrderedValues `json:"metadata,omitempty"`
}

// Write serializes the stream to w as newline-delimited JSON objects, one
// per entry, first entry always a config_delta carrying BaseConfig (spec
// §3.2, §6.1). Tool-call argument string values and tool-call response
// result text are base64-encoded before serialization.
func (s *Stream) Write(w io.Writer) error {
	enc := json.NewEncoder(w)

	if err := enc.Encode(diskEntry{Type: "config_delta", Delta: s.BaseConfig}); err != nil {
		return fmt.Errorf("convo: encode base config: %w", err)
	}

	for _, e := range s.entries {
		if e.delta != nil {
			if err := enc.Encode(diskEntry{Type: "config_delta", Delta: e.delta.Delta}); err != nil {
				return fmt.Errorf("convo: encode config delta: %w", err)
			}
			continue
		}
		ev := encodeOpaque(*e.event)
		ts := ev.Timestamp
		if err := enc.Encode(diskEntry{Timestamp: &ts, Kind: &ev.Kind, Metadata: ev.Metadata}); err != nil {
			return fmt.Errorf("convo: encode event: %w", err)
		}
	}
	return nil
}

// Read deserializes a stream previously written by Write. The first
// on-disk entry must be a config_delta; any other first entry is a fatal
// read error (spec §4.1 "Serialization fails if the first on-disk entry
// is not a ConfigDelta").
func Read(id string, r io.Reader) (*Stream, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var s *Stream
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var de diskEntry
		if err := json.Unmarshal(line, &de); err != nil {
			return nil, fmt.Errorf("convo: malformed entry: %w", err)
		}

		if first {
			if de.Type != "config_delta" {
				return nil, fmt.Errorf("convo: first entry must be a config_delta, got %q", de.Type)
			}
			s = NewStream(id, de.Delta)
			first = false
			continue
		}

		if de.Type == "config_delta" {
			s.entries = append(s.entries, entry{delta: &ConfigDelta{Delta: de.Delta}})
			continue
		}
		if de.Timestamp == nil || de.Kind == nil {
			return nil, fmt.Errorf("convo: malformed event entry")
		}
		ev := ConversationEvent{Timestamp: *de.Timestamp, Kind: *de.Kind, Metadata: de.Metadata}
		if ev.Metadata == nil {
			ev.Metadata = NewOrderedValues()
		}
		ev = decodeOpaque(ev)
		s.entries = append(s.entries, entry{event: &ev})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("convo: read: %w", err)
	}
	if first {
		return nil, fmt.Errorf("convo: empty stream on disk")
	}
	return s, nil
}

// encodeOpaque returns a copy of ev with tool-call payload text replaced
// by its base64 encoding (spec §3.2 tool-call payload opacity).
func encodeOpaque(ev ConversationEvent) ConversationEvent {
	switch ev.Kind.Tag {
	case KindToolCallRequest:
		req := *ev.Kind.ToolCallRequest
		newArgs := make(map[string]any, len(req.Arguments))
		for k, v := range req.Arguments {
			if str, ok := v.(string); ok {
				newArgs[k] = base64.StdEncoding.EncodeToString([]byte(str))
			} else {
				newArgs[k] = v
			}
		}
		req.Arguments = newArgs
		ev.Kind.ToolCallRequest = &req
	case KindToolCallResponse:
		resp := *ev.Kind.ToolCallResponse
		resp.Result = encodeResult(resp.Result)
		ev.Kind.ToolCallResponse = &resp
	}
	return ev
}

func decodeOpaque(ev ConversationEvent) ConversationEvent {
	switch ev.Kind.Tag {
	case KindToolCallRequest:
		req := *ev.Kind.ToolCallRequest
		newArgs := make(map[string]any, len(req.Arguments))
		for _, k := range req.ArgKeys {
			v := req.Arguments[k]
			if str, ok := v.(string); ok {
				if dec, err := base64.StdEncoding.DecodeString(str); err == nil {
					newArgs[k] = string(dec)
					continue
				}
			}
			newArgs[k] = v
		}
		req.Arguments = newArgs
		ev.Kind.ToolCallRequest = &req
	case KindToolCallResponse:
		resp := *ev.Kind.ToolCallResponse
		resp.Result = decodeResult(resp.Result)
		ev.Kind.ToolCallResponse = &resp
	}
	return ev
}

func encodeResult(r ToolCallResult) ToolCallResult {
	if r.Ok != nil {
		enc := base64.StdEncoding.EncodeToString([]byte(*r.Ok))
		return ToolCallResult{Ok: &enc}
	}
	if r.Err != nil {
		enc := base64.StdEncoding.EncodeToString([]byte(*r.Err))
		return ToolCallResult{Err: &enc}
	}
	return r
}

func decodeResult(r ToolCallResult) ToolCallResult {
	if r.Ok != nil {
		if dec, err := base64.StdEncoding.DecodeString(*r.Ok); err == nil {
			s := string(dec)
			return ToolCallResult{Ok: &s}
		}
		return r
	}
	if r.Err != nil {
		if dec, err := base64.StdEncoding.DecodeString(*r.Err); err == nil {
			s := string(dec)
			return ToolCallResult{Err: &s}
		}
		return r
	}
	return r
}
