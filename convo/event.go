// Package convo implements the append-only conversation event stream: the
// typed event log that records chat turns, tool calls, inquiries, and
// layered configuration deltas for a single conversation.
package convo

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sidedotdev/jp/idgen"
)

// Role distinguishes who a question in an InquiryRequest originates from.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// InquirySource identifies the originator of an InquiryRequest.
type InquirySource struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"` // set when Role == RoleTool
}

// Question is a structured prompt attached to an InquiryRequest.
type Question struct {
	Kind    string   `json:"kind"` // "boolean" | "text" | "choice"
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
}

// ChatRequest is a user turn.
type ChatRequest struct {
	Content string          `json:"content"`
	Schema  json.RawMessage `json:"schema,omitempty"`
}

// ChatResponse is one of Reasoning, Message, or Structured. Exactly one
// field is set, mirroring the closed three-variant union in the original
// model; Go has no sum types, so the tag lives on the field set.
type ChatResponse struct {
	Reasoning  *string          `json:"reasoning,omitempty"`
	Message    *string          `json:"message,omitempty"`
	Structured *json.RawMessage `json:"structured,omitempty"`
}

func ReasoningResponse(text string) ChatResponse { return ChatResponse{Reasoning: &text} }
func MessageResponse(text string) ChatResponse   { return ChatResponse{Message: &text} }
func StructuredResponse(data json.RawMessage) ChatResponse {
	return ChatResponse{Structured: &data}
}

// ToolCallRequest is a model-issued tool invocation. Arguments is an
// ordered map (insertion order matters for display and for the
// first-write-wins merge rule in convo/builder), kept ordered via keys
// plus a backing map rather than a third-party ordered-map type since the
// ordering is only load-bearing within this one package.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	ArgKeys   []string       `json:"-"`
	Arguments map[string]any `json:"arguments"`
}

// NewToolCallRequest builds a request with an empty, ordered argument map.
func NewToolCallRequest(id, name string) ToolCallRequest {
	return ToolCallRequest{ID: id, Name: name, Arguments: map[string]any{}}
}

// SetArgument inserts a key if absent, preserving insertion order. It never
// overwrites an existing key — see DESIGN.md's resolution of the
// tool-call-argument-merge open question.
func (r *ToolCallRequest) SetArgument(key string, value any) {
	if _, ok := r.Arguments[key]; ok {
		return
	}
	if r.Arguments == nil {
		r.Arguments = map[string]any{}
	}
	r.Arguments[key] = value
	r.ArgKeys = append(r.ArgKeys, key)
}

// MarshalJSON emits arguments in insertion order.
func (r ToolCallRequest) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	ordered := json.RawMessage("{}")
	if len(r.ArgKeys) > 0 {
		var buf []byte
		buf = append(buf, '{')
		for i, k := range r.ArgKeys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(r.Arguments[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		ordered = buf
	} else if len(r.Arguments) > 0 {
		b, err := json.Marshal(r.Arguments)
		if err != nil {
			return nil, err
		}
		ordered = b
	}
	return json.Marshal(struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{r.ID, r.Name, ordered})
}

func (r *ToolCallRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID, r.Name = raw.ID, raw.Name
	r.Arguments = map[string]any{}
	r.ArgKeys = nil
	if len(raw.Arguments) == 0 {
		return nil
	}
	dec := json.NewDecoder(jsonReader(raw.Arguments))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.Arguments[key] = v
		r.ArgKeys = append(r.ArgKeys, key)
	}
	return nil
}

// ToolCallResult is ok(text) xor err(text).
type ToolCallResult struct {
	Ok  *string `json:"ok,omitempty"`
	Err *string `json:"err,omitempty"`
}

func OkResult(text string) ToolCallResult  { return ToolCallResult{Ok: &text} }
func ErrResult(text string) ToolCallResult { return ToolCallResult{Err: &text} }

// ToolCallResponse must reference an earlier ToolCallRequest.ID.
type ToolCallResponse struct {
	ID     string         `json:"id"`
	Result ToolCallResult `json:"result"`
}

// InquiryRequest is a structured question posed mid-tool-execution.
type InquiryRequest struct {
	ID       string        `json:"id"`
	Source   InquirySource `json:"source"`
	Question Question      `json:"question"`
}

// InquiryResponse must reference an earlier InquiryRequest.ID.
type InquiryResponse struct {
	ID     string          `json:"id"`
	Answer json.RawMessage `json:"answer"`
}

// EventKind is the closed tagged union of everything that can appear in a
// ConversationStream besides a ConfigDelta. Dispatch is always on the Tag
// field, never on a type hierarchy.
type EventKind struct {
	Tag string `json:"type"`

	ChatRequest      *ChatRequest      `json:"chat_request,omitempty"`
	ChatResponse     *ChatResponse     `json:"chat_response,omitempty"`
	ToolCallRequest  *ToolCallRequest  `json:"tool_call_request,omitempty"`
	ToolCallResponse *ToolCallResponse `json:"tool_call_response,omitempty"`
	InquiryRequest   *InquiryRequest   `json:"inquiry_request,omitempty"`
	InquiryResponse  *InquiryResponse  `json:"inquiry_response,omitempty"`
}

const (
	KindChatRequest      = "chat_request"
	KindChatResponse     = "chat_response"
	KindToolCallRequest  = "tool_call_request"
	KindToolCallResponse = "tool_call_response"
	KindInquiryRequest   = "inquiry_request"
	KindInquiryResponse  = "inquiry_response"
	KindTurnStart        = "turn_start"
)

func NewChatRequest(content string, schema json.RawMessage) EventKind {
	return EventKind{Tag: KindChatRequest, ChatRequest: &ChatRequest{Content: content, Schema: schema}}
}

func NewChatResponse(r ChatResponse) EventKind {
	return EventKind{Tag: KindChatResponse, ChatResponse: &r}
}

func NewToolCallRequestKind(r ToolCallRequest) EventKind {
	return EventKind{Tag: KindToolCallRequest, ToolCallRequest: &r}
}

func NewToolCallResponseKind(r ToolCallResponse) EventKind {
	return EventKind{Tag: KindToolCallResponse, ToolCallResponse: &r}
}

func NewInquiryRequest(r InquiryRequest) EventKind {
	return EventKind{Tag: KindInquiryRequest, InquiryRequest: &r}
}

func NewInquiryResponse(r InquiryResponse) EventKind {
	return EventKind{Tag: KindInquiryResponse, InquiryResponse: &r}
}

func NewTurnStart() EventKind { return EventKind{Tag: KindTurnStart} }

// ConversationEvent is one immutable entry in a ConversationStream.
type ConversationEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventKind      `json:"kind"`
	Metadata  *OrderedValues `json:"metadata"`
}

// Now constructs an event stamped with the current time and empty
// metadata. The timestamp comes from idgen's injectable clock singleton
// (spec §6.3/§9), so pinning that clock in a test makes every Now() call
// in the test deterministic without threading a Clock through callers.
func Now(kind EventKind) ConversationEvent {
	return ConversationEvent{Timestamp: idgen.Now(), Kind: kind, Metadata: NewOrderedValues()}
}

// At constructs an event with an explicit timestamp, for deterministic tests.
func At(ts time.Time, kind EventKind) ConversationEvent {
	return ConversationEvent{Timestamp: ts.UTC(), Kind: kind, Metadata: NewOrderedValues()}
}

func jsonReader(b []byte) *byteReader { return &byteReader{b: b} }

// byteReader is a minimal io.Reader over a byte slice, used to stream
// raw JSON arguments through json.Decoder so key order is preserved.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
