// Package google adapts the Gemini API (google.golang.org/genai) to the
// provider.Provider interface.
package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

const thoughtSignatureKey = "google_thought_signature"

// dummyThoughtSignature is sent when a reasoning block in history has no
// captured signature (e.g. it was produced by another provider, or
// capture failed). Gemini requires some signature bytes be present on a
// replayed reasoning block; an empty one is rejected, a wrong one is not
// detectable as wrong, so a fixed sentinel is as good as any value here.
var dummyThoughtSignature = []byte("jp-dummy-thought-signature")

const defaultModel = "gemini-2.5-pro"

const unexpectedToolCallErr = "UNEXPECTED_TOOL_CALL"

const maxUnexpectedToolCallRetries = 3

// Provider speaks the Gemini API.
type Provider struct {
	APIKey string
}

func New(apiKey string) *Provider { return &Provider{APIKey: apiKey} }

func (p *Provider) client(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

var knownModels = map[string]provider.ModelDetails{
	"gemini-2.5-pro": {
		Name: "gemini-2.5-pro", ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
		Reasoning: provider.ReasoningSupport{Tag: "budgeted", MinTokens: 128, MaxTokens: 32_768},
	},
	"gemini-2.5-flash": {
		Name: "gemini-2.5-flash", ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
		Reasoning: provider.ReasoningSupport{Tag: "budgeted", MinTokens: 0, MaxTokens: 24_576},
	},
}

func (p *Provider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	if d, ok := knownModels[name]; ok {
		return d, nil
	}
	return provider.ModelDetails{}, fmt.Errorf("google: unknown model %q", name)
}

func (p *Provider) Models(ctx context.Context) ([]provider.ModelDetails, error) {
	out := make([]provider.ModelDetails, 0, len(knownModels))
	for _, d := range knownModels {
		out = append(out, d)
	}
	return out, nil
}

// ChatCompletionStream retries the whole request up to
// maxUnexpectedToolCallRetries times when the vendor reports
// UNEXPECTED_TOOL_CALL, a known spurious failure mode triggered by tools
// being available in earlier turns but absent from this one.
func (p *Provider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	var err error
	for attempt := 0; attempt <= maxUnexpectedToolCallRetries; attempt++ {
		err = p.chatCompletionStreamOnce(ctx, model, query, events)
		if err == nil || !isUnexpectedToolCall(err) {
			return err
		}
	}
	return err
}

func isUnexpectedToolCall(err error) bool {
	return err != nil && strings.Contains(err.Error(), unexpectedToolCallErr)
}

func (p *Provider) chatCompletionStreamOnce(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	if model == "" {
		model = defaultModel
	}

	client, err := p.client(ctx)
	if err != nil {
		return fmt.Errorf("google: create client: %w", err)
	}

	contents := streamToContents(query.Stream)

	toolConfig, err := toolChoiceToGenai(query.ToolChoice)
	if err != nil {
		return err
	}

	config := &genai.GenerateContentConfig{
		ToolConfig:     toolConfig,
		Tools:          toolsToGenai(query.Tools),
		ThinkingConfig: &genai.ThinkingConfig{IncludeThoughts: true},
	}
	if sys := systemInstruction(query); sys != nil {
		config.SystemInstruction = sys
	}

	stream := client.Models.GenerateContentStream(ctx, model, contents, config)

	const (
		reasoningIndex = 0
		messageIndex   = 1
		toolIndexBase  = 2
	)

	nextToolIndex := toolIndexBase
	finish := provider.Completed()
	reasoningStarted := false
	messageStarted := false

	for result, err := range stream {
		if err != nil {
			return classifyErr(err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}
		candidate := result.Candidates[0]

		for _, part := range candidate.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				req := convo.NewToolCallRequest(part.FunctionCall.ID, part.FunctionCall.Name)
				for k, v := range part.FunctionCall.Args {
					req.SetArgument(k, v)
				}
				idx := nextToolIndex
				nextToolIndex++
				events <- provider.Part(idx, convo.Now(convo.NewToolCallRequestKind(req)))
				events <- provider.Flush(idx, nil)
			case part.Thought && part.Text != "":
				reasoningStarted = true
				ev := convo.Now(convo.NewChatResponse(convo.ReasoningResponse(part.Text)))
				if len(part.ThoughtSignature) > 0 {
					ev.Metadata.Set(thoughtSignatureKey, base64.StdEncoding.EncodeToString(part.ThoughtSignature))
				}
				events <- provider.Part(reasoningIndex, ev)
			case part.Text != "":
				messageStarted = true
				events <- provider.Part(messageIndex, convo.Now(convo.NewChatResponse(convo.MessageResponse(part.Text))))
			}
		}

		if candidate.FinishReason != "" {
			finish = finishReasonFor(candidate.FinishReason)
		}
	}

	if reasoningStarted {
		events <- provider.Flush(reasoningIndex, nil)
	}
	if messageStarted {
		events <- provider.Flush(messageIndex, nil)
	}
	events <- provider.Finished(finish)
	return nil
}

func systemInstruction(query provider.ChatQuery) *genai.Content {
	var parts []*genai.Part
	if query.System != "" {
		parts = append(parts, &genai.Part{Text: query.System})
	}
	if query.Instructions != "" {
		parts = append(parts, &genai.Part{Text: query.Instructions})
	}
	for _, a := range query.Attachments {
		parts = append(parts, &genai.Part{Text: a})
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Parts: parts, Role: "user"}
}

// streamToContents flattens a conversation stream into genai's
// role-grouped Content list, coalescing consecutive same-role turns the
// same way the teacher's googleFromChatMessages does.
func streamToContents(stream *convo.Stream) []*genai.Content {
	if stream == nil {
		return nil
	}

	var contents []*genai.Content
	var currentRole string
	var currentParts []*genai.Part

	flush := func() {
		if len(currentParts) > 0 {
			contents = append(contents, &genai.Content{Parts: currentParts, Role: currentRole})
		}
	}

	for _, entry := range stream.Iter() {
		role, parts := eventToParts(entry.Event)
		if len(parts) == 0 {
			continue
		}
		if role != currentRole && currentRole != "" {
			flush()
			currentParts = nil
		}
		currentRole = role
		currentParts = append(currentParts, parts...)
	}
	flush()

	return contents
}

func eventToParts(ev convo.ConversationEvent) (string, []*genai.Part) {
	switch ev.Kind.Tag {
	case convo.KindChatRequest:
		return "user", []*genai.Part{{Text: ev.Kind.ChatRequest.Content}}
	case convo.KindChatResponse:
		r := ev.Kind.ChatResponse
		switch {
		case r.Message != nil:
			return "model", []*genai.Part{{Text: *r.Message}}
		case r.Reasoning != nil:
			return "model", []*genai.Part{{Text: *r.Reasoning, Thought: true, ThoughtSignature: thoughtSignatureFor(ev)}}
		case r.Structured != nil:
			return "model", []*genai.Part{{Text: string(*r.Structured)}}
		}
		return "model", nil
	case convo.KindToolCallRequest:
		req := ev.Kind.ToolCallRequest
		return "model", []*genai.Part{{
			FunctionCall:     &genai.FunctionCall{ID: req.ID, Name: req.Name, Args: req.Arguments},
			ThoughtSignature: thoughtSignatureFor(ev),
		}}
	case convo.KindToolCallResponse:
		resp := ev.Kind.ToolCallResponse
		fr := genai.FunctionResponse{ID: resp.ID}
		if resp.Result.Ok != nil {
			fr.Response = map[string]any{"output": *resp.Result.Ok}
		} else if resp.Result.Err != nil {
			fr.Response = map[string]any{"error": *resp.Result.Err}
		}
		return "user", []*genai.Part{{FunctionResponse: &fr}}
	default:
		return "", nil
	}
}

// thoughtSignatureFor recovers a captured thought signature from event
// metadata, falling back to the dummy sentinel so replayed
// reasoning/tool-call blocks never go out with no signature at all.
func thoughtSignatureFor(ev convo.ConversationEvent) []byte {
	if v, ok := ev.Metadata.Get(thoughtSignatureKey); ok {
		if s, ok := v.(string); ok {
			if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
				return decoded
			}
		}
	}
	return dummyThoughtSignature
}

func toolsToGenai(tools []provider.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  jsonSchemaToGenai(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// jsonSchemaToGenai walks a core-JSON-Schema-subset document (already
// rewritten for Gemini by the schema package: inlined $refs, const turned
// into a single-element enum, propertyOrdering set) into genai's typed
// Schema, mirroring the teacher's googleFromSchema but reading from a
// decoded map instead of an *jsonschema.Schema value.
func jsonSchemaToGenai(raw json.RawMessage) *genai.Schema {
	if len(raw) == 0 {
		return nil
	}
	var doc struct {
		Type        string                     `json:"type"`
		Description string                     `json:"description"`
		Enum        []string                   `json:"enum"`
		Required    []string                   `json:"required"`
		Properties  map[string]json.RawMessage `json:"properties"`
		Items       json.RawMessage            `json:"items"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	schema := &genai.Schema{
		Type:        genai.Type(doc.Type),
		Description: doc.Description,
		Required:    doc.Required,
		Enum:        doc.Enum,
	}
	if len(doc.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(doc.Properties))
		for name, propRaw := range doc.Properties {
			schema.Properties[name] = jsonSchemaToGenai(propRaw)
		}
	}
	if len(doc.Items) > 0 {
		schema.Items = jsonSchemaToGenai(doc.Items)
	}
	return schema
}

func toolChoiceToGenai(choice provider.ToolChoice) (*genai.ToolConfig, error) {
	var mode genai.FunctionCallingConfigMode
	var allowed []string
	switch choice.Tag {
	case "", "auto":
		mode = genai.FunctionCallingConfigModeAuto
	case "none":
		mode = genai.FunctionCallingConfigModeNone
	case "required":
		mode = genai.FunctionCallingConfigModeAny
	case "function":
		mode = genai.FunctionCallingConfigModeAny
		allowed = []string{choice.FunctionName}
	default:
		return nil, fmt.Errorf("google: unknown tool choice %q", choice.Tag)
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 mode,
			AllowedFunctionNames: allowed,
		},
	}, nil
}

func finishReasonFor(reason genai.FinishReason) provider.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return provider.Completed()
	case genai.FinishReasonMaxTokens:
		return provider.MaxTokens()
	default:
		return provider.OtherFinish(string(reason))
	}
}

// classifyErr has no Gemini-specific HTTP status/header surface to read
// from this client's error type, so most failures are treated as
// transport-level errors. The one signal available regardless of error
// shape is the message text, which is enough to catch quota exhaustion
// (genai surfaces it as a RESOURCE_EXHAUSTED status in the error string).
func classifyErr(err error) error {
	if provider.LooksLikeQuotaError(err.Error()) {
		return provider.InsufficientQuotaError(err.Error()).WithSource(err)
	}
	return provider.ClassifyTransportError(err)
}
