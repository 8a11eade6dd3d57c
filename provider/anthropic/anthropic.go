// Package anthropic adapts Anthropic's Messages API to the provider.Provider
// interface (spec §4.3, §4.3.1 "Anthropic").
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

const (
	defaultModel     = "claude-opus-4-5"
	defaultMaxTokens = 8192

	// thinkingSignatureKey is the metadata key a reasoning Part's
	// signature-delta is stored under, so it can later be echoed back
	// (spec §4.3.1: "Thinking signatures ... must be captured into
	// metadata"). The SDK surface for sending a signed thinking block back
	// in history isn't exercised anywhere in the example pack, so history
	// replay degrades reasoning to a plain text block — see DESIGN.md.
	thinkingSignatureKey = "anthropic_thinking_signature"
)

// Provider implements provider.Provider against the Anthropic Messages API.
type Provider struct {
	APIKey     string
	HTTPClient *http.Client
}

func New(apiKey string) *Provider {
	return &Provider{APIKey: apiKey, HTTPClient: &http.Client{Timeout: 45 * time.Minute}}
}

func (p *Provider) client() anthropic.Client {
	return anthropic.NewClient(
		option.WithHTTPClient(p.HTTPClient),
		option.WithAPIKey(p.APIKey),
	)
}

func (p *Provider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	return knownModels[name], nil
}

func (p *Provider) Models(ctx context.Context) ([]provider.ModelDetails, error) {
	out := make([]provider.ModelDetails, 0, len(knownModels))
	for _, m := range knownModels {
		out = append(out, m)
	}
	return out, nil
}

var knownModels = map[string]provider.ModelDetails{
	"claude-opus-4-5": {
		Name:            "claude-opus-4-5",
		ContextWindow:   200_000,
		MaxOutputTokens: 32_000,
		Reasoning:       provider.ReasoningSupport{Tag: "budgeted", MinTokens: 1024, MaxTokens: 32_000},
		KnowledgeCutoff: "2025-03",
	},
	"claude-sonnet-4-5": {
		Name:            "claude-sonnet-4-5",
		ContextWindow:   200_000,
		MaxOutputTokens: 64_000,
		Reasoning:       provider.ReasoningSupport{Tag: "budgeted", MinTokens: 1024, MaxTokens: 64_000},
		KnowledgeCutoff: "2025-01",
	},
}

// ChatCompletionStream builds an Anthropic request from query, streams it,
// and translates SSE events into Part/Flush/Finished on events.
func (p *Provider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	if model == "" {
		model = defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokensFor(model)),
	}

	if query.System != "" || query.Instructions != "" {
		params.System = systemBlocks(query.System, query.Instructions, query.Attachments)
	}

	if query.Stream != nil {
		messages, err := streamToMessages(query.Stream)
		if err != nil {
			return err
		}
		params.Messages = messages
	}

	if len(query.Tools) > 0 {
		params.Tools = toolsToParams(query.Tools)
		params.ToolChoice = toolChoiceToParam(query.ToolChoice)
	}

	stream := p.client().Messages.NewStreaming(ctx, params)
	return consumeStream(stream, events)
}

func maxTokensFor(model string) int {
	if info, ok := knownModels[model]; ok && info.MaxOutputTokens > 0 {
		return info.MaxOutputTokens
	}
	return defaultMaxTokens
}

func systemBlocks(system, instructions string, attachments []string) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if system != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: system})
	}
	if instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: instructions})
	}
	for _, a := range attachments {
		blocks = append(blocks, anthropic.TextBlockParam{Text: a})
	}
	// Cache the last system block: it changes least often across turns.
	if n := len(blocks); n > 0 {
		blocks[n-1].CacheControl = anthropic.CacheControlEphemeralParam{Type: "ephemeral"}
	}
	return blocks
}

func toolsToParams(tools []provider.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		var schema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		_ = json.Unmarshal(t.Parameters, &schema)
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.Opt(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
					Type:       constant.Object(schema.Type),
				},
			},
		}
	}
	return out
}

func toolChoiceToParam(choice provider.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice.Tag {
	case "none":
		// Anthropic has no explicit "none"; callers wanting this must omit
		// tools entirely. Fall back to auto rather than erroring.
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	case "required":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case "function":
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice.FunctionName}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

// streamToMessages walks query.Stream's events and coalesces them into
// Anthropic's alternating user/assistant message list.
func streamToMessages(stream *convo.Stream) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var role anthropic.MessageParamRole
	var blocks []anthropic.ContentBlockParamUnion
	haveRole := false

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == anthropic.MessageParamRoleUser {
			result = append(result, anthropic.NewUserMessage(blocks...))
		} else {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		}
		blocks = nil
	}

	for _, item := range stream.Iter() {
		ev := item.Event
		newRole, block, ok := eventToBlock(ev)
		if !ok {
			continue
		}
		if haveRole && newRole != role {
			flush()
		}
		role, haveRole = newRole, true
		blocks = append(blocks, block)
	}
	flush()
	return result, nil
}

func eventToBlock(ev convo.ConversationEvent) (anthropic.MessageParamRole, anthropic.ContentBlockParamUnion, bool) {
	switch ev.Kind.Tag {
	case convo.KindChatRequest:
		return anthropic.MessageParamRoleUser, anthropic.NewTextBlock(ev.Kind.ChatRequest.Content), true

	case convo.KindChatResponse:
		cr := ev.Kind.ChatResponse
		switch {
		case cr.Message != nil:
			return anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(*cr.Message), true
		case cr.Reasoning != nil:
			return anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(*cr.Reasoning), true
		case cr.Structured != nil:
			return anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(string(*cr.Structured)), true
		}
		return "", anthropic.ContentBlockParamUnion{}, false

	case convo.KindToolCallRequest:
		req := ev.Kind.ToolCallRequest
		args := map[string]any(req.Arguments)
		if args == nil {
			args = map[string]any{}
		}
		return anthropic.MessageParamRoleAssistant, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{ID: req.ID, Name: req.Name, Input: args},
		}, true

	case convo.KindToolCallResponse:
		resp := ev.Kind.ToolCallResponse
		text := ""
		isErr := false
		if resp.Result.Ok != nil {
			text = *resp.Result.Ok
		} else if resp.Result.Err != nil {
			text = *resp.Result.Err
			isErr = true
		}
		return anthropic.MessageParamRoleUser, anthropic.ContentBlockParamUnion{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: resp.ID,
				Content:   []anthropic.ToolResultBlockParamContentUnion{{OfText: &anthropic.TextBlockParam{Text: text}}},
				IsError:   anthropic.Bool(isErr),
			},
		}, true

	default:
		// InquiryRequest/InquiryResponse/TurnStart carry no Anthropic
		// content representation.
		return "", anthropic.ContentBlockParamUnion{}, false
	}
}

// anthropicStream is the subset of anthropic.Stream this package depends
// on, so tests can supply a fake.
type anthropicStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

func consumeStream(stream anthropicStream, events chan<- provider.StreamEvent) error {
	nextIndex := 0
	indexMap := map[int64]int{}
	toolJSON := map[int]string{}
	var finalMessage anthropic.Message

	for stream.Next() {
		event := stream.Current()
		if err := finalMessage.Accumulate(event); err != nil {
			return fmt.Errorf("accumulating anthropic message: %w", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			idx := nextIndex
			indexMap[evt.Index] = idx
			nextIndex++

			switch evt.ContentBlock.Type {
			case "text":
				events <- provider.Part(idx, convo.Now(convo.NewChatResponse(convo.MessageResponse(""))))
			case "thinking":
				events <- provider.Part(idx, convo.Now(convo.NewChatResponse(convo.ReasoningResponse(""))))
			case "tool_use":
				req := convo.NewToolCallRequest(evt.ContentBlock.ID, evt.ContentBlock.Name)
				events <- provider.Part(idx, convo.Now(convo.NewToolCallRequestKind(req)))
			}

		case anthropic.ContentBlockDeltaEvent:
			idx, ok := indexMap[evt.Index]
			if !ok {
				return fmt.Errorf("delta for unknown anthropic block index %d", evt.Index)
			}
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				events <- provider.Part(idx, convo.Now(convo.NewChatResponse(convo.MessageResponse(delta.Text))))
			case anthropic.ThinkingDelta:
				events <- provider.Part(idx, convo.Now(convo.NewChatResponse(convo.ReasoningResponse(delta.Thinking))))
			case anthropic.InputJSONDelta:
				// Tool arguments arrive as incremental JSON fragments;
				// they're accumulated below and emitted whole at the
				// block's closing marker (spec §4.3.1 "Anthropic").
				toolJSON[idx] += delta.PartialJSON
			case anthropic.SignatureDelta:
				meta := convo.NewOrderedValues()
				meta.Set(thinkingSignatureKey, delta.Signature)
				ev := convo.Now(convo.NewChatResponse(convo.ReasoningResponse("")))
				ev.Metadata = meta
				events <- provider.Part(idx, ev)
			}

		case anthropic.ContentBlockStopEvent:
			idx, ok := indexMap[evt.Index]
			if !ok {
				return fmt.Errorf("stop for unknown anthropic block index %d", evt.Index)
			}
			if args, pending := toolJSON[idx]; pending && args != "" {
				var parsed map[string]any
				if err := json.Unmarshal([]byte(args), &parsed); err != nil {
					parsed = map[string]any{"invalid_json_stringified": args}
				}
				req := convo.ToolCallRequest{Arguments: map[string]any{}}
				for k, v := range parsed {
					req.SetArgument(k, v)
				}
				events <- provider.Part(idx, convo.Now(convo.NewToolCallRequestKind(req)))
				delete(toolJSON, idx)
			}
			events <- provider.Flush(idx, nil)
		}
	}

	if stream.Err() != nil {
		return classifyStreamErr(stream.Err())
	}

	events <- provider.Finished(finishReasonFor(finalMessage.StopReason))
	return nil
}

func finishReasonFor(stopReason anthropic.StopReason) provider.FinishReason {
	switch stopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, anthropic.StopReasonToolUse:
		return provider.Completed()
	case anthropic.StopReasonMaxTokens:
		return provider.MaxTokens()
	default:
		return provider.OtherFinish(string(stopReason))
	}
}

// classifyStreamErr translates an anthropic-sdk-go error through the
// canonical classifiers (spec §4.4). The SDK's *anthropic.Error (Stainless
// codegen, same shape as openai-go's *openai.Error used in
// sidekick/llm2/openai_provider.go's wrapOpenAIError) carries StatusCode and
// a Response whose headers carry retry-after data; its body is recovered via
// DumpResponse for the last-resort text-pattern fallback.
func classifyStreamErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		header := http.Header{}
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		body := string(apiErr.DumpResponse(true))
		return provider.ClassifyHTTPError(apiErr.StatusCode, header, body).WithSource(err)
	}
	return provider.ClassifyTransportError(err)
}
