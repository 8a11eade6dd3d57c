// Package openaicompat adapts the OpenAI chat-completions wire shape
// (github.com/sashabaranov/go-openai) to the provider.Provider interface.
// It is used directly for OpenAI itself, and its message/stream helpers
// are reused by provider/ollama, provider/llamacpp, and
// provider/openrouter, which all speak the same wire format with small
// deviations layered on top.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
)

// Provider speaks the OpenAI chat-completions API, or any endpoint that
// mirrors it closely enough (BaseURL overrides the default).
type Provider struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	// MergeConsecutiveRoles coalesces adjacent same-role messages before
	// sending the request. Some OpenAI-compatible backends (notably
	// llama.cpp and older Ollama builds) reject back-to-back messages of
	// the same role.
	MergeConsecutiveRoles bool
}

func New(apiKey string) *Provider { return &Provider{APIKey: apiKey} }

func (p *Provider) client() *openai.Client {
	cfg := openai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	if p.HTTPClient != nil {
		cfg.HTTPClient = p.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

var knownModels = map[string]provider.ModelDetails{
	"gpt-5": {
		Name: "gpt-5", ContextWindow: 400_000, MaxOutputTokens: 128_000,
		Reasoning: provider.ReasoningSupport{Tag: "leveled", Levels: []string{"low", "medium", "high"}},
	},
	"gpt-4o": {
		Name: "gpt-4o", ContextWindow: 128_000, MaxOutputTokens: 16_384,
		Reasoning: provider.ReasoningSupport{Tag: "none"},
	},
	"gpt-4o-mini": {
		Name: "gpt-4o-mini", ContextWindow: 128_000, MaxOutputTokens: 16_384,
		Reasoning: provider.ReasoningSupport{Tag: "none"},
	},
	"o3": {
		Name: "o3", ContextWindow: 200_000, MaxOutputTokens: 100_000,
		Reasoning: provider.ReasoningSupport{Tag: "leveled", Levels: []string{"low", "medium", "high"}},
	},
}

// ModelDetails returns the static capability record for name. Unknown
// models (generic OpenAI-compatible endpoints serve arbitrary model
// names) fall back to a conservative default rather than an error, since
// BaseURL may point at a deployment this adapter has never cataloged.
func (p *Provider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	if d, ok := knownModels[name]; ok {
		return d, nil
	}
	return provider.ModelDetails{
		Name:            name,
		ContextWindow:   32_768,
		MaxOutputTokens: 4_096,
		Reasoning:       provider.ReasoningSupport{Tag: "none"},
	}, nil
}

func (p *Provider) Models(ctx context.Context) ([]provider.ModelDetails, error) {
	out := make([]provider.ModelDetails, 0, len(knownModels))
	for _, d := range knownModels {
		out = append(out, d)
	}
	return out, nil
}

// ChatCompletionStream builds a ChatCompletionRequest from query and
// streams Part/Flush/Finished events onto events, following the teacher's
// CreateChatCompletionStream/Recv/io.EOF loop.
func (p *Provider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	messages, err := BuildMessages(query, p.MergeConsecutiveRoles)
	if err != nil {
		return fmt.Errorf("openaicompat: build messages: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if len(query.Tools) > 0 {
		req.Tools = toolsToParams(query.Tools)
		req.ToolChoice = toolChoiceToParam(query.ToolChoice)
	}

	stream, err := p.client().CreateChatCompletionStream(ctx, req)
	if err != nil {
		return classifyErr(err)
	}
	defer stream.Close()

	return consumeStream(stream, events)
}

// BuildMessages flattens a conversation stream into OpenAI's flat
// role/content message list. Reasoning events have no first-class
// representation in the plain chat-completions wire shape, so they are
// dropped from history; ollama/llamacpp recover them on the way out of a
// response via <think> tag extraction, not on the way back in.
func BuildMessages(query provider.ChatQuery, mergeConsecutive bool) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage

	if query.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: query.System})
	}
	if query.Instructions != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: query.Instructions})
	}
	for _, a := range query.Attachments {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a})
	}

	if query.Stream != nil {
		for _, entry := range query.Stream.Iter() {
			msg, ok := eventToMessage(entry.Event)
			if !ok {
				continue
			}
			out = append(out, msg)
		}
	}

	if mergeConsecutive {
		out = mergeConsecutiveRoles(out)
	}
	return out, nil
}

func eventToMessage(ev convo.ConversationEvent) (openai.ChatCompletionMessage, bool) {
	switch ev.Kind.Tag {
	case convo.KindChatRequest:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ev.Kind.ChatRequest.Content}, true
	case convo.KindChatResponse:
		r := ev.Kind.ChatResponse
		switch {
		case r.Message != nil:
			return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: *r.Message}, true
		case r.Structured != nil:
			return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(*r.Structured)}, true
		default:
			return openai.ChatCompletionMessage{}, false
		}
	case convo.KindToolCallRequest:
		req := ev.Kind.ToolCallRequest
		args, err := json.Marshal(req.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   req.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      req.Name,
					Arguments: string(args),
				},
			}},
		}, true
	case convo.KindToolCallResponse:
		resp := ev.Kind.ToolCallResponse
		content := ""
		if resp.Result.Ok != nil {
			content = *resp.Result.Ok
		} else if resp.Result.Err != nil {
			content = *resp.Result.Err
		}
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			ToolCallID: resp.ID,
		}, true
	default:
		return openai.ChatCompletionMessage{}, false
	}
}

// mergeConsecutiveRoles coalesces adjacent same-role text messages,
// joined with a blank line. Tool-call/tool-result messages are never
// merged, since their ToolCalls/ToolCallID fields would otherwise need to
// be concatenated too.
func mergeConsecutiveRoles(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(messages) == 0 {
		return messages
	}
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	out = append(out, messages[0])
	for _, m := range messages[1:] {
		last := &out[len(out)-1]
		mergeable := last.Role == m.Role && len(last.ToolCalls) == 0 && len(m.ToolCalls) == 0 &&
			last.ToolCallID == "" && m.ToolCallID == ""
		if mergeable {
			last.Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

func toolsToParams(tools []provider.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any = json.RawMessage(t.Parameters)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func toolChoiceToParam(choice provider.ToolChoice) any {
	switch choice.Tag {
	case "none":
		return "none"
	case "required":
		return "required"
	case "function":
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice.FunctionName},
		}
	default:
		return "auto"
	}
}

// recvStream is the subset of *openai.ChatCompletionStream consumeStream
// needs, so tests can fake it without constructing a real SSE transport.
type recvStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
}

func consumeStream(stream recvStream, events chan<- provider.StreamEvent) error {
	const (
		contentIndex = 0
		toolIndexBase = 1
	)

	toolIDs := map[int]string{}
	toolNames := map[int]string{}
	toolArgs := map[int]string{}
	toolOutputIndex := map[int]int{}
	nextToolOutputIndex := toolIndexBase
	contentStarted := false
	finish := provider.Completed()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return classifyErr(err)
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !contentStarted {
				contentStarted = true
			}
			events <- provider.Part(contentIndex, convo.Now(convo.NewChatResponse(convo.MessageResponse(delta.Content))))
		}

		for _, tc := range delta.ToolCalls {
			deltaIdx := 0
			if tc.Index != nil {
				deltaIdx = *tc.Index
			}
			outIdx, ok := toolOutputIndex[deltaIdx]
			if !ok {
				outIdx = nextToolOutputIndex
				nextToolOutputIndex++
				toolOutputIndex[deltaIdx] = outIdx
			}
			if tc.ID != "" {
				toolIDs[outIdx] = tc.ID
			}
			if tc.Function.Name != "" {
				toolNames[outIdx] = cleanupToolName(tc.Function.Name)
			}
			if tc.Function.Arguments != "" {
				toolArgs[outIdx] += tc.Function.Arguments
			}
		}

		if choice.FinishReason != "" {
			finish = finishReasonFor(choice.FinishReason)
		}
	}

	if contentStarted {
		events <- provider.Flush(contentIndex, nil)
	}
	for outIdx := toolIndexBase; outIdx < nextToolOutputIndex; outIdx++ {
		req := convo.NewToolCallRequest(toolIDs[outIdx], toolNames[outIdx])
		if raw := toolArgs[outIdx]; raw != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(raw), &args); err == nil {
				for k, v := range args {
					req.SetArgument(k, v)
				}
			}
		}
		events <- provider.Part(outIdx, convo.Now(convo.NewToolCallRequestKind(req)))
		events <- provider.Flush(outIdx, nil)
	}

	events <- provider.Finished(finish)
	return nil
}

// cleanupToolName strips the occasional tools./tool./functions./function.
// prefix some OpenAI-compatible backends prepend to the function name.
func cleanupToolName(name string) string {
	for _, prefix := range []string{"tools.", "tool.", "functions.", "function."} {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			return name[len(prefix):]
		}
	}
	return name
}

func finishReasonFor(reason openai.FinishReason) provider.FinishReason {
	switch reason {
	case openai.FinishReasonStop, openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return provider.Completed()
	case openai.FinishReasonLength:
		return provider.MaxTokens()
	default:
		return provider.OtherFinish(string(reason))
	}
}

// classifyErr maps go-openai's two error shapes (*openai.APIError for a
// completed-but-erroring HTTP response, *openai.RequestError for a
// transport failure before a response was received) onto the
// provider-agnostic StreamError taxonomy.
func classifyErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return provider.ClassifyHTTPError(apiErr.HTTPStatusCode, nil, apiErr.Message).WithSource(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return provider.ClassifyHTTPError(reqErr.HTTPStatusCode, nil, reqErr.Error()).WithSource(err)
	}
	return provider.ClassifyTransportError(err)
}
