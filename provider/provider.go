package provider

import (
	"context"
	"encoding/json"

	"github.com/sidedotdev/jp/convo"
)

// ToolChoice selects how the model must use the available tools.
type ToolChoice struct {
	Tag string // "auto" | "none" | "required" | "function"

	// FunctionName is set when Tag == "function".
	FunctionName string
}

func ToolChoiceAuto() ToolChoice     { return ToolChoice{Tag: "auto"} }
func ToolChoiceNone() ToolChoice     { return ToolChoice{Tag: "none"} }
func ToolChoiceRequired() ToolChoice { return ToolChoice{Tag: "required"} }
func ToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{Tag: "function", FunctionName: name}
}

// Tool is a model-callable function definition, with parameters already
// expressed as a core JSON Schema subset (rewritten per-provider by the
// schema package before the request is sent).
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatQuery bundles everything an adapter needs to build one request
// (spec §4.3).
type ChatQuery struct {
	System       string
	Instructions string
	Attachments  []string
	Stream       *convo.Stream

	Tools            []Tool
	ToolChoice       ToolChoice
	StrictToolParams bool
}

// ReasoningSupport describes a model's reasoning/thinking capability.
type ReasoningSupport struct {
	Tag string // "none" | "budgeted" | "leveled"

	MinTokens int // budgeted
	MaxTokens int // budgeted

	Levels []string // leveled, e.g. ["low","medium","high"]
}

// ModelDetails is a static or API-listed capability record (spec §4.3
// Provider trait model_details).
type ModelDetails struct {
	Name            string
	ContextWindow   int
	MaxOutputTokens int
	Reasoning       ReasoningSupport
	KnowledgeCutoff string
	Deprecated      bool
	DeprecationNote string
}

// Provider is implemented once per supported LLM vendor.
type Provider interface {
	// ModelDetails returns the capability record for name.
	ModelDetails(ctx context.Context, name string) (ModelDetails, error)

	// Models lists every model this provider knows about.
	Models(ctx context.Context) ([]ModelDetails, error)

	// ChatCompletionStream streams Part/Flush/Finished events for model
	// onto events. The provider must not close events; the caller owns
	// the channel lifecycle (mirrors the teacher's
	// "Providers MUST NOT close the eventChan" contract).
	ChatCompletionStream(ctx context.Context, model string, query ChatQuery, events chan<- StreamEvent) error
}
