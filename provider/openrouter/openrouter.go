// Package openrouter adapts OpenRouter's unified chat-completions API
// (an OpenAI-compatible surface routing to many upstream vendors) to the
// provider.Provider interface, reusing provider/openaicompat's client.
package openrouter

import (
	"context"
	"strings"

	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/provider/openaicompat"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Provider is a thin openaicompat.Provider pointed at OpenRouter.
// Tool-choice names pass through unmodified, since openaicompat's
// toolChoiceToParam already emits the bare OpenAI shape OpenRouter
// expects (spec §4.3.1).
type Provider struct {
	inner *openaicompat.Provider
}

func New(apiKey string) *Provider {
	return &Provider{inner: &openaicompat.Provider{APIKey: apiKey, BaseURL: defaultBaseURL}}
}

func (p *Provider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	return p.inner.ModelDetails(ctx, name)
}

func (p *Provider) Models(ctx context.Context) ([]provider.ModelDetails, error) {
	return p.inner.Models(ctx)
}

func (p *Provider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	return p.inner.ChatCompletionStream(ctx, model, query, events)
}

// supportsCaching reports whether model is routed to a backend known to
// honor Anthropic-style prompt-cache breakpoints (Anthropic and Google
// models, per OpenRouter's routing prefixes).
func supportsCaching(model string) bool {
	return strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "google/")
}
