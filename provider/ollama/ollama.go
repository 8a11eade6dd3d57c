// Package ollama adapts a local Ollama server to the provider.Provider
// interface, reusing provider/openaicompat's OpenAI-compatible client
// (Ollama serves an /v1 OpenAI-compatible endpoint) and adding the
// <think> tag reasoning extraction Ollama/llama.cpp models need (spec
// §4.3.1).
package ollama

import (
	"context"

	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/provider/openaicompat"
	"github.com/sidedotdev/jp/provider/reasoningtag"
)

const defaultBaseURL = "http://localhost:11434/v1"

// Provider wraps openaicompat.Provider with a fixed local BaseURL and
// the <think> tag post-processing step.
type Provider struct {
	inner *openaicompat.Provider
}

func New() *Provider {
	return &Provider{inner: &openaicompat.Provider{
		// Ollama's OpenAI-compatible endpoint ignores the key but
		// go-openai's client requires a non-empty one.
		APIKey:  "ollama",
		BaseURL: defaultBaseURL,
	}}
}

// WithBaseURL overrides the default local endpoint.
func (p *Provider) WithBaseURL(url string) *Provider {
	p.inner.BaseURL = url
	return p
}

func (p *Provider) ModelDetails(ctx context.Context, name string) (provider.ModelDetails, error) {
	return p.inner.ModelDetails(ctx, name)
}

func (p *Provider) Models(ctx context.Context) ([]provider.ModelDetails, error) {
	return p.inner.Models(ctx)
}

func (p *Provider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery, events chan<- provider.StreamEvent) error {
	return reasoningtag.Relay(ctx, p.inner, model, query, events)
}
