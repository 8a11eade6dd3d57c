// Package llamacpp adapts a local llama.cpp server to the
// provider.Provider interface. llama.cpp's server exposes the same
// OpenAI-compatible /v1 surface Ollama does, so this package is a thin
// shim over provider/openaicompat plus provider/reasoningtag's <think>
// tag extraction (spec §4.3.1), differing from provider/ollama in its
// default endpoint and in merging consecutive same-role messages.
package llamacpp

import (
	"context"

	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/provider/openaicompat"
	"github.com/sidedotdev/jp/provider/reasoningtag"
)

const defaultBaseURL = "http://localhost:8080/v1"

type Provider struct {
	inner *openaicompat.Provider
}

func New() *Provider {
	return &Provider{inner: &openaicompat.Provider{
		APIKey:  "llamacpp",
		BaseURL: defaultBaseURL,
		// llama.cpp's server rejects back-to-back same-role messages.
		MergeConsecutiveRoles: true,
	}}
}

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
