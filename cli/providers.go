package main

import (
	"fmt"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/provider"
	"github.com/sidedotdev/jp/provider/anthropic"
	"github.com/sidedotdev/jp/provider/google"
	"github.com/sidedotdev/jp/provider/llamacpp"
	"github.com/sidedotdev/jp/provider/ollama"
	"github.com/sidedotdev/jp/provider/openaicompat"
	"github.com/sidedotdev/jp/provider/openrouter"
	"github.com/sidedotdev/jp/secretstore"
)

// resolveModel reads default_provider and providers.<name>.model from
// tree to pick which provider and model a query command should use.
func resolveModel(tree convo.Config) (providerName, model string) {
	providers, _ := tree["providers"].(map[string]any)
	providerName, _ = tree["default_provider"].(string)
	if providerName == "" {
		providerName = "anthropic"
	}

	entry, _ := providers[providerName].(map[string]any)
	if entry != nil {
		model, _ = entry["model"].(string)
	}
	if model == "" {
		model = defaultModelFor(providerName)
	}
	return providerName, model
}

func defaultModelFor(providerName string) string {
	switch providerName {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "google":
		return "gemini-2.5-pro"
	case "openai":
		return "gpt-5"
	case "ollama":
		return "llama3.3"
	case "llamacpp":
		return "local"
	default:
		return ""
	}
}

// newProvider builds the provider.Provider for providerName, resolving
// its API key through secrets.
func newProvider(providerName string, secrets secretstore.Store) (provider.Provider, error) {
	switch providerName {
	case "anthropic":
		key, err := secrets.GetSecret("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("resolving anthropic api key: %w", err)
		}
		return anthropic.New(key), nil
	case "openai":
		key, err := secrets.GetSecret("OPENAI_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("resolving openai api key: %w", err)
		}
		return openaicompat.New(key), nil
	case "google":
		key, err := secrets.GetSecret("GOOGLE_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("resolving google api key: %w", err)
		}
		return google.New(key), nil
	case "ollama":
		return ollama.New(), nil
	case "llamacpp":
		return llamacpp.New(), nil
	case "openrouter":
		key, err := secrets.GetSecret("OPENROUTER_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("resolving openrouter api key: %w", err)
		}
		return openrouter.New(key), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}
