package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidedotdev/jp/convo"
	"github.com/sidedotdev/jp/secretstore"
)

func TestResolveModelDefaultsToAnthropic(t *testing.T) {
	providerName, model := resolveModel(convo.Config{})
	assert.Equal(t, "anthropic", providerName)
	assert.NotEmpty(t, model)
}

func TestResolveModelReadsConfiguredProviderAndModel(t *testing.T) {
	tree := convo.Config{
		"default_provider": "google",
		"providers": map[string]any{
			"google": map[string]any{"model": "gemini-2.5-flash"},
		},
	}
	providerName, model := resolveModel(tree)
	assert.Equal(t, "google", providerName)
	assert.Equal(t, "gemini-2.5-flash", model)
}

func TestResolveModelFallsBackToDefaultModelForProvider(t *testing.T) {
	tree := convo.Config{"default_provider": "ollama"}
	providerName, model := resolveModel(tree)
	assert.Equal(t, "ollama", providerName)
	assert.NotEmpty(t, model)
}

func TestNewProviderUnknownProviderErrors(t *testing.T) {
	_, err := newProvider("not-a-real-provider", secretstore.MockStore{})
	assert.Error(t, err)
}

func TestNewProviderLocalProvidersNeedNoSecret(t *testing.T) {
	_, err := newProvider("ollama", secretstore.MockStore{})
	assert.NoError(t, err)

	_, err = newProvider("llamacpp", secretstore.MockStore{})
	assert.NoError(t, err)
}

func TestNewProviderKeyedProvidersUseSecretStore(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "google", "openrouter"} {
		_, err := newProvider(name, secretstore.MockStore{})
		assert.NoError(t, err, "provider %s", name)
	}
}
