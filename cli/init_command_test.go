package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderKeySecretNameKnownProviders(t *testing.T) {
	assert.Equal(t, "ANTHROPIC_API_KEY", providerKeySecretName("anthropic"))
	assert.Equal(t, "OPENAI_API_KEY", providerKeySecretName("openai"))
	assert.Equal(t, "GOOGLE_API_KEY", providerKeySecretName("google"))
	assert.Equal(t, "OPENROUTER_API_KEY", providerKeySecretName("openrouter"))
	assert.Equal(t, "OLLAMA_API_KEY", providerKeySecretName("ollama"))
}

func TestPromptAPIKeySkipsLocalProviders(t *testing.T) {
	key, err := promptAPIKey("ollama")
	require.NoError(t, err)
	assert.Empty(t, key)

	key, err = promptAPIKey("llamacpp")
	require.NoError(t, err)
	assert.Empty(t, key)
}
