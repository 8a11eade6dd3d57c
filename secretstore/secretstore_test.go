package secretstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/convo"
)

func TestEnvStoreReadsPrefixedVar(t *testing.T) {
	t.Setenv("JP_OPENAI_API_KEY", "sk-test")
	s := EnvStore{}
	v, err := s.GetSecret("OPENAI_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "sk-test", v)
}

func TestEnvStoreMissingReturnsNotFound(t *testing.T) {
	s := EnvStore{}
	_, err := s.GetSecret("DEFINITELY_UNSET_KEY")
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestLocalConfigStoreResolvesKnownProviders(t *testing.T) {
	tree := convo.Config{
		"providers": map[string]any{
			"openai":    map[string]any{"key": "sk-openai"},
			"anthropic": map[string]any{"key": "sk-anthropic"},
		},
	}
	s := LocalConfigStore{Tree: tree}

	v, err := s.GetSecret("OPENAI_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "sk-openai", v)

	v, err = s.GetSecret("ANTHROPIC_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "sk-anthropic", v)
}

func TestLocalConfigStoreGenericSuffixStripping(t *testing.T) {
	tree := convo.Config{
		"providers": map[string]any{
			"openrouter": map[string]any{"key": "sk-or"},
		},
	}
	s := LocalConfigStore{Tree: tree}
	v, err := s.GetSecret("OPENROUTER_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "sk-or", v)
}

func TestLocalConfigStoreMissingProviderReturnsNotFound(t *testing.T) {
	s := LocalConfigStore{Tree: convo.Config{}}
	_, err := s.GetSecret("OPENAI_API_KEY")
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestMockStoreReturnsFakeSecretForAPIKeys(t *testing.T) {
	s := MockStore{}
	v, err := s.GetSecret("ANYTHING_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "fake secret", v)
}

func TestCompositeStoreTriesInOrder(t *testing.T) {
	t.Setenv("JP_FALLBACK_API_KEY", "")
	tree := convo.Config{"providers": map[string]any{"fallback": map[string]any{"key": "from-config"}}}
	c := NewCompositeStore([]Store{EnvStore{}, LocalConfigStore{Tree: tree}})
	v, err := c.GetSecret("FALLBACK_API_KEY")
	require.NoError(t, err)
	require.Equal(t, "from-config", v)
}

func TestCompositeStoreAllFailReturnsError(t *testing.T) {
	c := NewCompositeStore([]Store{MockStore{}})
	_, err := c.GetSecret("NO_SUFFIX_HERE")
	require.Error(t, err)
}

func TestDefaultBuildsEnvKeyringLocalConfigOrder(t *testing.T) {
	c := Default(convo.Config{})
	require.Len(t, c.stores, 3)
	require.Equal(t, EnvType, c.stores[0].Type())
	require.Equal(t, KeyringType, c.stores[1].Type())
	require.Equal(t, LocalConfigType, c.stores[2].Type())
}
