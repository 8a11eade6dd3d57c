// Package secretstore resolves provider API keys from environment
// variables, the OS keyring, and the on-disk config tree, grounded on
// the teacher's secret_manager/secret_manager.go.
package secretstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/sidedotdev/jp/convo"
)

// ErrSecretNotFound is returned when a secret isn't found by any store.
var ErrSecretNotFound = errors.New("secret not found")

// Store resolves a named secret, e.g. "OPENAI_API_KEY".
type Store interface {
	GetSecret(name string) (string, error)
	Type() Type
}

// Type identifies a Store's kind, used for JSON (de)serialization of a
// CompositeStore's member list.
type Type string

const (
	EnvType         Type = "env"
	MockType        Type = "mock"
	KeyringType     Type = "keyring"
	LocalConfigType Type = "local_config"
	CompositeType   Type = "composite"
)

const keyringService = "jp"

// EnvStore resolves secrets from JP_-prefixed environment variables.
type EnvStore struct{}

func (EnvStore) GetSecret(name string) (string, error) {
	envName := "JP_" + name
	v := os.Getenv(envName)
	if v == "" {
		return "", fmt.Errorf("%w: %s not found in environment", ErrSecretNotFound, envName)
	}
	return v, nil
}

func (EnvStore) Type() Type { return EnvType }

// KeyringStore resolves secrets from the OS keyring, under the "jp"
// service name.
type KeyringStore struct{}

func (KeyringStore) GetSecret(name string) (string, error) {
	v, err := keyring.Get(keyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s not found in keyring", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("retrieving %s from keyring: %w", name, err)
	}
	return v, nil
}

func (KeyringStore) Type() Type { return KeyringType }

// SetSecret writes name into the OS keyring, for the "jp" service.
func (KeyringStore) SetSecret(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// LocalConfigStore resolves provider API keys recorded directly in the
// loaded config tree, under providers.<name>.key. It is given the
// already-loaded tree rather than loading config itself, so this
// package doesn't need to import the config package.
type LocalConfigStore struct {
	Tree convo.Config
}

func (l LocalConfigStore) Type() Type { return LocalConfigType }

func (l LocalConfigStore) GetSecret(name string) (string, error) {
	var providerName string
	switch name {
	case "OPENAI_API_KEY":
		providerName = "openai"
	case "ANTHROPIC_API_KEY":
		providerName = "anthropic"
	default:
		if !strings.HasSuffix(name, "_API_KEY") {
			return "", fmt.Errorf("%w: %s not found in local config", ErrSecretNotFound, name)
		}
		providerName = strings.ToLower(strings.TrimSuffix(name, "_API_KEY"))
	}

	providers, _ := l.Tree["providers"].(map[string]any)
	if providers == nil {
		if p, ok := l.Tree["providers"].(convo.Config); ok {
			providers = p
		}
	}
	entry, ok := providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: no provider found with name %s", ErrSecretNotFound, providerName)
	}
	switch v := entry.(type) {
	case map[string]any:
		if key, ok := v["key"].(string); ok && key != "" {
			return key, nil
		}
	case convo.Config:
		if key, ok := v["key"].(string); ok && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: provider %s has no key configured", ErrSecretNotFound, providerName)
}

// MockStore returns a fixed fake secret for any *_API_KEY name, for
// tests that exercise provider wiring without real credentials.
type MockStore struct{}

func (MockStore) GetSecret(name string) (string, error) {
	if strings.HasSuffix(name, "_API_KEY") {
		return "fake secret", nil
	}
	return "", fmt.Errorf("%w: %s not found in mock", ErrSecretNotFound, name)
}

func (MockStore) Type() Type { return MockType }

// CompositeStore tries each member store in order, returning the first
// match.
type CompositeStore struct {
	stores []Store
}

func NewCompositeStore(stores []Store) *CompositeStore {
	return &CompositeStore{stores: stores}
}

func (c CompositeStore) GetSecret(name string) (string, error) {
	var lastErr error
	for _, s := range c.stores {
		v, err := s.GetSecret(name)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", fmt.Errorf("secret %s not found in any store: %w", name, lastErr)
	}
	return "", fmt.Errorf("no secret stores configured")
}

func (c CompositeStore) Type() Type { return CompositeType }

func (c CompositeStore) MarshalJSON() ([]byte, error) {
	containers := make([]container, len(c.stores))
	for i, s := range c.stores {
		containers[i] = container{Store: s}
	}
	return json.Marshal(struct {
		Stores []container `json:"stores"`
	}{Stores: containers})
}

func (c *CompositeStore) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Stores []container `json:"stores"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	c.stores = make([]Store, len(wrapper.Stores))
	for i, ct := range wrapper.Stores {
		c.stores[i] = ct.Store
	}
	return nil
}

// container polymorphically (de)serializes a Store by its Type tag.
type container struct {
	Store
}

func (ct container) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Store Store  `json:"store"`
	}{Type: string(ct.Store.Type()), Store: ct.Store})
}

func (ct *container) UnmarshalJSON(data []byte) error {
	var v struct {
		Type  string          `json:"type"`
		Store json.RawMessage `json:"store"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch Type(v.Type) {
	case EnvType:
		var s EnvStore
		ct.Store = s
	case MockType:
		var s MockStore
		ct.Store = s
	case KeyringType:
		var s KeyringStore
		ct.Store = s
	case LocalConfigType:
		var s LocalConfigStore
		if err := json.Unmarshal(v.Store, &s); err != nil {
			return err
		}
		ct.Store = s
	case CompositeType:
		var s CompositeStore
		if err := json.Unmarshal(v.Store, &s); err != nil {
			return err
		}
		ct.Store = s
	default:
		return fmt.Errorf("unknown secret store type: %s", v.Type)
	}
	return nil
}

// Default builds the standard lookup order: environment, then keyring,
// then whatever provider keys are recorded directly in tree.
func Default(tree convo.Config) *CompositeStore {
	return NewCompositeStore([]Store{EnvStore{}, KeyringStore{}, LocalConfigStore{Tree: tree}})
}
