// Package config loads the on-disk configuration tree and applies CLI
// override flags to it, producing the convo.Config used as a stream's
// base config (spec §6.4). File discovery/parsing follows the teacher's
// common/config_discovery.go and common/local_config.go; the
// KEY[:+]=VALUE override grammar is new, specified directly in spec §6.4
// (no teacher equivalent exists for CLI config overrides).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sidedotdev/jp/convo"
)

const dirName = "jp"

// Dir returns the platform config directory for jp, preferring
// os.UserConfigDir and falling back to ~/.config (the teacher depends on
// github.com/adrg/xdg for this; that dependency isn't in this module's
// stack, so the stdlib equivalent is used instead).
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, dirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", dirName)
}

// DiscoveryResult holds every candidate config file found, in precedence
// order, and the one that should actually be used.
type DiscoveryResult struct {
	ChosenPath string
	AllFound   []string
}

// Discover searches dir for each candidate name in order, returning the
// first existing file as ChosenPath alongside every file that exists.
func Discover(dir string, candidates []string) DiscoveryResult {
	var result DiscoveryResult
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			result.AllFound = append(result.AllFound, path)
			if result.ChosenPath == "" {
				result.ChosenPath = path
			}
		}
	}
	return result
}

// DefaultCandidates is the precedence-ordered list of config file names
// Discover looks for in Dir().
var DefaultCandidates = []string{"config.json", "config.toml"}

// ParserForExtension returns the koanf parser matching path's extension,
// or nil if unsupported.
func ParserForExtension(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return jsonparser.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

// Load reads path into a sparse convo.Config tree. A missing path (or an
// empty one) yields an empty, valid config rather than an error.
func Load(path string) (convo.Config, error) {
	if path == "" {
		return convo.Config{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return convo.Config{}, nil
	}

	parser := ParserForExtension(path)
	if parser == nil {
		return nil, fmt.Errorf("config: unsupported file extension: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	var tree map[string]any
	if err := k.Unmarshal("", &tree); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return convo.Config(tree), nil
}

// Override is one parsed KEY[:+]=VALUE CLI flag (spec §6.4). Path is the
// dot-separated key split into segments; a trailing ':' before '=' means
// Value was parsed as a JSON literal rather than a bare string, and a
// trailing '+' means Value should be merged into whatever is already at
// Path instead of replacing it.
type Override struct {
	Path  []string
	Value any
	Merge bool
}

// ParseOverride parses one "KEY[:+]=VALUE" flag.
func ParseOverride(raw string) (Override, error) {
	eq := strings.IndexByte(raw, '=')
	if eq < 0 {
		return Override{}, fmt.Errorf("config: override %q is missing '='", raw)
	}
	keyPart, rawValue := raw[:eq], raw[eq+1:]

	jsonLiteral, merge := false, false
	for len(keyPart) > 0 {
		switch keyPart[len(keyPart)-1] {
		case ':':
			jsonLiteral = true
		case '+':
			merge = true
		default:
			goto parsed
		}
		keyPart = keyPart[:len(keyPart)-1]
	}
parsed:
	if keyPart == "" {
		return Override{}, fmt.Errorf("config: override %q has an empty key", raw)
	}

	var value any = rawValue
	if jsonLiteral {
		if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
			return Override{}, fmt.Errorf("config: override %q has invalid JSON value: %w", raw, err)
		}
	}

	return Override{Path: strings.Split(keyPart, "."), Value: value, Merge: merge}, nil
}

// Apply mutates tree in place with every override, in order, and returns
// it for chaining.
func Apply(tree convo.Config, overrides []Override) convo.Config {
	for _, o := range overrides {
		applyOne(tree, o.Path, o.Value, o.Merge)
	}
	return tree
}

func applyOne(tree convo.Config, path []string, value any, merge bool) {
	node := tree
	for i, key := range path {
		if i == len(path)-1 {
			if merge {
				node[key] = mergeValue(node[key], value)
			} else {
				node[key] = value
			}
			return
		}
		next, ok := node[key].(convo.Config)
		if !ok {
			if m, ok := node[key].(map[string]any); ok {
				next = convo.Config(m)
			} else {
				next = convo.Config{}
			}
			node[key] = next
		}
		node = next
	}
}

func mergeValue(existing, incoming any) any {
	switch e := existing.(type) {
	case nil:
		return incoming
	case string:
		if s, ok := incoming.(string); ok {
			return e + s
		}
		return incoming
	case []any:
		if s, ok := incoming.([]any); ok {
			return append(append([]any{}, e...), s...)
		}
		return append(append([]any{}, e...), incoming)
	default:
		return incoming
	}
}
