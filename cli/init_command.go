package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/config"
	"github.com/sidedotdev/jp/idgen"
	"github.com/sidedotdev/jp/secretstore"
)

// NewInitCommand interactively creates the config directory, a default
// config.json, and a fresh workspace id, grounded on the interactive
// prompt shape of sidekick/cli/init_command.go's handleInitCommand
// (minus the git-repo/server-specific checks, which have no jp
// equivalent).
func NewInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "set up a new jp workspace",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInit(ctx)
		},
	}
}

func runInit(ctx context.Context) error {
	dir := config.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cli.Exit(fmt.Errorf("creating config directory: %w", err), 1)
	}

	existing := config.Discover(dir, config.DefaultCandidates)
	if existing.ChosenPath != "" {
		fmt.Printf("Found existing config at %s, leaving it in place\n", existing.ChosenPath)
	} else {
		providerName, err := promptProviderSelection()
		if err != nil {
			return cli.Exit(err, 1)
		}

		apiKey, err := promptAPIKey(providerName)
		if err != nil {
			return cli.Exit(err, 1)
		}
		if apiKey != "" {
			if err := (secretstore.KeyringStore{}).SetSecret(providerKeySecretName(providerName), apiKey); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not store key in OS keyring (%v); add it to config.json's providers.%s.key instead\n", err, providerName)
			}
		}

		tree := map[string]any{
			"default_provider": providerName,
			"providers":        map[string]any{providerName: map[string]any{}},
		}
		path := filepath.Join(dir, "config.json")
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return cli.Exit(err, 127)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return cli.Exit(fmt.Errorf("writing config: %w", err), 1)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	fmt.Printf("Workspace id: %s\n", idgen.Workspace())
	return nil
}

var providerOptions = []string{"anthropic", "openai", "google", "openrouter", "ollama", "llamacpp"}

func promptProviderSelection() (string, error) {
	selected := providerOptions[0]
	opts := make([]huh.Option[string], len(providerOptions))
	for i, name := range providerOptions {
		opts[i] = huh.NewOption(name, name)
	}
	err := huh.NewSelect[string]().
		Title("Select your LLM provider").
		Options(opts...).
		Value(&selected).
		Run()
	return selected, err
}

func promptAPIKey(providerName string) (string, error) {
	if providerName == "ollama" || providerName == "llamacpp" {
		return "", nil
	}
	var key string
	err := huh.NewInput().
		Title(fmt.Sprintf("API key for %s (leave blank to set it later)", providerName)).
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Run()
	return key, err
}

func providerKeySecretName(providerName string) string {
	switch providerName {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return strings.ToUpper(providerName) + "_API_KEY"
	}
}
