package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/config"
)

// NewPersonaCommand manages named system-prompt presets, stored under the
// "personas" key of config.json so query can select one as a config
// override (e.g. --set personas.reviewer:=true would be a richer scheme;
// the simple form here stores prompt text directly under personas.<name>).
func NewPersonaCommand() *cli.Command {
	return &cli.Command{
		Name:  "persona",
		Usage: "manage named system-prompt presets",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list configured personas",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runPersonaList()
				},
			},
			{
				Name:      "set",
				Usage:     "create or update a persona",
				ArgsUsage: "<name> <system prompt text>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := cmd.Args().Slice()
					if len(args) < 2 {
						return cli.Exit("usage: jp persona set <name> <system prompt text>", 1)
					}
					return runPersonaSet(args[0], strings.Join(args[1:], " "))
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a persona",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return cli.Exit("usage: jp persona remove <name>", 1)
					}
					return runPersonaRemove(cmd.Args().First())
				},
			},
		},
	}
}

func personaConfigPath() string {
	return filepath.Join(config.Dir(), "config.json")
}

func loadPersonaTree() (map[string]any, error) {
	tree, err := config.Load(personaConfigPath())
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

func savePersonaTree(tree map[string]any) error {
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(personaConfigPath(), data, 0o644)
}

func runPersonaList() error {
	tree, err := loadPersonaTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	personas, _ := tree["personas"].(map[string]any)
	if len(personas) == 0 {
		fmt.Println("no personas configured")
		return nil
	}
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %v\n", name, personas[name])
	}
	return nil
}

func runPersonaSet(name, prompt string) error {
	tree, err := loadPersonaTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	personas, _ := tree["personas"].(map[string]any)
	if personas == nil {
		personas = map[string]any{}
	}
	personas[name] = prompt
	tree["personas"] = personas
	if err := savePersonaTree(tree); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("saved persona %q\n", name)
	return nil
}

func runPersonaRemove(name string) error {
	tree, err := loadPersonaTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	personas, _ := tree["personas"].(map[string]any)
	if personas == nil {
		return cli.Exit(fmt.Sprintf("no such persona: %s", name), 1)
	}
	if _, ok := personas[name]; !ok {
		return cli.Exit(fmt.Sprintf("no such persona: %s", name), 1)
	}
	delete(personas, name)
	tree["personas"] = personas
	if err := savePersonaTree(tree); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("removed persona %q\n", name)
	return nil
}
