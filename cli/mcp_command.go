package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/sidedotdev/jp/config"
)

// NewMCPCommand manages configured tool-server entries, recorded under
// the "mcp_servers" key of config.json. A request's tool.ExecutorSource
// resolves tool.SourceMCP calls against whatever is registered here; this
// command only edits the registry, it does not speak the MCP wire
// protocol itself.
func NewMCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "manage configured MCP tool servers",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list configured tool servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMCPList()
				},
			},
			{
				Name:      "add",
				Usage:     "register a tool server",
				ArgsUsage: "<name> <command> [args...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := cmd.Args().Slice()
					if len(args) < 2 {
						return cli.Exit("usage: jp mcp add <name> <command> [args...]", 1)
					}
					return runMCPAdd(args[0], args[1], args[2:])
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a tool server",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return cli.Exit("usage: jp mcp remove <name>", 1)
					}
					return runMCPRemove(cmd.Args().First())
				},
			},
		},
	}
}

func mcpConfigPath() string {
	return filepath.Join(config.Dir(), "config.json")
}

func loadMCPTree() (map[string]any, error) {
	tree, err := config.Load(mcpConfigPath())
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

func saveMCPTree(tree map[string]any) error {
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mcpConfigPath(), data, 0o644)
}

func runMCPList() error {
	tree, err := loadMCPTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	servers, _ := tree["mcp_servers"].(map[string]any)
	if len(servers) == 0 {
		fmt.Println("no MCP servers configured")
		return nil
	}
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %v\n", name, servers[name])
	}
	return nil
}

func runMCPAdd(name, command string, args []string) error {
	tree, err := loadMCPTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	servers, _ := tree["mcp_servers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	argsAny := make([]any, len(args))
	for i, a := range args {
		argsAny[i] = a
	}
	servers[name] = map[string]any{"command": command, "args": argsAny}
	tree["mcp_servers"] = servers
	if err := saveMCPTree(tree); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("registered MCP server %q\n", name)
	return nil
}

func runMCPRemove(name string) error {
	tree, err := loadMCPTree()
	if err != nil {
		return cli.Exit(err, 1)
	}
	servers, _ := tree["mcp_servers"].(map[string]any)
	if _, ok := servers[name]; !ok {
		return cli.Exit(fmt.Sprintf("no such MCP server: %s", name), 1)
	}
	delete(servers, name)
	tree["mcp_servers"] = servers
	if err := saveMCPTree(tree); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("removed MCP server %q\n", name)
	return nil
}
