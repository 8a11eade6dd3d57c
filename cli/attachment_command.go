package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/denormal/go-gitignore"
	"github.com/urfave/cli/v3"
)

// AttachmentProvider is the §6.3 external collaborator interface: list
// candidate attachment URIs for the current working directory, and
// resolve one into its content.
type AttachmentProvider interface {
	List(cwd string) ([]string, error)
	Get(cwd, uri string) (Attachment, error)
}

// Attachment is a resolved attachment (spec §6.3:
// "Attachment{source, content, description?}").
type Attachment struct {
	Source      string
	Content     string
	Description string
}

// LocalFileAttachmentProvider resolves attachments as plain files on
// disk relative to cwd — the minimal concrete AttachmentProvider; an MCP-
// or URL-backed provider would implement the same interface.
type LocalFileAttachmentProvider struct{}

func (LocalFileAttachmentProvider) List(cwd string) ([]string, error) {
	entries, err := os.ReadDir(cwd)
	if err != nil {
		return nil, err
	}

	ignore, _ := gitignore.NewRepositoryWithFile(cwd, ".gitignore")

	var uris []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ignore != nil {
			if match := ignore.Absolute(filepath.Join(cwd, e.Name()), false); match != nil && match.Ignore() {
				continue
			}
		}
		uris = append(uris, e.Name())
	}
	return uris, nil
}

func (LocalFileAttachmentProvider) Get(cwd, uri string) (Attachment, error) {
	data, err := os.ReadFile(filepath.Join(cwd, uri))
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Source: uri, Content: string(data)}, nil
}

// NewAttachmentCommand lists or resolves attachments visible from the
// current directory.
func NewAttachmentCommand() *cli.Command {
	return &cli.Command{
		Name:  "attachment",
		Usage: "list or read attachments available to a query",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list attachment URIs in the current directory",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runAttachmentList()
				},
			},
			{
				Name:      "show",
				Usage:     "print one attachment's resolved content",
				ArgsUsage: "<uri>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return cli.Exit("usage: jp attachment show <uri>", 1)
					}
					return runAttachmentShow(cmd.Args().First())
				},
			},
			{
				Name:  "resolve-all",
				Usage: "read every attachment in the current directory concurrently",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "concurrency", Value: 8, Usage: "max attachments read in parallel"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runAttachmentResolveAll(int(cmd.Int("concurrency")))
				},
			},
		},
	}
}

func runAttachmentList() error {
	cwd, err := os.Getwd()
	if err != nil {
		return cli.Exit(err, 1)
	}
	uris, err := (LocalFileAttachmentProvider{}).List(cwd)
	if err != nil {
		return cli.Exit(err, 1)
	}
	for _, uri := range uris {
		fmt.Println(uri)
	}
	return nil
}

func runAttachmentResolveAll(concurrency int) error {
	cwd, err := os.Getwd()
	if err != nil {
		return cli.Exit(err, 1)
	}
	provider := LocalFileAttachmentProvider{}
	uris, err := provider.List(cwd)
	if err != nil {
		return cli.Exit(err, 1)
	}

	attachments, errs := resolveAttachments(provider, cwd, uris, concurrency)
	for i, uri := range uris {
		if errs[i] != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", uri, errs[i])
			continue
		}
		fmt.Printf("=== %s (%d bytes) ===\n", uri, len(attachments[i].Content))
	}
	return nil
}

func runAttachmentShow(uri string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return cli.Exit(err, 1)
	}
	att, err := (LocalFileAttachmentProvider{}).Get(cwd, uri)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Println(att.Content)
	return nil
}
