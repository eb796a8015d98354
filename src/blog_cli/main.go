package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/RobertMJr/my-blog/internal/client"
	"github.com/RobertMJr/my-blog/internal/store"
)

func newClient(cmd *cli.Command) *client.Client {
	return client.New(cmd.String("server"))
}

func printArticle(cmd *cli.Command, article *store.Article) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(article)
}

func nameArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s takes exactly one article name", cmd.Name)
	}
	return cmd.Args().First(), nil
}

func main() {
	cmd := &cli.Command{
		Name:  "blog_cli",
		Usage: "Read, upvote and comment on blog articles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8000",
				Usage:   "blog service base URL",
				Sources: cli.EnvVars("BLOG_SERVER"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print an article",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := nameArg(cmd)
					if err != nil {
						return err
					}
					article, err := newClient(cmd).GetArticle(ctx, name)
					if err != nil {
						return err
					}
					return printArticle(cmd, article)
				},
			},
			{
				Name:      "upvote",
				Usage:     "Upvote an article",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := nameArg(cmd)
					if err != nil {
						return err
					}
					article, err := newClient(cmd).Upvote(ctx, name)
					if err != nil {
						return err
					}
					return printArticle(cmd, article)
				},
			},
			{
				Name:      "comment",
				Usage:     "Add a comment to an article",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "comment author"},
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "comment text"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name, err := nameArg(cmd)
					if err != nil {
						return err
					}
					comment := store.Comment{Username: cmd.String("username"), Text: cmd.String("text")}
					article, err := newClient(cmd).AddComment(ctx, name, comment)
					if err != nil {
						return err
					}
					return printArticle(cmd, article)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
