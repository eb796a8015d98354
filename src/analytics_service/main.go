package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/RobertMJr/my-blog/internal/analytics"
	"github.com/RobertMJr/my-blog/internal/config"
	"github.com/RobertMJr/my-blog/internal/logging"
	"github.com/RobertMJr/my-blog/internal/server"
	"github.com/RobertMJr/my-blog/internal/store"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	cfg.Server.Addr = cmd.String("addr")

	scope, err := store.NewScope(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scope.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("error occured while disconnecting from mongo")
		}
	}()

	views := analytics.NewViews(cmd.String("collection"))
	return server.NewViews(cfg, scope, views).Run(ctx)
}

func main() {
	cmd := &cli.Command{
		Name:  "analytics_service",
		Usage: "Serve article view counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("BLOG_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8081",
				Usage:   "listen address",
				Sources: cli.EnvVars("ANALYTICS_ADDR"),
			},
			&cli.StringFlag{
				Name:  "collection",
				Value: analytics.DefaultCollection,
				Usage: "collection holding the view counters",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("analytics service failed")
	}
}
