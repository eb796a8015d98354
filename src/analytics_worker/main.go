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
	"github.com/RobertMJr/my-blog/internal/store"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	scope, err := store.NewScope(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scope.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("error while disconnecting from mongo")
		}
	}()

	queue, err := analytics.NewRedisQueue(cfg.RedisURI(), cfg.Redis.Queue, cfg.Redis.PopWait)
	if err != nil {
		return err
	}
	defer queue.Close()

	worker := &analytics.Worker{
		Queue:   queue,
		Scope:   scope,
		Views:   analytics.NewViews(cmd.String("collection")),
		Backoff: cmd.Duration("backoff"),
	}

	log.Info().Str("queue", cfg.Redis.Queue).Msg("analytics worker started")
	err = worker.Run(ctx)
	log.Info().Msg("analytics worker stopped")
	return err
}

func main() {
	cmd := &cli.Command{
		Name:  "analytics_worker",
		Usage: "Count article views pushed by the blog service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("BLOG_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "collection",
				Value: analytics.DefaultCollection,
				Usage: "collection holding the view counters",
			},
			&cli.DurationFlag{
				Name:  "backoff",
				Value: time.Second,
				Usage: "pause after a failed read from redis",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("analytics worker failed")
	}
}
