package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"

	"github.com/RobertMJr/my-blog/internal/analytics"
	"github.com/RobertMJr/my-blog/internal/config"
	"github.com/RobertMJr/my-blog/internal/logging"
	"github.com/RobertMJr/my-blog/internal/server"
	"github.com/RobertMJr/my-blog/internal/store"
)

type seedFile struct {
	Articles []store.Article `yaml:"articles"`
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

func closeScope(scope store.Scope) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scope.Close(ctx); err != nil {
		log.Error().Err(err).Msg("error occured while disconnecting from mongo")
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("static-dir") {
		cfg.Server.StaticDir = cmd.String("static-dir")
	}

	scope, err := store.NewScope(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeScope(scope)

	var publisher server.Publisher
	if cfg.Redis.Enabled {
		queue, err := analytics.NewRedisQueue(cfg.RedisURI(), cfg.Redis.Queue, cfg.Redis.PopWait)
		if err != nil {
			return err
		}
		defer queue.Close()
		publisher = queue
	}

	log.Info().
		Str("mongo", cfg.Mongo.Database).
		Str("connection", cfg.Mongo.Connection).
		Bool("atomic_updates", cfg.Mongo.AtomicUpdates).
		Bool("analytics", cfg.Redis.Enabled).
		Msg("starting blog service")

	articles := store.NewArticles(cfg.Mongo.Collection, cfg.Mongo.AtomicUpdates)
	return server.NewBlog(cfg, scope, articles, publisher).Run(ctx)
}

func seed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	file, err := os.Open(cmd.String("file"))
	if err != nil {
		return errors.Wrap(err, "open seed file")
	}
	defer file.Close()

	var data seedFile
	if err := yaml.NewDecoder(file).Decode(&data); err != nil {
		return errors.Wrap(err, "decode seed file")
	}

	scope, err := store.NewScope(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeScope(scope)

	articles := store.NewArticles(cfg.Mongo.Collection, cfg.Mongo.AtomicUpdates)
	return scope.WithDB(ctx, func(ctx context.Context, db *mongo.Database) error {
		n, err := articles.Seed(ctx, db, data.Articles)
		if err != nil {
			return err
		}
		log.Info().Int("articles", n).Str("collection", cfg.Mongo.Collection).Msg("seeded")
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:  "blog_service",
		Usage: "Serve the blog article API and front-end bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to the YAML config file",
				Sources: cli.EnvVars("BLOG_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides server.addr",
			},
			&cli.StringFlag{
				Name:  "static-dir",
				Usage: "directory of the built front-end, overrides server.static_dir",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "Upsert the articles listed in a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Value:   "articles.yml",
						Usage:   "YAML file with an articles list",
					},
				},
				Action: seed,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("blog service failed")
	}
}
