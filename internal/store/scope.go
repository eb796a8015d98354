package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RobertMJr/my-blog/internal/config"
)

// Operation runs against the database handle selected by a Scope.
type Operation func(ctx context.Context, db *mongo.Database) error

// Scope hands a database handle to an Operation and owns the connection
// behind it. Every error from connecting or from the operation is returned.
type Scope interface {
	WithDB(ctx context.Context, op Operation) error
	Close(ctx context.Context) error
}

// NewScope builds the Scope selected by mongo.connection.
func NewScope(ctx context.Context, cfg *config.Config) (Scope, error) {
	if cfg.Mongo.Connection == config.ConnectionPerRequest {
		return NewPerRequest(cfg.MongoURI(), cfg.Mongo.Database, cfg.Mongo.ConnectTimeout), nil
	}

	connectCtx, cancel := withTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOptions(cfg.MongoURI(), cfg.Mongo.ConnectTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	return NewPooled(client, cfg.Mongo.Database), nil
}

func clientOptions(uri string, timeout time.Duration) *options.ClientOptions {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	return opts
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// PerRequest opens a fresh client for every WithDB call and disconnects it
// when the operation returns, whether or not it failed.
type PerRequest struct {
	opts     *options.ClientOptions
	database string
	timeout  time.Duration
}

func NewPerRequest(uri, database string, timeout time.Duration) *PerRequest {
	return &PerRequest{opts: clientOptions(uri, timeout), database: database, timeout: timeout}
}

func (s *PerRequest) WithDB(ctx context.Context, op Operation) error {
	connectCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, s.opts)
	if err != nil {
		return errors.Wrap(err, "connect to mongo")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("error occured while disconnecting from mongo")
		}
	}()

	return op(ctx, client.Database(s.database))
}

func (s *PerRequest) Close(context.Context) error { return nil }

// Pooled shares one client across all callers until Close.
type Pooled struct {
	client   *mongo.Client
	database string
}

func NewPooled(client *mongo.Client, database string) *Pooled {
	return &Pooled{client: client, database: database}
}

func (s *Pooled) WithDB(ctx context.Context, op Operation) error {
	return op(ctx, s.client.Database(s.database))
}

func (s *Pooled) Close(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "disconnect from mongo")
}
