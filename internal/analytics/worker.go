package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/RobertMJr/my-blog/internal/store"
)

type Worker struct {
	Queue Queue
	Scope store.Scope
	Views *Views
	// Backoff is how long to wait after the queue itself fails.
	Backoff time.Duration
}

// Run drains the queue until ctx is done. A failed item is logged and dropped.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		name, err := w.Queue.Pop(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrEmpty):
			continue
		case err != nil:
			log.Error().Err(err).Msg("error while getting data from redis")
			w.pause(ctx)
			continue
		}

		err = w.Scope.WithDB(ctx, func(ctx context.Context, db *mongo.Database) error {
			return w.Views.Record(ctx, db, name)
		})
		if err != nil {
			log.Error().Err(err).Str("article", name).Msg("error while updating views")
			continue
		}
		log.Debug().Str("article", name).Msg("view recorded")
	}
}

func (w *Worker) pause(ctx context.Context) {
	if w.Backoff <= 0 {
		return
	}
	timer := time.NewTimer(w.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
