// Package analytics counts article views. The blog service pushes the name of
// every article it serves onto a redis list and the worker drains that list
// into a views collection.
package analytics

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const resultValueIndex = 1

// ErrEmpty is returned by Pop when nothing arrived before the wait elapsed.
var ErrEmpty = errors.New("queue empty")

type Queue interface {
	Push(ctx context.Context, name string) error
	Pop(ctx context.Context) (string, error)
}

type RedisQueue struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

func NewRedisQueue(uri, key string, wait time.Duration) (*RedisQueue, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return &RedisQueue{client: redis.NewClient(opt), key: key, wait: wait}, nil
}

func (q *RedisQueue) Push(ctx context.Context, name string) error {
	return errors.Wrapf(q.client.RPush(ctx, q.key, name).Err(), "push %s", q.key)
}

func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	result, err := q.client.BLPop(ctx, q.wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", errors.Wrapf(err, "pop %s", q.key)
	}
	return result[resultValueIndex], nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
