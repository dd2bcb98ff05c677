package ssonotify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the transport between the engine's fire-and-forget sends and the
// delivery worker. Enqueue must not block; Dequeue blocks until a payload
// arrives or ctx is done.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Dequeue(ctx context.Context) ([]byte, error)
}

// ChannelQueue is the in-process default backed by a bounded channel.
type ChannelQueue struct {
	ch chan []byte
}

func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{ch: make(chan []byte, size)}
}

func (q *ChannelQueue) Enqueue(_ context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		return nil
	default:
		return ssonotifyErrors.New(ErrQueueFull)
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-q.ch:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedisQueue pushes payloads onto a redis list so delivery can run in a
// separate process and survive restarts.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(addr string, db int, key string) *RedisQueue {
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		key:    key,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return ssonotifyErrors.NewWithCause(ErrQueueClosed, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) ([]byte, error) {
	for {
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err == nil && len(res) == 2 {
			return []byte(res[1]), nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
