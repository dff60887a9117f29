package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Queue is a thin producer for the Redis worker queues.
// Workers consume with BLPop; failed items are pushed back for retry.
type Queue struct {
	rdb *redis.Client
}

// NewQueue creates a new Queue.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue appends a payload to the named queue.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload []byte) error {
	return q.rdb.RPush(ctx, queue, payload).Err()
}
