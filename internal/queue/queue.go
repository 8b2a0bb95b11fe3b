package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/openimaging/archivepipe/internal/redis"
)

// Message is the asynchronous processing request. It carries only the
// session id; the consumer decides what to do from the record's current
// status, which keeps delivery idempotent.
type Message struct {
	SessionID string `json:"sessionId"`
}

// DispatchQueue is an at-least-once dispatch primitive over a redis list.
// Messages survive worker restarts for as long as redis holds the list.
type DispatchQueue struct {
	redis *redisclient.Client
	key   string
}

func NewDispatchQueue(redisClient *redisclient.Client) *DispatchQueue {
	return &DispatchQueue{
		redis: redisClient,
		key:   redisclient.DispatchQueueKey,
	}
}

func (q *DispatchQueue) Enqueue(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(Message{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal dispatch message: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue session %s: %w", sessionID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next message. It returns (nil, nil)
// when the wait times out with an empty queue.
func (q *DispatchQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	vals, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("dequeue: unexpected reply of %d elements", len(vals))
	}

	var msg Message
	if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal dispatch message: %w", err)
	}
	return &msg, nil
}

func (q *DispatchQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}
