// Package broker moves pipeline work and progress events through Redis.
// Stage jobs ride two lists, one per worker class, and progress fans out on a
// pub/sub channel the HTTP layer streams to clients.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueIO carries network and database bound stages.
	QueueIO = "io"
	// QueueCPU carries compute bound stages (OCR, embedding).
	QueueCPU = "cpu"

	queuePrefix     = "carrel:queue:"
	progressChannel = "carrel:job_progress"
)

// Task is one unit of pipeline work: run a stage against a version.
type Task struct {
	Stage     string    `json:"stage"`
	VersionID uuid.UUID `json:"version_id"`
}

// Event is a progress notification published as a stage advances.
type Event struct {
	VersionID uuid.UUID `json:"version_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress,omitempty"`
	Total     int       `json:"total,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Broker is the Redis-backed queue and event bus.
type Broker struct {
	rdb *redis.Client
	log *slog.Logger
}

// New connects to Redis at the given address.
func New(addr, password string, db int, log *slog.Logger) *Broker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Broker{rdb: rdb, log: log}
}

// Close releases the Redis connection.
func (b *Broker) Close() error { return b.rdb.Close() }

// Ping verifies the Redis connection.
func (b *Broker) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Enqueue pushes a task onto the named queue.
func (b *Broker) Enqueue(ctx context.Context, queue string, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := b.rdb.LPush(ctx, queuePrefix+queue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue on %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for a task on any of the queues.
// Returns the task and the queue it came from, or ok=false on timeout.
func (b *Broker) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (Task, string, bool, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = queuePrefix + q
	}
	res, err := b.rdb.BRPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return Task{}, "", false, nil
	}
	if err != nil {
		return Task{}, "", false, fmt.Errorf("dequeue: %w", err)
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return Task{}, "", false, fmt.Errorf("decode task from %s: %w", res[0], err)
	}
	return task, res[0][len(queuePrefix):], true, nil
}

// QueueDepth returns the number of pending tasks on a queue.
func (b *Broker) QueueDepth(ctx context.Context, queue string) (int64, error) {
	n, err := b.rdb.LLen(ctx, queuePrefix+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", queue, err)
	}
	return n, nil
}

// Publish emits a progress event. Delivery is best effort; a failed publish
// is logged and swallowed so it never fails a pipeline stage.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("encode progress event failed", "error", err)
		return
	}
	if err := b.rdb.Publish(ctx, progressChannel, payload).Err(); err != nil {
		b.log.Warn("publish progress event failed", "error", err)
	}
}

// Subscribe listens for progress events until ctx is cancelled. Malformed
// payloads are skipped. The returned channel closes when the subscription
// ends; call the cancel func to end it early.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := b.rdb.Subscribe(ctx, progressChannel)
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("skip malformed progress event", "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
