package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"strathub/pkg/logger"
	"strathub/pkg/redis"
)

// DefaultQueue is the queue shared by the API producer and the worker
// consumer. Both sides must agree on the name or job claims will not
// collide.
const DefaultQueue = "jobs"

// Task types dispatched through the queue.
const (
	TaskBacktestRun = "backtests.run"
	TaskTradeRun    = "trades.run"
)

// ErrDuplicate is returned when a task carries an id that is already
// claimed. Trade runs use a deterministic id per bot, so a second run
// request for the same bot collides here instead of duplicating.
var ErrDuplicate = errors.New("task id already claimed")

// Task is one unit of asynchronous work. ID is optional; when set it is
// claimed atomically before the task is enqueued.
type Task struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NewTask builds a task with a JSON-serialized payload.
func NewTask(taskType, id string, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{Type: taskType, ID: id, Payload: raw}, nil
}

// Producer enqueues tasks. Services depend on this interface so tests can
// substitute a fake.
type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

// Handler processes one dequeued task.
type Handler func(ctx context.Context, task Task)

// Queue is a Redis-list-backed task queue.
type Queue struct {
	redis    *redis.Client
	name     string
	claimTTL time.Duration
	log      *logger.Logger
}

// New creates a queue over the given Redis client. Claimed job ids expire
// after claimTTL unless released earlier.
func New(redisClient *redis.Client, name string, claimTTL time.Duration, log *logger.Logger) *Queue {
	return &Queue{
		redis:    redisClient,
		name:     name,
		claimTTL: claimTTL,
		log:      log,
	}
}

// Enqueue serializes the task and pushes it onto the queue. When the task
// has an id, the id is claimed first; a second enqueue with the same id
// fails with ErrDuplicate until the claim is released or expires.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.ID != "" {
		ok, err := q.redis.SetNX(ctx, redis.JobClaimKey(q.name, task.ID), 1, q.claimTTL)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDuplicate
		}
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, redis.QueueKey(q.name), raw); err != nil {
		// Give the claim back so the caller can retry.
		if task.ID != "" {
			_ = q.redis.Del(ctx, redis.JobClaimKey(q.name, task.ID))
		}
		return err
	}
	return nil
}

// ExtendClaim pushes a held claim's expiry out by the claim TTL again.
// Long trade runs refresh their claim each tick so it cannot lapse while
// the run is still alive.
func (q *Queue) ExtendClaim(ctx context.Context, id string) error {
	return q.redis.Expire(ctx, redis.JobClaimKey(q.name, id), q.claimTTL)
}

// Release frees a claimed job id, allowing the same id to be enqueued
// again. Called when a trade runner stops.
func (q *Queue) Release(ctx context.Context, id string) error {
	return q.redis.Del(ctx, redis.JobClaimKey(q.name, id))
}

// Consume blocks on the queue and invokes the handler for each task until
// the context is canceled. Failed tasks are logged and dropped; there is
// no retry.
func (q *Queue) Consume(ctx context.Context, handler Handler) {
	key := redis.QueueKey(q.name)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		values, err := q.redis.BRPop(ctx, 5*time.Second, key)
		if err != nil {
			// BRPop returns an error on timeout as well; only log when the
			// context is still live and the error is not a plain timeout.
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if len(values) < 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(values[1]), &task); err != nil {
			q.log.Error("Discarding malformed task", err)
			continue
		}

		handler(ctx, task)
	}
}
