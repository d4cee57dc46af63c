package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brain-orchestrator/internal/domain"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var (
	_ repository.JobQueue      = (*JobQueue)(nil)
	_ repository.LivenessIndex = (*JobQueue)(nil)
)

// JobQueue is the shared FIFO: LPUSH at the head, BRPOP from the tail, so the
// oldest job is always popped first. Each element is the JSON-encoded Job.
type JobQueue struct {
	client Client
	key    string
}

func NewJobQueue(client Client, key string) *JobQueue {
	return &JobQueue{client: client, key: key}
}

func (q *JobQueue) Enqueue(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.client.LPush(ctx, q.key, data)
}

func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*model.Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrQueueEmpty
		}
		return nil, err
	}
	// BRPOP returns [key, value].
	if len(res) < 2 {
		return nil, domain.ErrQueueEmpty
	}
	var job model.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (q *JobQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key)
}

func processingKey(jobID string) string {
	return "processing:" + jobID
}

func (q *JobQueue) MarkProcessing(ctx context.Context, jobID string, ttl time.Duration) error {
	_, err := q.client.SetNX(ctx, processingKey(jobID), time.Now().Unix(), ttl)
	return err
}

func (q *JobQueue) ClearProcessing(ctx context.Context, jobID string) error {
	return q.client.Del(ctx, processingKey(jobID))
}
